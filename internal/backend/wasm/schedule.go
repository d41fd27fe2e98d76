package wasm

import "lumen/internal/ir"

// ScheduleBlock builds the dependency DAG over a block's instructions
// and returns a topological order of original indices. Dependencies are
// read-after-write, write-after-write and write-after-read over locals,
// with all of linear memory folded into a single location so loads and
// stores keep their relative order. Among ready instructions the
// earliest original index wins, so an already-ordered block schedules
// to the identity. The order is advisory; the encoder emits program
// order.
func ScheduleBlock(b *ir.Block) []int {
	n := len(b.Instrs)
	if n == 0 {
		return nil
	}

	effects := make([]instrEffects, n)
	for i := range b.Instrs {
		effects[i] = effectsOf(&b.Instrs[i])
	}

	succs := make([][]int, n)
	indeg := make([]int, n)
	depend := func(from, to int) {
		succs[from] = append(succs[from], to)
		indeg[to]++
	}
	for j := 1; j < n; j++ {
		for i := 0; i < j; i++ {
			if effects[i].conflicts(&effects[j]) {
				depend(i, j)
			}
		}
	}

	order := make([]int, 0, n)
	ready := make([]bool, n)
	done := make([]bool, n)
	for i := 0; i < n; i++ {
		ready[i] = indeg[i] == 0
	}
	for len(order) < n {
		pick := -1
		for i := 0; i < n; i++ {
			if ready[i] && !done[i] {
				pick = i
				break
			}
		}
		if pick < 0 {
			// The conflict relation only points forward, so the DAG
			// cannot cycle; exhaustion here would be a bug.
			panic("wasm: scheduler found no ready instruction")
		}
		done[pick] = true
		order = append(order, pick)
		for _, s := range succs[pick] {
			indeg[s]--
			if indeg[s] == 0 {
				ready[s] = true
			}
		}
	}
	return order
}

type instrEffects struct {
	reads     []ir.LocalID
	writes    []ir.LocalID
	readsMem  bool
	writesMem bool
}

func (e *instrEffects) conflicts(later *instrEffects) bool {
	for _, w := range e.writes {
		if containsLocal(later.reads, w) || containsLocal(later.writes, w) {
			return true
		}
	}
	for _, r := range e.reads {
		if containsLocal(later.writes, r) {
			return true
		}
	}
	if e.writesMem && (later.readsMem || later.writesMem) {
		return true
	}
	if e.readsMem && later.writesMem {
		return true
	}
	return false
}

func containsLocal(s []ir.LocalID, id ir.LocalID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func effectsOf(in *ir.Instr) instrEffects {
	var e instrEffects
	readOp := func(o ir.Operand) {
		if o.Kind == ir.OperandLocal {
			e.reads = append(e.reads, o.Local)
		}
	}
	switch in.Kind {
	case ir.InstrAssign:
		switch in.Assign.Src.Kind {
		case ir.RValueUse:
			readOp(in.Assign.Src.Use)
		case ir.RValueUnary:
			readOp(in.Assign.Src.Unary.X)
		case ir.RValueBinary:
			readOp(in.Assign.Src.Binary.L)
			readOp(in.Assign.Src.Binary.R)
		}
		e.writes = append(e.writes, in.Assign.Dst)
	case ir.InstrLoad:
		readOp(in.Load.Addr)
		e.readsMem = true
		e.writes = append(e.writes, in.Load.Dst)
	case ir.InstrStore:
		readOp(in.Store.Addr)
		readOp(in.Store.Val)
		e.writesMem = true
	case ir.InstrCall:
		for _, a := range in.Call.Args {
			readOp(a)
		}
		// Calls may touch any memory.
		e.readsMem = true
		e.writesMem = true
		if in.Call.HasDst {
			e.writes = append(e.writes, in.Call.Dst)
		}
	case ir.InstrPhi:
		for _, edge := range in.Phi.Incoming {
			readOp(edge.Value)
		}
		e.writes = append(e.writes, in.Phi.Dst)
	}
	return e
}

package wasm

import "lumen/internal/ir"

// TripCount is the solver's verdict for one loop. Known is false for
// anything the canonical-induction pattern does not cover, including
// inconsistent setups that would never terminate.
type TripCount struct {
	Known bool
	Count int64
}

func UnknownTrips() TripCount      { return TripCount{} }
func ExactTrips(n int64) TripCount { return TripCount{Known: true, Count: n} }

// AnalyzeTripCount recognizes the canonical counted loop: the header
// tests an induction variable against an integer constant, the body
// advances it by a constant step, and the initial value is visible
// through a header phi or the preheader. Anything else is Unknown;
// the solver never fails a compile.
func AnalyzeTripCount(f *ir.Func, l *Loop) TripCount {
	header := &f.Blocks[l.Header]
	if header.Term.Kind != ir.TermIf {
		return UnknownTrips()
	}
	cond := header.Term.If.Cond
	if cond.Kind != ir.OperandLocal {
		return UnknownTrips()
	}

	iv, op, limit, ok := exitCondition(header, cond.Local)
	if !ok {
		return UnknownTrips()
	}
	inc, ok := stepOf(f, l, iv)
	if !ok {
		return UnknownTrips()
	}
	init, ok := initialOf(f, l, iv)
	if !ok {
		return UnknownTrips()
	}
	return solveTrips(op, init, limit, inc)
}

// exitCondition finds the comparison feeding the header branch: an
// assignment to cond of the form (iv cmp const) or (const cmp iv).
// The constant-on-the-left form is normalized by flipping the
// operator.
func exitCondition(header *ir.Block, cond ir.LocalID) (iv ir.LocalID, op ir.BinOp, limit int64, ok bool) {
	for i := len(header.Instrs) - 1; i >= 0; i-- {
		in := &header.Instrs[i]
		if in.Kind != ir.InstrAssign || in.Assign.Dst != cond {
			continue
		}
		src := in.Assign.Src
		if src.Kind != ir.RValueBinary || !src.Binary.Op.IsCompare() {
			return 0, 0, 0, false
		}
		l, r := src.Binary.L, src.Binary.R
		switch {
		case l.Kind == ir.OperandLocal && r.Kind == ir.OperandConst && r.Const.Kind == ir.ConstInt:
			return l.Local, src.Binary.Op, r.Const.Int, true
		case l.Kind == ir.OperandConst && l.Const.Kind == ir.ConstInt && r.Kind == ir.OperandLocal:
			return r.Local, flipCompare(src.Binary.Op), l.Const.Int, true
		}
		return 0, 0, 0, false
	}
	return 0, 0, 0, false
}

func flipCompare(op ir.BinOp) ir.BinOp {
	switch op {
	case ir.OpLt:
		return ir.OpGt
	case ir.OpLe:
		return ir.OpGe
	case ir.OpGt:
		return ir.OpLt
	case ir.OpGe:
		return ir.OpLe
	default:
		return op
	}
}

// stepOf finds the single constant update of iv inside the loop body:
// iv = iv + c or iv = iv - c. Two distinct updates make the step
// unknown.
func stepOf(f *ir.Func, l *Loop, iv ir.LocalID) (int64, bool) {
	found := false
	var step int64
	for b := range l.Body {
		for i := range f.Blocks[b].Instrs {
			in := &f.Blocks[b].Instrs[i]
			if in.Kind != ir.InstrAssign || in.Assign.Dst != iv {
				continue
			}
			src := in.Assign.Src
			if src.Kind == ir.RValueUse && src.Use.Kind == ir.OperandLocal && src.Use.Local == iv {
				continue
			}
			c, ok := constStep(&src, iv)
			if !ok {
				return 0, false
			}
			if found && c != step {
				return 0, false
			}
			step, found = c, true
		}
	}
	return step, found
}

func constStep(src *ir.RValue, iv ir.LocalID) (int64, bool) {
	if src.Kind != ir.RValueBinary {
		return 0, false
	}
	b := src.Binary
	isIV := func(o ir.Operand) bool { return o.Kind == ir.OperandLocal && o.Local == iv }
	isInt := func(o ir.Operand) bool { return o.Kind == ir.OperandConst && o.Const.Kind == ir.ConstInt }
	switch b.Op {
	case ir.OpAdd:
		if isIV(b.L) && isInt(b.R) {
			return b.R.Const.Int, true
		}
		if isInt(b.L) && isIV(b.R) {
			return b.L.Const.Int, true
		}
	case ir.OpSub:
		if isIV(b.L) && isInt(b.R) {
			return -b.R.Const.Int, true
		}
	}
	return 0, false
}

// initialOf recovers iv's value on loop entry: a header phi whose
// outside-edge value is an integer constant, or failing that a plain
// constant assignment in the preheader.
func initialOf(f *ir.Func, l *Loop, iv ir.LocalID) (int64, bool) {
	header := &f.Blocks[l.Header]
	for i := range header.Instrs {
		in := &header.Instrs[i]
		if in.Kind != ir.InstrPhi || in.Phi.Dst != iv {
			continue
		}
		for _, e := range in.Phi.Incoming {
			if l.Body[e.From] {
				continue
			}
			if e.Value.Kind == ir.OperandConst && e.Value.Const.Kind == ir.ConstInt {
				return e.Value.Const.Int, true
			}
		}
		return 0, false
	}

	if !l.Preheader.IsValid() {
		return 0, false
	}
	pre := &f.Blocks[l.Preheader]
	for i := len(pre.Instrs) - 1; i >= 0; i-- {
		in := &pre.Instrs[i]
		if in.Kind != ir.InstrAssign || in.Assign.Dst != iv {
			continue
		}
		src := in.Assign.Src
		if src.Kind == ir.RValueUse && src.Use.Kind == ir.OperandConst && src.Use.Const.Kind == ir.ConstInt {
			return src.Use.Const.Int, true
		}
		return 0, false
	}
	return 0, false
}

// solveTrips applies the closed-form counts. A zero step or a setup
// whose direction contradicts the operator yields Unknown rather than
// an error; the loop may still be fine at runtime, it just is not a
// counted loop we can size.
func solveTrips(op ir.BinOp, init, limit, inc int64) TripCount {
	if inc == 0 {
		return UnknownTrips()
	}
	switch op {
	case ir.OpLt:
		if inc > 0 && init < limit {
			return ExactTrips((limit - init + inc - 1) / inc)
		}
	case ir.OpLe:
		if inc > 0 && init < limit {
			return ExactTrips((limit-init)/inc + 1)
		}
	case ir.OpGt:
		if inc < 0 && init > limit {
			return ExactTrips((init - limit + (-inc) - 1) / (-inc))
		}
	case ir.OpGe:
		if inc < 0 && init > limit {
			return ExactTrips((init-limit)/(-inc) + 1)
		}
	case ir.OpEq:
		if init == limit {
			return ExactTrips(1)
		}
	case ir.OpNe:
		if inc > 0 && init < limit {
			return ExactTrips((limit - init) / inc)
		}
		if inc < 0 && init > limit {
			return ExactTrips((init - limit) / (-inc))
		}
	}
	return UnknownTrips()
}

package wasm

import "lumen/internal/ir"

// StrengthKind names the cheap replacement for a power-of-two
// multiply, divide or modulo.
type StrengthKind uint8

const (
	StrengthMulToShift StrengthKind = iota + 1
	StrengthDivToShift
	StrengthModToMask
)

type StrengthRed struct {
	Index int
	Kind  StrengthKind
}

// MemOpt collects the advisory memory and arithmetic findings for one
// block. Indices are original instruction positions.
type MemOpt struct {
	// RedundantLoads repeat an earlier load of the same address with
	// no store in between.
	RedundantLoads []int

	// ForwardPairs are [load, store] index pairs where the store
	// writes the just-loaded value back to the same address within the
	// pairing window.
	ForwardPairs [][2]int

	StrengthReds []StrengthRed

	// ConstFolds are binary assignments with two constant operands.
	ConstFolds []int
}

// AnalyzeMemOps runs the per-block memory and strength-reduction scan.
func AnalyzeMemOps(b *ir.Block, cfg *Config) MemOpt {
	var m MemOpt

	for i := range b.Instrs {
		in := &b.Instrs[i]
		switch in.Kind {
		case ir.InstrLoad:
			if hasEarlierLiveLoad(b, i) {
				m.RedundantLoads = append(m.RedundantLoads, i)
			}
			if j, ok := forwardingStore(b, i, cfg.StorePairWindow); ok {
				m.ForwardPairs = append(m.ForwardPairs, [2]int{i, j})
			}
		case ir.InstrAssign:
			src := in.Assign.Src
			if src.Kind != ir.RValueBinary {
				continue
			}
			if k, ok := strengthKind(src.Binary); ok {
				m.StrengthReds = append(m.StrengthReds, StrengthRed{Index: i, Kind: k})
			}
			if src.Binary.L.Kind == ir.OperandConst && src.Binary.R.Kind == ir.OperandConst {
				m.ConstFolds = append(m.ConstFolds, i)
			}
		}
	}
	return m
}

// hasEarlierLiveLoad reports whether an earlier load of the same
// address is still valid at instruction i: nothing stored through any
// pointer and nothing reassigned the address local since.
func hasEarlierLiveLoad(b *ir.Block, i int) bool {
	addr := b.Instrs[i].Load.Addr
	for j := i - 1; j >= 0; j-- {
		in := &b.Instrs[j]
		switch in.Kind {
		case ir.InstrStore, ir.InstrCall:
			return false
		case ir.InstrLoad:
			if sameOperand(in.Load.Addr, addr) {
				return true
			}
		}
		if dst, ok := in.Dst(); ok && addr.Kind == ir.OperandLocal && dst == addr.Local {
			return false
		}
	}
	return false
}

// forwardingStore looks ahead for a store of the loaded value back to
// the loaded address.
func forwardingStore(b *ir.Block, i, window int) (int, bool) {
	load := b.Instrs[i].Load
	end := i + window
	if end > len(b.Instrs)-1 {
		end = len(b.Instrs) - 1
	}
	for j := i + 1; j <= end; j++ {
		in := &b.Instrs[j]
		if in.Kind != ir.InstrStore {
			continue
		}
		st := in.Store
		if sameOperand(st.Addr, load.Addr) &&
			st.Val.Kind == ir.OperandLocal && st.Val.Local == load.Dst {
			return j, true
		}
	}
	return 0, false
}

func strengthKind(bin ir.BinaryExpr) (StrengthKind, bool) {
	r := bin.R
	if r.Kind != ir.OperandConst || r.Const.Kind != ir.ConstInt {
		return 0, false
	}
	c := r.Const.Int
	if c <= 0 || c&(c-1) != 0 {
		return 0, false
	}
	switch bin.Op {
	case ir.OpMul:
		return StrengthMulToShift, true
	case ir.OpDiv:
		return StrengthDivToShift, true
	case ir.OpMod:
		return StrengthModToMask, true
	}
	return 0, false
}

func sameOperand(a, b ir.Operand) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.OperandLocal:
		return a.Local == b.Local
	case ir.OperandConst:
		return a.Const == b.Const
	}
	return false
}

package wasm

import "lumen/internal/ir"

// VecGroup marks a run of Len consecutive instructions starting at
// Start (original index) that apply the same binary operator and are
// mutually independent, so a SIMD rewrite could fuse them.
type VecGroup struct {
	Start int
	Len   int
	Op    ir.BinOp
}

// FindVectorGroups scans a block for vectorizable runs: consecutive
// binary assignments with one operator where no instruction reads a
// local written earlier in the run. Runs shorter than
// Config.VectorRunMin are ignored; a run is never followed past
// Config.VectorScanWindow instructions.
func FindVectorGroups(b *ir.Block, cfg *Config) []VecGroup {
	var groups []VecGroup
	i := 0
	for i < len(b.Instrs) {
		op, ok := binaryOpAt(b, i)
		if !ok {
			i++
			continue
		}
		written := map[ir.LocalID]bool{b.Instrs[i].Assign.Dst: true}
		run := 1
		for run < cfg.VectorScanWindow && i+run < len(b.Instrs) {
			next, ok := binaryOpAt(b, i+run)
			if !ok || next != op {
				break
			}
			bin := b.Instrs[i+run].Assign
			if readsAnyOf(bin.Src.Binary, written) {
				break
			}
			written[bin.Dst] = true
			run++
		}
		if run >= cfg.VectorRunMin {
			groups = append(groups, VecGroup{Start: i, Len: run, Op: op})
		}
		i += run
	}
	return groups
}

func binaryOpAt(b *ir.Block, i int) (ir.BinOp, bool) {
	in := &b.Instrs[i]
	if in.Kind != ir.InstrAssign || in.Assign.Src.Kind != ir.RValueBinary {
		return ir.OpInvalid, false
	}
	return in.Assign.Src.Binary.Op, true
}

func readsAnyOf(bin ir.BinaryExpr, written map[ir.LocalID]bool) bool {
	if bin.L.Kind == ir.OperandLocal && written[bin.L.Local] {
		return true
	}
	if bin.R.Kind == ir.OperandLocal && written[bin.R.Local] {
		return true
	}
	return false
}

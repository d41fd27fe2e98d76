package wasm

import "lumen/internal/ir"

// CFG is a function's control-flow graph. Succs[b] preserves
// terminator edge order and may repeat a block (an if with both arms
// on the same target still contributes two edges).
type CFG struct {
	Entry ir.BlockID
	Succs [][]ir.BlockID
	Preds [][]ir.BlockID
}

func (g *CFG) NumBlocks() int { return len(g.Succs) }

// BuildCFG derives the edge lists from block terminators. A block left
// unterminated by the frontend is rejected here rather than silently
// treated as fall-through.
func BuildCFG(f *ir.Func) (*CFG, error) {
	n := len(f.Blocks)
	g := &CFG{
		Entry: f.Entry,
		Succs: make([][]ir.BlockID, n),
		Preds: make([][]ir.BlockID, n),
	}
	if !f.BlockExists(f.Entry) {
		return nil, errf(ErrDanglingReference, f.Name, "entry block %d out of range", f.Entry)
	}
	for bi := range f.Blocks {
		term := &f.Blocks[bi].Term
		if term.Kind == ir.TermNone {
			return nil, errf(ErrInvalidTerminator, f.Name, "block %d has no terminator", bi)
		}
		targets := term.Targets(nil)
		for _, t := range targets {
			if !f.BlockExists(t) {
				return nil, errf(ErrDanglingReference, f.Name, "block %d targets unknown block %d", bi, t)
			}
			g.Succs[bi] = append(g.Succs[bi], t)
			g.Preds[t] = append(g.Preds[t], ir.BlockID(bi))
		}
	}
	return g, nil
}

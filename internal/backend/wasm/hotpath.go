package wasm

import "lumen/internal/ir"

// Edge identifies one CFG edge for frequency and heat lookups.
type Edge struct {
	From ir.BlockID
	To   ir.BlockID
}

// FrequencyTable holds estimated execution counts relative to one
// function entry. Blocks and edges the estimator never reached are
// simply absent.
type FrequencyTable struct {
	Blocks map[ir.BlockID]float64
	Edges  map[Edge]float64
}

// HotSet is the frequency table thresholded into hot/cold.
type HotSet struct {
	Blocks map[ir.BlockID]bool
	Edges  map[Edge]bool
}

// EstimateFrequencies runs the static profile: the entry block executes
// once, loop headers are scaled by their trip counts (exact counts from
// the solver win; the per-shape default guesses apply only to Unknown),
// loop bodies take a fixed fraction of their header, and conditional
// branches split flow with the null-check and loop-continuation biases.
// trips must be parallel to loops.
func EstimateFrequencies(f *ir.Func, g *CFG, loops []Loop, trips []TripCount, cfg *Config) *FrequencyTable {
	t := &FrequencyTable{
		Blocks: make(map[ir.BlockID]float64),
		Edges:  make(map[Edge]float64),
	}
	t.Blocks[g.Entry] = 1.0

	for i := range loops {
		l := &loops[i]
		iters := loopIterGuess(f, l, cfg)
		if trips[i].Known {
			iters = float64(trips[i].Count)
		}
		base, ok := t.Blocks[l.Header]
		if !ok {
			base = 1.0
		}
		headerFreq := base * iters
		t.Blocks[l.Header] = headerFreq
		for b := range l.Body {
			if b != l.Header {
				t.Blocks[b] += headerFreq * cfg.LoopBodyFactor
			}
		}
	}

	for _, b := range reversePostorder(g) {
		fb, ok := t.Blocks[b]
		if !ok || fb == 0 {
			continue
		}
		term := &f.Blocks[b].Term
		switch term.Kind {
		case ir.TermJump:
			flow(t, g, loops, Edge{From: b, To: term.Jump.Target}, fb)
		case ir.TermIf:
			pThen := branchProbability(f, loops, b, term, cfg)
			flow(t, g, loops, Edge{From: b, To: term.If.Then}, fb*pThen)
			flow(t, g, loops, Edge{From: b, To: term.If.Else}, fb*(1-pThen))
		}
		// Returns and unreachables have no outflow; switch dispatch
		// carries no prediction and is left to the defaults.
	}
	return t
}

// flow records an edge frequency and accumulates it into the target,
// except into the entry and except along back edges, whose repetition
// the loop scaling already covers.
func flow(t *FrequencyTable, g *CFG, loops []Loop, e Edge, freq float64) {
	t.Edges[e] += freq
	if e.To == g.Entry {
		return
	}
	for i := range loops {
		if loops[i].Header == e.To && loops[i].Body[e.From] {
			return
		}
	}
	t.Blocks[e.To] += freq
}

// branchProbability picks the probability of the Then edge.
func branchProbability(f *ir.Func, loops []Loop, b ir.BlockID, term *ir.Terminator, cfg *Config) float64 {
	// Null checks: the pointer is overwhelmingly expected valid.
	if cmp, ok := condCompare(&f.Blocks[b], term.If.Cond); ok {
		if isNullOperand(cmp.L) || isNullOperand(cmp.R) {
			switch cmp.Op {
			case ir.OpNe:
				return cfg.NullCheckBias
			case ir.OpEq:
				return 1 - cfg.NullCheckBias
			}
		}
	}
	// Loop continuation: a conditional back edge keeps looping.
	if isBackEdge(loops, b, term.If.Then) {
		return cfg.LoopContinueBias
	}
	if isBackEdge(loops, b, term.If.Else) {
		return 1 - cfg.LoopContinueBias
	}
	return 0.5
}

func isBackEdge(loops []Loop, from, to ir.BlockID) bool {
	for i := range loops {
		if loops[i].Header == to && loops[i].Body[from] {
			return true
		}
	}
	return false
}

// condCompare resolves a branch condition local to the comparison that
// defined it within the same block.
func condCompare(b *ir.Block, cond ir.Operand) (ir.BinaryExpr, bool) {
	if cond.Kind != ir.OperandLocal {
		return ir.BinaryExpr{}, false
	}
	for i := len(b.Instrs) - 1; i >= 0; i-- {
		in := &b.Instrs[i]
		if in.Kind != ir.InstrAssign || in.Assign.Dst != cond.Local {
			continue
		}
		if in.Assign.Src.Kind == ir.RValueBinary && in.Assign.Src.Binary.Op.IsCompare() {
			return in.Assign.Src.Binary, true
		}
		return ir.BinaryExpr{}, false
	}
	return ir.BinaryExpr{}, false
}

func isNullOperand(o ir.Operand) bool {
	return o.Kind == ir.OperandConst && o.Const.Kind == ir.ConstNull
}

// loopIterGuess sizes a loop the solver could not: counted-looking
// loops (integer bound test) iterate a little, collection-looking
// loops (null-terminated walks) iterate a lot, everything else a few
// times.
func loopIterGuess(f *ir.Func, l *Loop, cfg *Config) float64 {
	header := &f.Blocks[l.Header]
	if header.Term.Kind != ir.TermIf {
		return cfg.DefaultLoopIters
	}
	cmp, ok := condCompare(header, header.Term.If.Cond)
	if !ok {
		return cfg.DefaultLoopIters
	}
	if isNullOperand(cmp.L) || isNullOperand(cmp.R) {
		return cfg.DefaultCollectionIters
	}
	isInt := func(o ir.Operand) bool { return o.Kind == ir.OperandConst && o.Const.Kind == ir.ConstInt }
	if isInt(cmp.L) || isInt(cmp.R) {
		return cfg.DefaultCountedIters
	}
	return cfg.DefaultLoopIters
}

// ClassifyHot thresholds a frequency table.
func ClassifyHot(t *FrequencyTable, threshold float64) HotSet {
	h := HotSet{
		Blocks: make(map[ir.BlockID]bool),
		Edges:  make(map[Edge]bool),
	}
	for b, f := range t.Blocks {
		if f > threshold {
			h.Blocks[b] = true
		}
	}
	for e, f := range t.Edges {
		if f > threshold {
			h.Edges[e] = true
		}
	}
	return h
}

// reversePostorder walks g from the entry without recursion and
// returns blocks in reverse postorder. Unreachable blocks are
// appended afterwards in id order.
func reversePostorder(g *CFG) []ir.BlockID {
	n := g.NumBlocks()
	seen := make([]bool, n)
	post := make([]ir.BlockID, 0, n)

	type frame struct {
		block ir.BlockID
		next  int
	}
	var frames []frame
	seen[g.Entry] = true
	frames = append(frames, frame{block: g.Entry})
	for len(frames) > 0 {
		fr := &frames[len(frames)-1]
		succs := g.Succs[fr.block]
		if fr.next < len(succs) {
			s := succs[fr.next]
			fr.next++
			if !seen[s] {
				seen[s] = true
				frames = append(frames, frame{block: s})
			}
			continue
		}
		post = append(post, fr.block)
		frames = frames[:len(frames)-1]
	}

	order := make([]ir.BlockID, 0, n)
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for b := 0; b < n; b++ {
		if !seen[b] {
			order = append(order, ir.BlockID(b))
		}
	}
	return order
}

package wasm_test

import (
	"math"
	"testing"

	"lumen/internal/backend/wasm"
	"lumen/internal/ir"
	"lumen/internal/types"
)

func analyzeFreq(t *testing.T, f *ir.Func, cfg *wasm.Config) (*wasm.CFG, *wasm.FrequencyTable) {
	t.Helper()
	g, err := wasm.BuildCFG(f)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	loops := wasm.DetectLoops(g)
	trips := make([]wasm.TripCount, len(loops))
	for i := range loops {
		trips[i] = wasm.AnalyzeTripCount(f, &loops[i])
	}
	return g, wasm.EstimateFrequencies(f, g, loops, trips, cfg)
}

// TestEstimate_SingleBlock: a function with one block gets exactly one
// entry at frequency 1.0 and no edges.
func TestEstimate_SingleBlock(t *testing.T) {
	in := types.NewInterner()
	cfg := wasm.DefaultConfig()
	_, freq := analyzeFreq(t, returnConstFunc(in, "one", 7), &cfg)
	if len(freq.Blocks) != 1 {
		t.Fatalf("blocks = %v, want only the entry", freq.Blocks)
	}
	if got := freq.Blocks[0]; got != 1.0 {
		t.Errorf("entry frequency = %v, want 1.0", got)
	}
	if len(freq.Edges) != 0 {
		t.Errorf("edges = %v, want none", freq.Edges)
	}
}

// TestEstimate_ExactTripCountWins: the solver's count, not the counted
// default guess, scales the header.
func TestEstimate_ExactTripCountWins(t *testing.T) {
	in := types.NewInterner()
	cfg := wasm.DefaultConfig()
	f := countedLoopFunc(in, ir.OpLt, 0, 1000, 1)
	_, freq := analyzeFreq(t, f, &cfg)

	header := freq.Blocks[1]
	if header < 1000 {
		t.Errorf("header frequency = %v, want at least the 1000 exact iterations", header)
	}
	// With the default guess of 10 it could never reach this.
	if header < cfg.DefaultCountedIters*10 {
		t.Errorf("header frequency = %v suggests the default guess was used", header)
	}
}

// TestEstimate_UnknownUsesDefault: a zero-step loop has no exact count,
// so the counted-looking default applies.
func TestEstimate_UnknownUsesDefault(t *testing.T) {
	in := types.NewInterner()
	cfg := wasm.DefaultConfig()
	f := countedLoopFunc(in, ir.OpLt, 0, 1000, 0)
	_, freq := analyzeFreq(t, f, &cfg)

	header := freq.Blocks[1]
	if header < cfg.DefaultCountedIters {
		t.Errorf("header frequency = %v, want at least the %v default", header, cfg.DefaultCountedIters)
	}
	if header > 100 {
		t.Errorf("header frequency = %v, too high for an unknown count", header)
	}
}

// TestEstimate_NullCheckBias: the non-null arm of a null test carries
// the biased share of the flow.
func TestEstimate_NullCheckBias(t *testing.T) {
	in := types.NewInterner()
	cfg := wasm.DefaultConfig()
	ptr := in.MakePointer(in.Builtins.I32)
	boolT := in.Builtins.Bool
	f := &ir.Func{
		Name:  "guard",
		Entry: 0,
		Locals: []ir.Local{
			{Name: "p", Type: ptr},
			{Name: "c", Type: boolT},
		},
		Blocks: []ir.Block{
			{
				Instrs: []ir.Instr{
					ir.AssignOf(1, ir.BinaryRValue(ir.OpNe,
						ir.LocalOperand(0, ptr),
						ir.ConstOperand(ir.NullConst(), ptr))),
				},
				Term: ir.IfThenElse(ir.LocalOperand(1, boolT), 1, 2),
			},
			{Term: ir.ReturnVoid()},
			{Term: ir.ReturnVoid()},
		},
	}
	_, freq := analyzeFreq(t, f, &cfg)

	hotEdge := freq.Edges[wasm.Edge{From: 0, To: 1}]
	coldEdge := freq.Edges[wasm.Edge{From: 0, To: 2}]
	if math.Abs(hotEdge-cfg.NullCheckBias) > 1e-9 {
		t.Errorf("non-null edge = %v, want %v", hotEdge, cfg.NullCheckBias)
	}
	if math.Abs(coldEdge-(1-cfg.NullCheckBias)) > 1e-9 {
		t.Errorf("null edge = %v, want %v", coldEdge, 1-cfg.NullCheckBias)
	}
}

// TestEstimate_EvenSplit: a branch with no shape to read splits 50/50.
func TestEstimate_EvenSplit(t *testing.T) {
	in := types.NewInterner()
	cfg := wasm.DefaultConfig()
	boolT := in.Builtins.Bool
	f := &ir.Func{
		Name:  "coin",
		Entry: 0,
		Locals: []ir.Local{
			{Name: "c", Type: boolT},
		},
		Blocks: []ir.Block{
			{Term: ir.IfThenElse(ir.LocalOperand(0, boolT), 1, 2)},
			{Term: ir.ReturnVoid()},
			{Term: ir.ReturnVoid()},
		},
	}
	_, freq := analyzeFreq(t, f, &cfg)
	for _, to := range []ir.BlockID{1, 2} {
		if got := freq.Edges[wasm.Edge{From: 0, To: to}]; got != 0.5 {
			t.Errorf("edge to %d = %v, want 0.5", to, got)
		}
	}
}

// TestClassifyHot: the loop interior ends hot, the one-shot entry does
// not.
func TestClassifyHot(t *testing.T) {
	in := types.NewInterner()
	cfg := wasm.DefaultConfig()
	f := countedLoopFunc(in, ir.OpLt, 0, 100, 1)
	_, freq := analyzeFreq(t, f, &cfg)
	hot := wasm.ClassifyHot(freq, cfg.HotBlockThreshold)

	if !hot.Blocks[1] || !hot.Blocks[2] {
		t.Errorf("loop blocks not hot: %v", hot.Blocks)
	}
	if hot.Blocks[0] {
		t.Errorf("entry classified hot at frequency %v", freq.Blocks[0])
	}
	back := wasm.Edge{From: 2, To: 1}
	if !hot.Edges[back] {
		t.Errorf("back edge not hot, frequency %v", freq.Edges[back])
	}
}

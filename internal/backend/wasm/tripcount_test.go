package wasm_test

import (
	"testing"

	"lumen/internal/backend/wasm"
	"lumen/internal/ir"
	"lumen/internal/types"
)

func analyzeCounted(t *testing.T, cmp ir.BinOp, init, limit, step int64) wasm.TripCount {
	t.Helper()
	in := types.NewInterner()
	f := countedLoopFunc(in, cmp, init, limit, step)
	g, err := wasm.BuildCFG(f)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	loops := wasm.DetectLoops(g)
	if len(loops) != 1 {
		t.Fatalf("got %d loops, want 1", len(loops))
	}
	return wasm.AnalyzeTripCount(f, &loops[0])
}

func TestTripCount_Formulas(t *testing.T) {
	cases := []struct {
		name  string
		cmp   ir.BinOp
		init  int64
		limit int64
		step  int64
		want  int64
	}{
		{"lt step 1", ir.OpLt, 0, 10, 1, 10},
		{"lt step 3", ir.OpLt, 0, 10, 3, 4},
		{"le step 1", ir.OpLe, 0, 10, 1, 11},
		{"le step 2", ir.OpLe, 0, 10, 2, 6},
		{"gt down", ir.OpGt, 10, 0, -1, 10},
		{"gt down by 3", ir.OpGt, 10, 0, -3, 4},
		{"ge down", ir.OpGe, 10, 0, -1, 11},
		{"eq once", ir.OpEq, 5, 5, 1, 1},
		{"ne climb", ir.OpNe, 0, 8, 2, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := analyzeCounted(t, tc.cmp, tc.init, tc.limit, tc.step)
			if !tr.Known {
				t.Fatalf("trip count unknown, want %d", tc.want)
			}
			if tr.Count != tc.want {
				t.Errorf("count = %d, want %d", tr.Count, tc.want)
			}
		})
	}
}

// TestTripCount_Inconsistent: setups whose direction contradicts the
// operator must degrade to Unknown, never error and never divide by
// zero.
func TestTripCount_Inconsistent(t *testing.T) {
	cases := []struct {
		name  string
		cmp   ir.BinOp
		init  int64
		limit int64
		step  int64
	}{
		{"zero step", ir.OpLt, 0, 10, 0},
		{"lt going down", ir.OpLt, 0, 10, -1},
		{"lt starting past limit", ir.OpLt, 20, 10, 1},
		{"gt going up", ir.OpGt, 10, 0, 1},
		{"eq never entered", ir.OpEq, 3, 5, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := analyzeCounted(t, tc.cmp, tc.init, tc.limit, tc.step)
			if tr.Known {
				t.Errorf("got exact count %d, want unknown", tr.Count)
			}
		})
	}
}

// TestTripCount_PhiInitial checks that the initial value is read off a
// header phi when there is no preheader assignment.
func TestTripCount_PhiInitial(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Builtins.I32
	boolT := in.Builtins.Bool
	iOp := ir.LocalOperand(0, i32)
	f := &ir.Func{
		Name:  "phi",
		Entry: 0,
		Locals: []ir.Local{
			{Name: "i", Type: i32},
			{Name: "c", Type: boolT},
		},
		Blocks: []ir.Block{
			{Term: ir.JumpTo(1)},
			{
				Instrs: []ir.Instr{
					ir.PhiOf(0,
						ir.PhiEdge{From: 0, Value: ir.ConstOperand(ir.IntConst(2), i32)},
						ir.PhiEdge{From: 2, Value: iOp},
					),
					ir.AssignOf(1, ir.BinaryRValue(ir.OpLt, iOp, ir.ConstOperand(ir.IntConst(10), i32))),
				},
				Term: ir.IfThenElse(ir.LocalOperand(1, boolT), 2, 3),
			},
			{
				Instrs: []ir.Instr{
					ir.AssignOf(0, ir.BinaryRValue(ir.OpAdd, iOp, ir.ConstOperand(ir.IntConst(2), i32))),
				},
				Term: ir.JumpTo(1),
			},
			{Term: ir.ReturnVoid()},
		},
	}
	g, err := wasm.BuildCFG(f)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	loops := wasm.DetectLoops(g)
	if len(loops) != 1 {
		t.Fatalf("got %d loops, want 1", len(loops))
	}
	tr := wasm.AnalyzeTripCount(f, &loops[0])
	if !tr.Known || tr.Count != 4 {
		t.Errorf("trip count = %+v, want exact 4", tr)
	}
}

// TestTripCount_TwoUpdates: conflicting updates of the induction
// variable make the step unknown.
func TestTripCount_TwoUpdates(t *testing.T) {
	in := types.NewInterner()
	f := countedLoopFunc(in, ir.OpLt, 0, 10, 1)
	i32 := in.Builtins.I32
	body := &f.Blocks[2]
	body.Instrs = append(body.Instrs,
		ir.AssignOf(0, ir.BinaryRValue(ir.OpAdd, ir.LocalOperand(0, i32), ir.ConstOperand(ir.IntConst(5), i32))),
	)
	g, err := wasm.BuildCFG(f)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	loops := wasm.DetectLoops(g)
	tr := wasm.AnalyzeTripCount(f, &loops[0])
	if tr.Known {
		t.Errorf("got exact count %d, want unknown", tr.Count)
	}
}

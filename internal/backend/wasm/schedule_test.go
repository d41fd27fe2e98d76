package wasm_test

import (
	"testing"

	"lumen/internal/backend/wasm"
	"lumen/internal/ir"
	"lumen/internal/types"
)

// TestSchedule_IdentityForOrdered: a block already in dependency order
// schedules to the identity permutation.
func TestSchedule_IdentityForOrdered(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Builtins.I32
	c := func(v int64) ir.Operand { return ir.ConstOperand(ir.IntConst(v), i32) }
	l := func(id ir.LocalID) ir.Operand { return ir.LocalOperand(id, i32) }
	b := &ir.Block{
		Instrs: []ir.Instr{
			ir.AssignOf(0, ir.UseRValue(c(1))),
			ir.AssignOf(1, ir.BinaryRValue(ir.OpAdd, l(0), c(2))),
			ir.AssignOf(2, ir.BinaryRValue(ir.OpMul, l(1), l(0))),
		},
		Term: ir.ReturnVoid(),
	}
	order := wasm.ScheduleBlock(b)
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want identity", order)
		}
	}
}

// TestSchedule_RespectsDeps: every read stays after the write it
// depends on, and stores never cross loads.
func TestSchedule_RespectsDeps(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Builtins.I32
	c := func(v int64) ir.Operand { return ir.ConstOperand(ir.IntConst(v), i32) }
	l := func(id ir.LocalID) ir.Operand { return ir.LocalOperand(id, i32) }
	b := &ir.Block{
		Instrs: []ir.Instr{
			ir.StoreOf(l(0), c(1)),                                // 0: mem write
			ir.LoadOf(1, l(0)),                                    // 1: mem read, after the store
			ir.AssignOf(2, ir.UseRValue(c(9))),                    // 2: independent
			ir.AssignOf(3, ir.BinaryRValue(ir.OpAdd, l(1), l(2))), // 3: reads 1 and 2
		},
		Term: ir.ReturnVoid(),
	}
	order := wasm.ScheduleBlock(b)
	pos := make([]int, len(order))
	for i, instr := range order {
		pos[instr] = i
	}
	if pos[0] > pos[1] {
		t.Errorf("load scheduled before its store: %v", order)
	}
	if pos[1] > pos[3] || pos[2] > pos[3] {
		t.Errorf("use scheduled before its defs: %v", order)
	}
	if len(order) != 4 {
		t.Errorf("order = %v, want all 4 instructions", order)
	}
}

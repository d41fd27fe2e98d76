package wasm_test

import (
	"lumen/internal/ir"
	"lumen/internal/types"
)

// countedLoopFunc builds the canonical counted loop:
//
//	b0: i = init; jump b1
//	b1: c = i cmp limit; if c then b2 else b3
//	b2: i = i + step; jump b1
//	b3: return
func countedLoopFunc(in *types.Interner, cmp ir.BinOp, init, limit, step int64) *ir.Func {
	i32 := in.Builtins.I32
	boolT := in.Builtins.Bool
	iOp := ir.LocalOperand(0, i32)
	return &ir.Func{
		Name:  "counted",
		Entry: 0,
		Sig:   ir.Signature{Result: types.NoTypeID},
		Locals: []ir.Local{
			{Name: "i", Type: i32},
			{Name: "c", Type: boolT},
		},
		Blocks: []ir.Block{
			{
				Instrs: []ir.Instr{
					ir.AssignOf(0, ir.UseRValue(ir.ConstOperand(ir.IntConst(init), i32))),
				},
				Term: ir.JumpTo(1),
			},
			{
				Instrs: []ir.Instr{
					ir.AssignOf(1, ir.BinaryRValue(cmp, iOp, ir.ConstOperand(ir.IntConst(limit), i32))),
				},
				Term: ir.IfThenElse(ir.LocalOperand(1, boolT), 2, 3),
			},
			{
				Instrs: []ir.Instr{
					ir.AssignOf(0, ir.BinaryRValue(ir.OpAdd, iOp, ir.ConstOperand(ir.IntConst(step), i32))),
				},
				Term: ir.JumpTo(1),
			},
			{
				Term: ir.ReturnVoid(),
			},
		},
	}
}

// returnConstFunc builds a single-block function returning an i32
// constant.
func returnConstFunc(in *types.Interner, name string, v int64) *ir.Func {
	i32 := in.Builtins.I32
	return &ir.Func{
		Name:  name,
		Flags: ir.FlagExported,
		Entry: 0,
		Sig:   ir.Signature{Result: i32},
		Blocks: []ir.Block{
			{Term: ir.ReturnValue(ir.ConstOperand(ir.IntConst(v), i32))},
		},
	}
}

func singleFuncModule(f *ir.Func) *ir.Module {
	mod := ir.NewModule("test")
	f.ID = 0
	mod.Funcs = []*ir.Func{f}
	return mod
}

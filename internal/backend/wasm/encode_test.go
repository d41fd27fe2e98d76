package wasm_test

import (
	"bytes"
	"context"
	"testing"

	"lumen/internal/backend/wasm"
	"lumen/internal/ir"
	"lumen/internal/types"
)

// TestEncode_MinimalModule pins the exact bytes of a one-function
// module: header, then type, function, export and code sections only,
// in that order.
func TestEncode_MinimalModule(t *testing.T) {
	in := types.NewInterner()
	mod := singleFuncModule(returnConstFunc(in, "main", 42))

	got, err := wasm.New(in, wasm.DefaultConfig()).Generate(context.Background(), mod)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []byte{
		0x00, 0x61, 0x73, 0x6D, // magic
		0x01, 0x00, 0x00, 0x00, // version
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7F, // type: () -> i32
		0x03, 0x02, 0x01, 0x00, // function: one func, type 0
		0x07, 0x08, 0x01, 0x04, 'm', 'a', 'i', 'n', 0x00, 0x00, // export "main"
		0x0A, 0x07, 0x01, 0x05, 0x00, 0x41, 0x2A, 0x0F, 0x0B, // code: i32.const 42; return
	}
	if !bytes.Equal(got, want) {
		t.Errorf("module bytes:\n got % X\nwant % X", got, want)
	}
}

// TestEncode_Deterministic: two runs over the same module are byte
// identical, and a parallel run matches a sequential one.
func TestEncode_Deterministic(t *testing.T) {
	build := func(parallelism int) []byte {
		in := types.NewInterner()
		mod := ir.NewModule("det")
		for i := 0; i < 6; i++ {
			f := countedLoopFunc(in, ir.OpLt, 0, int64(10+i), 1)
			f.ID = ir.FuncID(i)
			f.Name = "loop"
			f.Flags = ir.FlagExported
			mod.Funcs = append(mod.Funcs, f)
		}
		// Distinct export names keep the module well formed.
		for i, f := range mod.Funcs {
			f.Name = string(rune('a'+i)) + "loop"
		}
		cfg := wasm.DefaultConfig()
		cfg.Parallelism = parallelism
		out, err := wasm.New(in, cfg).Generate(context.Background(), mod)
		if err != nil {
			t.Fatalf("Generate(parallelism=%d): %v", parallelism, err)
		}
		return out
	}

	first := build(1)
	second := build(1)
	parallel := build(4)
	if !bytes.Equal(first, second) {
		t.Error("two sequential runs differ")
	}
	if !bytes.Equal(first, parallel) {
		t.Error("parallel run differs from sequential")
	}
}

// TestEncode_AllSections builds a module that populates every section
// and checks the frames come out in ascending id order with exact
// sizes.
func TestEncode_AllSections(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Builtins.I32

	logFn := &ir.Func{
		ID:           0,
		Name:         "log",
		Flags:        ir.FlagExternal,
		ImportModule: "env",
		ImportField:  "log",
		Sig:          ir.Signature{Params: []types.TypeID{i32}, Result: types.NoTypeID},
		Entry:        ir.NoBlockID,
	}
	mainFn := &ir.Func{
		ID:    1,
		Name:  "main",
		Flags: ir.FlagExported,
		Entry: 0,
		Sig:   ir.Signature{Result: i32},
		Blocks: []ir.Block{
			{
				Instrs: []ir.Instr{
					ir.CallOf(ir.NoLocalID, 0, ir.ConstOperand(ir.IntConst(42), i32)),
				},
				Term: ir.ReturnValue(ir.ConstOperand(ir.IntConst(1), i32)),
			},
		},
	}
	initFn := &ir.Func{
		ID:    2,
		Name:  "init",
		Entry: 0,
		Sig:   ir.Signature{Result: types.NoTypeID},
		Blocks: []ir.Block{
			{
				Instrs: []ir.Instr{
					ir.StoreOf(ir.ConstOperand(ir.IntConst(0), i32), ir.ConstOperand(ir.IntConst(3), i32)),
				},
				Term: ir.ReturnVoid(),
			},
		},
	}

	mod := ir.NewModule("full")
	mod.Funcs = []*ir.Func{logFn, mainFn, initFn}
	fnT := in.MakeFn()
	mod.Globals = []ir.Global{
		{Name: "counter", Type: i32, Mutable: true, Exported: true, HasInit: true, Init: ir.IntConst(7)},
		{Name: "handler", Type: fnT, HasInit: true, Init: ir.FuncConst(1)},
	}
	mod.Start = 2
	mod.TableFuncs = []ir.FuncID{1}
	mod.Memory = ir.MemorySpec{Pages: 1, MaxPages: 2, HasMax: true, ExportName: "memory"}
	mod.Data = []ir.DataSegment{{Offset: 8, Bytes: []byte("hi")}}

	if err := ir.Validate(mod); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	out, err := wasm.New(in, wasm.DefaultConfig()).Generate(context.Background(), mod)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	infos, err := wasm.DecodeSections(out)
	if err != nil {
		t.Fatalf("DecodeSections: %v", err)
	}
	var ids []byte
	for _, s := range infos {
		ids = append(ids, s.ID)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if !bytes.Equal(ids, want) {
		t.Errorf("section ids = %v, want %v", ids, want)
	}
	last := infos[len(infos)-1]
	if int(last.Offset)+int(last.Size) != len(out) {
		t.Errorf("last section ends at %d, module is %d bytes", int(last.Offset)+int(last.Size), len(out))
	}
}

// TestEncode_EmptySectionsOmitted: a module with no functions at all
// is just the 8-byte header.
func TestEncode_EmptySectionsOmitted(t *testing.T) {
	in := types.NewInterner()
	mod := ir.NewModule("empty")
	out, err := wasm.New(in, wasm.DefaultConfig()).Generate(context.Background(), mod)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 8 {
		t.Errorf("empty module is %d bytes, want header only", len(out))
	}
	if _, err := wasm.DecodeSections(out); err != nil {
		t.Errorf("DecodeSections: %v", err)
	}
}

// TestEncode_LoopBody: a multi-block function encodes through the
// dispatch lowering and still frames correctly.
func TestEncode_LoopBody(t *testing.T) {
	in := types.NewInterner()
	f := countedLoopFunc(in, ir.OpLt, 0, 10, 1)
	f.Flags = ir.FlagExported
	mod := singleFuncModule(f)

	out, err := wasm.New(in, wasm.DefaultConfig()).Generate(context.Background(), mod)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	infos, err := wasm.DecodeSections(out)
	if err != nil {
		t.Fatalf("DecodeSections: %v", err)
	}
	var hasCode bool
	for _, s := range infos {
		if s.ID == 10 && s.Size > 0 {
			hasCode = true
		}
	}
	if !hasCode {
		t.Error("no code section emitted")
	}
}

// TestGenerate_MismatchedFuncID: a module whose function id does not
// match its slice index is refused up front instead of faulting during
// encoding.
func TestGenerate_MismatchedFuncID(t *testing.T) {
	in := types.NewInterner()
	mod := singleFuncModule(returnConstFunc(in, "main", 1))
	mod.Funcs[0].ID = 5
	_, err := wasm.New(in, wasm.DefaultConfig()).Generate(context.Background(), mod)
	if !wasm.IsKind(err, wasm.ErrDanglingReference) {
		t.Errorf("mismatched func id: got %v, want dangling reference", err)
	}
}

func TestRegistry_SignatureDedup(t *testing.T) {
	in := types.NewInterner()
	mod := ir.NewModule("dedup")
	for i := 0; i < 3; i++ {
		f := returnConstFunc(in, string(rune('a'+i)), int64(i))
		f.ID = ir.FuncID(i)
		mod.Funcs = append(mod.Funcs, f)
	}
	out, err := wasm.New(in, wasm.DefaultConfig()).Generate(context.Background(), mod)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	infos, err := wasm.DecodeSections(out)
	if err != nil {
		t.Fatalf("DecodeSections: %v", err)
	}
	for _, s := range infos {
		if s.ID != 1 {
			continue
		}
		// One functype shared by all three: count 1, 0x60, no params,
		// one i32 result.
		payload := out[s.Offset : s.Offset+int(s.Size)]
		want := []byte{0x01, 0x60, 0x00, 0x01, 0x7F}
		if !bytes.Equal(payload, want) {
			t.Errorf("type section payload = % X, want % X", payload, want)
		}
		return
	}
	t.Error("no type section found")
}

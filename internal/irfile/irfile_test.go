package irfile_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"lumen/internal/ir"
	"lumen/internal/irfile"
	"lumen/internal/types"
)

func sampleModule() (*types.Interner, *ir.Module) {
	in := types.NewInterner()
	i32 := in.Builtins.I32
	mod := ir.NewModule("sample")
	mod.Funcs = []*ir.Func{{
		ID:    0,
		Name:  "answer",
		Flags: ir.FlagExported,
		Entry: 0,
		Sig:   ir.Signature{Result: i32},
		Blocks: []ir.Block{
			{Term: ir.ReturnValue(ir.ConstOperand(ir.IntConst(42), i32))},
		},
	}}
	mod.Globals = []ir.Global{
		{Name: "g", Type: in.MakePointer(i32), Mutable: true},
	}
	return in, mod
}

func TestRoundTrip(t *testing.T) {
	in, mod := sampleModule()
	var buf bytes.Buffer
	if err := irfile.Encode(&buf, in, mod); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	gotIn, gotMod, err := irfile.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotMod.Name != "sample" || len(gotMod.Funcs) != 1 {
		t.Fatalf("module = %q with %d funcs", gotMod.Name, len(gotMod.Funcs))
	}
	f := gotMod.Funcs[0]
	if f.Name != "answer" || !f.Flags.Has(ir.FlagExported) {
		t.Errorf("func = %q flags %v", f.Name, f.Flags)
	}
	term := f.Blocks[0].Term
	if term.Kind != ir.TermReturn || !term.Return.HasValue || term.Return.Value.Const.Int != 42 {
		t.Errorf("terminator did not survive: %+v", term)
	}
	if gotIn.Len() != in.Len() {
		t.Errorf("type table has %d entries, want %d", gotIn.Len(), in.Len())
	}
	gType, ok := gotIn.Lookup(gotMod.Globals[0].Type)
	if !ok || gType.Kind != types.KindPointer {
		t.Errorf("global type = %+v, %v", gType, ok)
	}
}

func TestSchemaMismatch(t *testing.T) {
	in, mod := sampleModule()
	var buf bytes.Buffer
	if err := irfile.Encode(&buf, in, mod); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// The msgpack map is ordered; patch the schema value byte that
	// follows the "Schema" key.
	raw := buf.Bytes()
	idx := bytes.Index(raw, []byte("Schema"))
	if idx < 0 {
		t.Fatal("no Schema key in encoded payload")
	}
	raw[idx+len("Schema")] ^= 0x01
	_, _, err := irfile.Decode(bytes.NewReader(raw))
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Errorf("mismatched schema: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	in, mod := sampleModule()
	path := filepath.Join(t.TempDir(), "sample.lir")
	if err := irfile.Save(path, in, mod); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, gotMod, err := irfile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotMod.Name != mod.Name {
		t.Errorf("loaded module %q, want %q", gotMod.Name, mod.Name)
	}
}

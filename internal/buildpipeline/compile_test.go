package buildpipeline_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"lumen/internal/backend/wasm"
	"lumen/internal/buildpipeline"
	"lumen/internal/ir"
	"lumen/internal/irfile"
	"lumen/internal/types"
)

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	in := types.NewInterner()
	i32 := in.Builtins.I32
	mod := ir.NewModule("pipe")
	mod.Funcs = []*ir.Func{{
		ID:    0,
		Name:  "main",
		Flags: ir.FlagExported,
		Entry: 0,
		Sig:   ir.Signature{Result: i32},
		Blocks: []ir.Block{
			{Term: ir.ReturnValue(ir.ConstOperand(ir.IntConst(7), i32))},
		},
	}}
	path := filepath.Join(dir, "pipe.lir")
	if err := irfile.Save(path, in, mod); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	input := writeArtifact(t, dir)
	output := filepath.Join(dir, "pipe.wasm")

	res, err := buildpipeline.Compile(context.Background(), buildpipeline.Options{
		Input:  input,
		Output: output,
		Config: wasm.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Module != "pipe" {
		t.Errorf("module name = %q, want pipe", res.Module)
	}
	written, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(written, res.Bytes) {
		t.Error("file on disk differs from returned bytes")
	}
	if _, err := wasm.DecodeSections(written); err != nil {
		t.Errorf("output does not decode: %v", err)
	}
	if len(res.Timings.Phases) == 0 {
		t.Error("no phases timed")
	}
}

func TestCompile_InvalidIR(t *testing.T) {
	dir := t.TempDir()
	in := types.NewInterner()
	mod := ir.NewModule("bad")
	mod.Funcs = []*ir.Func{{
		ID:     0,
		Name:   "broken",
		Entry:  0,
		Blocks: []ir.Block{{}}, // unterminated
	}}
	path := filepath.Join(dir, "bad.lir")
	if err := irfile.Save(path, in, mod); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := buildpipeline.Compile(context.Background(), buildpipeline.Options{
		Input:  path,
		Config: wasm.DefaultConfig(),
	})
	if err == nil {
		t.Error("invalid IR compiled without error")
	}
}

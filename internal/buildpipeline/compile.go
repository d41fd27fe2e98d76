// Package buildpipeline drives a whole compile: read the IR artifact,
// validate it, run the wasm backend, write the output.
package buildpipeline

import (
	"context"
	"fmt"
	"os"

	"lumen/internal/backend/wasm"
	"lumen/internal/ir"
	"lumen/internal/irfile"
	"lumen/internal/observ"
)

// Options selects the input artifact, the output path and the backend
// configuration.
type Options struct {
	Input  string
	Output string
	Config wasm.Config
}

// Result reports what a compile produced. Bytes is the full module
// even when Output was written, so callers can post-process without a
// re-read.
type Result struct {
	Bytes   []byte
	Module  string
	Timings observ.Report
}

// Compile runs the pipeline. An empty Output skips the file write.
func Compile(ctx context.Context, opts Options) (*Result, error) {
	timer := observ.NewTimer()

	ph := timer.Begin("load")
	interner, mod, err := irfile.Load(opts.Input)
	if err != nil {
		timer.End(ph, "")
		return nil, err
	}
	timer.End(ph, fmt.Sprintf("%d funcs", len(mod.Funcs)))

	ph = timer.Begin("validate")
	if err := ir.Validate(mod); err != nil {
		timer.End(ph, "")
		return nil, fmt.Errorf("invalid IR in %s: %w", opts.Input, err)
	}
	timer.End(ph, "")

	ph = timer.Begin("codegen")
	backend := wasm.New(interner, opts.Config)
	bytes, err := backend.Generate(ctx, mod)
	if err != nil {
		timer.End(ph, "")
		return nil, err
	}
	timer.End(ph, fmt.Sprintf("%d bytes", len(bytes)))

	if opts.Output != "" {
		ph = timer.Begin("write")
		if err := os.WriteFile(opts.Output, bytes, 0o644); err != nil {
			timer.End(ph, "")
			return nil, fmt.Errorf("write %s: %w", opts.Output, err)
		}
		timer.End(ph, opts.Output)
	}

	return &Result{
		Bytes:   bytes,
		Module:  mod.Name,
		Timings: timer.Report(),
	}, nil
}

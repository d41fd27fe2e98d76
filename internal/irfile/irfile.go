// Package irfile reads and writes the on-disk IR artifact the frontend
// hands to the backend: a msgpack blob carrying the type table and the
// module, behind a schema version that must match exactly.
package irfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"lumen/internal/ir"
	"lumen/internal/types"
)

// Schema is bumped on any change to the serialized shape. A mismatch
// is a hard error; there is no migration path for compiler artifacts.
const Schema uint16 = 1

type payload struct {
	Schema uint16
	Types  []types.Type
	Module *ir.Module
}

// Encode writes mod and its type table to w.
func Encode(w io.Writer, in *types.Interner, mod *ir.Module) error {
	p := payload{
		Schema: Schema,
		Types:  in.Export(),
		Module: mod,
	}
	if _, err := safecast.Conv[int32](len(p.Types)); err != nil {
		return fmt.Errorf("irfile: type table too large: %w", err)
	}
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(&p); err != nil {
		return fmt.Errorf("irfile: encode: %w", err)
	}
	return nil
}

// Decode reads an artifact and rebuilds the interner alongside the
// module.
func Decode(r io.Reader) (*types.Interner, *ir.Module, error) {
	var p payload
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("irfile: decode: %w", err)
	}
	if p.Schema != Schema {
		return nil, nil, fmt.Errorf("irfile: schema %d, this build reads %d", p.Schema, Schema)
	}
	if p.Module == nil {
		return nil, nil, fmt.Errorf("irfile: artifact has no module")
	}
	in, err := types.FromTypes(p.Types)
	if err != nil {
		return nil, nil, fmt.Errorf("irfile: type table: %w", err)
	}
	return in, p.Module, nil
}

// Save writes the artifact to path via a temp file rename, so readers
// never observe a half-written artifact.
func Save(path string, in *types.Interner, mod *ir.Module) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".irfile-*")
	if err != nil {
		return fmt.Errorf("irfile: save: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, in, mod); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("irfile: save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("irfile: save: %w", err)
	}
	return nil
}

// Load reads the artifact at path.
func Load(path string) (*types.Interner, *ir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("irfile: load: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

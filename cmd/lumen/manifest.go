package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lumen/internal/backend/wasm"
)

// projectManifest is an optional lumen.toml found by walking up from
// the working directory. It names the package, fixes the output path
// and overrides backend heuristics.
type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
	meta   toml.MetaData
}

type projectConfig struct {
	Package  packageConfig  `toml:"package"`
	Output   outputConfig   `toml:"output"`
	Optimize optimizeConfig `toml:"optimize"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

type outputConfig struct {
	Path string `toml:"path"`
}

type optimizeConfig struct {
	HotThreshold float64 `toml:"hot_threshold"`
	LoopIters    float64 `toml:"default_loop_iters"`
	VectorRunMin int     `toml:"vector_run_min"`
	Parallelism  int     `toml:"parallelism"`
}

func findLumenToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "lumen.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	path, ok, err := findLumenToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, true, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return nil, true, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, true, fmt.Errorf("%s: missing [package].name", path)
	}
	return &projectManifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
		meta:   meta,
	}, true, nil
}

// applyOverrides lays manifest values over a backend config. Only keys
// the manifest actually defines change anything.
func (m *projectManifest) applyOverrides(cfg *wasm.Config) {
	if m.meta.IsDefined("optimize", "hot_threshold") {
		cfg.HotBlockThreshold = m.Config.Optimize.HotThreshold
	}
	if m.meta.IsDefined("optimize", "default_loop_iters") {
		cfg.DefaultLoopIters = m.Config.Optimize.LoopIters
	}
	if m.meta.IsDefined("optimize", "vector_run_min") {
		cfg.VectorRunMin = m.Config.Optimize.VectorRunMin
	}
	if m.meta.IsDefined("optimize", "parallelism") {
		cfg.Parallelism = m.Config.Optimize.Parallelism
	}
}

package wasm

import (
	"context"

	"golang.org/x/sync/errgroup"

	"lumen/internal/ir"
	"lumen/internal/types"
)

// FuncPlan is everything analysis derives for one defined function.
// All of it is advisory except Layout, which fixes the dispatch order
// the body encoder emits.
type FuncPlan struct {
	CFG    *CFG
	Loops  []Loop
	Trips  []TripCount
	Freq   *FrequencyTable
	Hot    HotSet
	Layout []ir.BlockID

	// Per hot block only.
	Sched map[ir.BlockID][]int
	Vec   map[ir.BlockID][]VecGroup
	Mem   map[ir.BlockID]MemOpt
}

// AnalyzeFunc runs the full per-function pipeline: CFG, loops, trip
// counts, frequency estimation, hot classification, layout, and the
// per-hot-block passes.
func AnalyzeFunc(f *ir.Func, cfg *Config) (*FuncPlan, error) {
	g, err := BuildCFG(f)
	if err != nil {
		return nil, err
	}
	loops := DetectLoops(g)
	trips := make([]TripCount, len(loops))
	for i := range loops {
		trips[i] = AnalyzeTripCount(f, &loops[i])
	}
	freq := EstimateFrequencies(f, g, loops, trips, cfg)
	hot := ClassifyHot(freq, cfg.HotBlockThreshold)

	plan := &FuncPlan{
		CFG:    g,
		Loops:  loops,
		Trips:  trips,
		Freq:   freq,
		Hot:    hot,
		Layout: LayoutOrder(g, freq, hot),
		Sched:  make(map[ir.BlockID][]int),
		Vec:    make(map[ir.BlockID][]VecGroup),
		Mem:    make(map[ir.BlockID]MemOpt),
	}
	for b := range hot.Blocks {
		blk := &f.Blocks[b]
		plan.Sched[b] = ScheduleBlock(blk)
		plan.Vec[b] = FindVectorGroups(blk, cfg)
		plan.Mem[b] = AnalyzeMemOps(blk, cfg)
	}
	return plan, nil
}

// Backend turns an IR module into a wasm binary.
type Backend struct {
	interner *types.Interner
	cfg      Config
}

func New(in *types.Interner, cfg Config) *Backend {
	return &Backend{interner: in, cfg: cfg}
}

// Generate compiles mod. Function analysis fans out on an errgroup
// bounded by Config.Parallelism; results land in a slice indexed by
// function, and encoding walks that slice sequentially, so the output
// bytes do not depend on the parallelism level.
func (be *Backend) Generate(ctx context.Context, mod *ir.Module) ([]byte, error) {
	// Funcs are addressed by id == slice index everywhere below; a
	// module that breaks that would index out of range.
	for i, f := range mod.Funcs {
		if f.ID != ir.FuncID(i) {
			return nil, errf(ErrDanglingReference, f.Name, "function id %d does not match index %d", f.ID, i)
		}
	}

	reg := NewRegistry(be.interner)
	for _, f := range mod.Funcs {
		if f.IsExternal() {
			if err := reg.RegisterFunc(f); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range mod.Funcs {
		if !f.IsExternal() {
			if err := reg.RegisterFunc(f); err != nil {
				return nil, err
			}
		}
	}
	reg.finishIndexing()

	plans := make([]*FuncPlan, len(mod.Funcs))
	limit := be.cfg.Parallelism
	if limit < 1 {
		limit = 1
	}
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, f := range mod.Funcs {
		if f.IsExternal() {
			continue
		}
		i, f := i, f
		eg.Go(func() error {
			plan, err := AnalyzeFunc(f, &be.cfg)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	enc := newEncoder(reg, &be.cfg)
	return enc.encodeModule(mod, plans)
}

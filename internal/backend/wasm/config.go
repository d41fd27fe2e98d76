package wasm

// Config collects every heuristic knob in one place. Zero values are
// not meaningful; start from DefaultConfig and override fields.
type Config struct {
	// HotBlockThreshold is the estimated frequency above which a block
	// or edge counts as hot.
	HotBlockThreshold float64

	// LoopBodyFactor scales a loop header's frequency into its body
	// blocks.
	LoopBodyFactor float64

	// NullCheckBias is the probability of the pointer-is-valid side of
	// a comparison against null.
	NullCheckBias float64

	// LoopContinueBias is the probability of taking a back edge at a
	// loop-exit test.
	LoopContinueBias float64

	// Default iteration guesses, used only when the trip-count solver
	// reports unknown.
	DefaultCountedIters    float64
	DefaultCollectionIters float64
	DefaultLoopIters       float64

	// VectorRunMin is the shortest same-operator run worth reporting;
	// VectorScanWindow bounds how far a run is followed.
	VectorRunMin     int
	VectorScanWindow int

	// StorePairWindow bounds the lookahead when pairing a load with a
	// following store.
	StorePairWindow int

	// Parallelism bounds concurrent per-function analysis. Values
	// below 2 mean sequential.
	Parallelism int
}

func DefaultConfig() Config {
	return Config{
		HotBlockThreshold:      4.0,
		LoopBodyFactor:         0.9,
		NullCheckBias:          0.9,
		LoopContinueBias:       0.9,
		DefaultCountedIters:    10,
		DefaultCollectionIters: 100,
		DefaultLoopIters:       5,
		VectorRunMin:           4,
		VectorScanWindow:       16,
		StorePairWindow:        10,
		Parallelism:            1,
	}
}

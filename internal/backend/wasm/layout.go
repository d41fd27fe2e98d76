package wasm

import (
	"sort"

	"lumen/internal/ir"
)

// LayoutOrder arranges blocks so that hot edges fall through: starting
// at the entry, each block is followed by its most frequent unplaced
// successor, hot edges first. Blocks no chain reaches are appended in
// id order, so the result is always a permutation of all blocks.
func LayoutOrder(g *CFG, freq *FrequencyTable, hot HotSet) []ir.BlockID {
	n := g.NumBlocks()
	order := make([]ir.BlockID, 0, n)
	placed := make([]bool, n)

	place := func(start ir.BlockID) {
		cur := start
		for !placed[cur] {
			placed[cur] = true
			order = append(order, cur)
			next, ok := bestSuccessor(g, freq, hot, cur, placed)
			if !ok {
				return
			}
			cur = next
		}
	}

	place(g.Entry)
	// Remaining chains seeded by hottest unplaced block first.
	rest := make([]ir.BlockID, 0, n)
	for b := 0; b < n; b++ {
		if !placed[b] {
			rest = append(rest, ir.BlockID(b))
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return freq.Blocks[rest[i]] > freq.Blocks[rest[j]]
	})
	for _, b := range rest {
		if !placed[b] {
			place(b)
		}
	}
	return order
}

func bestSuccessor(g *CFG, freq *FrequencyTable, hot HotSet, b ir.BlockID, placed []bool) (ir.BlockID, bool) {
	best := ir.NoBlockID
	bestHot := false
	bestFreq := 0.0
	for _, s := range g.Succs[b] {
		if placed[s] {
			continue
		}
		e := Edge{From: b, To: s}
		eHot := hot.Edges[e]
		eFreq := freq.Edges[e]
		better := false
		switch {
		case best == ir.NoBlockID:
			better = true
		case eHot != bestHot:
			better = eHot
		case eFreq != bestFreq:
			better = eFreq > bestFreq
		default:
			better = s < best
		}
		if better {
			best, bestHot, bestFreq = s, eHot, eFreq
		}
	}
	return best, best != ir.NoBlockID
}

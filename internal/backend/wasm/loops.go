package wasm

import (
	"sort"

	"lumen/internal/ir"
)

// Loop is one natural loop found by back-edge detection. Loops sharing
// a header are merged into a single Loop whose body is the union.
type Loop struct {
	Header ir.BlockID
	Body   map[ir.BlockID]bool

	// BackEdges are the sources of edges into Header from inside Body.
	BackEdges []ir.BlockID

	// Exits are blocks outside Body that a body block branches to.
	Exits []ir.BlockID

	// Preheader is the unique predecessor of Header outside Body, or
	// NoBlockID when the header has zero or several outside
	// predecessors.
	Preheader ir.BlockID
}

func (l *Loop) Contains(b ir.BlockID) bool { return l.Body[b] }

// DetectLoops finds back edges with a depth-first walk over g. The
// walk keeps an explicit frame stack so block count, not stack size,
// bounds the traversal. A successor that is still on the walk stack
// closes a loop; the loop body is the stack segment from that
// successor to the current block.
func DetectLoops(g *CFG) []Loop {
	n := g.NumBlocks()
	if n == 0 {
		return nil
	}

	const unvisited = -1
	disc := make([]int, n)
	for i := range disc {
		disc[i] = unvisited
	}
	onStack := make([]bool, n)
	posOf := make([]int, n)

	byHeader := make(map[ir.BlockID]*Loop)
	clock := 0

	type frame struct {
		block ir.BlockID
		next  int
	}
	var frames []frame
	var path []ir.BlockID

	visit := func(root ir.BlockID) {
		if disc[root] != unvisited {
			return
		}
		disc[root] = clock
		clock++
		onStack[root] = true
		posOf[root] = len(path)
		path = append(path, root)
		frames = append(frames, frame{block: root})

		for len(frames) > 0 {
			fr := &frames[len(frames)-1]
			succs := g.Succs[fr.block]
			if fr.next < len(succs) {
				s := succs[fr.next]
				fr.next++
				if disc[s] == unvisited {
					disc[s] = clock
					clock++
					onStack[s] = true
					posOf[s] = len(path)
					path = append(path, s)
					frames = append(frames, frame{block: s})
					continue
				}
				if onStack[s] {
					// Back edge fr.block -> s. Everything on the path
					// from s down to fr.block belongs to the loop.
					l := byHeader[s]
					if l == nil {
						l = &Loop{Header: s, Body: make(map[ir.BlockID]bool), Preheader: ir.NoBlockID}
						byHeader[s] = l
					}
					for _, b := range path[posOf[s]:] {
						l.Body[b] = true
					}
					l.BackEdges = append(l.BackEdges, fr.block)
				}
				continue
			}
			onStack[fr.block] = false
			path = path[:len(path)-1]
			frames = frames[:len(frames)-1]
		}
	}

	visit(g.Entry)
	for b := 0; b < n; b++ {
		visit(ir.BlockID(b))
	}

	loops := make([]Loop, 0, len(byHeader))
	for _, l := range byHeader {
		fillExits(g, l)
		fillPreheader(g, l)
		loops = append(loops, *l)
	}
	sort.Slice(loops, func(i, j int) bool { return loops[i].Header < loops[j].Header })
	return loops
}

func fillExits(g *CFG, l *Loop) {
	seen := make(map[ir.BlockID]bool)
	for b := range l.Body {
		for _, s := range g.Succs[b] {
			if !l.Body[s] && !seen[s] {
				seen[s] = true
				l.Exits = append(l.Exits, s)
			}
		}
	}
	sort.Slice(l.Exits, func(i, j int) bool { return l.Exits[i] < l.Exits[j] })
	sort.Slice(l.BackEdges, func(i, j int) bool { return l.BackEdges[i] < l.BackEdges[j] })
}

func fillPreheader(g *CFG, l *Loop) {
	outside := ir.NoBlockID
	count := 0
	for _, p := range g.Preds[l.Header] {
		if !l.Body[p] {
			count++
			outside = p
		}
	}
	if count == 1 {
		l.Preheader = outside
	}
}

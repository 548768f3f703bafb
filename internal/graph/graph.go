package graph

import (
	"fmt"

	"github.com/MikeSquared-Agency/winnow/internal/transcript"
)

// Error is an unresolvable structural anomaly, beyond simple orphaning.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "graph: " + e.Reason }

// CycleEdge is a severed parent→child edge that closed a cycle.
type CycleEdge struct {
	ParentID string
	ChildID  string
}

// Graph is the parent→child structure over a transcript. Records live in a
// flat arena indexed by sequence position; ids map to arena indexes through a
// side table, so cyclic parent references cannot produce a cyclic object
// graph.
type Graph struct {
	Records []*transcript.Record

	index    map[string]int
	children map[int][]int // arena index → child arena indexes, in seq order

	// Orphans are arena indexes whose parent id does not resolve, either
	// because it is absent from the input or because the edge was severed
	// to break a cycle. Orphaning is tolerated, not an error.
	Orphans []int
	Cycles  []CycleEdge

	roots   []int
	orphan  map[int]bool
	severed map[int]bool // arena indexes whose parent edge was cut
}

// Build indexes records and wires parent→child edges in a single pass, then
// runs cycle detection. Duplicate ids are unresolvable and fail the build.
func Build(records []*transcript.Record) (*Graph, error) {
	g := &Graph{
		Records:  records,
		index:    make(map[string]int, len(records)),
		children: make(map[int][]int),
		orphan:   make(map[int]bool),
		severed:  make(map[int]bool),
	}

	for i, rec := range records {
		if prev, ok := g.index[rec.ID]; ok {
			return nil, &Error{Reason: fmt.Sprintf("duplicate id %s at positions %d and %d", rec.ID, prev, i)}
		}
		g.index[rec.ID] = i
	}

	for i, rec := range records {
		if rec.ParentID == "" {
			g.roots = append(g.roots, i)
			continue
		}
		parent, ok := g.index[rec.ParentID]
		if !ok {
			g.orphan[i] = true
			g.Orphans = append(g.Orphans, i)
			continue
		}
		g.children[parent] = append(g.children[parent], i)
	}

	g.detectCycles()
	return g, nil
}

// Lookup returns the arena index for an id.
func (g *Graph) Lookup(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Children returns the child arena indexes of a node, in sequence order,
// excluding severed edges.
func (g *Graph) Children(i int) []int {
	var out []int
	for _, c := range g.children[i] {
		if !g.severed[c] {
			out = append(out, c)
		}
	}
	return out
}

// IsOrphan reports whether the record at arena index i has an unresolved or
// severed parent edge.
func (g *Graph) IsOrphan(i int) bool { return g.orphan[i] || g.severed[i] }

// ParentIndex returns the arena index of i's parent, honoring severed edges.
func (g *Graph) ParentIndex(i int) (int, bool) {
	if g.severed[i] {
		return 0, false
	}
	rec := g.Records[i]
	if rec.ParentID == "" {
		return 0, false
	}
	p, ok := g.index[rec.ParentID]
	return p, ok
}

// Three-color walk state.
const (
	colorWhite = iota // unvisited
	colorGrey         // in progress
	colorBlack        // done
)

// detectCycles walks children from every node. An edge into an in-progress
// node closes a cycle; the edge is severed and the child becomes an orphan
// relative to that parent, so later traversals terminate.
func (g *Graph) detectCycles() {
	color := make([]int, len(g.Records))

	var walk func(i int)
	walk = func(i int) {
		color[i] = colorGrey
		for _, c := range g.children[i] {
			if g.severed[c] {
				continue
			}
			switch color[c] {
			case colorGrey:
				g.Cycles = append(g.Cycles, CycleEdge{ParentID: g.Records[i].ID, ChildID: g.Records[c].ID})
				g.severed[c] = true
				g.Orphans = append(g.Orphans, c)
			case colorWhite:
				walk(c)
			}
		}
		color[i] = colorBlack
	}

	for i := range g.Records {
		if color[i] == colorWhite {
			walk(i)
		}
	}
}

// Order returns every arena index in graph order: depth-first from each root,
// then orphans and cycle remnants, each subtree visited in sequence order.
func (g *Graph) Order() []int {
	seen := make([]bool, len(g.Records))
	out := make([]int, 0, len(g.Records))

	var walk func(i int)
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		out = append(out, i)
		for _, c := range g.Children(i) {
			walk(c)
		}
	}

	for _, r := range g.roots {
		walk(r)
	}
	// Orphans and anything left stranded by severed edges.
	for i := range g.Records {
		walk(i)
	}
	return out
}

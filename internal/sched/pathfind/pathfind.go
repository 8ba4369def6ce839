// Package pathfind runs uniform-cost (Dijkstra) searches over the world's travel
// graph. A Finder holds no per-search state, so concurrent searches are safe as long
// as the underlying Graph is.
package pathfind

import (
	"container/heap"
	"errors"

	"craftbots.ai/internal/sim/api"
)

var ErrNoPath = errors.New("pathfind: no path")

// Arc is one traversable edge leaving a node.
type Arc struct {
	Edge   api.EntityID
	To     api.EntityID
	Length float64
}

// Graph exposes outgoing arcs. Edge lengths must be positive.
type Graph interface {
	Arcs(node api.EntityID) []Arc
}

// Path is a node sequence from start to end (inclusive) and its total length.
type Path struct {
	Nodes  []api.EntityID
	Length float64
}

// End returns the last node of the path, or api.NoEntity for an empty path.
func (p Path) End() api.EntityID {
	if len(p.Nodes) == 0 {
		return api.NoEntity
	}
	return p.Nodes[len(p.Nodes)-1]
}

type Finder struct {
	g Graph
}

func New(g Graph) *Finder { return &Finder{g: g} }

// ShortestPath returns the minimal-length path from start to goal.
func (f *Finder) ShortestPath(start, goal api.EntityID) (Path, error) {
	p, err := f.search(start, func(n api.EntityID) bool { return n == goal })
	if err != nil {
		return Path{}, err
	}
	return p, nil
}

// NearestMatch returns the path to the closest node (by cumulative length) for
// which match reports true. start itself is tested first.
func (f *Finder) NearestMatch(start api.EntityID, match func(node api.EntityID) bool) (api.EntityID, Path, error) {
	p, err := f.search(start, match)
	if err != nil {
		return api.NoEntity, Path{}, err
	}
	return p.End(), p, nil
}

// Distance is ShortestPath's length, or ok=false when unreachable.
func (f *Finder) Distance(start, goal api.EntityID) (float64, bool) {
	p, err := f.ShortestPath(start, goal)
	if err != nil {
		return 0, false
	}
	return p.Length, true
}

type entry struct {
	node   api.EntityID
	dist   float64
	parent api.EntityID
	// index in the heap; -1 once popped.
	index int
}

// frontier orders by distance, ties by lower node id so one search is deterministic.
type frontier []*entry

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q frontier) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *frontier) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (f *Finder) search(start api.EntityID, match func(api.EntityID) bool) (Path, error) {
	if f == nil || f.g == nil || start == api.NoEntity {
		return Path{}, ErrNoPath
	}

	seen := map[api.EntityID]*entry{start: {node: start, dist: 0, parent: api.NoEntity}}
	explored := map[api.EntityID]bool{}
	q := &frontier{}
	heap.Push(q, seen[start])

	for q.Len() > 0 {
		cur := heap.Pop(q).(*entry)
		explored[cur.node] = true
		if match(cur.node) {
			return buildPath(seen, cur), nil
		}
		for _, arc := range f.g.Arcs(cur.node) {
			if arc.Length <= 0 || explored[arc.To] {
				continue
			}
			nd := cur.dist + arc.Length
			if e, ok := seen[arc.To]; ok {
				// Relax only on a strictly shorter path.
				if nd < e.dist {
					e.dist = nd
					e.parent = cur.node
					heap.Fix(q, e.index)
				}
				continue
			}
			e := &entry{node: arc.To, dist: nd, parent: cur.node}
			seen[arc.To] = e
			heap.Push(q, e)
		}
	}
	return Path{}, ErrNoPath
}

func buildPath(seen map[api.EntityID]*entry, end *entry) Path {
	var rev []api.EntityID
	for e := end; e != nil; {
		rev = append(rev, e.node)
		if e.parent == api.NoEntity {
			break
		}
		e = seen[e.parent]
	}
	nodes := make([]api.EntityID, len(rev))
	for i, n := range rev {
		nodes[len(rev)-1-i] = n
	}
	return Path{Nodes: nodes, Length: end.dist}
}

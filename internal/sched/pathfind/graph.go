package pathfind

import "craftbots.ai/internal/sim/api"

// ObserverGraph reads topology through the world's field interface on every call,
// so it always reflects the observation snapshot of the current tick.
type ObserverGraph struct {
	Obs api.Observer
}

func (g ObserverGraph) Arcs(node api.EntityID) []Arc {
	edges := api.IDs(g.Obs, node, api.FieldEdges)
	if len(edges) == 0 {
		return nil
	}
	out := make([]Arc, 0, len(edges))
	for _, e := range edges {
		to, ok := api.OtherEnd(g.Obs, e, node)
		if !ok {
			continue
		}
		l, ok := api.Float(g.Obs, e, api.FieldLength)
		if !ok || l <= 0 {
			continue
		}
		out = append(out, Arc{Edge: e, To: to, Length: l})
	}
	return out
}

// StaticGraph is an in-memory undirected graph, handy for tools and tests.
type StaticGraph map[api.EntityID][]Arc

func (g StaticGraph) AddEdge(id, a, b api.EntityID, length float64) {
	g[a] = append(g[a], Arc{Edge: id, To: b, Length: length})
	g[b] = append(g[b], Arc{Edge: id, To: a, Length: length})
}

func (g StaticGraph) Arcs(node api.EntityID) []Arc { return g[node] }

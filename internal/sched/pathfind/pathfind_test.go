package pathfind

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"craftbots.ai/internal/sim/api"
)

func lineGraph() StaticGraph {
	g := StaticGraph{}
	g.AddEdge(100, 1, 2, 1)
	g.AddEdge(101, 2, 3, 1)
	g.AddEdge(102, 1, 3, 5)
	g.AddEdge(103, 3, 4, 2)
	return g
}

func TestShortestPath_PrefersCheaperDetour(t *testing.T) {
	f := New(lineGraph())
	p, err := f.ShortestPath(1, 4)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	want := []api.EntityID{1, 2, 3, 4}
	if len(p.Nodes) != len(want) {
		t.Fatalf("nodes=%v want %v", p.Nodes, want)
	}
	for i := range want {
		if p.Nodes[i] != want[i] {
			t.Fatalf("nodes=%v want %v", p.Nodes, want)
		}
	}
	if p.Length != 4 {
		t.Fatalf("length=%v want 4", p.Length)
	}
}

func TestShortestPath_StartEqualsGoal(t *testing.T) {
	p, err := New(lineGraph()).ShortestPath(3, 3)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if len(p.Nodes) != 1 || p.Nodes[0] != 3 || p.Length != 0 {
		t.Fatalf("unexpected path %+v", p)
	}
}

func TestShortestPath_Disconnected(t *testing.T) {
	g := lineGraph()
	g.AddEdge(200, 10, 11, 1)
	f := New(g)
	if _, err := f.ShortestPath(1, 11); !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
	if _, ok := f.Distance(10, 4); ok {
		t.Fatalf("expected unreachable")
	}
	if _, err := f.ShortestPath(1, 999); !errors.Is(err, ErrNoPath) {
		t.Fatalf("unknown node: expected ErrNoPath, got %v", err)
	}
}

func TestNearestMatch(t *testing.T) {
	f := New(lineGraph())
	targets := map[api.EntityID]bool{3: true, 4: true}
	n, p, err := f.NearestMatch(1, func(node api.EntityID) bool { return targets[node] })
	if err != nil {
		t.Fatalf("NearestMatch: %v", err)
	}
	if n != 3 || p.Length != 2 {
		t.Fatalf("got node=%d len=%v, want node=3 len=2", n, p.Length)
	}

	n, _, err = f.NearestMatch(1, func(node api.EntityID) bool { return node == 1 })
	if err != nil || n != 1 {
		t.Fatalf("start should match itself: n=%d err=%v", n, err)
	}

	if _, _, err := f.NearestMatch(1, func(api.EntityID) bool { return false }); !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
}

// bruteForce enumerates every simple path from start to goal.
func bruteForce(g StaticGraph, start, goal api.EntityID) (float64, bool) {
	best := math.Inf(1)
	visited := map[api.EntityID]bool{}
	var walk func(n api.EntityID, acc float64)
	walk = func(n api.EntityID, acc float64) {
		if n == goal {
			if acc < best {
				best = acc
			}
			return
		}
		visited[n] = true
		for _, a := range g.Arcs(n) {
			if !visited[a.To] {
				walk(a.To, acc+a.Length)
			}
		}
		visited[n] = false
	}
	walk(start, 0)
	return best, !math.IsInf(best, 1)
}

func TestShortestPath_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 40; round++ {
		n := 3 + r.Intn(5)
		g := StaticGraph{}
		weight := map[[2]api.EntityID]float64{}
		edgeID := api.EntityID(1000)
		for a := 0; a < n; a++ {
			for b := a + 1; b < n; b++ {
				if r.Intn(100) < 45 {
					w := float64(1 + r.Intn(9))
					g.AddEdge(edgeID, api.EntityID(a), api.EntityID(b), w)
					weight[[2]api.EntityID{api.EntityID(a), api.EntityID(b)}] = w
					weight[[2]api.EntityID{api.EntityID(b), api.EntityID(a)}] = w
					edgeID++
				}
			}
		}
		f := New(g)
		for s := 0; s < n; s++ {
			for d := 0; d < n; d++ {
				want, reachable := bruteForce(g, api.EntityID(s), api.EntityID(d))
				p, err := f.ShortestPath(api.EntityID(s), api.EntityID(d))
				if !reachable {
					if !errors.Is(err, ErrNoPath) {
						t.Fatalf("round %d %d->%d: expected no path, got %+v", round, s, d, p)
					}
					continue
				}
				if err != nil {
					t.Fatalf("round %d %d->%d: %v", round, s, d, err)
				}
				if p.Length != want {
					t.Fatalf("round %d %d->%d: length=%v want %v", round, s, d, p.Length, want)
				}
				var sum float64
				for i := 1; i < len(p.Nodes); i++ {
					w, ok := weight[[2]api.EntityID{p.Nodes[i-1], p.Nodes[i]}]
					if !ok {
						t.Fatalf("round %d: path %v uses a missing edge", round, p.Nodes)
					}
					sum += w
				}
				if sum != p.Length {
					t.Fatalf("round %d: edge sum %v != reported length %v", round, sum, p.Length)
				}
			}
		}
	}
}

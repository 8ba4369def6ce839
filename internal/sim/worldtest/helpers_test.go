package worldtest

import (
	"testing"

	"craftbots.ai/internal/sched/goals"
	"craftbots.ai/internal/sim/api"
)

// cmdMatch describes one expected command; zero fields are not checked.
type cmdMatch struct {
	kind api.Kind
	node api.EntityID
}

// requireInOrder fails unless want occurs as a subsequence of got.
func requireInOrder(t *testing.T, got []api.Command, want ...cmdMatch) {
	t.Helper()
	i := 0
	for _, c := range got {
		if i == len(want) {
			break
		}
		w := want[i]
		if c.Kind != w.kind {
			continue
		}
		if w.node != 0 && c.Node != w.node {
			continue
		}
		i++
	}
	if i < len(want) {
		t.Fatalf("command %d (%s node=%d) not found in order; got %v", i, want[i].kind, want[i].node, got)
	}
}

func countKind(cmds []api.Command, kind api.Kind) int {
	n := 0
	for _, c := range cmds {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func goalsOfKind(gs []goals.Goal, k goals.Kind) []goals.Goal {
	var out []goals.Goal
	for _, g := range gs {
		if g.Kind() == k {
			out = append(out, g)
		}
	}
	return out
}

func allCompleted(gs []goals.Goal) bool {
	for _, g := range gs {
		if !g.Completed {
			return false
		}
	}
	return len(gs) > 0
}

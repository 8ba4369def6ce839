package worldtest

import (
	"sync"
	"testing"

	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sim/api"
	"craftbots.ai/internal/sim/driver"
	"craftbots.ai/internal/sim/world"
)

// Harness builds a small world, runs the scheduler against it and records every
// command the scheduler submits:
// - Node/Edge/Mine/Actor/Task/Resource lay out the world before Start()
// - Start() creates the allocator over the actors added so far
// - Step()/StepUntil() drive scheduler pass + world step cycles
// - Commands()/CommandsFor() expose what was submitted, in submission order
//
// Only exported APIs are used so the tests read like a user of the packages.
type Harness struct {
	T     *testing.T
	W     *world.World
	Alloc *allocator.Allocator
	D     *driver.Driver

	acfg allocator.Config
	rec  *recorder
}

func NewHarness(t *testing.T, wcfg world.Config, acfg allocator.Config) *Harness {
	t.Helper()
	w := world.New(wcfg)
	return &Harness{T: t, W: w, acfg: acfg, rec: &recorder{World: w}}
}

// recorder sits between scheduler and world. With drop set, submissions are
// recorded but never reach the world, as if the world rejected all of them.
type recorder struct {
	*world.World

	mu   sync.Mutex
	cmds []api.Command
	drop bool
}

func (r *recorder) Submit(cmd api.Command) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	drop := r.drop
	r.mu.Unlock()
	if !drop {
		r.World.Submit(cmd)
	}
}

func (h *Harness) Node() api.EntityID {
	return h.W.AddNode(0, 0)
}

func (h *Harness) Edge(a, b api.EntityID, length float64) api.EntityID {
	h.T.Helper()
	id, err := h.W.AddEdge(a, b, length)
	if err != nil {
		h.T.Fatalf("AddEdge: %v", err)
	}
	return id
}

// Chain adds n nodes joined in a line by unit edges, starting with a fresh node.
func (h *Harness) Chain(n int) []api.EntityID {
	h.T.Helper()
	out := make([]api.EntityID, n)
	for i := range out {
		out[i] = h.Node()
		if i > 0 {
			h.Edge(out[i-1], out[i], 1)
		}
	}
	return out
}

func (h *Harness) Mine(node api.EntityID, colour int) api.EntityID {
	h.T.Helper()
	id, err := h.W.AddMine(node, colour)
	if err != nil {
		h.T.Fatalf("AddMine: %v", err)
	}
	return id
}

func (h *Harness) Actor(node api.EntityID) api.EntityID {
	h.T.Helper()
	id, err := h.W.AddActor(node)
	if err != nil {
		h.T.Fatalf("AddActor: %v", err)
	}
	return id
}

func (h *Harness) Task(node api.EntityID, needed ...int) api.EntityID {
	h.T.Helper()
	id, err := h.W.AddTask(node, needed)
	if err != nil {
		h.T.Fatalf("AddTask: %v", err)
	}
	return id
}

func (h *Harness) Resource(node api.EntityID, colour int) api.EntityID {
	h.T.Helper()
	id, err := h.W.AddResource(node, colour)
	if err != nil {
		h.T.Fatalf("AddResource: %v", err)
	}
	return id
}

// Start creates the scheduler and driver. The world layout must be complete.
func (h *Harness) Start() {
	h.T.Helper()
	if h.Alloc != nil {
		h.T.Fatalf("Start called twice")
	}
	h.Alloc = allocator.New(h.rec, h.acfg, nil)
	h.D = driver.New(driver.Config{}, h.rec, h.Alloc, nil)
}

// DropSubmissions makes the world ignore every command from now on.
func (h *Harness) DropSubmissions(on bool) {
	h.rec.mu.Lock()
	h.rec.drop = on
	h.rec.mu.Unlock()
}

func (h *Harness) Step() uint64 {
	h.T.Helper()
	if h.D == nil {
		h.T.Fatalf("Step before Start")
	}
	return h.D.StepOnce()
}

func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
}

// StepUntil steps until cond holds, at most max cycles, and reports whether it did.
func (h *Harness) StepUntil(max int, cond func() bool) bool {
	h.T.Helper()
	for i := 0; i < max; i++ {
		h.Step()
		if cond() {
			return true
		}
	}
	return false
}

// RunToCompletion steps until every task is built, failing the test after max cycles.
func (h *Harness) RunToCompletion(max int) {
	h.T.Helper()
	if !h.StepUntil(max, h.W.AllTasksCompleted) {
		h.T.Fatalf("tasks not built after %d ticks; stats=%+v", max, h.Alloc.Stats())
	}
}

func (h *Harness) Commands() []api.Command {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return append([]api.Command(nil), h.rec.cmds...)
}

func (h *Harness) CommandsFor(actor api.EntityID) []api.Command {
	var out []api.Command
	for _, c := range h.Commands() {
		if c.Actor == actor {
			out = append(out, c)
		}
	}
	return out
}

// Package world is a small deterministic craft world: nodes joined by weighted
// edges, actors that travel, dig, carry and construct, mines that yield coloured
// resources and task sites that consume them. It is the collaborator the
// scheduler is driven against in tests and in cmd/craftsim.
package world

import (
	"fmt"
	"sync"

	"craftbots.ai/internal/sim/api"
)

type Node struct {
	ID        api.EntityID
	X, Y      float64
	Edges     []api.EntityID
	Resources []api.EntityID
	Mines     []api.EntityID
	Sites     []api.EntityID
	Actors    []api.EntityID
	Buildings []api.EntityID
}

type Edge struct {
	ID     api.EntityID
	A, B   api.EntityID
	Length float64
}

type Actor struct {
	ID    api.EntityID
	Node  api.EntityID
	State int
	// Destination node while moving, mine while digging, site while constructing.
	Target    api.EntityID
	Progress  float64
	Inventory []api.EntityID

	moveLen float64
}

type Resource struct {
	ID     api.EntityID
	Colour int
	// Node is api.NoEntity while held.
	Node   api.EntityID
	Holder api.EntityID
}

type Mine struct {
	ID       api.EntityID
	Node     api.EntityID
	Colour   int
	Progress float64
}

type Site struct {
	ID           api.EntityID
	Node         api.EntityID
	Task         api.EntityID
	BuildingType int
	Needed       []int
	Deposited    []int
	Progress     float64
}

type Building struct {
	ID   api.EntityID
	Node api.EntityID
	Type int
	Task api.EntityID
}

type Task struct {
	ID        api.EntityID
	Node      api.EntityID
	Needed    []int
	Project   api.EntityID
	Completed bool
}

// World is single-threaded: Field and Step must be called from the driving
// goroutine. Submit may be called from any goroutine.
type World struct {
	cfg  Config
	tick uint64

	nextID api.EntityID

	nodes     map[api.EntityID]*Node
	edges     map[api.EntityID]*Edge
	actors    map[api.EntityID]*Actor
	resources map[api.EntityID]*Resource
	mines     map[api.EntityID]*Mine
	sites     map[api.EntityID]*Site
	buildings map[api.EntityID]*Building
	tasks     map[api.EntityID]*Task

	actorOrder []api.EntityID
	taskOrder  []api.EntityID

	mu      sync.Mutex
	pending []api.Command

	stats Stats
}

// Stats counts command outcomes since creation.
type Stats struct {
	Performed int `json:"performed"`
	Rejected  int `json:"rejected"`
	Produced  int `json:"produced"`
	Built     int `json:"built"`
}

func New(cfg Config) *World {
	cfg.applyDefaults()
	return &World{
		cfg:       cfg,
		nextID:    1,
		nodes:     map[api.EntityID]*Node{},
		edges:     map[api.EntityID]*Edge{},
		actors:    map[api.EntityID]*Actor{},
		resources: map[api.EntityID]*Resource{},
		mines:     map[api.EntityID]*Mine{},
		sites:     map[api.EntityID]*Site{},
		buildings: map[api.EntityID]*Building{},
		tasks:     map[api.EntityID]*Task{},
	}
}

func (w *World) Config() Config { return w.cfg }

func (w *World) newID() api.EntityID {
	id := w.nextID
	w.nextID++
	return id
}

func (w *World) Tick() uint64 { return w.tick }

func (w *World) Stats() Stats { return w.stats }

func (w *World) Tasks() []api.EntityID {
	return append([]api.EntityID(nil), w.taskOrder...)
}

func (w *World) Actors() []api.EntityID {
	return append([]api.EntityID(nil), w.actorOrder...)
}

func (w *World) AddNode(x, y float64) api.EntityID {
	n := &Node{ID: w.newID(), X: x, Y: y}
	w.nodes[n.ID] = n
	return n.ID
}

func (w *World) AddEdge(a, b api.EntityID, length float64) (api.EntityID, error) {
	na, nb := w.nodes[a], w.nodes[b]
	if na == nil || nb == nil {
		return api.NoEntity, fmt.Errorf("edge %d-%d: unknown node", a, b)
	}
	if a == b {
		return api.NoEntity, fmt.Errorf("edge %d-%d: self loop", a, b)
	}
	if length <= 0 {
		return api.NoEntity, fmt.Errorf("edge %d-%d: non-positive length %v", a, b, length)
	}
	e := &Edge{ID: w.newID(), A: a, B: b, Length: length}
	w.edges[e.ID] = e
	na.Edges = append(na.Edges, e.ID)
	nb.Edges = append(nb.Edges, e.ID)
	return e.ID, nil
}

func (w *World) AddActor(node api.EntityID) (api.EntityID, error) {
	n := w.nodes[node]
	if n == nil {
		return api.NoEntity, fmt.Errorf("actor: unknown node %d", node)
	}
	a := &Actor{ID: w.newID(), Node: node, State: api.StateIdle, Target: api.NoEntity}
	w.actors[a.ID] = a
	w.actorOrder = append(w.actorOrder, a.ID)
	n.Actors = append(n.Actors, a.ID)
	return a.ID, nil
}

func (w *World) AddMine(node api.EntityID, colour int) (api.EntityID, error) {
	n := w.nodes[node]
	if n == nil {
		return api.NoEntity, fmt.Errorf("mine: unknown node %d", node)
	}
	if colour < 0 || colour >= api.NumColours {
		return api.NoEntity, fmt.Errorf("mine: bad colour %d", colour)
	}
	m := &Mine{ID: w.newID(), Node: node, Colour: colour}
	w.mines[m.ID] = m
	n.Mines = append(n.Mines, m.ID)
	return m.ID, nil
}

func (w *World) AddResource(node api.EntityID, colour int) (api.EntityID, error) {
	n := w.nodes[node]
	if n == nil {
		return api.NoEntity, fmt.Errorf("resource: unknown node %d", node)
	}
	if colour < 0 || colour >= api.NumColours {
		return api.NoEntity, fmt.Errorf("resource: bad colour %d", colour)
	}
	r := &Resource{ID: w.newID(), Colour: colour, Node: node, Holder: api.NoEntity}
	w.resources[r.ID] = r
	n.Resources = append(n.Resources, r.ID)
	return r.ID, nil
}

func (w *World) AddTask(node api.EntityID, needed []int) (api.EntityID, error) {
	if w.nodes[node] == nil {
		return api.NoEntity, fmt.Errorf("task: unknown node %d", node)
	}
	vec := make([]int, api.NumColours)
	for i, n := range needed {
		if i >= api.NumColours {
			return api.NoEntity, fmt.Errorf("task: %d colours given, max %d", len(needed), api.NumColours)
		}
		if n < 0 {
			return api.NoEntity, fmt.Errorf("task: negative need for colour %d", i)
		}
		vec[i] = n
	}
	t := &Task{ID: w.newID(), Node: node, Needed: vec, Project: api.NoEntity}
	w.tasks[t.ID] = t
	w.taskOrder = append(w.taskOrder, t.ID)
	return t.ID, nil
}

// AllTasksCompleted reports whether every task has been built.
func (w *World) AllTasksCompleted() bool {
	for _, id := range w.taskOrder {
		if !w.tasks[id].Completed {
			return false
		}
	}
	return true
}

// RemoveResource deletes a resource wherever it is. Tests use it to simulate
// resources vanishing underneath a reservation.
func (w *World) RemoveResource(id api.EntityID) bool {
	r := w.resources[id]
	if r == nil {
		return false
	}
	w.consumeResource(r)
	return true
}

func (w *World) consumeResource(r *Resource) {
	if r.Node != api.NoEntity {
		if n := w.nodes[r.Node]; n != nil {
			n.Resources = without(n.Resources, r.ID)
		}
	}
	if r.Holder != api.NoEntity {
		if a := w.actors[r.Holder]; a != nil {
			a.Inventory = without(a.Inventory, r.ID)
		}
	}
	delete(w.resources, r.ID)
}

func without(ids []api.EntityID, id api.EntityID) []api.EntityID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func contains(ids []api.EntityID, id api.EntityID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func ids(src []api.EntityID) []api.EntityID {
	return append([]api.EntityID{}, src...)
}

func ints(src []int) []int {
	return append([]int{}, src...)
}

func sum(v []int) int {
	n := 0
	for _, x := range v {
		n += x
	}
	return n
}

// Package mines tracks which actors are digging at which mine and how many units
// each of them has claimed, so several actors can share one mine's output.
package mines

import (
	"sync"

	"craftbots.ai/internal/sim/api"
)

// Record exists while at least one actor targets the mine.
type Record struct {
	Mine   api.EntityID `json:"mine"`
	Node   api.EntityID `json:"node"`
	Colour int          `json:"colour"`
	// Actors in join order.
	Actors []api.EntityID       `json:"actors"`
	Quotas map[api.EntityID]int `json:"quotas"`
}

// Quota is the aggregate number of units claimed by all joined actors.
func (r Record) Quota() int {
	n := 0
	for _, q := range r.Quotas {
		n += q
	}
	return n
}

func (r Record) clone() Record {
	c := r
	c.Actors = append([]api.EntityID(nil), r.Actors...)
	c.Quotas = make(map[api.EntityID]int, len(r.Quotas))
	for a, q := range r.Quotas {
		c.Quotas[a] = q
	}
	return c
}

type Tracker struct {
	mu sync.Mutex
	// Records in creation order; "first found" ties follow this order.
	order   []api.EntityID
	records map[api.EntityID]*Record
	byActor map[api.EntityID]api.EntityID
}

func New() *Tracker {
	return &Tracker{
		records: map[api.EntityID]*Record{},
		byActor: map[api.EntityID]api.EntityID{},
	}
}

// Join adds actor to the mine's record, creating it if needed. An actor belongs to
// at most one record: joining another mine leaves the previous one first, and
// re-joining the same mine replaces the actor's quota.
func (t *Tracker) Join(mine, actor api.EntityID, quota, colour int, node api.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.byActor[actor]; ok && prev != mine {
		t.leaveLocked(prev, actor)
	}
	r, ok := t.records[mine]
	if !ok {
		r = &Record{Mine: mine, Node: node, Colour: colour, Quotas: map[api.EntityID]int{}}
		t.records[mine] = r
		t.order = append(t.order, mine)
	}
	if _, ok := r.Quotas[actor]; !ok {
		r.Actors = append(r.Actors, actor)
	}
	r.Quotas[actor] = quota
	t.byActor[actor] = mine
}

// Leave removes actor from the mine's record and deletes the record once empty.
func (t *Tracker) Leave(mine, actor api.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(mine, actor)
}

// LeaveAll removes actor from whichever record it belongs to.
func (t *Tracker) LeaveAll(actor api.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mine, ok := t.byActor[actor]; ok {
		t.leaveLocked(mine, actor)
	}
}

func (t *Tracker) leaveLocked(mine, actor api.EntityID) {
	r, ok := t.records[mine]
	if !ok {
		return
	}
	if _, ok := r.Quotas[actor]; !ok {
		return
	}
	delete(r.Quotas, actor)
	for i, a := range r.Actors {
		if a == actor {
			r.Actors = append(r.Actors[:i], r.Actors[i+1:]...)
			break
		}
	}
	if t.byActor[actor] == mine {
		delete(t.byActor, actor)
	}
	if len(r.Actors) == 0 {
		delete(t.records, mine)
		for i, m := range t.order {
			if m == mine {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

func (t *Tracker) Get(mine api.EntityID) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[mine]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// RecordOf returns the record the actor has joined.
func (t *Tracker) RecordOf(actor api.EntityID) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mine, ok := t.byActor[actor]
	if !ok {
		return Record{}, false
	}
	return t.records[mine].clone(), true
}

// ActiveOfColour picks the record of the given colour whose node is closest by
// dist. Records whose node dist cannot reach are skipped; ties keep the earliest
// record.
func (t *Tracker) ActiveOfColour(colour int, dist func(node api.EntityID) (float64, bool)) (Record, bool) {
	cands := t.Records()
	var best Record
	bestDist := 0.0
	found := false
	for _, r := range cands {
		if r.Colour != colour {
			continue
		}
		d, ok := dist(r.Node)
		if !ok {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = r, d, true
		}
	}
	return best, found
}

// Records returns copies of all records in creation order.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.order))
	for _, m := range t.order {
		out = append(out, t.records[m].clone())
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

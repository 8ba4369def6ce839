// Package ledger is the process-wide reservation table for resources. A
// reservation is advisory bookkeeping between scheduler actors; the world still
// validates every pick-up and deposit on its own.
package ledger

import (
	"sort"
	"sync"

	"craftbots.ai/internal/sim/api"
)

type Purpose string

const (
	// PurposeDeliver marks freshly dug output waiting to be carried to the task node.
	PurposeDeliver Purpose = "DELIVER"
	// PurposeCarry marks a resource picked up by a specific actor.
	PurposeCarry Purpose = "CARRY"
	// PurposeFinishSite marks a resource dropped at the task node for the site builder.
	PurposeFinishSite Purpose = "FINISH_SITE"
)

// Owner is the claim on a resource.
type Owner struct {
	Task    api.EntityID `json:"task"`
	Purpose Purpose      `json:"purpose"`
	// Actor is set for PurposeCarry only.
	Actor api.EntityID `json:"actor,omitempty"`
}

func ForDeliver(task api.EntityID) Owner {
	return Owner{Task: task, Purpose: PurposeDeliver, Actor: api.NoEntity}
}

func ForCarry(task, actor api.EntityID) Owner {
	return Owner{Task: task, Purpose: PurposeCarry, Actor: actor}
}

func ForFinishSite(task api.EntityID) Owner {
	return Owner{Task: task, Purpose: PurposeFinishSite, Actor: api.NoEntity}
}

type Entry struct {
	Resource api.EntityID `json:"resource"`
	Owner    Owner        `json:"owner"`
}

type Ledger struct {
	mu      sync.Mutex
	entries map[api.EntityID]Owner
}

func New() *Ledger {
	return &Ledger{entries: map[api.EntityID]Owner{}}
}

// TryReserve claims id for owner. It reports true iff id was free or already held
// by the same owner.
func (l *Ledger) TryReserve(id api.EntityID, owner Owner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.entries[id]; ok && cur != owner {
		return false
	}
	l.entries[id] = owner
	return true
}

// Transfer moves id from one owner to another, failing if from does not hold it.
func (l *Ledger) Transfer(id api.EntityID, from, to Owner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.entries[id]; !ok || cur != from {
		return false
	}
	l.entries[id] = to
	return true
}

func (l *Ledger) Release(id api.EntityID) {
	l.mu.Lock()
	delete(l.entries, id)
	l.mu.Unlock()
}

func (l *Ledger) OwnerOf(id api.EntityID) (Owner, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.entries[id]
	return o, ok
}

// ReleaseTask drops every reservation owned by task and returns how many were removed.
func (l *Ledger) ReleaseTask(task api.EntityID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, o := range l.entries {
		if o.Task == task {
			delete(l.entries, id)
			n++
		}
	}
	return n
}

// ReleaseWhere drops every reservation whose owner satisfies pred.
func (l *Ledger) ReleaseWhere(pred func(api.EntityID, Owner) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, o := range l.entries {
		if pred(id, o) {
			delete(l.entries, id)
			n++
		}
	}
	return n
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns all entries sorted by resource id.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	out := make([]Entry, 0, len(l.entries))
	for id, o := range l.entries {
		out = append(out, Entry{Resource: id, Owner: o})
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

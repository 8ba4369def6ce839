package world

import "craftbots.ai/internal/sim/api"

// Submit implements api.Submitter. Commands are performed in submission order on
// the next Step.
func (w *World) Submit(cmd api.Command) {
	w.mu.Lock()
	w.pending = append(w.pending, cmd)
	w.mu.Unlock()
}

// Pending returns the commands queued for the next Step.
func (w *World) Pending() []api.Command {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]api.Command(nil), w.pending...)
}

func (w *World) takePending() []api.Command {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

// perform applies one command, returning false when the world rejects it.
func (w *World) perform(cmd api.Command) bool {
	a := w.actors[cmd.Actor]
	if a == nil {
		return false
	}
	switch cmd.Kind {
	case api.KindMoveTo:
		return w.moveTo(a, cmd.Node)
	case api.KindPickUpResource:
		return w.pickUp(a, cmd.Resource)
	case api.KindDropResource:
		return w.drop(a, cmd.Resource)
	case api.KindDropAllResources:
		for _, r := range ids(a.Inventory) {
			w.drop(a, r)
		}
		return true
	case api.KindDigAt:
		return w.digAt(a, cmd.Mine)
	case api.KindStartSite:
		return w.startSite(a, cmd.BuildingKind, cmd.Task)
	case api.KindConstructAt:
		return w.constructAt(a, cmd.Site)
	case api.KindDepositResources:
		return w.deposit(a, cmd.Site, cmd.Resource)
	case api.KindCancelAction:
		w.goIdle(a)
		return true
	default:
		return false
	}
}

func (w *World) goIdle(a *Actor) {
	a.State = api.StateIdle
	a.Target = api.NoEntity
	a.Progress = 0
	a.moveLen = 0
}

func (w *World) moveTo(a *Actor, node api.EntityID) bool {
	if a.State == api.StateMoving {
		return false
	}
	if node == a.Node {
		w.goIdle(a)
		return true
	}
	from := w.nodes[a.Node]
	if from == nil || w.nodes[node] == nil {
		return false
	}
	length := -1.0
	for _, eid := range from.Edges {
		e := w.edges[eid]
		if (e.A == a.Node && e.B == node) || (e.B == a.Node && e.A == node) {
			if length < 0 || e.Length < length {
				length = e.Length
			}
		}
	}
	if length < 0 {
		return false
	}
	a.State = api.StateMoving
	a.Target = node
	a.Progress = 0
	a.moveLen = length
	return true
}

func (w *World) holdsHeavy(a *Actor) bool {
	for _, rid := range a.Inventory {
		if r := w.resources[rid]; r != nil && r.Colour == w.cfg.HeavyColour {
			return true
		}
	}
	return false
}

func (w *World) pickUp(a *Actor, rid api.EntityID) bool {
	r := w.resources[rid]
	if r == nil || r.Node != a.Node || a.State == api.StateMoving {
		return false
	}
	if len(a.Inventory) >= w.cfg.InventorySize {
		return false
	}
	if !w.cfg.NoHeavyLimit {
		if w.holdsHeavy(a) {
			return false
		}
		if r.Colour == w.cfg.HeavyColour && len(a.Inventory) > 0 {
			return false
		}
	}
	w.nodes[r.Node].Resources = without(w.nodes[r.Node].Resources, rid)
	r.Node = api.NoEntity
	r.Holder = a.ID
	a.Inventory = append(a.Inventory, rid)
	return true
}

func (w *World) drop(a *Actor, rid api.EntityID) bool {
	r := w.resources[rid]
	if r == nil || r.Holder != a.ID || a.State == api.StateMoving {
		return false
	}
	a.Inventory = without(a.Inventory, rid)
	r.Holder = api.NoEntity
	r.Node = a.Node
	w.nodes[a.Node].Resources = append(w.nodes[a.Node].Resources, rid)
	return true
}

func (w *World) digAt(a *Actor, mid api.EntityID) bool {
	m := w.mines[mid]
	if m == nil || m.Node != a.Node || a.State == api.StateMoving {
		return false
	}
	a.State = api.StateDigging
	a.Target = mid
	a.Progress = 0
	return true
}

func (w *World) startSite(a *Actor, kind int, tid api.EntityID) bool {
	t := w.tasks[tid]
	if t == nil || t.Completed || t.Project != api.NoEntity || t.Node != a.Node {
		return false
	}
	s := &Site{
		ID:           w.newID(),
		Node:         t.Node,
		Task:         t.ID,
		BuildingType: kind,
		Needed:       ints(t.Needed),
		Deposited:    make([]int, api.NumColours),
	}
	w.sites[s.ID] = s
	w.nodes[s.Node].Sites = append(w.nodes[s.Node].Sites, s.ID)
	t.Project = s.ID
	return true
}

func (w *World) constructAt(a *Actor, sid api.EntityID) bool {
	s := w.sites[sid]
	if s == nil || s.Node != a.Node || a.State == api.StateMoving {
		return false
	}
	a.State = api.StateConstructing
	a.Target = sid
	return true
}

func (w *World) deposit(a *Actor, sid, rid api.EntityID) bool {
	s := w.sites[sid]
	r := w.resources[rid]
	if s == nil || r == nil || s.Node != a.Node {
		return false
	}
	if r.Holder != a.ID && r.Node != s.Node {
		return false
	}
	if s.Deposited[r.Colour] >= s.Needed[r.Colour] {
		return false
	}
	s.Deposited[r.Colour]++
	w.consumeResource(r)
	return true
}

package world

import (
	"sort"

	"craftbots.ai/internal/sim/api"
)

// Step performs all submitted commands in order, advances actors, mines and sites
// by one tick, and returns the tick that was stepped.
func (w *World) Step() uint64 {
	for _, cmd := range w.takePending() {
		if w.perform(cmd) {
			w.stats.Performed++
		} else {
			w.stats.Rejected++
		}
	}

	w.stepMovement()
	w.stepMines()
	w.stepSites()

	t := w.tick
	w.tick++
	return t
}

func (w *World) stepMovement() {
	for _, id := range w.actorOrder {
		a := w.actors[id]
		if a.State != api.StateMoving {
			continue
		}
		a.Progress += w.cfg.ActorSpeed
		if a.Progress < a.moveLen {
			continue
		}
		from, to := w.nodes[a.Node], w.nodes[a.Target]
		from.Actors = without(from.Actors, a.ID)
		to.Actors = append(to.Actors, a.ID)
		a.Node = a.Target
		w.goIdle(a)
	}
}

// targetedBy groups actors in state by their target, in actor creation order.
func (w *World) targetedBy(state int) (map[api.EntityID][]*Actor, []api.EntityID) {
	by := map[api.EntityID][]*Actor{}
	var order []api.EntityID
	for _, id := range w.actorOrder {
		a := w.actors[id]
		if a.State != state {
			continue
		}
		if _, ok := by[a.Target]; !ok {
			order = append(order, a.Target)
		}
		by[a.Target] = append(by[a.Target], a)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return by, order
}

func (w *World) stepMines() {
	by, order := w.targetedBy(api.StateDigging)
	for _, mid := range order {
		m := w.mines[mid]
		diggers := by[mid]
		if m == nil {
			for _, a := range diggers {
				w.goIdle(a)
			}
			continue
		}
		if m.Colour == w.cfg.SplitColour && len(diggers) < w.cfg.SplitMinDiggers {
			continue
		}
		m.Progress += w.cfg.DigSpeed * float64(len(diggers))
		effort := w.cfg.MineEffort[m.Colour]
		for m.Progress >= effort {
			m.Progress -= effort
			if _, err := w.AddResource(m.Node, m.Colour); err == nil {
				w.stats.Produced++
			}
		}
	}
}

func (w *World) stepSites() {
	by, order := w.targetedBy(api.StateConstructing)
	for _, sid := range order {
		s := w.sites[sid]
		builders := by[sid]
		if s == nil {
			for _, a := range builders {
				w.goIdle(a)
			}
			continue
		}
		need := w.cfg.BuildEffort * float64(sum(s.Needed))
		limit := w.cfg.BuildEffort * float64(sum(s.Deposited))
		s.Progress += w.cfg.BuildSpeed * float64(len(builders))
		if s.Progress > limit {
			s.Progress = limit
		}
		if s.Progress >= need {
			w.completeSite(s)
			for _, a := range builders {
				w.goIdle(a)
			}
			continue
		}
		if s.Progress >= limit {
			for _, a := range builders {
				w.goIdle(a)
			}
		}
	}
}

func (w *World) completeSite(s *Site) {
	b := &Building{ID: w.newID(), Node: s.Node, Type: s.BuildingType, Task: s.Task}
	w.buildings[b.ID] = b
	n := w.nodes[s.Node]
	n.Buildings = append(n.Buildings, b.ID)
	n.Sites = without(n.Sites, s.ID)
	delete(w.sites, s.ID)
	if t := w.tasks[s.Task]; t != nil {
		t.Project = b.ID
		t.Completed = true
	}
	w.stats.Built++
}

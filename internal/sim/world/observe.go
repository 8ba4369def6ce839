package world

import "craftbots.ai/internal/sim/api"

// Field implements api.Observer. Slices are copies; mutating them does not affect
// the world.
func (w *World) Field(id api.EntityID, name string) (any, bool) {
	if name == api.FieldID {
		if w.exists(id) {
			return id, true
		}
		return nil, false
	}
	if n := w.nodes[id]; n != nil {
		return nodeField(n, name)
	}
	if e := w.edges[id]; e != nil {
		switch name {
		case api.FieldLength:
			return e.Length, true
		case api.FieldNodes:
			return []api.EntityID{e.A, e.B}, true
		}
		return nil, false
	}
	if a := w.actors[id]; a != nil {
		switch name {
		case api.FieldNode:
			return a.Node, true
		case api.FieldState:
			return a.State, true
		case api.FieldTarget:
			return a.Target, true
		case api.FieldProgress:
			return a.Progress, true
		case api.FieldResources:
			return ids(a.Inventory), true
		}
		return nil, false
	}
	if r := w.resources[id]; r != nil {
		switch name {
		case api.FieldColour:
			return r.Colour, true
		case api.FieldNode:
			if r.Node == api.NoEntity {
				return nil, false
			}
			return r.Node, true
		case api.FieldHolder:
			if r.Holder == api.NoEntity {
				return nil, false
			}
			return r.Holder, true
		}
		return nil, false
	}
	if m := w.mines[id]; m != nil {
		switch name {
		case api.FieldNode:
			return m.Node, true
		case api.FieldColour:
			return m.Colour, true
		case api.FieldProgress:
			return m.Progress, true
		}
		return nil, false
	}
	if s := w.sites[id]; s != nil {
		switch name {
		case api.FieldNode:
			return s.Node, true
		case api.FieldTask:
			return s.Task, true
		case api.FieldBuildingType:
			return s.BuildingType, true
		case api.FieldNeededResources:
			return ints(s.Needed), true
		case api.FieldDepositedResources:
			return ints(s.Deposited), true
		case api.FieldProgress:
			return s.Progress, true
		}
		return nil, false
	}
	if t := w.tasks[id]; t != nil {
		switch name {
		case api.FieldNode:
			return t.Node, true
		case api.FieldNeededResources:
			return ints(t.Needed), true
		case api.FieldProject:
			return t.Project, true
		case api.FieldCompleted:
			return t.Completed, true
		}
		return nil, false
	}
	if b := w.buildings[id]; b != nil {
		switch name {
		case api.FieldNode:
			return b.Node, true
		case api.FieldBuildingType:
			return b.Type, true
		case api.FieldTask:
			return b.Task, true
		}
	}
	return nil, false
}

func nodeField(n *Node, name string) (any, bool) {
	switch name {
	case api.FieldEdges:
		return ids(n.Edges), true
	case api.FieldResources:
		return ids(n.Resources), true
	case api.FieldMines:
		return ids(n.Mines), true
	case api.FieldSites:
		return ids(n.Sites), true
	case api.FieldActors:
		return ids(n.Actors), true
	case api.FieldBuildings:
		return ids(n.Buildings), true
	}
	return nil, false
}

func (w *World) exists(id api.EntityID) bool {
	return w.nodes[id] != nil || w.edges[id] != nil || w.actors[id] != nil ||
		w.resources[id] != nil || w.mines[id] != nil || w.sites[id] != nil ||
		w.tasks[id] != nil || w.buildings[id] != nil
}

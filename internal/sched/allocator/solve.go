package allocator

import (
	"errors"
	"fmt"

	"craftbots.ai/internal/sched/goals"
	"craftbots.ai/internal/sched/ledger"
	"craftbots.ai/internal/sched/pathfind"
	"craftbots.ai/internal/sim/api"
)

// solveGoal replaces the actor's plan with a fresh one for its current goal.
func (a *Allocator) solveGoal(ac *actor) {
	g := ac.current
	if g == nil {
		return
	}
	ac.plan = nil
	ac.watch = nil
	ac.resolveNext = false
	delete(a.idleAt, ac.id)
	switch p := g.Params.(type) {
	case goals.Dig:
		a.solveDig(ac, p)
	case goals.Deliver:
		a.solveDeliver(ac, p)
	case goals.FinishSite:
		a.solveFinishSite(ac, p)
	}
}

func (a *Allocator) solveDig(ac *actor, p goals.Dig) {
	here := a.node(ac)

	if p.Colour == a.cfg.SplitColour {
		// Shared mines: prefer one somebody is already digging.
		rec, ok := a.mines.ActiveOfColour(p.Colour, func(node api.EntityID) (float64, bool) {
			return a.paths.Distance(here, node)
		})
		mine, node := rec.Mine, rec.Node
		if !ok {
			if mine, node, ok = a.nearestMine(ac, p.Colour); !ok {
				return
			}
		}
		if !a.goTo(ac, here, node) {
			return
		}
		a.mines.Join(mine, ac.id, p.Amount, p.Colour, node)
		a.say(ac, "joining mine %d for %d %s", mine, p.Amount, api.ColourName(p.Colour))
		ac.plan = append(ac.plan, command(api.DigAt(ac.id, mine)))
		return
	}

	if mine, ok := a.mineAt(here, p.Colour); ok {
		ac.plan = append(ac.plan, step{op: opDigHere, mine: mine, colour: p.Colour, amount: p.Amount})
		return
	}
	mine, node, ok := a.nearestMine(ac, p.Colour)
	if !ok {
		return
	}
	if !a.goTo(ac, here, node) {
		return
	}
	a.say(ac, "going to mine %d for %d %s", mine, p.Amount, api.ColourName(p.Colour))
	ac.plan = append(ac.plan, step{op: opDigHere, mine: mine, colour: p.Colour, amount: p.Amount})
}

func (a *Allocator) mineAt(node api.EntityID, colour int) (api.EntityID, bool) {
	for _, m := range api.IDs(a.world, node, api.FieldMines) {
		if c, ok := api.Int(a.world, m, api.FieldColour); ok && c == colour {
			return m, true
		}
	}
	return api.NoEntity, false
}

func (a *Allocator) nearestMine(ac *actor, colour int) (mine, node api.EntityID, ok bool) {
	node, _, err := a.paths.NearestMatch(a.node(ac), func(n api.EntityID) bool {
		_, found := a.mineAt(n, colour)
		return found
	})
	if err != nil {
		a.noRoute(ac, "no reachable %s mine", api.ColourName(colour))
		return api.NoEntity, api.NoEntity, false
	}
	mine, _ = a.mineAt(node, colour)
	return mine, node, true
}

func (a *Allocator) solveDeliver(ac *actor, p goals.Deliver) {
	g := ac.current
	here := a.node(ac)

	take := p.Amount
	if a.isHeavy(p.Colour) {
		take = 1
	} else if take > a.cfg.InventorySize {
		take = a.cfg.InventorySize
	}

	src, path, err := a.paths.NearestMatch(here, func(n api.EntityID) bool {
		return len(a.claimableAt(n, p.Colour, g.Task, ac.id)) >= take
	})
	if err != nil {
		// Settle for a partial load if nowhere has a full one.
		src, path, err = a.paths.NearestMatch(here, func(n api.EntityID) bool {
			return len(a.claimableAt(n, p.Colour, g.Task, ac.id)) > 0
		})
		if err == nil {
			take = len(a.claimableAt(src, p.Colour, g.Task, ac.id))
		}
	}
	if err != nil {
		a.waitForDigger(ac, p)
		return
	}

	if take < p.Amount {
		rest := a.newGoal(g.Task, goals.Deliver{Amount: p.Amount - take, Colour: p.Colour, Node: p.Node})
		ac.goals.PushFront(rest)
		p.Amount = take
		g.Params = p
		a.say(ac, "carrying %d now, %d left for later", take, rest.Params.(goals.Deliver).Amount)
	}

	carry := ledger.ForCarry(g.Task, ac.id)
	for _, r := range a.claimableAt(src, p.Colour, g.Task, ac.id)[:take] {
		if owner, ok := a.ledger.OwnerOf(r); ok && owner != carry {
			a.ledger.Transfer(r, owner, carry)
		} else {
			a.ledger.TryReserve(r, carry)
		}
	}

	a.followPath(ac, path)
	ac.plan = append(ac.plan, step{op: opPickUp, colour: p.Colour, amount: take})
	if !a.goTo(ac, src, p.Node) {
		a.releaseCarry(ac)
		ac.plan = nil
		return
	}
	ac.plan = append(ac.plan,
		step{op: opDropForSite, colour: p.Colour, amount: take},
		step{op: opFinishGoal},
	)
	a.say(ac, "fetching %d %s from node %d", take, api.ColourName(p.Colour), src)
}

// waitForDigger handles a Deliver with nothing to collect. A matching Dig goal of
// this actor is pulled forward; one owned by another actor is pulled forward in
// that actor's queue and watched; otherwise a new Dig goal is made and solved.
func (a *Allocator) waitForDigger(ac *actor, p goals.Deliver) {
	g := ac.current
	owner, dig := a.findDigger(g.Task, p.Colour)
	switch {
	case owner == ac:
		a.say(ac, "nothing to collect, digging it myself first")
		a.preempt(ac, dig)
	case owner != nil:
		if owner.current != dig {
			owner.goals.MoveToFront(dig)
		}
		ac.watch = dig
		a.say(ac, "nothing to collect, waiting for A%d to finish %s", owner.id, dig)
	default:
		dig = a.newGoal(g.Task, goals.Dig{Amount: p.Amount, Colour: p.Colour})
		a.say(ac, "nothing to collect and nobody digging, adding %s", dig)
		a.preempt(ac, dig)
	}
}

// findDigger looks for an unfinished Dig goal of task and colour, current or
// queued, starting with the actors' current goals.
func (a *Allocator) findDigger(task api.EntityID, colour int) (*actor, *goals.Goal) {
	match := func(g *goals.Goal) bool {
		if g == nil || g.Completed || g.Task != task {
			return false
		}
		d, ok := g.Params.(goals.Dig)
		return ok && d.Colour == colour
	}
	for _, o := range a.actors {
		if match(o.current) {
			return o, o.current
		}
	}
	for _, o := range a.actors {
		if g, ok := o.goals.Find(match); ok {
			return o, g
		}
	}
	return nil, nil
}

func (a *Allocator) solveFinishSite(ac *actor, p goals.FinishSite) {
	if !a.goTo(ac, a.node(ac), p.Node) {
		return
	}
	ac.plan = append(ac.plan, step{op: opEnsureSite})
}

// goTo appends moves along the shortest path from one node to another.
func (a *Allocator) goTo(ac *actor, from, to api.EntityID) bool {
	path, err := a.paths.ShortestPath(from, to)
	if err != nil {
		if errors.Is(err, pathfind.ErrNoPath) {
			a.noRoute(ac, "no route from node %d to node %d", from, to)
		}
		return false
	}
	a.followPath(ac, path)
	return true
}

func (a *Allocator) followPath(ac *actor, path pathfind.Path) {
	for _, n := range path.Nodes[1:] {
		ac.plan = append(ac.plan, command(api.MoveTo(ac.id, n)))
	}
}

func (a *Allocator) noRoute(ac *actor, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.stats.NoRoute++
	ev := Event{Type: EventNoRoute, Actor: ac.id, Message: msg}
	if g := ac.current; g != nil {
		ev.Task, ev.Goal = g.Task, g.ID
	}
	a.log.Printf("[A%d] %s", ac.id, msg)
	a.emit(ev)
}

// releaseCarry drops every carry reservation the actor holds.
func (a *Allocator) releaseCarry(ac *actor) {
	a.ledger.ReleaseWhere(func(_ api.EntityID, o ledger.Owner) bool {
		return o.Purpose == ledger.PurposeCarry && o.Actor == ac.id
	})
}

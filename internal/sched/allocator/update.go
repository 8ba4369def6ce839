package allocator

import (
	"craftbots.ai/internal/sched/goals"
	"craftbots.ai/internal/sched/ledger"
	"craftbots.ai/internal/sim/api"
)

// update runs the per-tick checks of the current goal before any plan step is
// popped.
func (a *Allocator) update(ac *actor) {
	g := ac.current
	state := a.state(ac)
	if state == api.StateDigging && (g == nil || g.Kind() != goals.KindDig) {
		a.mines.LeaveAll(ac.id)
		a.submit(api.CancelAction(ac.id))
		return
	}
	if g == nil {
		return
	}
	if ac.watch != nil && ac.watch.Completed {
		a.say(ac, "goal %d I was waiting on is done, searching again", ac.watch.ID)
		a.solveGoal(ac)
		return
	}
	if ac.resolveNext && state == api.StateIdle {
		a.solveGoal(ac)
		return
	}
	switch p := g.Params.(type) {
	case goals.Dig:
		a.updateDig(ac, p, state)
	case goals.FinishSite:
		if state == api.StateIdle && len(ac.plan) == 0 && a.node(ac) == p.Node {
			a.updateFinishSite(ac)
		}
	}
}

// updateDig is the digging side of mine contention. Once the units at the mine
// cover every joined actor's quota, the actor stops, reserves its own share and
// leaves the record.
func (a *Allocator) updateDig(ac *actor, p goals.Dig, state int) {
	rec, ok := a.mines.RecordOf(ac.id)
	if !ok {
		if state == api.StateDigging {
			a.submit(api.CancelAction(ac.id))
		}
		return
	}
	if state == api.StateMoving || a.node(ac) != rec.Node {
		return
	}
	task := ac.current.Task
	var free []api.EntityID
	viable := 0
	for _, r := range a.resourcesAt(rec.Node, rec.Colour) {
		owner, held := a.ledger.OwnerOf(r)
		switch {
		case !held:
			free = append(free, r)
			viable++
		case owner.Task == task && owner.Purpose == ledger.PurposeDeliver:
			viable++
		}
	}
	if viable < rec.Quota() {
		if state == api.StateIdle && !a.planStartsWithDig(ac) {
			ac.planFront(command(api.DigAt(ac.id, rec.Mine)))
		}
		return
	}

	if state == api.StateDigging {
		a.submit(api.CancelAction(ac.id))
	}
	a.mines.Leave(rec.Mine, ac.id)
	claimed := 0
	for _, r := range free {
		if claimed >= p.Amount {
			break
		}
		if a.ledger.TryReserve(r, ledger.ForDeliver(task)) {
			claimed++
		}
	}
	a.say(ac, "enough %s at mine %d, claimed %d", api.ColourName(rec.Colour), rec.Mine, claimed)
	a.finishGoal(ac)
}

func (a *Allocator) planStartsWithDig(ac *actor) bool {
	if len(ac.plan) == 0 {
		return false
	}
	s := ac.plan[0]
	return s.op == opDigHere || (s.op == opCommand && s.cmd.Kind == api.KindDigAt)
}

// updateFinishSite runs while the builder stands idle at the task node: deposit
// what it carries, fetch earmarked units lying at the node, construct once the
// site has everything.
func (a *Allocator) updateFinishSite(ac *actor) {
	g := ac.current
	site, ok := api.ID(a.world, g.Task, api.FieldProject)
	if !ok || site == api.NoEntity {
		a.ensureSite(ac)
		return
	}
	needed := api.Ints(a.world, site, api.FieldNeededResources)
	deposited := api.Ints(a.world, site, api.FieldDepositedResources)
	if needed == nil {
		// The project is already a building.
		return
	}
	remaining := make([]int, api.NumColours)
	for c := range remaining {
		if c < len(needed) {
			remaining[c] = needed[c]
		}
		if c < len(deposited) {
			remaining[c] -= deposited[c]
		}
	}
	if sumInts(remaining) == 0 {
		a.say(ac, "site %d has everything, constructing", site)
		ac.plan = append(ac.plan, command(api.ConstructAt(ac.id, site)), step{op: opFinishGoal})
		return
	}

	held := api.IDs(a.world, ac.id, api.FieldResources)
	carrying := len(held)
	heavy := false
	for _, r := range held {
		colour, _ := api.Int(a.world, r, api.FieldColour)
		if remaining[colour] > 0 {
			a.submit(api.DepositResources(ac.id, site, r))
			a.ledger.Release(r)
			remaining[colour]--
			carrying--
			continue
		}
		if a.isHeavy(colour) {
			heavy = true
		}
	}

	a.collectEarmarked(ac, g.Task, remaining, carrying, heavy)
}

// collectEarmarked picks up units at the actor's node that are reserved for the
// task and still needed, within inventory and heavy-colour limits.
func (a *Allocator) collectEarmarked(ac *actor, task api.EntityID, remaining []int, carrying int, heavy bool) {
	if heavy {
		return
	}
	carry := ledger.ForCarry(task, ac.id)
	for _, r := range api.IDs(a.world, a.node(ac), api.FieldResources) {
		if carrying >= a.cfg.InventorySize {
			return
		}
		colour, _ := api.Int(a.world, r, api.FieldColour)
		if remaining[colour] <= 0 {
			continue
		}
		owner, ok := a.ledger.OwnerOf(r)
		if !ok || owner.Task != task || owner.Purpose == ledger.PurposeCarry {
			continue
		}
		if a.isHeavy(colour) && carrying > 0 {
			continue
		}
		if !a.ledger.Transfer(r, owner, carry) {
			continue
		}
		a.submit(api.PickUpResource(ac.id, r))
		remaining[colour]--
		carrying++
		if a.isHeavy(colour) {
			return
		}
	}
}

func (a *Allocator) isHeavy(colour int) bool {
	return !a.cfg.IgnoreHeavy && colour == a.cfg.HeavyColour
}

// resourcesAt lists the loose resources of colour lying at node.
func (a *Allocator) resourcesAt(node api.EntityID, colour int) []api.EntityID {
	var out []api.EntityID
	for _, r := range api.IDs(a.world, node, api.FieldResources) {
		if c, ok := api.Int(a.world, r, api.FieldColour); ok && c == colour {
			out = append(out, r)
		}
	}
	return out
}

// claimable reports whether the actor may pick r up for task: it is free, waiting
// for delivery to task, or already earmarked for this actor.
func (a *Allocator) claimable(r, task, actor api.EntityID) bool {
	owner, ok := a.ledger.OwnerOf(r)
	if !ok {
		return true
	}
	if owner.Task != task {
		return false
	}
	switch owner.Purpose {
	case ledger.PurposeDeliver:
		return true
	case ledger.PurposeCarry:
		return owner.Actor == actor
	}
	return false
}

func (a *Allocator) claimableAt(node api.EntityID, colour int, task, actor api.EntityID) []api.EntityID {
	var out []api.EntityID
	for _, r := range a.resourcesAt(node, colour) {
		if a.claimable(r, task, actor) {
			out = append(out, r)
		}
	}
	return out
}

// digHere joins the contention record of the mine and starts digging it.
func (a *Allocator) digHere(ac *actor, s step) {
	node, ok := api.ID(a.world, s.mine, api.FieldNode)
	if !ok {
		return
	}
	a.mines.Join(s.mine, ac.id, s.amount, s.colour, node)
	a.submit(api.DigAt(ac.id, s.mine))
}

// pickUp claims s.amount units at the actor's node. If fewer are there than the
// plan expected, the plan is dropped and the goal re-solved next tick.
func (a *Allocator) pickUp(ac *actor, s step) {
	g := ac.current
	if g == nil {
		return
	}
	avail := a.claimableAt(a.node(ac), s.colour, g.Task, ac.id)
	if len(avail) < s.amount {
		a.stats.ContentionMiss++
		a.emit(Event{Type: EventContentionMiss, Actor: ac.id, Task: g.Task, Goal: g.ID,
			Message: "expected resources are gone"})
		a.say(ac, "only %d of %d %s left here, searching again", len(avail), s.amount, api.ColourName(s.colour))
		ac.plan = nil
		ac.resolveNext = true
		return
	}
	carry := ledger.ForCarry(g.Task, ac.id)
	for _, r := range avail[:s.amount] {
		if owner, ok := a.ledger.OwnerOf(r); ok && owner != carry {
			a.ledger.Transfer(r, owner, carry)
		} else {
			a.ledger.TryReserve(r, carry)
		}
		a.submit(api.PickUpResource(ac.id, r))
	}
}

// dropForSite leaves carried units at the task node tagged for the site builder.
func (a *Allocator) dropForSite(ac *actor, s step) {
	g := ac.current
	if g == nil {
		return
	}
	dropped := 0
	for _, r := range api.IDs(a.world, ac.id, api.FieldResources) {
		if dropped >= s.amount {
			break
		}
		if c, _ := api.Int(a.world, r, api.FieldColour); c != s.colour {
			continue
		}
		a.ledger.Release(r)
		a.ledger.TryReserve(r, ledger.ForFinishSite(g.Task))
		a.submit(api.DropResource(ac.id, r))
		dropped++
	}
	if dropped >= s.amount {
		return
	}
	p, ok := g.Params.(goals.Deliver)
	if !ok {
		return
	}
	p.Amount -= dropped
	g.Params = p
	a.say(ac, "dropped %d of %d, %d still to deliver", dropped, s.amount, p.Amount)
	ac.plan = nil
	ac.resolveNext = true
}

func (a *Allocator) ensureSite(ac *actor) {
	g := ac.current
	if g == nil {
		return
	}
	if project, ok := api.ID(a.world, g.Task, api.FieldProject); ok && project != api.NoEntity {
		return
	}
	a.submit(api.StartSite(ac.id, a.cfg.TaskBuildingKind, g.Task))
}

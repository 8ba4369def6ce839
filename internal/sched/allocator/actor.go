package allocator

import (
	"craftbots.ai/internal/sched/goals"
	"craftbots.ai/internal/sim/api"
)

type stepOp int

const (
	// opCommand submits cmd as is.
	opCommand stepOp = iota
	// opDigHere joins the mine's contention record and starts digging.
	opDigHere
	// opPickUp claims and picks up amount resources of colour on the actor's node.
	opPickUp
	// opDropForSite drops carried resources of colour, earmarked for the site builder.
	opDropForSite
	// opEnsureSite starts the task's site unless it already exists.
	opEnsureSite
	// opFinishGoal marks the current goal completed.
	opFinishGoal
)

// step is one entry of an actor's plan.
type step struct {
	op     stepOp
	cmd    api.Command
	mine   api.EntityID
	colour int
	amount int
}

func command(cmd api.Command) step { return step{op: opCommand, cmd: cmd} }

// lengthy steps end a pop: the actor must be observed idle before the next one.
func (s step) lengthy() bool {
	switch s.op {
	case opCommand:
		return api.IsLengthy(s.cmd.Kind)
	case opDigHere:
		return true
	}
	return false
}

type actor struct {
	id      api.EntityID
	autoRun bool

	goals   goals.Queue
	current *goals.Goal
	plan    []step

	// watch is another actor's Dig goal this actor's Deliver waits on.
	watch *goals.Goal
	// resolveNext re-runs the current goal's solver on the next idle tick.
	resolveNext bool
}

func (ac *actor) reset() {
	ac.current = nil
	ac.plan = nil
	ac.watch = nil
	ac.resolveNext = false
}

func (ac *actor) planFront(s step) {
	ac.plan = append([]step{s}, ac.plan...)
}

// ActorView is a copy of one actor's scheduling state.
type ActorView struct {
	ID      api.EntityID
	Current *goals.Goal
	Queue   []goals.Goal
	PlanLen int
	// Watching is the id of the goal being waited on, zero if none.
	Watching uint64
}

// ActorView reports the scheduling state of actor id.
func (a *Allocator) ActorView(id api.EntityID) (ActorView, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ac := a.byID[id]
	if ac == nil {
		return ActorView{}, false
	}
	v := ActorView{ID: id, PlanLen: len(ac.plan)}
	if ac.current != nil {
		g := *ac.current
		v.Current = &g
	}
	for _, g := range ac.goals.Items() {
		v.Queue = append(v.Queue, *g)
	}
	if ac.watch != nil {
		v.Watching = ac.watch.ID
	}
	return v, true
}

// TaskGoals returns copies of every goal issued for task, in issue order.
func (a *Allocator) TaskGoals(task api.EntityID) []goals.Goal {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]goals.Goal, 0, len(a.byTask[task]))
	for _, g := range a.byTask[task] {
		out = append(out, *g)
	}
	return out
}

// TaskFinished reports whether the scheduler has retired task.
func (a *Allocator) TaskFinished(task api.EntityID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done[task]
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// pop performs plan steps until one of them is lengthy or the plan runs out.
func (a *Allocator) pop(ac *actor) {
	for len(ac.plan) > 0 {
		s := ac.plan[0]
		ac.plan = ac.plan[1:]
		a.perform(ac, s)
		if s.lengthy() {
			return
		}
	}
}

func (a *Allocator) perform(ac *actor, s step) {
	switch s.op {
	case opCommand:
		a.submit(s.cmd)
	case opDigHere:
		a.digHere(ac, s)
	case opPickUp:
		a.pickUp(ac, s)
	case opDropForSite:
		a.dropForSite(ac, s)
	case opEnsureSite:
		a.ensureSite(ac)
	case opFinishGoal:
		a.finishGoal(ac)
	}
}

// popGoal makes the next live goal current and solves it. Goals of tasks that
// are already done are discarded on the way.
func (a *Allocator) popGoal(ac *actor) {
	for {
		g, ok := ac.goals.PopFront()
		if !ok {
			return
		}
		if g.Completed {
			continue
		}
		if a.taskDone(g.Task) {
			g.Completed = true
			a.stats.GoalsCompleted++
			continue
		}
		g.Actor = ac.id
		ac.current = g
		a.emit(Event{Type: EventGoalAssigned, Actor: ac.id, Task: g.Task, Goal: g.ID, Message: g.String()})
		a.say(ac, "working on %s", g)
		a.solveGoal(ac)
		return
	}
}

// preempt makes g the actor's current goal, putting the previous one back at the
// head of its queue.
func (a *Allocator) preempt(ac *actor, g *goals.Goal) {
	ac.goals.Remove(g)
	if ac.current != nil && ac.current != g {
		ac.goals.PushFront(ac.current)
	}
	ac.goals.PushFront(g)
	ac.reset()
	a.popGoal(ac)
}

func (a *Allocator) finishGoal(ac *actor) {
	g := ac.current
	if g == nil {
		return
	}
	g.Completed = true
	a.stats.GoalsCompleted++
	a.emit(Event{Type: EventGoalCompleted, Actor: ac.id, Task: g.Task, Goal: g.ID, Message: g.String()})
	a.say(ac, "completed %s", g)
	ac.reset()
	delete(a.idleAt, ac.id)
	a.maybeFinishTask(g.Task)
}

// Package allocator is the decentralised goal scheduler. Each tick it makes sure
// every actor has goals, runs goal solvers that turn goals into command plans,
// feeds one ready command chain per idle actor to the world, and forces a
// re-solve when an actor sits idle on an unfinished goal for too long.
//
// All shared state (reservation ledger, mine contention, goal ids, task
// bookkeeping) is owned by the Allocator and only touched while Tick holds its
// lock, so actors are stepped one after another within a tick.
package allocator

import (
	"io"
	"log"
	"sync"
	"sync/atomic"

	"craftbots.ai/internal/sched/goals"
	"craftbots.ai/internal/sched/ledger"
	"craftbots.ai/internal/sched/mines"
	"craftbots.ai/internal/sched/pathfind"
	"craftbots.ai/internal/sim/api"
)

type Allocator struct {
	cfg   Config
	world api.API
	log   *log.Logger

	thinking atomic.Bool

	mu     sync.Mutex
	tick   uint64
	ids    goals.Counter
	ledger *ledger.Ledger
	mines  *mines.Tracker
	paths  *pathfind.Finder

	actors []*actor
	byID   map[api.EntityID]*actor
	queues []*goals.Queue
	open   map[api.EntityID]bool
	done   map[api.EntityID]bool
	byTask map[api.EntityID][]*goals.Goal
	idleAt map[api.EntityID]uint64
	events []Event
	stats  Stats
	sinks  []Sink
}

// New builds a scheduler over every actor the world currently reports.
func New(world api.API, cfg Config, logger *log.Logger) *Allocator {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a := &Allocator{
		cfg:    cfg,
		world:  world,
		log:    logger,
		ledger: ledger.New(),
		mines:  mines.New(),
		paths:  pathfind.New(pathfind.ObserverGraph{Obs: world}),
		byID:   map[api.EntityID]*actor{},
		open:   map[api.EntityID]bool{},
		done:   map[api.EntityID]bool{},
		byTask: map[api.EntityID][]*goals.Goal{},
		idleAt: map[api.EntityID]uint64{},
	}
	for _, id := range world.Actors() {
		ac := &actor{id: id, autoRun: true}
		a.actors = append(a.actors, ac)
		a.byID[id] = ac
		a.queues = append(a.queues, &ac.goals)
	}
	return a
}

func (a *Allocator) Config() Config { return a.cfg }

// AddSink registers a receiver for per-tick entries.
func (a *Allocator) AddSink(s Sink) {
	a.mu.Lock()
	a.sinks = append(a.sinks, s)
	a.mu.Unlock()
}

func (a *Allocator) Ledger() *ledger.Ledger { return a.ledger }
func (a *Allocator) Mines() *mines.Tracker  { return a.mines }

// SetAutoRun pauses or resumes plan execution for one actor.
func (a *Allocator) SetAutoRun(id api.EntityID, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ac := a.byID[id]; ac != nil {
		ac.autoRun = on
	}
}

// Tick runs one scheduling pass. It returns false without doing anything when a
// previous pass is still running.
func (a *Allocator) Tick() bool {
	if !a.thinking.CompareAndSwap(false, true) {
		return false
	}
	defer a.thinking.Store(false)

	a.mu.Lock()
	a.tick = a.world.Tick()
	a.events = nil
	a.reapTasks()

	for _, ac := range a.actors {
		a.stepActor(ac)
	}

	a.stats.Ticks++
	a.stats.OpenTasks = len(a.open)
	a.stats.Reservations = a.ledger.Len()
	a.stats.ActiveMines = a.mines.Len()
	entry := TickLogEntry{Tick: a.tick, Events: a.events, Stats: a.stats}
	sinks := append([]Sink(nil), a.sinks...)
	a.mu.Unlock()

	for _, s := range sinks {
		if err := s.WriteTick(entry); err != nil {
			a.log.Printf("sink: tick=%d: %v", entry.Tick, err)
			a.mu.Lock()
			a.stats.SinkErrors++
			a.mu.Unlock()
		}
	}
	return true
}

func (a *Allocator) stepActor(ac *actor) {
	if ac.goals.Len() == 0 {
		a.say(ac, "no remaining goals in my queue, decomposing tasks")
		a.claimTasks()
	}
	if ac.current == nil && len(ac.plan) == 0 {
		a.popGoal(ac)
	}
	if !ac.autoRun {
		return
	}

	before := a.stats.Commands
	a.update(ac)
	if a.stats.Commands != before {
		delete(a.idleAt, ac.id)
	}

	if a.state(ac) != api.StateIdle {
		return
	}
	if len(ac.plan) > 0 {
		a.pop(ac)
		delete(a.idleAt, ac.id)
		return
	}
	if ac.current == nil {
		return
	}
	if ac.watch != nil && !ac.watch.Completed {
		// Waiting on another actor's dig; the idle timer restarts once it is done.
		delete(a.idleAt, ac.id)
		return
	}
	since, ok := a.idleAt[ac.id]
	if !ok {
		a.idleAt[ac.id] = a.tick
		return
	}
	if since+a.cfg.StallTimeoutTicks < a.tick {
		a.stall(ac)
	}
}

// stall handles an actor that sat on an open goal with nothing to do.
func (a *Allocator) stall(ac *actor) {
	g := ac.current
	a.stats.Stalls++
	g.Retries++
	if g.Kind() == goals.KindFinishSite && a.taskHasOtherOpenGoals(g) {
		// Waiting on deliveries is not a failure of this goal.
		g.Retries = 0
	}
	a.emit(Event{Type: EventGoalStalled, Actor: ac.id, Task: g.Task, Goal: g.ID, Message: g.String()})
	a.log.Printf("[A%d] stalled on %s (retry %d): no commands left, trying again", ac.id, g, g.Retries)

	if a.cfg.MaxStallRetries > 0 && g.Retries > a.cfg.MaxStallRetries {
		a.abandon(ac)
		return
	}
	a.solveGoal(ac)
}

func (a *Allocator) abandon(ac *actor) {
	g := ac.current
	g.Completed = true
	g.Abandoned = true
	a.stats.GoalsAbandoned++
	a.mines.LeaveAll(ac.id)
	a.releaseCarry(ac)
	a.emit(Event{Type: EventGoalAbandoned, Actor: ac.id, Task: g.Task, Goal: g.ID, Message: g.String()})
	a.log.Printf("[A%d] abandoning %s after %d retries", ac.id, g, g.Retries-1)
	ac.reset()
	delete(a.idleAt, ac.id)
	a.maybeFinishTask(g.Task)
}

// claimTasks decomposes newly eligible tasks and deals their goals to all actors.
func (a *Allocator) claimTasks() {
	slots := a.cfg.ParallelTasks - len(a.open)
	if slots <= 0 {
		return
	}
	var specs []goals.TaskSpec
	for _, id := range a.world.Tasks() {
		if len(specs) >= slots {
			break
		}
		if a.open[id] || a.done[id] || a.worldCompleted(id) {
			continue
		}
		node, ok := api.ID(a.world, id, api.FieldNode)
		if !ok {
			continue
		}
		needed := api.Ints(a.world, id, api.FieldNeededResources)
		if sumInts(needed) == 0 {
			// Nothing to build towards; never occupies a slot.
			a.done[id] = true
			continue
		}
		specs = append(specs, goals.TaskSpec{ID: id, Node: node, Needed: needed})
		a.open[id] = true
		a.stats.TasksClaimed++
		a.emit(Event{Type: EventTaskClaimed, Task: id})
	}
	if len(specs) == 0 {
		return
	}
	gs := goals.Decompose(a.ids.Next, specs, a.cfg.SplitColour)
	for _, g := range gs {
		a.register(g)
	}
	goals.Distribute(gs, a.queues)
}

func (a *Allocator) newGoal(task api.EntityID, p goals.Params) *goals.Goal {
	g := goals.New(a.ids.Next(), task, p)
	a.register(g)
	return g
}

func (a *Allocator) register(g *goals.Goal) {
	a.byTask[g.Task] = append(a.byTask[g.Task], g)
	a.stats.GoalsIssued++
}

func (a *Allocator) taskHasOtherOpenGoals(g *goals.Goal) bool {
	for _, o := range a.byTask[g.Task] {
		if o != g && !o.Completed {
			return true
		}
	}
	return false
}

// maybeFinishTask retires a task once every goal issued for it is completed. A
// task whose goals all ended while the world still has it unbuilt goes back to
// the claimable pool instead.
func (a *Allocator) maybeFinishTask(task api.EntityID) {
	if !a.open[task] {
		return
	}
	for _, g := range a.byTask[task] {
		if !g.Completed {
			return
		}
	}
	if !a.worldCompleted(task) {
		a.reissueTask(task)
		return
	}
	a.finishTask(task)
}

func (a *Allocator) reissueTask(task api.EntityID) {
	delete(a.open, task)
	released := a.ledger.ReleaseTask(task)
	a.stats.TasksReissued++
	a.emit(Event{Type: EventTaskReissued, Task: task})
	a.say(nil, "task %d has no goals left but is not built, reissuing (released %d reservations)", task, released)
}

func (a *Allocator) finishTask(task api.EntityID) {
	delete(a.open, task)
	a.done[task] = true
	released := a.ledger.ReleaseTask(task)
	a.stats.TasksFinished++
	a.emit(Event{Type: EventTaskFinished, Task: task})
	a.say(nil, "task %d finished, released %d reservations", task, released)
}

// reapTasks closes open tasks the world already reports as completed, drops
// actors off goals belonging to them, and forgets reservations on resources that
// no longer exist.
func (a *Allocator) reapTasks() {
	for task := range a.open {
		if !a.worldCompleted(task) {
			continue
		}
		for _, g := range a.byTask[task] {
			if !g.Completed {
				g.Completed = true
				a.stats.GoalsCompleted++
			}
		}
		for _, ac := range a.actors {
			if ac.current == nil || ac.current.Task != task {
				continue
			}
			a.mines.LeaveAll(ac.id)
			switch a.state(ac) {
			case api.StateDigging:
				a.submit(api.CancelAction(ac.id))
			}
			if len(api.IDs(a.world, ac.id, api.FieldResources)) > 0 {
				a.submit(api.DropAllResources(ac.id))
			}
			ac.reset()
			delete(a.idleAt, ac.id)
		}
		a.finishTask(task)
	}
	a.ledger.ReleaseWhere(func(id api.EntityID, _ ledger.Owner) bool {
		_, ok := a.world.Field(id, api.FieldID)
		return !ok
	})
}

func (a *Allocator) worldCompleted(task api.EntityID) bool {
	c, _ := api.Bool(a.world, task, api.FieldCompleted)
	return c
}

func (a *Allocator) taskDone(task api.EntityID) bool {
	return a.done[task] || a.worldCompleted(task)
}

func (a *Allocator) submit(cmd api.Command) {
	a.world.Submit(cmd)
	a.stats.Commands++
	c := cmd
	a.emit(Event{Type: EventCommand, Actor: cmd.Actor, Command: &c})
}

func (a *Allocator) emit(ev Event) {
	ev.Tick = a.tick
	a.events = append(a.events, ev)
}

func (a *Allocator) say(ac *actor, format string, args ...any) {
	if !a.cfg.Verbose {
		return
	}
	if ac == nil {
		a.log.Printf(format, args...)
		return
	}
	a.log.Printf("[A%d] "+format, append([]any{ac.id}, args...)...)
}

func (a *Allocator) state(ac *actor) int {
	s, _ := api.Int(a.world, ac.id, api.FieldState)
	return s
}

func (a *Allocator) node(ac *actor) api.EntityID {
	n, _ := api.ID(a.world, ac.id, api.FieldNode)
	return n
}

func sumInts(v []int) int {
	n := 0
	for _, x := range v {
		if x > 0 {
			n += x
		}
	}
	return n
}

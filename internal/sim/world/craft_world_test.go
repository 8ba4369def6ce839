package world

import (
	"testing"

	"craftbots.ai/internal/sim/api"
)

type fixture struct {
	t *testing.T
	w *World
}

func newFixture(t *testing.T, cfg Config) *fixture {
	return &fixture{t: t, w: New(cfg)}
}

func (f *fixture) must(id api.EntityID, err error) api.EntityID {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("world: %v", err)
	}
	return id
}

func (f *fixture) state(actor api.EntityID) int {
	s, _ := api.Int(f.w, actor, api.FieldState)
	return s
}

func (f *fixture) node(id api.EntityID) api.EntityID {
	n, _ := api.ID(f.w, id, api.FieldNode)
	return n
}

func TestAddEdge_Rejects(t *testing.T) {
	w := New(Config{})
	a := w.AddNode(0, 0)
	b := w.AddNode(1, 0)
	for name, tc := range map[string]struct {
		a, b api.EntityID
		l    float64
	}{
		"unknown":   {a, 99, 1},
		"self loop": {a, a, 1},
		"zero":      {a, b, 0},
	} {
		if _, err := w.AddEdge(tc.a, tc.b, tc.l); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMoveTo_TakesEdgeLengthOverSpeed(t *testing.T) {
	f := newFixture(t, Config{ActorSpeed: 1})
	a := f.w.AddNode(0, 0)
	b := f.w.AddNode(3, 0)
	c := f.w.AddNode(6, 0)
	f.must(f.w.AddEdge(a, b, 3))
	f.must(f.w.AddEdge(b, c, 3))
	actor := f.must(f.w.AddActor(a))

	f.w.Submit(api.MoveTo(actor, c))
	f.w.Step()
	if f.state(actor) != api.StateIdle || f.w.Stats().Rejected != 1 {
		t.Fatalf("move to non-adjacent node was not rejected")
	}

	f.w.Submit(api.MoveTo(actor, b))
	for i := 0; i < 2; i++ {
		f.w.Step()
		if f.state(actor) != api.StateMoving || f.node(actor) != a {
			t.Fatalf("step %d: state=%d node=%d", i, f.state(actor), f.node(actor))
		}
	}
	f.w.Step()
	if f.state(actor) != api.StateIdle || f.node(actor) != b {
		t.Fatalf("after 3 steps: state=%d node=%d want idle at %d", f.state(actor), f.node(actor), b)
	}
	if got := api.IDs(f.w, b, api.FieldActors); len(got) != 1 || got[0] != actor {
		t.Fatalf("node actors=%v", got)
	}
}

func TestPickUp_CapacityAndHeavy(t *testing.T) {
	f := newFixture(t, Config{InventorySize: 2})
	n := f.w.AddNode(0, 0)
	actor := f.must(f.w.AddActor(n))
	r1 := f.must(f.w.AddResource(n, api.ColourRed))
	r2 := f.must(f.w.AddResource(n, api.ColourRed))
	r3 := f.must(f.w.AddResource(n, api.ColourRed))
	heavy := f.must(f.w.AddResource(n, api.ColourBlack))

	f.w.Submit(api.PickUpResource(actor, r1))
	f.w.Submit(api.PickUpResource(actor, heavy))
	f.w.Submit(api.PickUpResource(actor, r2))
	f.w.Submit(api.PickUpResource(actor, r3))
	f.w.Step()

	inv := api.IDs(f.w, actor, api.FieldResources)
	if len(inv) != 2 || inv[0] != r1 || inv[1] != r2 {
		t.Fatalf("inventory=%v want [%d %d]", inv, r1, r2)
	}
	if _, ok := f.w.Field(r1, api.FieldNode); ok {
		t.Fatalf("held resource still reports a node")
	}
	if h, _ := api.ID(f.w, r1, api.FieldHolder); h != actor {
		t.Fatalf("holder=%d want %d", h, actor)
	}

	f.w.Submit(api.DropAllResources(actor))
	f.w.Submit(api.PickUpResource(actor, heavy))
	f.w.Submit(api.PickUpResource(actor, r3))
	f.w.Step()
	inv = api.IDs(f.w, actor, api.FieldResources)
	if len(inv) != 1 || inv[0] != heavy {
		t.Fatalf("inventory=%v want only the heavy unit", inv)
	}
}

func TestMine_SplitColourNeedsTwoDiggers(t *testing.T) {
	f := newFixture(t, Config{MineEffort: []float64{10, 10, 4, 30, 15}})
	n := f.w.AddNode(0, 0)
	mine := f.must(f.w.AddMine(n, api.ColourOrange))
	a1 := f.must(f.w.AddActor(n))
	a2 := f.must(f.w.AddActor(n))

	f.w.Submit(api.DigAt(a1, mine))
	for i := 0; i < 10; i++ {
		f.w.Step()
	}
	if got := len(api.IDs(f.w, n, api.FieldResources)); got != 0 {
		t.Fatalf("single digger produced %d units", got)
	}

	f.w.Submit(api.DigAt(a2, mine))
	f.w.Step()
	f.w.Step()
	res := api.IDs(f.w, n, api.FieldResources)
	if len(res) != 1 {
		t.Fatalf("two diggers for two ticks produced %d units, want 1", len(res))
	}
	if c, _ := api.Int(f.w, res[0], api.FieldColour); c != api.ColourOrange {
		t.Fatalf("colour=%d", c)
	}
	f.w.Submit(api.CancelAction(a1))
	f.w.Step()
	if f.state(a1) != api.StateIdle || f.state(a2) != api.StateDigging {
		t.Fatalf("states after cancel: %d %d", f.state(a1), f.state(a2))
	}
}

func TestSite_DepositAndConstructCompletesTask(t *testing.T) {
	f := newFixture(t, Config{BuildEffort: 2})
	n := f.w.AddNode(0, 0)
	actor := f.must(f.w.AddActor(n))
	task := f.must(f.w.AddTask(n, []int{0, 2}))
	b1 := f.must(f.w.AddResource(n, api.ColourBlue))
	b2 := f.must(f.w.AddResource(n, api.ColourBlue))
	red := f.must(f.w.AddResource(n, api.ColourRed))

	f.w.Submit(api.StartSite(actor, 4, task))
	f.w.Step()
	site, ok := api.ID(f.w, task, api.FieldProject)
	if !ok {
		t.Fatalf("no site after START_SITE")
	}
	f.w.Submit(api.StartSite(actor, 4, task))
	f.w.Step()
	if got := f.w.Stats().Rejected; got != 1 {
		t.Fatalf("second START_SITE rejected=%d want 1", got)
	}

	f.w.Submit(api.PickUpResource(actor, b1))
	f.w.Step()
	f.w.Submit(api.DepositResources(actor, site, b1))
	f.w.Submit(api.DepositResources(actor, site, red))
	f.w.Submit(api.ConstructAt(actor, site))
	f.w.Step()
	if dep := api.Ints(f.w, site, api.FieldDepositedResources); dep[api.ColourBlue] != 1 || dep[api.ColourRed] != 0 {
		t.Fatalf("deposited=%v", dep)
	}
	// Progress caps at BuildEffort per deposited unit.
	f.w.Step()
	f.w.Step()
	if p, _ := api.Float(f.w, site, api.FieldProgress); p != 2 {
		t.Fatalf("progress=%v want capped at 2", p)
	}
	if f.state(actor) != api.StateIdle {
		t.Fatalf("builder should stop at the cap")
	}

	f.w.Submit(api.DepositResources(actor, site, b2))
	f.w.Submit(api.ConstructAt(actor, site))
	f.w.Step()
	f.w.Step()
	if done, _ := api.Bool(f.w, task, api.FieldCompleted); !done {
		t.Fatalf("task not completed")
	}
	if !f.w.AllTasksCompleted() {
		t.Fatalf("AllTasksCompleted=false")
	}
	if _, ok := f.w.Field(site, api.FieldID); ok {
		t.Fatalf("site still exists after completion")
	}
	if got := len(api.IDs(f.w, n, api.FieldBuildings)); got != 1 {
		t.Fatalf("buildings=%d want 1", got)
	}
}

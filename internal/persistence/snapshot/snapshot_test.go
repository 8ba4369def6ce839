package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"

	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sim/api"
	"craftbots.ai/internal/sim/world"
)

func TestSnapshot_CaptureRoundTrip(t *testing.T) {
	w := world.New(world.Config{ID: "snap"})
	a := w.AddNode(0, 0)
	b := w.AddNode(1, 0)
	if _, err := w.AddEdge(a, b, 1); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := w.AddMine(b, api.ColourRed); err != nil {
		t.Fatalf("AddMine: %v", err)
	}
	actor, err := w.AddActor(a)
	if err != nil {
		t.Fatalf("AddActor: %v", err)
	}
	needed := make([]int, api.NumColours)
	needed[api.ColourRed] = 2
	if _, err := w.AddTask(a, needed); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	alloc := allocator.New(w, allocator.Config{}, nil)
	for i := 0; i < 3; i++ {
		alloc.Tick()
		w.Step()
	}

	snap := Capture("run-s", w.Tick(), "test", alloc, []api.EntityID{actor, 9999})
	if len(snap.Actors) != 1 {
		t.Fatalf("actors=%d want 1 (unknown ids skipped)", len(snap.Actors))
	}
	if snap.Actors[0].Current == nil {
		t.Fatalf("expected a current goal after claiming the task")
	}
	if snap.Stats.TasksClaimed != 1 {
		t.Fatalf("stats=%+v", snap.Stats)
	}

	path := filepath.Join(t.TempDir(), "snapshots", "3.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, snap)
	}
}

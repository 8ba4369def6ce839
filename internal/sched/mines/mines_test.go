package mines

import (
	"reflect"
	"testing"

	"craftbots.ai/internal/sim/api"
)

func TestJoinLeave_RoundTripRestoresState(t *testing.T) {
	tr := New()
	tr.Join(50, 1, 2, api.ColourRed, 10)
	before := tr.Records()

	tr.Join(50, 2, 3, api.ColourRed, 10)
	tr.Leave(50, 2)
	if got := tr.Records(); !reflect.DeepEqual(got, before) {
		t.Fatalf("after join+leave:\n got %+v\nwant %+v", got, before)
	}

	tr.Join(60, 3, 1, api.ColourBlue, 11)
	tr.Leave(60, 3)
	if got := tr.Records(); !reflect.DeepEqual(got, before) {
		t.Fatalf("fresh record should vanish:\n got %+v\nwant %+v", got, before)
	}
	if _, ok := tr.RecordOf(3); ok {
		t.Fatalf("actor 3 should not belong to any record")
	}
}

func TestJoin_SharesRecordAndSumsQuota(t *testing.T) {
	tr := New()
	tr.Join(50, 1, 2, api.ColourRed, 10)
	tr.Join(50, 2, 3, api.ColourRed, 10)

	r, ok := tr.Get(50)
	if !ok {
		t.Fatalf("missing record")
	}
	if r.Quota() != 5 {
		t.Fatalf("quota=%d want 5", r.Quota())
	}
	if !reflect.DeepEqual(r.Actors, []api.EntityID{1, 2}) {
		t.Fatalf("actors=%v", r.Actors)
	}
	if tr.Len() != 1 {
		t.Fatalf("len=%d want 1", tr.Len())
	}

	// Re-joining replaces the quota instead of stacking it.
	tr.Join(50, 1, 4, api.ColourRed, 10)
	r, _ = tr.Get(50)
	if r.Quota() != 7 || len(r.Actors) != 2 {
		t.Fatalf("after rejoin quota=%d actors=%v", r.Quota(), r.Actors)
	}
}

func TestRecordNeverEmpty(t *testing.T) {
	tr := New()
	tr.Join(50, 1, 1, api.ColourRed, 10)
	tr.Join(50, 2, 1, api.ColourRed, 10)
	tr.Leave(50, 1)
	for _, r := range tr.Records() {
		if len(r.Actors) == 0 {
			t.Fatalf("empty record %+v", r)
		}
	}
	tr.Leave(50, 2)
	if tr.Len() != 0 {
		t.Fatalf("record should be removed")
	}
	// Leaving twice is harmless.
	tr.Leave(50, 2)
	tr.LeaveAll(2)
}

func TestJoinOtherMineLeavesPrevious(t *testing.T) {
	tr := New()
	tr.Join(50, 1, 2, api.ColourRed, 10)
	tr.Join(60, 1, 2, api.ColourRed, 12)
	if _, ok := tr.Get(50); ok {
		t.Fatalf("previous record should be gone")
	}
	r, ok := tr.RecordOf(1)
	if !ok || r.Mine != 60 {
		t.Fatalf("RecordOf=%+v,%v", r, ok)
	}
}

func TestActiveOfColour_PicksClosest(t *testing.T) {
	tr := New()
	tr.Join(50, 1, 1, api.ColourOrange, 10)
	tr.Join(60, 2, 1, api.ColourOrange, 20)
	tr.Join(70, 3, 1, api.ColourRed, 30)
	tr.Join(80, 4, 1, api.ColourOrange, 40)

	dist := map[api.EntityID]float64{10: 5, 20: 2, 30: 0}
	r, ok := tr.ActiveOfColour(api.ColourOrange, func(n api.EntityID) (float64, bool) {
		d, ok := dist[n]
		return d, ok
	})
	if !ok || r.Mine != 60 {
		t.Fatalf("got %+v,%v want mine 60", r, ok)
	}
	if _, ok := tr.ActiveOfColour(api.ColourBlue, func(api.EntityID) (float64, bool) { return 0, true }); ok {
		t.Fatalf("no blue record expected")
	}
	// Ties keep the earliest record.
	r, _ = tr.ActiveOfColour(api.ColourOrange, func(api.EntityID) (float64, bool) { return 1, true })
	if r.Mine != 50 {
		t.Fatalf("tie should keep first record, got %d", r.Mine)
	}
}

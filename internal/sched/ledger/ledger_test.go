package ledger

import (
	"math/rand"
	"sync"
	"testing"

	"craftbots.ai/internal/sim/api"
)

func TestTryReserve_SameOwnerIsIdempotent(t *testing.T) {
	l := New()
	o := ForDeliver(7)
	if !l.TryReserve(1, o) {
		t.Fatalf("first reserve should succeed")
	}
	if !l.TryReserve(1, o) {
		t.Fatalf("re-reserve by same owner should succeed")
	}
	if l.TryReserve(1, ForDeliver(8)) {
		t.Fatalf("reserve by different owner should fail")
	}
	got, ok := l.OwnerOf(1)
	if !ok || got != o {
		t.Fatalf("OwnerOf=%+v,%v want %+v", got, ok, o)
	}
}

func TestReleaseThenReserveByOther(t *testing.T) {
	l := New()
	l.TryReserve(1, ForDeliver(7))
	l.Release(1)
	if _, ok := l.OwnerOf(1); ok {
		t.Fatalf("expected released")
	}
	if !l.TryReserve(1, ForFinishSite(9)) {
		t.Fatalf("reserve after release should succeed")
	}
}

func TestTransfer(t *testing.T) {
	l := New()
	from := ForDeliver(3)
	to := ForCarry(3, 11)
	if l.Transfer(1, from, to) {
		t.Fatalf("transfer of unreserved resource should fail")
	}
	l.TryReserve(1, from)
	if l.Transfer(1, ForDeliver(4), to) {
		t.Fatalf("transfer from wrong owner should fail")
	}
	if !l.Transfer(1, from, to) {
		t.Fatalf("transfer should succeed")
	}
	if got, _ := l.OwnerOf(1); got != to {
		t.Fatalf("owner=%+v want %+v", got, to)
	}
}

func TestReleaseTask(t *testing.T) {
	l := New()
	l.TryReserve(1, ForDeliver(3))
	l.TryReserve(2, ForFinishSite(3))
	l.TryReserve(3, ForDeliver(4))
	if n := l.ReleaseTask(3); n != 2 {
		t.Fatalf("released=%d want 2", n)
	}
	if l.Len() != 1 {
		t.Fatalf("len=%d want 1", l.Len())
	}
	snap := l.Snapshot()
	if len(snap) != 1 || snap[0].Resource != 3 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

// Random reserve/release sequences from concurrent callers never leave a resource
// with two owners: every successful reserve must observe itself as owner until
// its own release.
func TestNeverTwoOwners(t *testing.T) {
	l := New()
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w)))
			me := ForCarry(api.EntityID(w), api.EntityID(w))
			for i := 0; i < 2000; i++ {
				id := api.EntityID(r.Intn(4))
				if !l.TryReserve(id, me) {
					continue
				}
				if got, ok := l.OwnerOf(id); !ok || got != me {
					errs <- "reservation stolen while held"
					return
				}
				l.Release(id)
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

// Package snapshot dumps the scheduler's shared state (reservations, mine
// records and per-actor goal queues) to a compressed file for post-mortem
// inspection of a run.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sched/goals"
	"craftbots.ai/internal/sim/api"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
	Reason  string `json:"reason,omitempty"`
}

type SchedulerV1 struct {
	Header Header `json:"header"`

	Stats        allocator.Stats `json:"stats"`
	Reservations []ReservationV1 `json:"reservations"`
	Mines        []MineV1        `json:"mines"`
	Actors       []ActorV1       `json:"actors"`
}

type ReservationV1 struct {
	Resource int    `json:"resource"`
	Task     int    `json:"task"`
	Purpose  string `json:"purpose"`
	Actor    int    `json:"actor,omitempty"`
}

type MineV1 struct {
	Mine   int `json:"mine"`
	Node   int `json:"node"`
	Colour int `json:"colour"`
	// Actors and Quotas are parallel, in join order.
	Actors []int `json:"actors"`
	Quotas []int `json:"quotas"`
}

type ActorV1 struct {
	ID       int      `json:"id"`
	PlanLen  int      `json:"plan_len"`
	Watching uint64   `json:"watching,omitempty"`
	Current  *GoalV1  `json:"current,omitempty"`
	Queue    []GoalV1 `json:"queue,omitempty"`
}

type GoalV1 struct {
	ID        uint64 `json:"id"`
	Task      int    `json:"task"`
	Kind      string `json:"kind"`
	Amount    int    `json:"amount,omitempty"`
	Colour    int    `json:"colour"`
	Node      int    `json:"node,omitempty"`
	Actor     int    `json:"actor"`
	Completed bool   `json:"completed,omitempty"`
	Abandoned bool   `json:"abandoned,omitempty"`
	Retries   int    `json:"retries,omitempty"`
}

// Capture copies the state of alloc for the given actors.
func Capture(runID string, tick uint64, reason string, alloc *allocator.Allocator, actors []api.EntityID) SchedulerV1 {
	snap := SchedulerV1{
		Header: Header{Version: Version, RunID: runID, Tick: tick, Reason: reason},
		Stats:  alloc.Stats(),
	}
	for _, e := range alloc.Ledger().Snapshot() {
		snap.Reservations = append(snap.Reservations, ReservationV1{
			Resource: int(e.Resource),
			Task:     int(e.Owner.Task),
			Purpose:  string(e.Owner.Purpose),
			Actor:    int(e.Owner.Actor),
		})
	}
	for _, r := range alloc.Mines().Records() {
		m := MineV1{Mine: int(r.Mine), Node: int(r.Node), Colour: r.Colour}
		for _, a := range r.Actors {
			m.Actors = append(m.Actors, int(a))
			m.Quotas = append(m.Quotas, r.Quotas[a])
		}
		snap.Mines = append(snap.Mines, m)
	}
	for _, id := range actors {
		v, ok := alloc.ActorView(id)
		if !ok {
			continue
		}
		a := ActorV1{ID: int(id), PlanLen: v.PlanLen, Watching: v.Watching}
		if v.Current != nil {
			g := goalV1(*v.Current)
			a.Current = &g
		}
		for _, g := range v.Queue {
			a.Queue = append(a.Queue, goalV1(g))
		}
		snap.Actors = append(snap.Actors, a)
	}
	return snap
}

func goalV1(g goals.Goal) GoalV1 {
	out := GoalV1{
		ID:        g.ID,
		Task:      int(g.Task),
		Kind:      g.Kind().String(),
		Actor:     int(g.Actor),
		Completed: g.Completed,
		Abandoned: g.Abandoned,
		Retries:   g.Retries,
	}
	switch p := g.Params.(type) {
	case goals.Dig:
		out.Amount, out.Colour = p.Amount, p.Colour
	case goals.Deliver:
		out.Amount, out.Colour, out.Node = p.Amount, p.Colour, int(p.Node)
	case goals.FinishSite:
		out.Node = int(p.Node)
	}
	return out
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded snapshot,
// all zstd-compressed.
func WriteSnapshot(path string, snap SchedulerV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SchedulerV1, error) {
	var snap SchedulerV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is for humans and tools like zstdcat; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

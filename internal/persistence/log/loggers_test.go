package log

import (
	"errors"
	"path/filepath"
	"testing"

	"craftbots.ai/internal/sched/allocator"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir, "run-1")
	for tick := uint64(0); tick < 3; tick++ {
		e := allocator.TickLogEntry{
			Tick:   tick,
			Events: []allocator.Event{{Tick: tick, Type: allocator.EventGoalAssigned, Actor: 7, Goal: tick + 1}},
			Stats:  allocator.Stats{Ticks: tick + 1},
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := TraceFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("trace files=%v err=%v", files, err)
	}
	var got []TraceRecord
	if err := ReadTrace(files[0], func(r TraceRecord) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("records=%d want 3", len(got))
	}
	for i, r := range got {
		if r.RunID != "run-1" || r.Tick != uint64(i) || len(r.Events) != 1 || r.Events[0].Goal != uint64(i)+1 {
			t.Fatalf("record %d = %+v", i, r)
		}
	}
}

func TestSegmentWriter_RotatesByRecordCount(t *testing.T) {
	dir := t.TempDir()
	w := NewSegmentWriter(dir, "trace", 2)
	for i := 0; i < 5; i++ {
		if err := w.Write(map[string]int{"tick": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	segs := w.Segments()
	if len(segs) != 3 {
		t.Fatalf("segments=%v want 3", segs)
	}
	if filepath.Base(segs[0]) != "trace-000001.jsonl.zst" || filepath.Base(segs[2]) != "trace-000003.jsonl.zst" {
		t.Fatalf("segment names=%v", segs)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "trace-*.jsonl.zst"))
	if len(files) != 3 {
		t.Fatalf("files on disk=%v", files)
	}
	if w.Lines() != 5 {
		t.Fatalf("lines=%d want 5", w.Lines())
	}
}

func TestSegmentWriter_ZeroNeverRotates(t *testing.T) {
	w := NewSegmentWriter(t.TempDir(), "runs", 0)
	for i := 0; i < 4; i++ {
		if err := w.Write(i); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	_ = w.Close()
	if segs := w.Segments(); len(segs) != 1 {
		t.Fatalf("segments=%v want 1", segs)
	}
}

func TestTraceFiles_SegmentsReadBackInTickOrder(t *testing.T) {
	dir := t.TempDir()
	l := newTickLogger(dir, "run-2", 3)
	for tick := uint64(0); tick < 10; tick++ {
		if err := l.WriteTick(allocator.TickLogEntry{Tick: tick}); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	_ = l.Close()

	files, err := TraceFiles(dir)
	if err != nil || len(files) != 4 {
		t.Fatalf("trace files=%v err=%v", files, err)
	}
	var ticks []uint64
	for _, f := range files {
		if err := ReadTrace(f, func(r TraceRecord) error {
			ticks = append(ticks, r.Tick)
			return nil
		}); err != nil {
			t.Fatalf("ReadTrace(%s): %v", f, err)
		}
	}
	for i, tick := range ticks {
		if tick != uint64(i) {
			t.Fatalf("ticks=%v want 0..9 in order", ticks)
		}
	}
	if len(ticks) != 10 {
		t.Fatalf("read %d records want 10", len(ticks))
	}
}

func TestReadTrace_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir, "r")
	for i := 0; i < 3; i++ {
		if err := l.WriteTick(allocator.TickLogEntry{Tick: uint64(i)}); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	_ = l.Close()
	files, _ := TraceFiles(dir)

	stop := errors.New("stop")
	calls := 0
	err := ReadTrace(files[0], func(TraceRecord) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

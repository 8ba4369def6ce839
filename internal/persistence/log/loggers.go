package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"craftbots.ai/internal/sched/allocator"
)

// SegmentWriter appends JSON lines to zstd segment files, starting a new one
// every perSegment records: <dir>/<prefix>-NNNNNN.jsonl.zst. A perSegment of
// zero keeps everything in the first segment.
type SegmentWriter struct {
	baseDir    string
	prefix     string
	perSegment int

	mu       sync.Mutex
	segment  int
	inSeg    int
	lines    int
	segments []string
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

func NewSegmentWriter(baseDir, prefix string, perSegment int) *SegmentWriter {
	if perSegment < 0 {
		perSegment = 0
	}
	return &SegmentWriter{baseDir: baseDir, prefix: prefix, perSegment: perSegment}
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Lines reports how many records were written since creation.
func (w *SegmentWriter) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Segments lists the files opened so far, in write order.
func (w *SegmentWriter) Segments() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.segments...)
}

func (w *SegmentWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || (w.perSegment > 0 && w.inSeg >= w.perSegment) {
		if err := w.nextSegmentLocked(); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.inSeg++
	w.lines++
	return w.w.Flush()
}

func (w *SegmentWriter) nextSegmentLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	w.segment++
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, w.segment))
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.inSeg = 0
	w.segments = append(w.segments, path)
	return nil
}

func (w *SegmentWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}

// TraceRecord is one line of a scheduler trace.
type TraceRecord struct {
	RunID string `json:"run_id"`
	allocator.TickLogEntry
}

// TraceTicksPerSegment bounds the ticks kept in one trace segment.
const TraceTicksPerSegment = 10000

// TickLogger implements allocator.Sink, writing one compressed line per tick
// under <runDir>/trace.
type TickLogger struct {
	runID string
	w     *SegmentWriter
}

func NewTickLogger(runDir, runID string) *TickLogger {
	return newTickLogger(runDir, runID, TraceTicksPerSegment)
}

func newTickLogger(runDir, runID string, perSegment int) *TickLogger {
	return &TickLogger{runID: runID, w: NewSegmentWriter(filepath.Join(runDir, "trace"), "trace", perSegment)}
}

func (l *TickLogger) WriteTick(e allocator.TickLogEntry) error {
	return l.w.Write(TraceRecord{RunID: l.runID, TickLogEntry: e})
}

func (l *TickLogger) Close() error { return l.w.Close() }

// RunSummary is written once when a run ends.
type RunSummary struct {
	RunID    string          `json:"run_id"`
	Scenario string          `json:"scenario"`
	Ticks    uint64          `json:"ticks"`
	Done     bool            `json:"done"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Stats    allocator.Stats `json:"stats"`
	World    any             `json:"world,omitempty"`
}

// SummaryLogger writes run summaries under <runDir>/runs.
type SummaryLogger struct{ w *SegmentWriter }

func NewSummaryLogger(runDir string) *SummaryLogger {
	return &SummaryLogger{w: NewSegmentWriter(filepath.Join(runDir, "runs"), "runs", 0)}
}

func (l *SummaryLogger) WriteSummary(s RunSummary) error { return l.w.Write(s) }
func (l *SummaryLogger) Close() error                    { return l.w.Close() }

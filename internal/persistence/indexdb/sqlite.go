// Package indexdb keeps a queryable SQLite read model of scheduler runs: one row
// per run, per tick and per scheduler event. Writes go through a single writer
// goroutine; the zstd trace stays the source of truth, so the index drops rows
// instead of stalling the simulation when it falls behind.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"craftbots.ai/internal/sched/allocator"
)

var ErrClosed = errors.New("indexdb: closed")

type SQLiteIndex struct {
	db    *sql.DB
	runID string

	mu     sync.RWMutex
	closed bool
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	dropTick    atomic.Uint64
	dropSummary atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSummary
	reqFlush
)

type req struct {
	kind reqKind

	tick    allocator.TickLogEntry
	summary summaryRow
	done    chan struct{}
}

type summaryRow struct {
	Ticks      uint64
	Done       bool
	FinishedAt string
	StatsJSON  string
}

// Stats counts rows dropped because the writer queue was full.
type Stats struct {
	DropTickTotal    uint64 `json:"drop_tick_total"`
	DropSummaryTotal uint64 `json:"drop_summary_total"`
}

// OpenSQLite opens (creating if needed) the index at path. Rows written through
// the returned index are tagged with runID.
func OpenSQLite(path, runID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		ch:    make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ticks INTEGER,
			done INTEGER,
			finished_at TEXT,
			stats_json TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			events INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			open_tasks INTEGER NOT NULL,
			reservations INTEGER NOT NULL,
			active_mines INTEGER NOT NULL,
			stats_json TEXT NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			actor INTEGER NOT NULL,
			task INTEGER NOT NULL,
			goal INTEGER NOT NULL,
			command TEXT,
			message TEXT,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(run_id, type);`,
		`CREATE INDEX IF NOT EXISTS idx_events_actor_tick ON events(actor, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) RunID() string { return s.runID }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropTickTotal:    s.dropTick.Load(),
		DropSummaryTotal: s.dropSummary.Load(),
	}
}

// enqueue hands r to the writer without blocking. It reports false when the
// queue is full.
func (s *SQLiteIndex) enqueue(r req) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	select {
	case s.ch <- r:
		return true, nil
	default:
		return false, nil
	}
}

// WriteTick implements allocator.Sink.
func (s *SQLiteIndex) WriteTick(entry allocator.TickLogEntry) error {
	ok, err := s.enqueue(req{kind: reqTick, tick: entry})
	if err != nil {
		return err
	}
	if !ok {
		s.dropTick.Add(1)
	}
	return nil
}

// RecordRun stores the run header synchronously. tune is stored as canonical
// JSON together with its sha256 digest.
func (s *SQLiteIndex) RecordRun(scenario string, tune any) error {
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,scenario,tuning_digest,tuning_json,started_at) VALUES(?,?,?,?,?)`,
		s.runID, scenario, hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordSummary queues the end-of-run totals.
func (s *SQLiteIndex) RecordSummary(ticks uint64, done bool, stats allocator.Stats) error {
	b, _ := json.Marshal(stats)
	r := summaryRow{
		Ticks:      ticks,
		Done:       done,
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
		StatsJSON:  string(b),
	}
	ok, err := s.enqueue(req{kind: reqSummary, summary: r})
	if err != nil {
		return err
	}
	if !ok {
		s.dropSummary.Add(1)
	}
	return nil
}

// Flush waits until everything queued so far is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CountEvents returns how many committed events of type typ the run recorded.
func (s *SQLiteIndex) CountEvents(ctx context.Context, typ allocator.EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE run_id=? AND type=?`, s.runID, string(typ)).Scan(&n)
	return n, err
}

// CountTicks returns how many tick rows the run has committed.
func (s *SQLiteIndex) CountTicks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks WHERE run_id=?`, s.runID).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,events,commands,open_tasks,reservations,active_mines,stats_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(run_id,tick,seq,type,actor,task,goal,command,message) VALUES(?,?,?,?,?,?,?,?,?)`)
	updateRun, _ := s.db.Prepare(`UPDATE runs SET ticks=?, done=?, finished_at=?, stats_json=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertEvent, updateRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			statsJSON, _ := json.Marshal(e.Stats)
			commands := 0
			for _, ev := range e.Events {
				if ev.Type == allocator.EventCommand {
					commands++
				}
			}
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(s.runID, int64(e.Tick), len(e.Events), commands,
					e.Stats.OpenTasks, e.Stats.Reservations, e.Stats.ActiveMines, string(statsJSON)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for seq, ev := range e.Events {
				if insertEvent == nil {
					break
				}
				var cmd any
				if ev.Command != nil {
					cmd = ev.Command.String()
				}
				if _, err := tx.Stmt(insertEvent).Exec(s.runID, int64(e.Tick), seq, string(ev.Type),
					int64(ev.Actor), int64(ev.Task), int64(ev.Goal), cmd, ev.Message); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqSummary:
			sm := r.summary
			if updateRun != nil {
				if _, err := tx.Stmt(updateRun).Exec(int64(sm.Ticks), sm.Done, sm.FinishedAt, sm.StatsJSON, s.runID); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

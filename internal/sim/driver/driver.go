// Package driver interleaves scheduling passes with world steps: every cycle the
// allocator observes the world and submits commands, then the world performs
// them and advances one tick.
package driver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sim/api"
)

// World is what the driver steps. *world.World satisfies it.
type World interface {
	api.API
	Step() uint64
	AllTasksCompleted() bool
}

type Config struct {
	// TickRateHz paces Run. Zero runs as fast as possible.
	TickRateHz int
	// MaxTicks stops Run after that many cycles. Zero means no limit.
	MaxTicks uint64
}

var ErrTickLimit = errors.New("driver: tick limit reached")

type Driver struct {
	cfg   Config
	world World
	alloc *allocator.Allocator
	log   *log.Logger

	runID  string
	cycles uint64
}

func New(cfg Config, w World, alloc *allocator.Allocator, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Driver{cfg: cfg, world: w, alloc: alloc, log: logger, runID: NewRunID()}
}

// NewRunID returns a fresh identifier for one simulation run.
func NewRunID() string { return uuid.NewString() }

func (d *Driver) RunID() string { return d.runID }

func (d *Driver) Allocator() *allocator.Allocator { return d.alloc }

func (d *Driver) Cycles() uint64 { return d.cycles }

// StepOnce runs one scheduling pass and one world step, returning the stepped tick.
func (d *Driver) StepOnce() uint64 {
	d.alloc.Tick()
	d.cycles++
	return d.world.Step()
}

// Done reports whether the world has no unfinished task.
func (d *Driver) Done() bool { return d.world.AllTasksCompleted() }

// Run steps until every task is built, the context ends, or MaxTicks is reached.
func (d *Driver) Run(ctx context.Context) error {
	if d.cfg.TickRateHz <= 0 {
		for !d.Done() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.limitReached() {
				return ErrTickLimit
			}
			d.StepOnce()
		}
		d.log.Printf("run %s: all tasks built after %d ticks", d.runID, d.cycles)
		return nil
	}

	ticker := time.NewTicker(time.Second / time.Duration(d.cfg.TickRateHz))
	defer ticker.Stop()
	for !d.Done() {
		if d.limitReached() {
			return ErrTickLimit
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.StepOnce()
		}
	}
	d.log.Printf("run %s: all tasks built after %d ticks", d.runID, d.cycles)
	return nil
}

func (d *Driver) limitReached() bool {
	return d.cfg.MaxTicks > 0 && d.cycles >= d.cfg.MaxTicks
}

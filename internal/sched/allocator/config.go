package allocator

import "craftbots.ai/internal/sim/api"

type Config struct {
	// ParallelTasks caps how many tasks may be claimed and unfinished at once.
	ParallelTasks int
	// StallTimeoutTicks is how long an actor may sit with an empty plan and an
	// open goal before the goal's solver is forced to run again.
	StallTimeoutTicks uint64
	// MaxStallRetries bounds forced re-solves per goal before it is abandoned.
	// Negative means unlimited.
	MaxStallRetries int

	InventorySize int
	// HeavyColour is carried one unit per trip unless IgnoreHeavy is set.
	HeavyColour int
	IgnoreHeavy bool
	// SplitColour needs are split over two Dig goals and its mines are shared.
	SplitColour int
	// TaskBuildingKind is the building kind passed to START_SITE.
	TaskBuildingKind int

	// Verbose logs actor narration in addition to diagnostics.
	Verbose bool
}

const (
	DefaultParallelTasks     = 3
	DefaultStallTimeoutTicks = 500
	DefaultMaxStallRetries   = 8
	DefaultInventorySize     = 3
	DefaultTaskBuildingKind  = 4
)

func (c *Config) applyDefaults() {
	if c.ParallelTasks <= 0 {
		c.ParallelTasks = DefaultParallelTasks
	}
	if c.StallTimeoutTicks == 0 {
		c.StallTimeoutTicks = DefaultStallTimeoutTicks
	}
	if c.MaxStallRetries == 0 {
		c.MaxStallRetries = DefaultMaxStallRetries
	}
	if c.InventorySize <= 0 {
		c.InventorySize = DefaultInventorySize
	}
	if c.HeavyColour <= 0 {
		c.HeavyColour = api.ColourBlack
	}
	if c.SplitColour <= 0 {
		c.SplitColour = api.ColourOrange
	}
	if c.TaskBuildingKind <= 0 {
		c.TaskBuildingKind = DefaultTaskBuildingKind
	}
}

package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sim/world"
)

type Tuning struct {
	Scheduler Scheduler `yaml:"scheduler"`
	World     World     `yaml:"world"`
	Run       Run       `yaml:"run"`
}

type Scheduler struct {
	ParallelTasks     int    `yaml:"parallel_tasks"`
	StallTimeoutTicks uint64 `yaml:"stall_timeout_ticks"`
	MaxStallRetries   int    `yaml:"max_stall_retries"`
	TaskBuildingKind  int    `yaml:"task_building_kind"`
	Verbose           bool   `yaml:"verbose"`
}

// World holds the rules shared by world and scheduler (inventory, heavy and
// split colours) plus world-only speeds and efforts.
type World struct {
	ActorSpeed      float64   `yaml:"actor_speed"`
	DigSpeed        float64   `yaml:"dig_speed"`
	MineEffort      []float64 `yaml:"mine_effort"`
	BuildSpeed      float64   `yaml:"build_speed"`
	BuildEffort     float64   `yaml:"build_effort"`
	InventorySize   int       `yaml:"inventory_size"`
	HeavyColour     int       `yaml:"heavy_colour"`
	NoHeavyLimit    bool      `yaml:"no_heavy_limit"`
	SplitColour     int       `yaml:"split_colour"`
	SplitMinDiggers int       `yaml:"split_min_diggers"`
}

type Run struct {
	TickRateHz int    `yaml:"tick_rate_hz"`
	MaxTicks   uint64 `yaml:"max_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		Scheduler: Scheduler{
			ParallelTasks:     allocator.DefaultParallelTasks,
			StallTimeoutTicks: allocator.DefaultStallTimeoutTicks,
			MaxStallRetries:   allocator.DefaultMaxStallRetries,
			TaskBuildingKind:  allocator.DefaultTaskBuildingKind,
		},
		World: World{
			ActorSpeed:      1,
			DigSpeed:        1,
			MineEffort:      []float64{10, 10, 20, 30, 15},
			BuildSpeed:      1,
			BuildEffort:     5,
			InventorySize:   allocator.DefaultInventorySize,
			HeavyColour:     3,
			SplitColour:     2,
			SplitMinDiggers: 2,
		},
		Run: Run{MaxTicks: 100000},
	}
}

// Load reads a YAML file over Defaults(); keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	w := t.World
	if w.HeavyColour < 0 || w.HeavyColour > 4 {
		return fmt.Errorf("world.heavy_colour %d out of range", w.HeavyColour)
	}
	if w.SplitColour < 0 || w.SplitColour > 4 {
		return fmt.Errorf("world.split_colour %d out of range", w.SplitColour)
	}
	if len(w.MineEffort) != 0 && len(w.MineEffort) != 5 {
		return fmt.Errorf("world.mine_effort needs 5 values, got %d", len(w.MineEffort))
	}
	if t.Scheduler.ParallelTasks < 0 {
		return fmt.Errorf("scheduler.parallel_tasks must not be negative")
	}
	return nil
}

func (t Tuning) AllocatorConfig() allocator.Config {
	return allocator.Config{
		ParallelTasks:     t.Scheduler.ParallelTasks,
		StallTimeoutTicks: t.Scheduler.StallTimeoutTicks,
		MaxStallRetries:   t.Scheduler.MaxStallRetries,
		InventorySize:     t.World.InventorySize,
		HeavyColour:       t.World.HeavyColour,
		IgnoreHeavy:       t.World.NoHeavyLimit,
		SplitColour:       t.World.SplitColour,
		TaskBuildingKind:  t.Scheduler.TaskBuildingKind,
		Verbose:           t.Scheduler.Verbose,
	}
}

func (t Tuning) WorldConfig(id string) world.Config {
	return world.Config{
		ID:              id,
		ActorSpeed:      t.World.ActorSpeed,
		DigSpeed:        t.World.DigSpeed,
		MineEffort:      append([]float64(nil), t.World.MineEffort...),
		BuildSpeed:      t.World.BuildSpeed,
		BuildEffort:     t.World.BuildEffort,
		InventorySize:   t.World.InventorySize,
		HeavyColour:     t.World.HeavyColour,
		NoHeavyLimit:    t.World.NoHeavyLimit,
		SplitColour:     t.World.SplitColour,
		SplitMinDiggers: t.World.SplitMinDiggers,
	}
}

package world

import "craftbots.ai/internal/sim/api"

type Config struct {
	ID string

	// Distance an actor covers per tick.
	ActorSpeed float64
	// Dig progress one actor adds to a mine per tick.
	DigSpeed float64
	// Dig progress needed per produced unit, indexed by colour.
	MineEffort []float64
	// Construction progress one actor adds per tick.
	BuildSpeed float64
	// Progress needed per required resource of a site.
	BuildEffort float64

	InventorySize int
	// HeavyColour resources must be carried alone unless NoHeavyLimit is set.
	HeavyColour  int
	NoHeavyLimit bool
	// Mines of SplitColour only progress with at least SplitMinDiggers actors digging.
	SplitColour     int
	SplitMinDiggers int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.ActorSpeed <= 0 {
		c.ActorSpeed = 1
	}
	if c.DigSpeed <= 0 {
		c.DigSpeed = 1
	}
	if len(c.MineEffort) < api.NumColours {
		def := []float64{10, 10, 20, 30, 15}
		for i := len(c.MineEffort); i < api.NumColours; i++ {
			c.MineEffort = append(c.MineEffort, def[i])
		}
	}
	for i, e := range c.MineEffort {
		if e <= 0 {
			c.MineEffort[i] = 10
		}
	}
	if c.BuildSpeed <= 0 {
		c.BuildSpeed = 1
	}
	if c.BuildEffort <= 0 {
		c.BuildEffort = 5
	}
	if c.InventorySize <= 0 {
		c.InventorySize = 3
	}
	if c.HeavyColour <= 0 {
		c.HeavyColour = api.ColourBlack
	}
	if c.SplitColour <= 0 {
		c.SplitColour = api.ColourOrange
	}
	if c.SplitMinDiggers <= 0 {
		c.SplitMinDiggers = 2
	}
}

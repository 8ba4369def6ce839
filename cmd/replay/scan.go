package main

import (
	"fmt"
	"path/filepath"

	persistlog "craftbots.ai/internal/persistence/log"
	"craftbots.ai/internal/sched/allocator"
)

type scanOptions struct {
	From, To uint64
	Actor    int
	OnEvent  func(line string)
}

type report struct {
	RunID     string
	Entries   int
	FirstTick uint64
	LastTick  uint64

	ByType   map[string]int
	Commands map[int]int
	Stalls   map[int]int
	Final    allocator.Stats
}

// scan reads trace files in order and checks that they form one unbroken run:
// a single run id and consecutive ticks.
func scan(files []string, opts scanOptions) (report, error) {
	rep := report{
		ByType:   map[string]int{},
		Commands: map[int]int{},
		Stalls:   map[int]int{},
	}
	seen := false
	var prev uint64
	for _, path := range files {
		err := persistlog.ReadTrace(path, func(rec persistlog.TraceRecord) error {
			if rep.RunID == "" {
				rep.RunID = rec.RunID
			} else if rec.RunID != rep.RunID {
				return fmt.Errorf("run id changed: %s then %s", rep.RunID, rec.RunID)
			}
			if seen && rec.Tick != prev+1 {
				return fmt.Errorf("tick gap: want=%d got=%d", prev+1, rec.Tick)
			}
			prev = rec.Tick
			seen = true
			rep.Final = rec.Stats

			if rec.Tick < opts.From || (opts.To != 0 && rec.Tick > opts.To) {
				return nil
			}
			if rep.Entries == 0 {
				rep.FirstTick = rec.Tick
			}
			rep.LastTick = rec.Tick
			rep.Entries++
			for _, ev := range rec.Events {
				rep.ByType[string(ev.Type)]++
				switch ev.Type {
				case allocator.EventCommand:
					rep.Commands[int(ev.Actor)]++
				case allocator.EventGoalStalled:
					rep.Stalls[int(ev.Actor)]++
				}
				if opts.OnEvent != nil && int(ev.Actor) == opts.Actor {
					opts.OnEvent(eventLine(ev))
				}
			}
			return nil
		})
		if err != nil {
			return rep, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return rep, nil
}

func eventLine(ev allocator.Event) string {
	s := fmt.Sprintf("t=%d %s", ev.Tick, ev.Type)
	if ev.Task != 0 {
		s += fmt.Sprintf(" task=%d", ev.Task)
	}
	if ev.Goal != 0 {
		s += fmt.Sprintf(" goal=%d", ev.Goal)
	}
	if ev.Command != nil {
		s += " " + ev.Command.String()
	}
	if ev.Message != "" {
		s += " " + ev.Message
	}
	return s
}

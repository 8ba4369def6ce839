package allocator

import (
	"craftbots.ai/internal/sim/api"
)

type EventType string

const (
	EventTaskClaimed    EventType = "TASK_CLAIMED"
	EventTaskFinished   EventType = "TASK_FINISHED"
	EventTaskReissued   EventType = "TASK_REISSUED"
	EventGoalAssigned   EventType = "GOAL_ASSIGNED"
	EventGoalCompleted  EventType = "GOAL_COMPLETED"
	EventGoalStalled    EventType = "GOAL_STALLED"
	EventGoalAbandoned  EventType = "GOAL_ABANDONED"
	EventNoRoute        EventType = "NO_ROUTE"
	EventContentionMiss EventType = "CONTENTION_MISS"
	EventCommand        EventType = "COMMAND"
)

type Event struct {
	Tick    uint64       `json:"tick"`
	Type    EventType    `json:"type"`
	Actor   api.EntityID `json:"actor,omitempty"`
	Task    api.EntityID `json:"task,omitempty"`
	Goal    uint64       `json:"goal,omitempty"`
	Command *api.Command `json:"command,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Stats are cumulative counters plus a few gauges sampled at the end of a tick.
type Stats struct {
	Ticks          uint64 `json:"ticks"`
	TasksClaimed   int    `json:"tasks_claimed"`
	TasksFinished  int    `json:"tasks_finished"`
	TasksReissued  int    `json:"tasks_reissued"`
	GoalsIssued    int    `json:"goals_issued"`
	GoalsCompleted int    `json:"goals_completed"`
	GoalsAbandoned int    `json:"goals_abandoned"`
	Stalls         int    `json:"stalls"`
	NoRoute        int    `json:"no_route"`
	ContentionMiss int    `json:"contention_miss"`
	Commands       int    `json:"commands"`
	SinkErrors     int    `json:"sink_errors"`

	OpenTasks    int `json:"open_tasks"`
	Reservations int `json:"reservations"`
	ActiveMines  int `json:"active_mines"`
}

// TickLogEntry is everything the scheduler did during one tick.
type TickLogEntry struct {
	Tick   uint64  `json:"tick"`
	Events []Event `json:"events,omitempty"`
	Stats  Stats   `json:"stats"`
}

// Sink receives one entry per scheduling tick.
type Sink interface {
	WriteTick(entry TickLogEntry) error
}

type SinkFunc func(entry TickLogEntry) error

func (f SinkFunc) WriteTick(entry TickLogEntry) error { return f(entry) }

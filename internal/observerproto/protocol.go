// Package observerproto defines the messages streamed to live scheduler observers.
package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection; may be re-sent
// to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Events asks for the tick's scheduler events in addition to counters.
	Events bool `json:"events,omitempty"`
	// Actor narrows the event list to one actor. Zero means all actors.
	Actor int64 `json:"actor,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`
	Stats           Stats  `json:"stats"`
}

// Server -> Client. Sent once per scheduling tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`

	Stats  Stats       `json:"stats"`
	Events []EventLine `json:"events,omitempty"`
}

type Stats struct {
	OpenTasks      int `json:"open_tasks"`
	TasksFinished  int `json:"tasks_finished"`
	Reservations   int `json:"reservations"`
	ActiveMines    int `json:"active_mines"`
	GoalsCompleted int `json:"goals_completed"`
	GoalsAbandoned int `json:"goals_abandoned"`
	Stalls         int `json:"stalls"`
	Commands       int `json:"commands"`
}

type EventLine struct {
	Type    string `json:"type"`
	Actor   int64  `json:"actor,omitempty"`
	Task    int64  `json:"task,omitempty"`
	Goal    uint64 `json:"goal,omitempty"`
	Command string `json:"command,omitempty"`
	Message string `json:"message,omitempty"`
}

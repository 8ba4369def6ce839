// Package api is the contract between the scheduler and the world simulation:
// entity ids, observable field names, actor states and the primitive commands an
// agent may submit. It has no dependencies so both sides can import it.
package api

// EntityID identifies any world entity (node, edge, actor, mine, resource, site, task).
type EntityID int

// NoEntity is the zero value for "no entity".
const NoEntity EntityID = -1

// Resource colours. The index doubles as the position in needed/deposited vectors.
const (
	ColourRed    = 0
	ColourBlue   = 1
	ColourOrange = 2
	ColourBlack  = 3
	ColourGreen  = 4

	NumColours = 5
)

var colourNames = [NumColours]string{"Red", "Blue", "Orange", "Black", "Green"}

func ColourName(c int) string {
	if c < 0 || c >= NumColours {
		return "Unknown"
	}
	return colourNames[c]
}

// Actor states as reported by the "state" field.
const (
	StateIdle         = 0
	StateMoving       = 1
	StateDigging      = 2
	StateConstructing = 3
)

// Field names readable through Observer.Field.
const (
	// Shared.
	FieldID   = "id"
	FieldNode = "node"

	// Node.
	FieldEdges     = "edges"
	FieldResources = "resources"
	FieldMines     = "mines"
	FieldSites     = "sites"
	FieldActors    = "actors"
	FieldBuildings = "buildings"

	// Edge.
	FieldLength = "length"
	FieldNodes  = "nodes"

	// Actor. "node" is the last node reached; "resources" is the inventory.
	FieldState    = "state"
	FieldTarget   = "target"
	FieldProgress = "progress"

	// Resource / mine.
	FieldColour = "colour"
	FieldHolder = "holder"

	// Site / task.
	FieldTask               = "task"
	FieldBuildingType       = "building_type"
	FieldNeededResources    = "needed_resources"
	FieldDepositedResources = "deposited_resources"
	FieldProject            = "project"
	FieldCompleted          = "completed"
)

// Observer reads the world as visible at the start of the current tick.
type Observer interface {
	// Field returns a single attribute of an entity, or ok=false if the entity
	// is unknown or has no such field.
	Field(id EntityID, name string) (v any, ok bool)
	// Tick is the current world tick.
	Tick() uint64
	// Tasks lists all task ids in creation order.
	Tasks() []EntityID
	// Actors lists all actor ids in creation order.
	Actors() []EntityID
}

// Submitter queues primitive commands. Commands are performed by the world on its
// next step; there is no synchronous result, callers re-observe to confirm effect.
type Submitter interface {
	Submit(cmd Command)
}

// API is the full collaborator surface used by the scheduler.
type API interface {
	Observer
	Submitter
}

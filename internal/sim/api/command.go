package api

import "fmt"

type Kind string

const (
	KindMoveTo           Kind = "MOVE_TO"
	KindPickUpResource   Kind = "PICK_UP_RESOURCE"
	KindDropResource     Kind = "DROP_RESOURCE"
	KindDropAllResources Kind = "DROP_ALL_RESOURCES"
	KindDigAt            Kind = "DIG_AT"
	KindStartSite        Kind = "START_SITE"
	KindConstructAt      Kind = "CONSTRUCT_AT"
	KindDepositResources Kind = "DEPOSIT_RESOURCES"
	KindCancelAction     Kind = "CANCEL_ACTION"
)

// Command is one primitive operation. Only the fields relevant to Kind are set.
type Command struct {
	Kind  Kind     `json:"kind"`
	Actor EntityID `json:"actor"`

	// MOVE_TO
	Node EntityID `json:"node,omitempty"`
	// PICK_UP_RESOURCE / DROP_RESOURCE / DEPOSIT_RESOURCES
	Resource EntityID `json:"resource,omitempty"`
	// DIG_AT
	Mine EntityID `json:"mine,omitempty"`
	// CONSTRUCT_AT / DEPOSIT_RESOURCES
	Site EntityID `json:"site,omitempty"`
	// START_SITE
	BuildingKind int      `json:"building_kind,omitempty"`
	Task         EntityID `json:"task,omitempty"`
}

// IsLengthy reports whether a command keeps the actor busy across ticks. The world
// reports completion by returning the actor to StateIdle.
func IsLengthy(k Kind) bool {
	switch k {
	case KindMoveTo, KindDigAt, KindConstructAt:
		return true
	default:
		return false
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindMoveTo:
		return fmt.Sprintf("%s(%d -> node %d)", c.Kind, c.Actor, c.Node)
	case KindPickUpResource, KindDropResource:
		return fmt.Sprintf("%s(%d, resource %d)", c.Kind, c.Actor, c.Resource)
	case KindDigAt:
		return fmt.Sprintf("%s(%d, mine %d)", c.Kind, c.Actor, c.Mine)
	case KindStartSite:
		return fmt.Sprintf("%s(%d, kind %d, task %d)", c.Kind, c.Actor, c.BuildingKind, c.Task)
	case KindConstructAt:
		return fmt.Sprintf("%s(%d, site %d)", c.Kind, c.Actor, c.Site)
	case KindDepositResources:
		return fmt.Sprintf("%s(%d, site %d, resource %d)", c.Kind, c.Actor, c.Site, c.Resource)
	default:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Actor)
	}
}

func MoveTo(actor, node EntityID) Command {
	return Command{Kind: KindMoveTo, Actor: actor, Node: node}
}

func PickUpResource(actor, resource EntityID) Command {
	return Command{Kind: KindPickUpResource, Actor: actor, Resource: resource}
}

func DropResource(actor, resource EntityID) Command {
	return Command{Kind: KindDropResource, Actor: actor, Resource: resource}
}

func DropAllResources(actor EntityID) Command {
	return Command{Kind: KindDropAllResources, Actor: actor}
}

func DigAt(actor, mine EntityID) Command {
	return Command{Kind: KindDigAt, Actor: actor, Mine: mine}
}

func StartSite(actor EntityID, buildingKind int, task EntityID) Command {
	return Command{Kind: KindStartSite, Actor: actor, BuildingKind: buildingKind, Task: task}
}

func ConstructAt(actor, site EntityID) Command {
	return Command{Kind: KindConstructAt, Actor: actor, Site: site}
}

func DepositResources(actor, site, resource EntityID) Command {
	return Command{Kind: KindDepositResources, Actor: actor, Site: site, Resource: resource}
}

func CancelAction(actor EntityID) Command {
	return Command{Kind: KindCancelAction, Actor: actor}
}

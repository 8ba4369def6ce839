// Package goals defines the scheduler's unit of work and how tasks are broken
// into goals and spread over actors.
package goals

import (
	"fmt"
	"sync/atomic"

	"craftbots.ai/internal/sim/api"
)

type Kind int

const (
	KindDig Kind = iota
	KindDeliver
	KindFinishSite
)

func (k Kind) String() string {
	switch k {
	case KindDig:
		return "Dig"
	case KindDeliver:
		return "Deliver"
	case KindFinishSite:
		return "FinishSite"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Params is the closed set of goal parameter types: Dig, Deliver, FinishSite.
type Params interface {
	Kind() Kind
	isParams()
}

type Dig struct {
	Amount int
	Colour int
}

type Deliver struct {
	Amount int
	Colour int
	Node   api.EntityID
}

type FinishSite struct {
	Node api.EntityID
}

func (Dig) Kind() Kind        { return KindDig }
func (Deliver) Kind() Kind    { return KindDeliver }
func (FinishSite) Kind() Kind { return KindFinishSite }

func (Dig) isParams()        {}
func (Deliver) isParams()    {}
func (FinishSite) isParams() {}

type Goal struct {
	ID     uint64
	Task   api.EntityID
	Params Params
	// Actor is api.NoEntity until the goal is popped by an actor.
	Actor     api.EntityID
	Completed bool
	// Abandoned is set together with Completed when the stall-retry budget ran out.
	Abandoned bool
	// Retries counts stall-forced re-solves.
	Retries int
}

func New(id uint64, task api.EntityID, p Params) *Goal {
	return &Goal{ID: id, Task: task, Params: p, Actor: api.NoEntity}
}

func (g *Goal) Kind() Kind { return g.Params.Kind() }

func (g *Goal) String() string {
	var params string
	switch p := g.Params.(type) {
	case Dig:
		params = fmt.Sprintf("%d %s", p.Amount, api.ColourName(p.Colour))
	case Deliver:
		params = fmt.Sprintf("%d %s -> node %d", p.Amount, api.ColourName(p.Colour), p.Node)
	case FinishSite:
		params = fmt.Sprintf("node %d", p.Node)
	}
	return fmt.Sprintf("Goal(%d, %s, [%s], actor=%d, task=%d)", g.ID, g.Kind(), params, g.Actor, g.Task)
}

// Counter issues goal ids. Ids are never reused.
type Counter struct {
	next atomic.Uint64
}

func (c *Counter) Next() uint64 {
	return c.next.Add(1) - 1
}

// Issued is the number of ids handed out so far.
func (c *Counter) Issued() uint64 { return c.next.Load() }

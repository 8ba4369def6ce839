package goals

import "craftbots.ai/internal/sim/api"

// TaskSpec is the part of a world task decomposition needs.
type TaskSpec struct {
	ID     api.EntityID
	Node   api.EntityID
	Needed []int
}

// Decompose turns tasks into goals, per task in this order: one Dig per needed
// colour (splitColour is split into two Digs so two actors can mine it together),
// one Deliver per needed colour, then a single FinishSite. A task that needs
// nothing yields no goals. Ids come from next, in emission order.
func Decompose(next func() uint64, tasks []TaskSpec, splitColour int) []*Goal {
	var out []*Goal
	for _, t := range tasks {
		total := 0
		for _, n := range t.Needed {
			if n > 0 {
				total += n
			}
		}
		if total == 0 {
			continue
		}
		for colour, n := range t.Needed {
			if n <= 0 {
				continue
			}
			if colour == splitColour && n > 1 {
				out = append(out, New(next(), t.ID, Dig{Amount: n - n/2, Colour: colour}))
				out = append(out, New(next(), t.ID, Dig{Amount: n / 2, Colour: colour}))
				continue
			}
			out = append(out, New(next(), t.ID, Dig{Amount: n, Colour: colour}))
		}
		for colour, n := range t.Needed {
			if n <= 0 {
				continue
			}
			out = append(out, New(next(), t.ID, Deliver{Amount: n, Colour: colour, Node: t.Node}))
		}
		out = append(out, New(next(), t.ID, FinishSite{Node: t.Node}))
	}
	return out
}

// Distribute deals goals onto the queues round-robin, starting at the first
// queue, whatever the queues already hold.
func Distribute(gs []*Goal, queues []*Queue) {
	if len(queues) == 0 {
		return
	}
	for i, g := range gs {
		queues[i%len(queues)].PushBack(g)
	}
}

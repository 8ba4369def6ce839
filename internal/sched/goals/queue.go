package goals

// Queue is a FIFO of goals with the few out-of-order operations the scheduler
// needs for reprioritisation.
type Queue struct {
	items []*Goal
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) PushBack(g *Goal) { q.items = append(q.items, g) }

func (q *Queue) PushFront(g *Goal) {
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = g
}

func (q *Queue) PopFront() (*Goal, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	g := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return g, true
}

func (q *Queue) Peek() (*Goal, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Remove deletes g (by identity) and reports whether it was present.
func (q *Queue) Remove(g *Goal) bool {
	for i, it := range q.items {
		if it == g {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// MoveToFront moves g to the head of the queue, inserting it if absent.
func (q *Queue) MoveToFront(g *Goal) {
	q.Remove(g)
	q.PushFront(g)
}

// Find returns the first goal satisfying pred.
func (q *Queue) Find(pred func(*Goal) bool) (*Goal, bool) {
	for _, g := range q.items {
		if pred(g) {
			return g, true
		}
	}
	return nil, false
}

// Items returns a copy of the queued goals, head first.
func (q *Queue) Items() []*Goal {
	return append([]*Goal(nil), q.items...)
}

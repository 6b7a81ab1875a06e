package session

import "sync"

// StateCell holds the session's currently published State. One writer
// (the session worker, plus terminal writes from Stop) updates it; any
// number of readers may poll Load or watch via Subscribe. Subscribers
// see the latest value only: a burst of updates overwrites the
// undelivered one, never blocking the writer. Once a terminal value is
// published, further writes are dropped.
type StateCell struct {
	mu   sync.Mutex
	cur  State
	subs map[int]chan State
	next int
}

// NewStateCell starts a cell in the Idle state.
func NewStateCell() *StateCell {
	return &StateCell{
		cur:  State{Phase: PhaseIdle},
		subs: make(map[int]chan State),
	}
}

// Load returns the current state.
func (c *StateCell) Load() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Subscribe registers a watcher. The returned channel has capacity one
// and is primed with the current state; calling cancel detaches the
// watcher and closes the channel.
func (c *StateCell) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.next
	c.next++
	ch := make(chan State, 1)
	ch <- c.cur
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// set publishes s and reports whether the write took effect. Writes
// after a terminal state are dropped. The stale undelivered value, if
// any, is drained before sending so the send cannot block: only set
// fills subscriber channels, and never outside the cell lock.
func (c *StateCell) set(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur.Terminal() {
		return false
	}
	c.cur = s
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	return true
}

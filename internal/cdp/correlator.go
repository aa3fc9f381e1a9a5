package cdp

import "sync"

// commandResult is what a waiter receives: a response or a failure.
type commandResult struct {
	resp *Response
	err  error
}

// correlator assigns command ids and tracks one waiter per in-flight id.
type correlator struct {
	mu      sync.Mutex
	nextID  int64
	waiters map[int64]chan commandResult
}

func newCorrelator() *correlator {
	return &correlator{
		nextID:  1,
		waiters: make(map[int64]chan commandResult),
	}
}

// reserve takes the next id and registers its waiter. The waiter channel is
// buffered so resolution never blocks the receive loop.
func (c *correlator) reserve() (int64, <-chan commandResult) {
	ch := make(chan commandResult, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.waiters[id] = ch
	c.mu.Unlock()

	return id, ch
}

// resolve hands resp to its waiter and forgets the id.
// Returns false if nobody is waiting for resp.ID.
func (c *correlator) resolve(resp *Response) bool {
	c.mu.Lock()
	ch, ok := c.waiters[resp.ID]
	if ok {
		delete(c.waiters, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- commandResult{resp: resp}
	return true
}

// remove drops the waiter for id, if still present.
func (c *correlator) remove(id int64) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}

// failAll fails every outstanding waiter with err.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = make(map[int64]chan commandResult)
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- commandResult{err: err}
	}
}

func (c *correlator) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextID
}

func (c *correlator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

package cdp

import (
	"sync"

	"go.uber.org/zap"
)

// eventQueue is an unbounded FIFO between the receive loop and the dispatch
// worker. push never blocks, so a slow listener cannot stall responses.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	ready  chan struct{}

	// warnAt is the backlog length logged as a warning each time it is
	// crossed.
	warnAt int
	log    *zap.Logger
}

func newEventQueue(warnAt int, log *zap.Logger) *eventQueue {
	return &eventQueue{
		items:  make([]Event, 0, min(warnAt, 64)),
		ready:  make(chan struct{}, 1),
		warnAt: warnAt,
		log:    log,
	}
}

// push appends evt. Events pushed after close are dropped.
func (q *eventQueue) push(evt Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, evt)
	n := len(q.items)
	q.mu.Unlock()

	if n == q.warnAt {
		q.log.Warn("event listeners falling behind", zap.Int("backlog", n))
	}
	q.signal()
}

// pop returns the oldest event, waiting for one if the queue is empty.
// It returns false once the queue is closed and drained.
func (q *eventQueue) pop() (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			evt := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = q.items[:0:0]
			}
			q.mu.Unlock()
			return evt, true
		}
		if q.closed {
			q.mu.Unlock()
			return Event{}, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

// close lets pop drain the remaining events and then report false.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

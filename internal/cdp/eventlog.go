package cdp

import "sync"

// EventLog is a thread-safe, append-only log.
// Entries are never mutated or removed once appended.
type EventLog[T any] struct {
	items []T
	mu    sync.RWMutex
}

// NewEventLog creates an empty log.
func NewEventLog[T any]() *EventLog[T] {
	return &EventLog[T]{}
}

// Append adds an item to the end of the log.
func (l *EventLog[T]) Append(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
}

// All returns all items, oldest first.
// The returned slice is a copy; appends made afterwards are not visible in it.
func (l *EventLog[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.items) == 0 {
		return nil
	}
	result := make([]T, len(l.items))
	copy(result, l.items)
	return result
}

// Len returns the number of items in the log.
func (l *EventLog[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

package cdp

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Event names recorded regardless of registered listeners.
const (
	EventRequestWillBeSent = "Network.requestWillBeSent"
	EventDialogOpening     = "Page.javascriptDialogOpening"
	EventDialogClosed      = "Page.javascriptDialogClosed"
)

// Listener receives events it was registered for.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(Event)

// HandleEvent calls f(evt).
func (f ListenerFunc) HandleEvent(evt Event) { f(evt) }

// Callback is a listener registration.
type Callback struct {
	EventName string
	Listener  Listener
	// Temporary callbacks are removed after their first invocation.
	Temporary bool
}

// dispatcher owns the listener registry and the always-on recorders.
type dispatcher struct {
	log *zap.Logger

	mu        sync.Mutex
	nextID    int64
	callbacks map[int64]Callback
	dialog    *Event

	network *EventLog[Event]
}

func newDispatcher(log *zap.Logger) *dispatcher {
	return &dispatcher{
		log:       log,
		nextID:    1,
		callbacks: make(map[int64]Callback),
		network:   NewEventLog[Event](),
	}
}

func (d *dispatcher) register(eventName string, l Listener, temporary bool) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.callbacks[id] = Callback{EventName: eventName, Listener: l, Temporary: temporary}
	return id
}

func (d *dispatcher) remove(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.callbacks[id]; !ok {
		return false
	}
	delete(d.callbacks, id)
	return true
}

func (d *dispatcher) clear() {
	d.mu.Lock()
	d.callbacks = make(map[int64]Callback)
	d.mu.Unlock()
}

func (d *dispatcher) snapshot() map[int64]Callback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.callbacks)
}

func (d *dispatcher) next() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextID
}

// record runs before listener dispatch for every event frame.
func (d *dispatcher) record(evt Event) {
	switch evt.Method {
	case EventRequestWillBeSent:
		d.network.Append(Event{Method: evt.Method, Params: evt.Clone().Params})
	case EventDialogOpening:
		c := evt.Clone()
		d.mu.Lock()
		d.dialog = &c
		d.mu.Unlock()
	case EventDialogClosed:
		d.mu.Lock()
		d.dialog = nil
		d.mu.Unlock()
	}
}

func (d *dispatcher) currentDialog() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog == nil {
		return Event{}, false
	}
	return *d.dialog, true
}

// matching returns the callbacks registered for method, by ascending id.
func (d *dispatcher) matching(method string) []registration {
	d.mu.Lock()
	defer d.mu.Unlock()

	var regs []registration
	for id, cb := range d.callbacks {
		if cb.EventName == method {
			regs = append(regs, registration{id: id, Callback: cb})
		}
	}
	slices.SortFunc(regs, func(a, b registration) int { return cmp.Compare(a.id, b.id) })
	return regs
}

type registration struct {
	id int64
	Callback
}

// dispatch invokes the listeners registered for evt.Method when the pass
// starts. Registry changes made by listeners apply from the next event.
func (d *dispatcher) dispatch(evt Event) {
	for _, reg := range d.matching(evt.Method) {
		d.invoke(reg.id, reg.Callback, evt)

		if reg.Temporary {
			d.remove(reg.id)
		}
	}
}

func (d *dispatcher) invoke(id int64, cb Callback, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event listener panicked",
				zap.Int64("callback", id),
				zap.String("method", evt.Method),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	cb.Listener.HandleEvent(evt)
}

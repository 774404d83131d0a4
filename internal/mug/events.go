package mug

import (
	"sync"

	"github.com/singerbj/ember-mug/internal/ring"
)

// EventKind identifies an event on the bus.
type EventKind int

const (
	EventScanning EventKind = iota
	EventDeviceFound
	EventConnected
	EventDisconnected
	EventStateChange
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventScanning:
		return "scanning"
	case EventDeviceFound:
		return "device-found"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventStateChange:
		return "state-change"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single broadcast. Only the fields relevant to Kind are set:
// Scanning for EventScanning, DeviceName for EventDeviceFound, State for
// EventStateChange, Err for EventError.
type Event struct {
	Kind       EventKind
	Scanning   bool
	DeviceName string
	State      DeviceState
	Err        error
}

// subscriberBuffer bounds each subscriber's backlog. A subscriber that falls
// behind loses the oldest events first; state-change consumers only care
// about the latest snapshot anyway.
const subscriberBuffer = 64

// Emitter fans events out to subscribers through per-subscriber ring
// channels, so a stalled consumer can never block the manager.
type Emitter struct {
	mu   sync.Mutex
	subs map[int]*ring.Channel[Event]
	next int
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]*ring.Channel[Event])}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription and closes its channel; it is safe to call more than once.
func (e *Emitter) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.next
	e.next++
	rc := ring.NewChannel[Event](subscriberBuffer)
	e.subs[id] = rc

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subs[id]; ok {
				delete(e.subs, id)
				sub.Close()
			}
		})
	}
	return rc.C(), cancel
}

// Emit broadcasts ev to every subscriber without blocking.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		sub.Send(ev)
	}
}

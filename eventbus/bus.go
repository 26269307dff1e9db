// Package eventbus implements the in-process event channel the run
// orchestrator reports to.
//
// The Bus stamps every event with a monotonically increasing sequence number
// and delivers it synchronously to subscribed handlers, in registration
// order. Delivery happens under the bus lock so events sent from concurrent
// scenarios are still seen by every handler in one total order. Handlers
// must therefore not send events themselves.
package eventbus

import (
	"sync"
	"time"

	"github.com/pithecene-io/verdict/types"
)

// Handler receives events from the bus.
type Handler interface {
	Handle(env types.Envelope)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(env types.Envelope)

// Handle calls f(env).
func (f HandlerFunc) Handle(env types.Envelope) { f(env) }

// Stats counts the events a bus has delivered.
type Stats struct {
	// TotalEvents is the number of events sent.
	TotalEvents int64
	// ByType maps event types to counts.
	ByType map[types.EventType]int64
}

// Bus is an ordered, synchronous event channel scoped to one run.
type Bus struct {
	runID string
	clock Clock

	mu      sync.Mutex
	seq     int64
	byType  map[types.EventType][]Handler
	all     []Handler
	byTypeN map[types.EventType]int64
}

// New creates a bus for the given run. A nil clock means SystemClock.
func New(runID string, clock Clock) *Bus {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Bus{
		runID:   runID,
		clock:   clock,
		byType:  make(map[types.EventType][]Handler),
		byTypeN: make(map[types.EventType]int64),
	}
}

// Instant returns the current instant of the bus clock. Callers use it to
// timestamp the events they are about to send.
func (b *Bus) Instant() time.Time {
	return b.clock.Now()
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t types.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[t] = append(b.byType[t], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Send delivers ev to all matching handlers.
func (b *Bus) Send(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatch(ev)
}

// SendAll delivers events in order. No other sender can interleave.
func (b *Bus) SendAll(events []types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range events {
		b.dispatch(ev)
	}
}

// dispatch must be called with b.mu held.
func (b *Bus) dispatch(ev types.Event) {
	b.seq++
	b.byTypeN[ev.Type()]++

	env := types.NewEnvelope(b.runID, b.seq, ev)
	for _, h := range b.byType[ev.Type()] {
		h.Handle(env)
	}
	for _, h := range b.all {
		h.Handle(env)
	}
}

// Stats returns a snapshot of delivery counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	byType := make(map[types.EventType]int64, len(b.byTypeN))
	for k, v := range b.byTypeN {
		byType[k] = v
	}
	return Stats{TotalEvents: b.seq, ByType: byType}
}

package eventbus

import (
	"sync"

	"github.com/pithecene-io/verdict/types"
)

// Recorder keeps every envelope it receives, in delivery order.
type Recorder struct {
	mu        sync.Mutex
	envelopes []types.Envelope
}

// Handle records env.
func (r *Recorder) Handle(env types.Envelope) {
	r.mu.Lock()
	r.envelopes = append(r.envelopes, env)
	r.mu.Unlock()
}

// Envelopes returns a copy of the recorded envelopes.
func (r *Recorder) Envelopes() []types.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Envelope, len(r.envelopes))
	copy(out, r.envelopes)
	return out
}

// Types returns the recorded event types, in order.
func (r *Recorder) Types() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, len(r.envelopes))
	for i, env := range r.envelopes {
		out[i] = env.Type
	}
	return out
}

// Events returns the recorded payloads of type T, in order.
func Events[T types.Event](r *Recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, env := range r.envelopes {
		if ev, ok := env.Payload.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}

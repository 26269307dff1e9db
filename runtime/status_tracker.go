package runtime

import (
	"sync"

	"github.com/pithecene-io/verdict/types"
)

// StatusTracker is an ExitStatus computed from the test cases that finished
// during a run. It keeps the worst status seen, starting from PASSED.
//
// Register Handle for types.EventTypeTestCaseFinished on the run's bus.
type StatusTracker struct {
	strict bool

	mu     sync.Mutex
	status types.Status
	counts map[types.Status]int
}

// NewStatusTracker creates a tracker. In strict mode pending and undefined
// test cases make the run unsuccessful.
func NewStatusTracker(strict bool) *StatusTracker {
	return &StatusTracker{
		strict: strict,
		status: types.StatusPassed,
		counts: make(map[types.Status]int),
	}
}

// Handle records a finished test case. Other events are ignored.
func (t *StatusTracker) Handle(env types.Envelope) {
	ev, ok := env.Payload.(*types.TestCaseFinished)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = t.status.Worse(ev.Result.Status)
	t.counts[ev.Result.Status]++
}

// Status returns the worst status recorded so far.
func (t *StatusTracker) Status() types.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// IsSuccess reports whether the worst status counts as success.
func (t *StatusTracker) IsSuccess() bool {
	return t.Status().IsOK(t.strict)
}

// Counts returns how many test cases finished with each status.
func (t *StatusTracker) Counts() map[types.Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[types.Status]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

var _ ExitStatus = (*StatusTracker)(nil)

package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/verdict/types"
)

// ErrNoRunner is collected when a RunnerSupplier returns neither a runner
// nor an error.
var ErrNoRunner = errors.New("runner supplier returned no runner")

// EventBus is the channel lifecycle events are sent to.
// *eventbus.Bus satisfies it.
type EventBus interface {
	Send(ev types.Event)
	SendAll(events []types.Event)
	// Instant returns the instant the next event should carry.
	Instant() time.Time
}

// Runner executes hooks and test cases.
type Runner interface {
	RunBeforeAllHooks(ctx context.Context) error
	RunAfterAllHooks(ctx context.Context) error
	RunTestCase(ctx context.Context, tc TestCase) error
}

// RunnerSupplier provides the runner for the calling goroutine.
type RunnerSupplier interface {
	Get(ctx context.Context) (Runner, error)
}

// RunnerSupplierFunc adapts a function to RunnerSupplier.
type RunnerSupplierFunc func(ctx context.Context) (Runner, error)

// Get calls f(ctx).
func (f RunnerSupplierFunc) Get(ctx context.Context) (Runner, error) { return f(ctx) }

// ExitStatus is the baseline outcome of a run, consulted only when no
// failure was collected.
type ExitStatus interface {
	Status() types.Status
	IsSuccess() bool
}

// Feature is a parsed feature file.
type Feature interface {
	URI() string
	Source() string
	Parsed() any
	// ParseEvents returns feature-scoped events, replayed verbatim.
	ParseEvents() []types.Event
}

// TestCase is one scenario, ready to run.
type TestCase interface {
	URI() string
	Name() string
	Run(ctx context.Context) error
}

// PlannedFeature is a feature and the test cases compiled from it.
type PlannedFeature struct {
	Feature   Feature
	TestCases []TestCase
}

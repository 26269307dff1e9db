// Package runner provides the Runner the orchestrator hands hooks and test
// cases to, and a supplier that shares one runner across a run.
package runner

import (
	"context"

	"github.com/pithecene-io/verdict/failure"
	"github.com/pithecene-io/verdict/log"
	"github.com/pithecene-io/verdict/runtime"
	"github.com/pithecene-io/verdict/types"
)

// Hook is a named before-all or after-all action.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config configures a Runner.
type Config struct {
	// Bus receives test case events. Required.
	Bus runtime.EventBus
	// BeforeAll hooks run in order before any test case.
	BeforeAll []Hook
	// AfterAll hooks run in reverse order after every test case.
	AfterAll []Hook
	// Logger for hook and test case progress. If nil, logging is disabled.
	Logger *log.Logger
}

// Runner executes hooks and test cases, reporting test cases on the bus.
type Runner struct {
	bus       runtime.EventBus
	beforeAll []Hook
	afterAll  []Hook
	logger    *log.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{
		bus:       cfg.Bus,
		beforeAll: cfg.BeforeAll,
		afterAll:  cfg.AfterAll,
		logger:    logger.With(map[string]any{"component": "runner"}),
	}
}

// RunBeforeAllHooks runs the before-all hooks in registration order and
// stops at the first one that fails.
func (r *Runner) RunBeforeAllHooks(ctx context.Context) error {
	var c failure.Collector
	for _, h := range r.beforeAll {
		failed, err := r.runHook(ctx, &c, "before_all", h)
		if err != nil {
			return err
		}
		if failed {
			break
		}
	}
	return c.Err()
}

// RunAfterAllHooks runs every after-all hook in reverse registration order,
// whatever the earlier ones did, and returns their collected failure.
func (r *Runner) RunAfterAllHooks(ctx context.Context) error {
	var c failure.Collector
	for i := len(r.afterAll) - 1; i >= 0; i-- {
		if _, err := r.runHook(ctx, &c, "after_all", r.afterAll[i]); err != nil {
			return err
		}
	}
	return c.Err()
}

// runHook runs h through c. It reports whether the hook failed, and returns
// an unrecoverable error as-is.
func (r *Runner) runHook(ctx context.Context, c *failure.Collector, phase string, h Hook) (bool, error) {
	r.logger.Debug("running hook", map[string]any{"phase": phase, "hook": h.Name})

	failed := true
	err := c.Execute(func() error {
		if err := h.Fn(ctx); err != nil {
			return err
		}
		failed = false
		return nil
	})
	if err != nil {
		return true, err
	}
	if failed {
		r.logger.Warn("hook failed", map[string]any{"phase": phase, "hook": h.Name})
	}
	return failed, nil
}

// RunTestCase runs tc between TestCaseStarted and TestCaseFinished events.
//
// Only failures are returned: a skipped or pending test case is reported
// through its status alone. Unrecoverable errors are returned as-is,
// without a TestCaseFinished event.
func (r *Runner) RunTestCase(ctx context.Context, tc runtime.TestCase) error {
	start := r.bus.Instant()
	r.bus.Send(&types.TestCaseStarted{At: start, URI: tc.URI(), Name: tc.Name()})

	var c failure.Collector
	if err := c.Execute(func() error { return tc.Run(ctx) }); err != nil {
		return err
	}

	err := c.Err()
	status := StatusOf(err)
	end := r.bus.Instant()
	r.bus.Send(&types.TestCaseFinished{
		At:   end,
		URI:  tc.URI(),
		Name: tc.Name(),
		Result: types.Result{
			Status:   status,
			Duration: end.Sub(start),
			Err:      err,
			Trace:    failure.Trace(err),
		},
	})

	r.logger.Debug("test case finished", map[string]any{
		"uri":    tc.URI(),
		"name":   tc.Name(),
		"status": string(status),
	})

	if status != types.StatusFailed {
		return nil
	}
	return err
}

// StatusOf maps a test case error to its status.
func StatusOf(err error) types.Status {
	switch {
	case err == nil:
		return types.StatusPassed
	case failure.IsPending(err):
		return types.StatusPending
	case failure.IsAborted(err):
		return types.StatusSkipped
	default:
		return types.StatusFailed
	}
}

var _ runtime.Runner = (*Runner)(nil)

// Package runtime drives the lifecycle of a test run: it sequences
// before-all hooks, features, test cases and after-all hooks around one
// shared failure collector and reports every step on the event bus.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/verdict/failure"
	"github.com/pithecene-io/verdict/log"
	"github.com/pithecene-io/verdict/metrics"
	"github.com/pithecene-io/verdict/types"
)

// State is the lifecycle state of a run.
type State int

// Run states. A run moves through them once, in order.
const (
	StateNotStarted State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunConfig configures a single run.
type RunConfig struct {
	// Bus receives the lifecycle events. Required.
	Bus EventBus
	// Runners supplies runners for hooks and test cases. Required.
	Runners RunnerSupplier
	// ExitStatus is the baseline outcome used when nothing failed. Required.
	ExitStatus ExitStatus
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Logger overrides the default stderr logger.
	Logger *log.Logger
	// Collector is the metrics collector for this run.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// Getenv is the environment lookup used for run metadata.
	// If nil, uses os.Getenv.
	Getenv func(string) string
}

// RunResult represents the result of a run.
type RunResult struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Status is FAILED when a failure was collected, else the baseline status.
	Status types.Status
	// Success is true when nothing failed and the baseline status succeeded.
	Success bool
	// Duration is the time between run start and run finish.
	Duration time.Duration
	// Err is the collected failure, if any.
	Err error
	// Trace is the rendered form of Err.
	Trace string
}

// RunOrchestrator orchestrates a single run.
//
// StartTestRun must be called once before any hook, feature or test case
// operation, and FinishTestRun once after them. Violating that order is a
// programming error and panics. RunTestCase may be called concurrently.
type RunOrchestrator struct {
	config   *RunConfig
	logger   *log.Logger
	failures failure.Rethrowing

	mu        sync.Mutex
	state     State
	startTime time.Time
}

// NewRunOrchestrator creates a new run orchestrator.
// Returns error if the configuration is incomplete or run metadata is invalid.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if config == nil {
		return nil, errors.New("run config is required")
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}
	switch {
	case config.Bus == nil:
		return nil, errors.New("event bus is required")
	case config.Runners == nil:
		return nil, errors.New("runner supplier is required")
	case config.ExitStatus == nil:
		return nil, errors.New("exit status is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.RunMeta)
	}

	return &RunOrchestrator{
		config: config,
		logger: logger,
	}, nil
}

// State returns the current lifecycle state.
func (r *RunOrchestrator) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure collected so far, or nil.
func (r *RunOrchestrator) Err() error {
	return r.failures.Err()
}

// StartTestRun emits the run metadata and the run-started event, and
// records the start instant.
func (r *RunOrchestrator) StartTestRun() {
	r.mu.Lock()
	if r.state != StateNotStarted {
		state := r.state
		r.mu.Unlock()
		panic(fmt.Sprintf("runtime: StartTestRun called in state %s", state))
	}
	r.state = StateRunning
	r.mu.Unlock()

	r.config.Collector.IncRunStarted()

	getenv := r.config.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	r.config.Bus.Send(types.NewMeta(r.config.Bus.Instant(), getenv))

	r.logger.Debug("sending test run started event", nil)
	start := r.config.Bus.Instant()
	r.mu.Lock()
	r.startTime = start
	r.mu.Unlock()
	r.config.Bus.Send(&types.TestRunStarted{At: start})
}

// RunBeforeAllHooks runs the before-all hooks. It returns the run's
// collected failure as soon as one is held, so the caller can skip the
// features, or an unrecoverable error as-is.
func (r *RunOrchestrator) RunBeforeAllHooks(ctx context.Context) error {
	r.mustBeRunning("RunBeforeAllHooks")
	runner, err := failure.Supply(&r.failures, func() (Runner, error) {
		return r.supply(ctx)
	})
	if err != nil {
		return r.hooksFailed("before_all", err)
	}
	return r.runHooks(ctx, "before_all", runner.RunBeforeAllHooks)
}

// RunAfterAllHooks runs the after-all hooks. They run even when an earlier
// step already failed; the returned error is the run's collected failure.
func (r *RunOrchestrator) RunAfterAllHooks(ctx context.Context) error {
	r.mustBeRunning("RunAfterAllHooks")
	runner, err := r.acquire(ctx)
	if err != nil {
		return r.hooksFailed("after_all", err)
	}
	if runner == nil {
		return r.hooksFailed("after_all", r.failures.Err())
	}
	return r.runHooks(ctx, "after_all", runner.RunAfterAllHooks)
}

func (r *RunOrchestrator) runHooks(ctx context.Context, phase string, hooks func(context.Context) error) error {
	r.config.Collector.IncHookBatch()
	r.logger.Debug("running hooks", map[string]any{"phase": phase})

	held := r.failures.Err()
	heldCount := failure.Count(held)
	err := r.failures.ExecuteAndThrow(func() error { return hooks(ctx) })
	if err == nil {
		return nil
	}
	if failure.Escalation(err) == failure.Propagate {
		return r.escalate(err)
	}
	// An earlier failure is returned here too; only count this batch's own.
	if now := r.failures.Err(); now != held || failure.Count(now) != heldCount {
		return r.hooksFailed(phase, err)
	}
	return err
}

func (r *RunOrchestrator) hooksFailed(phase string, err error) error {
	if failure.Escalation(err) == failure.Propagate {
		return r.escalate(err)
	}
	r.config.Collector.IncHookFailure()
	r.logger.Warn("hooks failed", map[string]any{
		"phase": phase,
		"error": err.Error(),
	})
	return err
}

// BeforeFeature announces a feature: its source, its parsed form, then its
// own parse events. Every event reads its own instant.
func (r *RunOrchestrator) BeforeFeature(f Feature) {
	r.mustBeRunning("BeforeFeature")
	r.logger.Debug("sending test source read event", map[string]any{"uri": f.URI()})

	bus := r.config.Bus
	bus.Send(&types.TestSourceRead{At: bus.Instant(), URI: f.URI(), Source: f.Source()})
	bus.Send(&types.TestSourceParsed{At: bus.Instant(), URI: f.URI(), Parsed: f.Parsed()})
	bus.SendAll(f.ParseEvents())
}

// RunTestCase runs execution against a runner. Failures are collected and
// surface at FinishTestRun, so later test cases still run. Only an
// unrecoverable error is returned. Safe for concurrent use.
func (r *RunOrchestrator) RunTestCase(ctx context.Context, execution func(context.Context, Runner) error) error {
	r.mustBeRunning("RunTestCase")
	r.config.Collector.IncTestCase()

	runner, err := r.acquire(ctx)
	if err != nil {
		return r.escalate(err)
	}
	if runner == nil {
		return nil
	}
	if err := r.failures.Execute(func() error { return execution(ctx, runner) }); err != nil {
		return r.escalate(err)
	}
	return nil
}

// FinishTestRun computes the run result from the collected failure and the
// baseline exit status, and emits the run-finished and verdict events.
func (r *RunOrchestrator) FinishTestRun() *RunResult {
	r.mu.Lock()
	if r.state != StateRunning {
		state := r.state
		r.mu.Unlock()
		panic(fmt.Sprintf("runtime: FinishTestRun called in state %s", state))
	}
	r.state = StateFinished
	start := r.startTime
	r.mu.Unlock()

	r.logger.Debug("sending test run finished event", nil)

	err := r.failures.Err()
	bus := r.config.Bus
	at := bus.Instant()

	result := &RunResult{
		RunMeta:  r.config.RunMeta,
		Status:   types.StatusFailed,
		Success:  err == nil && r.config.ExitStatus.IsSuccess(),
		Duration: at.Sub(start),
		Err:      err,
		Trace:    failure.Trace(err),
	}
	if err == nil {
		result.Status = r.config.ExitStatus.Status()
	}

	bus.Send(&types.TestRunFinished{At: at, Result: types.Result{
		Status:   result.Status,
		Duration: result.Duration,
		Err:      err,
		Trace:    result.Trace,
	}})
	bus.Send(&types.RunVerdict{At: at, Success: result.Success, Message: result.Trace})

	collected := 0
	if err != nil {
		collected = failure.Count(err) + 1
	}
	r.config.Collector.AbsorbFailure(collected, err != nil && failure.IsAborted(err))
	r.config.Collector.IncRunFinished(result.Success)

	fields := map[string]any{
		"status":      string(result.Status),
		"success":     result.Success,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		fields["suppressed"] = collected - 1
	}
	r.logger.Info("run finished", fields)

	return result
}

// Execute runs the whole lifecycle over plan: start, before-all hooks, the
// planned features when the hooks passed, after-all hooks, finish.
//
// The returned error is non-nil only for an unrecoverable failure, in which
// case the run is abandoned without finishing.
func (r *RunOrchestrator) Execute(ctx context.Context, plan []PlannedFeature) (*RunResult, error) {
	r.logger.Info("starting run", map[string]any{"features": len(plan)})
	r.StartTestRun()

	if err := r.RunBeforeAllHooks(ctx); err != nil {
		if failure.Escalation(err) == failure.Propagate {
			return nil, err
		}
	} else if err := r.runFeatures(ctx, plan); err != nil {
		return nil, err
	}

	// Teardown runs even when the run was canceled.
	if err := r.RunAfterAllHooks(context.WithoutCancel(ctx)); err != nil {
		if failure.Escalation(err) == failure.Propagate {
			return nil, err
		}
	}

	return r.FinishTestRun(), nil
}

func (r *RunOrchestrator) runFeatures(ctx context.Context, plan []PlannedFeature) error {
	for _, pf := range plan {
		if err := ctx.Err(); err != nil {
			r.collectCanceled(err)
			return nil
		}
		r.BeforeFeature(pf.Feature)
		for _, tc := range pf.TestCases {
			if err := ctx.Err(); err != nil {
				r.collectCanceled(err)
				return nil
			}
			err := r.RunTestCase(ctx, func(ctx context.Context, runner Runner) error {
				return runner.RunTestCase(ctx, tc)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *RunOrchestrator) collectCanceled(err error) {
	r.logger.Warn("run canceled, skipping remaining test cases", map[string]any{
		"error": err.Error(),
	})
	_ = r.failures.Execute(func() error { return fmt.Errorf("run canceled: %w", err) })
}

// supply asks the supplier for a runner.
func (r *RunOrchestrator) supply(ctx context.Context) (Runner, error) {
	runner, err := r.config.Runners.Get(ctx)
	if err != nil {
		r.config.Collector.IncRunnerFailure()
		return nil, err
	}
	if runner == nil {
		r.config.Collector.IncRunnerFailure()
		return nil, ErrNoRunner
	}
	return runner, nil
}

// acquire obtains a runner without surfacing earlier failures. A failure to
// obtain one is collected and reported as a nil runner; only an
// unrecoverable error is returned.
func (r *RunOrchestrator) acquire(ctx context.Context) (Runner, error) {
	var runner Runner
	err := r.failures.Execute(func() error {
		got, err := r.supply(ctx)
		if err != nil {
			return err
		}
		runner = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runner, nil
}

func (r *RunOrchestrator) escalate(err error) error {
	r.config.Collector.IncEscalation()
	r.logger.Error("unrecoverable failure, abandoning run", map[string]any{
		"error": err.Error(),
	})
	return err
}

func (r *RunOrchestrator) mustBeRunning(op string) {
	if state := r.State(); state != StateRunning {
		panic(fmt.Sprintf("runtime: %s called in state %s", op, state))
	}
}

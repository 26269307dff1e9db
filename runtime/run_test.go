package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pithecene-io/verdict/eventbus"
	"github.com/pithecene-io/verdict/failure"
	"github.com/pithecene-io/verdict/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func requireCause(t *testing.T, err error) error {
	t.Helper()
	f, ok := err.(*failure.Failure)
	require.True(t, ok, "expected *failure.Failure, got %T", err)
	return f.Cause()
}

func TestExecute_SuccessfulRun(t *testing.T) {
	h := newHarness(passed, nil)

	result, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature", &fakeTestCase{name: "add item"}, &fakeTestCase{name: "remove item"}),
	))
	require.NoError(t, err)

	want := []types.EventType{
		types.EventTypeMeta,
		types.EventTypeTestRunStarted,
		types.EventTypeTestSourceRead,
		types.EventTypeTestSourceParsed,
		types.EventTypeScenarioCompiled,
		types.EventTypeTestRunFinished,
		types.EventTypeRunVerdict,
	}
	if diff := cmp.Diff(want, h.recorder.Types()); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, result.Success)
	assert.Equal(t, types.StatusPassed, result.Status)
	assert.NoError(t, result.Err)
	assert.Empty(t, result.Trace)
	assert.Equal(t, []string{"add item", "remove item"}, h.runner.Ran())
	assert.Equal(t, int32(1), h.runner.beforeAllCalls.Load())
	assert.Equal(t, int32(1), h.runner.afterAllCalls.Load())
	assert.Equal(t, StateFinished, h.orch.State())

	verdicts := eventbus.Events[*types.RunVerdict](h.recorder)
	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].Success)
	assert.Empty(t, verdicts[0].Message)
}

func TestExecute_FailingScenario(t *testing.T) {
	h := newHarness(passed, nil)

	result, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature",
			&fakeTestCase{name: "broken", err: errBoom},
			&fakeTestCase{name: "still runs"},
		),
	))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Same(t, errBoom, requireCause(t, result.Err))
	assert.Contains(t, result.Trace, "boom")
	assert.Equal(t, []string{"broken", "still runs"}, h.runner.Ran())

	finished := eventbus.Events[*types.TestRunFinished](h.recorder)
	require.Len(t, finished, 1)
	assert.Equal(t, types.StatusFailed, finished[0].Result.Status)
	assert.NotEmpty(t, finished[0].Result.Trace)

	verdicts := eventbus.Events[*types.RunVerdict](h.recorder)
	require.Len(t, verdicts, 1)
	assert.False(t, verdicts[0].Success)
	assert.Equal(t, result.Trace, verdicts[0].Message)
}

func TestExecute_BaselineStatusWithoutError(t *testing.T) {
	h := newHarness(fixedStatus{status: types.StatusPending}, nil)

	result, err := h.orch.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusPending, result.Status)
	assert.False(t, result.Success, "an error-free run can still be unsuccessful")
	assert.NoError(t, result.Err)
	assert.Empty(t, result.Trace)
}

func TestExecute_BeforeAllFailureSkipsFeatures(t *testing.T) {
	h := newHarness(passed, nil)
	h.runner.beforeAll = func(context.Context) error { return errBoom }

	result, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature", &fakeTestCase{name: "never runs"}),
	))
	require.NoError(t, err)

	assert.Empty(t, h.runner.Ran())
	assert.Equal(t, int32(1), h.runner.afterAllCalls.Load(), "after-all hooks still run")
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.NotContains(t, h.recorder.Types(), types.EventTypeTestSourceRead)
}

func TestHooks_AbortThenGenuineFailure(t *testing.T) {
	h := newHarness(passed, nil)
	skip := failure.Skipf("no database")
	h.runner.beforeAll = func(context.Context) error { return skip }
	h.runner.afterAll = func(context.Context) error { return errBoom }
	ctx := context.Background()

	h.orch.StartTestRun()

	err := h.orch.RunBeforeAllHooks(ctx)
	require.Error(t, err)
	assert.Same(t, skip, requireCause(t, err))

	err = h.orch.RunAfterAllHooks(ctx)
	require.Error(t, err)
	assert.Same(t, errBoom, requireCause(t, err))

	result := h.orch.FinishTestRun()
	assert.Same(t, errBoom, requireCause(t, result.Err))

	suppressed := result.Err.(*failure.Failure).Suppressed()
	require.Len(t, suppressed, 1)
	assert.Same(t, skip, requireCause(t, suppressed[0]))
	assert.Equal(t, 1, failure.Count(result.Err))
}

func TestHooks_GenuineThenAbort(t *testing.T) {
	h := newHarness(passed, nil)
	h.runner.beforeAll = func(context.Context) error { return errBoom }
	h.runner.afterAll = func(context.Context) error { return failure.Abortf("teardown skipped") }
	ctx := context.Background()

	h.orch.StartTestRun()
	require.Error(t, h.orch.RunBeforeAllHooks(ctx))
	require.Error(t, h.orch.RunAfterAllHooks(ctx))

	result := h.orch.FinishTestRun()
	assert.Same(t, errBoom, requireCause(t, result.Err))
	assert.Equal(t, 1, failure.Count(result.Err))
}

func TestRunTestCase_UnrecoverableEscapes(t *testing.T) {
	h := newHarness(passed, nil)
	fatal := failure.Fatal(errors.New("heap exhausted"))

	h.orch.StartTestRun()
	err := h.orch.RunTestCase(context.Background(), func(context.Context, Runner) error {
		return fatal
	})

	assert.Same(t, fatal, err)
	assert.NoError(t, h.orch.Err(), "unrecoverable errors are never collected")
	assert.Equal(t, int64(1), h.collector.Snapshot().Escalations)
}

func TestExecute_UnrecoverableAbandonsRun(t *testing.T) {
	h := newHarness(passed, nil)

	result, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature",
			&fakeTestCase{name: "oom", err: failure.ErrResourceExhausted},
			&fakeTestCase{name: "never runs"},
		),
	))

	require.ErrorIs(t, err, failure.ErrResourceExhausted)
	assert.Nil(t, result)
	assert.Equal(t, []string{"oom"}, h.runner.Ran())
	assert.Equal(t, int32(0), h.runner.afterAllCalls.Load())
	assert.NotContains(t, h.recorder.Types(), types.EventTypeTestRunFinished)
	assert.Equal(t, StateRunning, h.orch.State())
}

func TestRunTestCase_PanicIsCollected(t *testing.T) {
	h := newHarness(passed, nil)

	h.orch.StartTestRun()
	require.NoError(t, h.orch.RunTestCase(context.Background(), func(context.Context, Runner) error {
		panic("step exploded")
	}))

	var pe *failure.PanicError
	require.ErrorAs(t, h.orch.Err(), &pe)
	assert.Equal(t, "step exploded", pe.Value)
}

func TestRunTestCase_RunnerSupplierFailure(t *testing.T) {
	noRunner := errors.New("no glue code")
	h := newHarness(passed, RunnerSupplierFunc(func(context.Context) (Runner, error) {
		return nil, noRunner
	}))

	h.orch.StartTestRun()
	called := false
	require.NoError(t, h.orch.RunTestCase(context.Background(), func(context.Context, Runner) error {
		called = true
		return nil
	}))

	assert.False(t, called)
	assert.Same(t, noRunner, requireCause(t, h.orch.Err()))
	assert.Equal(t, int64(1), h.collector.Snapshot().RunnerFailures)
}

func TestRunTestCase_NilRunner(t *testing.T) {
	h := newHarness(passed, RunnerSupplierFunc(func(context.Context) (Runner, error) {
		return nil, nil
	}))

	h.orch.StartTestRun()
	require.NoError(t, h.orch.RunTestCase(context.Background(), func(context.Context, Runner) error {
		return nil
	}))
	assert.ErrorIs(t, h.orch.Err(), ErrNoRunner)
}

func TestRunTestCase_ConcurrentFailures(t *testing.T) {
	h := newHarness(passed, nil)
	h.orch.StartTestRun()

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			err := h.orch.RunTestCase(context.Background(), func(context.Context, Runner) error {
				return fmt.Errorf("scenario %d failed", i)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	result := h.orch.FinishTestRun()
	require.Error(t, result.Err)
	assert.Equal(t, n-1, failure.Count(result.Err))
	assert.Equal(t, int64(n), h.collector.Snapshot().FailuresCollected)
}

func TestBeforeFeature_EventsCarryOwnInstants(t *testing.T) {
	h := newHarness(passed, nil)
	h.orch.StartTestRun()

	h.orch.BeforeFeature(&fakeFeature{uri: "features/a.feature", source: "Feature: a"})

	read := eventbus.Events[*types.TestSourceRead](h.recorder)
	parsed := eventbus.Events[*types.TestSourceParsed](h.recorder)
	require.Len(t, read, 1)
	require.Len(t, parsed, 1)

	assert.Equal(t, "features/a.feature", read[0].URI)
	assert.Equal(t, "Feature: a", read[0].Source)
	assert.Equal(t, "features/a.feature", parsed[0].URI)
	assert.True(t, parsed[0].At.After(read[0].At))
}

func TestFinishTestRun_Duration(t *testing.T) {
	h := newHarness(passed, nil)

	// meta reads t0, run start t0+1s, finish t0+2s
	h.orch.StartTestRun()
	result := h.orch.FinishTestRun()

	assert.Equal(t, time.Second, result.Duration)

	started := eventbus.Events[*types.TestRunStarted](h.recorder)
	finished := eventbus.Events[*types.TestRunFinished](h.recorder)
	require.Len(t, started, 1)
	require.Len(t, finished, 1)
	assert.Equal(t, t0.Add(time.Second), started[0].At)
	assert.Equal(t, t0.Add(2*time.Second), finished[0].At)
	assert.Equal(t, time.Second, finished[0].Result.Duration)
}

func TestExecute_Canceled(t *testing.T) {
	h := newHarness(passed, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.orch.Execute(ctx, plan(
		feature("features/cart.feature", &fakeTestCase{name: "never runs"}),
	))
	require.NoError(t, err)

	assert.Empty(t, h.runner.Ran())
	assert.Equal(t, int32(1), h.runner.afterAllCalls.Load())
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestExecute_Metrics(t *testing.T) {
	h := newHarness(passed, nil)

	_, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature", &fakeTestCase{name: "a"}, &fakeTestCase{name: "b", err: failure.Skipf("later")}),
	))
	require.NoError(t, err)

	s := h.collector.Snapshot()
	assert.Equal(t, int64(1), s.RunsStarted)
	assert.Equal(t, int64(1), s.RunsFailed)
	assert.Equal(t, int64(2), s.HookBatches)
	assert.Equal(t, int64(2), s.TestCases)
	assert.Equal(t, int64(1), s.FailuresCollected)
	assert.True(t, s.PrimaryAborted)
}

func TestExecute_HookFailuresCountOnlyHookErrors(t *testing.T) {
	h := newHarness(passed, nil)

	_, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature", &fakeTestCase{name: "declined", err: errBoom}),
	))
	require.NoError(t, err)
	assert.Equal(t, int64(0), h.collector.Snapshot().HookFailures)

	h = newHarness(passed, nil)
	h.runner.afterAll = func(context.Context) error { return errors.New("teardown failed") }

	result, err := h.orch.Execute(context.Background(), plan(
		feature("features/cart.feature", &fakeTestCase{name: "declined", err: errBoom}),
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.collector.Snapshot().HookFailures)
	assert.Equal(t, 1, failure.Count(result.Err))
}

func TestOrchestrator_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("hooks before start", func(t *testing.T) {
		h := newHarness(passed, nil)
		assert.Panics(t, func() { _ = h.orch.RunBeforeAllHooks(ctx) })
	})
	t.Run("test case before start", func(t *testing.T) {
		h := newHarness(passed, nil)
		assert.Panics(t, func() {
			_ = h.orch.RunTestCase(ctx, func(context.Context, Runner) error { return nil })
		})
	})
	t.Run("start twice", func(t *testing.T) {
		h := newHarness(passed, nil)
		h.orch.StartTestRun()
		assert.Panics(t, h.orch.StartTestRun)
	})
	t.Run("finish before start", func(t *testing.T) {
		h := newHarness(passed, nil)
		assert.Panics(t, func() { h.orch.FinishTestRun() })
	})
	t.Run("feature after finish", func(t *testing.T) {
		h := newHarness(passed, nil)
		h.orch.StartTestRun()
		h.orch.FinishTestRun()
		assert.Panics(t, func() { h.orch.BeforeFeature(&fakeFeature{}) })
	})
}

func TestNewRunOrchestrator_Validation(t *testing.T) {
	bus := eventbus.New("run-001", nil)
	runners := RunnerSupplierFunc(func(context.Context) (Runner, error) { return &fakeRunner{}, nil })
	meta := &types.RunMeta{RunID: "run-001", Attempt: 1}

	tests := []struct {
		name   string
		config *RunConfig
	}{
		{"nil config", nil},
		{"missing run meta", &RunConfig{Bus: bus, Runners: runners, ExitStatus: passed}},
		{"empty run id", &RunConfig{Bus: bus, Runners: runners, ExitStatus: passed, RunMeta: &types.RunMeta{Attempt: 1}}},
		{"missing bus", &RunConfig{Runners: runners, ExitStatus: passed, RunMeta: meta}},
		{"missing runners", &RunConfig{Bus: bus, ExitStatus: passed, RunMeta: meta}},
		{"missing exit status", &RunConfig{Bus: bus, Runners: runners, RunMeta: meta}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunOrchestrator(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_started", StateNotStarted.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "state(7)", State(7).String())
}

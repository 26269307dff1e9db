package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/verdict/eventbus"
	"github.com/pithecene-io/verdict/log"
	"github.com/pithecene-io/verdict/metrics"
	"github.com/pithecene-io/verdict/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeRunner runs configurable hooks and delegates test cases to tc.Run.
type fakeRunner struct {
	beforeAll func(ctx context.Context) error
	afterAll  func(ctx context.Context) error

	beforeAllCalls atomic.Int32
	afterAllCalls  atomic.Int32

	mu  sync.Mutex
	ran []string
}

func (f *fakeRunner) RunBeforeAllHooks(ctx context.Context) error {
	f.beforeAllCalls.Add(1)
	if f.beforeAll == nil {
		return nil
	}
	return f.beforeAll(ctx)
}

func (f *fakeRunner) RunAfterAllHooks(ctx context.Context) error {
	f.afterAllCalls.Add(1)
	if f.afterAll == nil {
		return nil
	}
	return f.afterAll(ctx)
}

func (f *fakeRunner) RunTestCase(ctx context.Context, tc TestCase) error {
	f.mu.Lock()
	f.ran = append(f.ran, tc.Name())
	f.mu.Unlock()
	return tc.Run(ctx)
}

func (f *fakeRunner) Ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeFeature struct {
	uri    string
	source string
	events []types.Event
}

func (f *fakeFeature) URI() string                { return f.uri }
func (f *fakeFeature) Source() string             { return f.source }
func (f *fakeFeature) Parsed() any                { return map[string]any{"uri": f.uri} }
func (f *fakeFeature) ParseEvents() []types.Event { return f.events }

type fakeTestCase struct {
	uri  string
	name string
	err  error
}

func (tc *fakeTestCase) URI() string                 { return tc.uri }
func (tc *fakeTestCase) Name() string                { return tc.name }
func (tc *fakeTestCase) Run(_ context.Context) error { return tc.err }

type fixedStatus struct {
	status  types.Status
	success bool
}

func (s fixedStatus) Status() types.Status { return s.status }
func (s fixedStatus) IsSuccess() bool      { return s.success }

var passed = fixedStatus{status: types.StatusPassed, success: true}

// harness wires an orchestrator to a recording bus with a stepping clock.
type harness struct {
	bus       *eventbus.Bus
	recorder  *eventbus.Recorder
	runner    *fakeRunner
	collector *metrics.Collector
	orch      *RunOrchestrator
}

func newHarness(status ExitStatus, runners RunnerSupplier) *harness {
	h := &harness{
		bus:       eventbus.New("run-001", eventbus.NewStepClock(t0, time.Second)),
		recorder:  &eventbus.Recorder{},
		runner:    &fakeRunner{},
		collector: metrics.NewCollector("checkout", "run-001"),
	}
	h.bus.SubscribeAll(h.recorder)
	if runners == nil {
		runners = RunnerSupplierFunc(func(context.Context) (Runner, error) { return h.runner, nil })
	}

	orch, err := NewRunOrchestrator(&RunConfig{
		Bus:        h.bus,
		Runners:    runners,
		ExitStatus: status,
		RunMeta:    &types.RunMeta{RunID: "run-001", Suite: "checkout", Attempt: 1},
		Logger:     log.Nop(),
		Collector:  h.collector,
		Getenv:     func(string) string { return "" },
	})
	if err != nil {
		panic(err)
	}
	h.orch = orch
	return h
}

func plan(features ...PlannedFeature) []PlannedFeature { return features }

func feature(uri string, cases ...*fakeTestCase) PlannedFeature {
	pf := PlannedFeature{Feature: &fakeFeature{
		uri:    uri,
		source: "Feature: " + uri,
		events: []types.Event{&types.ScenarioCompiled{At: t0, URI: uri, Name: "compiled"}},
	}}
	for _, tc := range cases {
		tc.uri = uri
		pf.TestCases = append(pf.TestCases, tc)
	}
	return pf
}

var errBoom = errors.New("boom")

// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies; failure counts are absorbed once
// at run finish rather than recorded live.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsSucceeded int64
	RunsFailed    int64

	// Execution
	HookBatches     int64
	HookFailures    int64
	TestCases       int64
	RunnerFailures  int64
	Escalations     int64
	EventsDelivered int64

	// Failures (absorbed at run finish)
	FailuresCollected  int64
	FailuresSuppressed int64
	PrimaryAborted     bool

	// Dimensions (informational, set at construction)
	Suite string
	RunID string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsSucceeded int64
	runsFailed    int64

	hookBatches     int64
	hookFailures    int64
	testCases       int64
	runnerFailures  int64
	escalations     int64
	eventsDelivered int64

	failuresCollected  int64
	failuresSuppressed int64
	primaryAborted     bool

	suite string
	runID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(suite, runID string) *Collector {
	return &Collector{
		suite: suite,
		runID: runID,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.inc(&c.runsStarted)
}

// IncRunFinished records a run finish with its verdict.
func (c *Collector) IncRunFinished(success bool) {
	if c == nil {
		return
	}
	if success {
		c.inc(&c.runsSucceeded)
		return
	}
	c.inc(&c.runsFailed)
}

// --- Execution ---

// IncHookBatch records a before-all or after-all hook batch.
func (c *Collector) IncHookBatch() {
	if c == nil {
		return
	}
	c.inc(&c.hookBatches)
}

// IncHookFailure records a hook batch that left a collected failure.
func (c *Collector) IncHookFailure() {
	if c == nil {
		return
	}
	c.inc(&c.hookFailures)
}

// IncTestCase records a test case handed to a runner.
func (c *Collector) IncTestCase() {
	if c == nil {
		return
	}
	c.inc(&c.testCases)
}

// IncRunnerFailure records a failure to obtain a runner.
func (c *Collector) IncRunnerFailure() {
	if c == nil {
		return
	}
	c.inc(&c.runnerFailures)
}

// IncEscalation records an unrecoverable error that bypassed collection.
func (c *Collector) IncEscalation() {
	if c == nil {
		return
	}
	c.inc(&c.escalations)
}

// --- Absorbed at finish ---

// AbsorbFailure records the shape of the run's collected failure.
// collected counts the primary plus everything suppressed under it.
func (c *Collector) AbsorbFailure(collected int, primaryAborted bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.failuresCollected = int64(collected)
	c.failuresSuppressed = 0
	if collected > 1 {
		c.failuresSuppressed = int64(collected - 1)
	}
	c.primaryAborted = primaryAborted
	c.mu.Unlock()
}

// AbsorbEvents records how many events the bus delivered.
func (c *Collector) AbsorbEvents(total int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDelivered = total
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsSucceeded: c.runsSucceeded,
		RunsFailed:    c.runsFailed,

		HookBatches:     c.hookBatches,
		HookFailures:    c.hookFailures,
		TestCases:       c.testCases,
		RunnerFailures:  c.runnerFailures,
		Escalations:     c.escalations,
		EventsDelivered: c.eventsDelivered,

		FailuresCollected:  c.failuresCollected,
		FailuresSuppressed: c.failuresSuppressed,
		PrimaryAborted:     c.primaryAborted,

		Suite: c.suite,
		RunID: c.runID,
	}
}

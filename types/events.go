package types

import "time"

// ContractVersion is the version of the event contract. It moves in
// lockstep with Version.
const ContractVersion = Version

// EventType discriminates lifecycle events.
type EventType string

// Event type constants.
const (
	EventTypeMeta             EventType = "meta"
	EventTypeTestRunStarted   EventType = "test_run_started"
	EventTypeTestSourceRead   EventType = "test_source_read"
	EventTypeTestSourceParsed EventType = "test_source_parsed"
	EventTypeScenarioCompiled EventType = "scenario_compiled"
	EventTypeTestCaseStarted  EventType = "test_case_started"
	EventTypeTestCaseFinished EventType = "test_case_finished"
	EventTypeTestRunFinished  EventType = "test_run_finished"
	EventTypeRunVerdict       EventType = "run_verdict"
)

// IsTerminal reports whether this event type closes a run.
func (e EventType) IsTerminal() bool {
	return e == EventTypeTestRunFinished || e == EventTypeRunVerdict
}

// Event is a lifecycle notification sent on the event bus.
type Event interface {
	Type() EventType
	Instant() time.Time
}

// Product names a piece of software and its version.
type Product struct {
	Name    string `msgpack:"name" json:"name"`
	Version string `msgpack:"version,omitempty" json:"version,omitempty"`
}

// Meta describes the tool and environment a run executes in.
type Meta struct {
	At              time.Time `msgpack:"-" json:"-"`
	ProtocolVersion string    `msgpack:"protocol_version" json:"protocol_version"`
	Implementation  Product   `msgpack:"implementation" json:"implementation"`
	Runtime         Product   `msgpack:"runtime" json:"runtime"`
	OS              Product   `msgpack:"os" json:"os"`
	CPU             Product   `msgpack:"cpu" json:"cpu"`
	CI              *CI       `msgpack:"ci,omitempty" json:"ci,omitempty"`
}

// CI describes the continuous integration system, when one is detected.
type CI struct {
	Name   string `msgpack:"name" json:"name"`
	URL    string `msgpack:"url,omitempty" json:"url,omitempty"`
	Branch string `msgpack:"branch,omitempty" json:"branch,omitempty"`
	Commit string `msgpack:"commit,omitempty" json:"commit,omitempty"`
}

func (e *Meta) Type() EventType    { return EventTypeMeta }
func (e *Meta) Instant() time.Time { return e.At }

// TestRunStarted is sent once, before any hook or scenario runs.
type TestRunStarted struct {
	At time.Time `msgpack:"-" json:"-"`
}

func (e *TestRunStarted) Type() EventType    { return EventTypeTestRunStarted }
func (e *TestRunStarted) Instant() time.Time { return e.At }

// TestSourceRead carries the raw text of a feature file.
type TestSourceRead struct {
	At     time.Time `msgpack:"-" json:"-"`
	URI    string    `msgpack:"uri" json:"uri"`
	Source string    `msgpack:"source" json:"source"`
}

func (e *TestSourceRead) Type() EventType    { return EventTypeTestSourceRead }
func (e *TestSourceRead) Instant() time.Time { return e.At }

// TestSourceParsed carries the parsed structure of a feature file.
type TestSourceParsed struct {
	At     time.Time `msgpack:"-" json:"-"`
	URI    string    `msgpack:"uri" json:"uri"`
	Parsed any       `msgpack:"parsed" json:"parsed"`
}

func (e *TestSourceParsed) Type() EventType    { return EventTypeTestSourceParsed }
func (e *TestSourceParsed) Instant() time.Time { return e.At }

// ScenarioCompiled announces a scenario that will be executed.
type ScenarioCompiled struct {
	At   time.Time `msgpack:"-" json:"-"`
	URI  string    `msgpack:"uri" json:"uri"`
	Name string    `msgpack:"name" json:"name"`
}

func (e *ScenarioCompiled) Type() EventType    { return EventTypeScenarioCompiled }
func (e *ScenarioCompiled) Instant() time.Time { return e.At }

// TestCaseStarted is sent before a scenario runs.
type TestCaseStarted struct {
	At   time.Time `msgpack:"-" json:"-"`
	URI  string    `msgpack:"uri" json:"uri"`
	Name string    `msgpack:"name" json:"name"`
}

func (e *TestCaseStarted) Type() EventType    { return EventTypeTestCaseStarted }
func (e *TestCaseStarted) Instant() time.Time { return e.At }

// TestCaseFinished is sent after a scenario ran.
type TestCaseFinished struct {
	At     time.Time `msgpack:"-" json:"-"`
	URI    string    `msgpack:"uri" json:"uri"`
	Name   string    `msgpack:"name" json:"name"`
	Result Result    `msgpack:"result" json:"result"`
}

func (e *TestCaseFinished) Type() EventType    { return EventTypeTestCaseFinished }
func (e *TestCaseFinished) Instant() time.Time { return e.At }

// TestRunFinished carries the final result of a run.
type TestRunFinished struct {
	At     time.Time `msgpack:"-" json:"-"`
	Result Result    `msgpack:"result" json:"result"`
}

func (e *TestRunFinished) Type() EventType    { return EventTypeTestRunFinished }
func (e *TestRunFinished) Instant() time.Time { return e.At }

// RunVerdict is the protocol-level end of a run. Success is true only when
// no error was collected and the baseline status was itself successful.
type RunVerdict struct {
	At      time.Time `msgpack:"-" json:"-"`
	Success bool      `msgpack:"success" json:"success"`
	Message string    `msgpack:"message,omitempty" json:"message,omitempty"`
}

func (e *RunVerdict) Type() EventType    { return EventTypeRunVerdict }
func (e *RunVerdict) Instant() time.Time { return e.At }

// Result is the outcome of a test case or a run.
type Result struct {
	Status   Status        `msgpack:"status" json:"status"`
	Duration time.Duration `msgpack:"duration_ns" json:"duration_ns"`
	// Err is the failure behind a non-passing status, if any.
	Err error `msgpack:"-" json:"-"`
	// Trace is the rendered form of Err.
	Trace string `msgpack:"trace,omitempty" json:"trace,omitempty"`
}

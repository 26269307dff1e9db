// Package adapter defines the boundary for notifying downstream systems
// that a run has finished.
//
// Adapters publish one RunFinishedEvent per run. The CLI owns adapter
// lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/verdict/runtime"
	"github.com/pithecene-io/verdict/types"
)

// EventTypeRunFinished is the event_type of every published payload.
const EventTypeRunFinished = "run_finished"

// RunFinishedEvent is the payload published when a run finishes.
type RunFinishedEvent struct {
	ContractVersion string         `json:"contract_version"`
	EventType       string         `json:"event_type"` // always "run_finished"
	RunID           string         `json:"run_id"`
	Suite           string         `json:"suite,omitempty"`
	Attempt         int            `json:"attempt"`
	Status          string         `json:"status"` // PASSED, FAILED, etc.
	Success         bool           `json:"success"`
	Message         string         `json:"message,omitempty"`
	Timestamp       string         `json:"timestamp"` // RFC 3339
	EventCount      int64          `json:"event_count"`
	DurationMs      int64          `json:"duration_ms"`
	TestCases       map[string]int `json:"test_cases,omitempty"`
}

// FromResult builds the payload for a finished run. testCases counts
// finished test cases by status and may be nil.
func FromResult(result *runtime.RunResult, eventCount int64, testCases map[types.Status]int, at time.Time) *RunFinishedEvent {
	event := &RunFinishedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeRunFinished,
		Status:          string(result.Status),
		Success:         result.Success,
		Message:         result.Trace,
		Timestamp:       at.UTC().Format(time.RFC3339),
		EventCount:      eventCount,
		DurationMs:      result.Duration.Milliseconds(),
	}
	if result.RunMeta != nil {
		event.RunID = result.RunMeta.RunID
		event.Suite = result.RunMeta.Suite
		event.Attempt = result.RunMeta.Attempt
	}
	if len(testCases) > 0 {
		event.TestCases = make(map[string]int, len(testCases))
		for status, n := range testCases {
			event.TestCases[string(status)] = n
		}
	}
	return event
}

// Adapter publishes run finished events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run finished event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunFinishedEvent) error

	// Close releases adapter resources.
	Close() error
}

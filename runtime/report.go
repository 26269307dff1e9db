package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/verdict/metrics"
	"github.com/pithecene-io/verdict/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID      string       `json:"run_id"`
	Suite      string       `json:"suite,omitempty"`
	Attempt    int          `json:"attempt"`
	Status     types.Status `json:"status"`
	Success    bool         `json:"success"`
	Message    string       `json:"message,omitempty"`
	ExitCode   int          `json:"exit_code"`
	DurationMs int64        `json:"duration_ms"`
	EventCount int64        `json:"event_count"`

	TestCases map[types.Status]int `json:"test_cases,omitempty"`
	Metrics   *metrics.Snapshot    `json:"metrics"`
}

// BuildRunReport composes a RunReport from a RunResult and metrics snapshot.
// testCases counts finished test cases by status and may be nil.
// The exitCode is the process exit code that will be returned to the caller.
func BuildRunReport(result *RunResult, snap metrics.Snapshot, testCases map[types.Status]int, exitCode int) *RunReport {
	report := &RunReport{
		Status:     result.Status,
		Success:    result.Success,
		Message:    result.Trace,
		ExitCode:   exitCode,
		DurationMs: result.Duration.Milliseconds(),
		EventCount: snap.EventsDelivered,
		TestCases:  testCases,
		Metrics:    &snap,
	}

	if result.RunMeta != nil {
		report.RunID = result.RunMeta.RunID
		report.Suite = result.RunMeta.Suite
		report.Attempt = result.RunMeta.Attempt
	}

	return report
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

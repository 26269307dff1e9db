// Package types defines the domain types shared by the verdict runtime:
// run identity, statuses, lifecycle events and their wire envelope.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// RunMeta identifies a single test run.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// Suite is the human-readable suite name. Optional.
	Suite string
	// Attempt is the attempt number. Starts at 1.
	Attempt int
}

// Validate checks that the run identity is usable.
func (r *RunMeta) Validate() error {
	if r == nil {
		return errors.New("run metadata is required")
	}
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Attempt < 1 {
		return fmt.Errorf("attempt must be >= 1, got %d", r.Attempt)
	}
	return nil
}

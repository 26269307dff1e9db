package types

// Status is the outcome of a test case or of a whole run.
type Status string

// Statuses, from best to worst.
const (
	StatusPassed    Status = "PASSED"
	StatusSkipped   Status = "SKIPPED"
	StatusPending   Status = "PENDING"
	StatusUndefined Status = "UNDEFINED"
	StatusAmbiguous Status = "AMBIGUOUS"
	StatusFailed    Status = "FAILED"
)

// Rank orders statuses from best (0) to worst. Unknown statuses rank as
// failures.
func (s Status) Rank() int {
	switch s {
	case StatusPassed:
		return 0
	case StatusSkipped:
		return 1
	case StatusPending:
		return 2
	case StatusUndefined:
		return 3
	case StatusAmbiguous:
		return 4
	default:
		return 5
	}
}

// Worse returns whichever of s and other ranks worse.
func (s Status) Worse(other Status) Status {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// IsOK reports whether s counts as a successful outcome. In strict mode
// pending and undefined steps fail the run.
func (s Status) IsOK(strict bool) bool {
	switch s {
	case StatusPassed, StatusSkipped:
		return true
	case StatusPending, StatusUndefined:
		return !strict
	default:
		return false
	}
}

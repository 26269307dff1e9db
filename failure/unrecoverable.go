package failure

import "errors"

// ErrResourceExhausted marks failures caused by the process running out of a
// resource it needs to keep going (memory, file descriptors, disk).
var ErrResourceExhausted = errors.New("resource exhausted")

// Decision is the outcome of the escalation policy for a caught error.
type Decision int

const (
	// Continue means the error may be collected.
	Continue Decision = iota
	// Propagate means the error must be returned to the caller immediately.
	Propagate
)

func (d Decision) String() string {
	if d == Propagate {
		return "propagate"
	}
	return "continue"
}

// unrecoverable is implemented by errors that know they are fatal.
type unrecoverable interface {
	Unrecoverable() bool
}

// FatalError marks the wrapped error as unrecoverable.
type FatalError struct {
	Err error
}

// Fatal wraps err so that Escalation propagates it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Unrecoverable always reports true.
func (e *FatalError) Unrecoverable() bool { return true }

// Escalation decides whether err must bypass collection. It is applied at
// every boundary where the framework runs an arbitrary action.
func Escalation(err error) Decision {
	if err == nil {
		return Continue
	}
	if errors.Is(err, ErrResourceExhausted) {
		return Propagate
	}
	var u unrecoverable
	if errors.As(err, &u) && u.Unrecoverable() {
		return Propagate
	}
	return Continue
}

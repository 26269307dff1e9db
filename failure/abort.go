package failure

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// SkipError signals that a test was skipped on purpose.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// AssumptionError signals that a precondition for a test did not hold.
type AssumptionError struct {
	Reason string
}

func (e *AssumptionError) Error() string { return "assumption not met: " + e.Reason }

// AbortError signals that a test was aborted before reaching a verdict.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return "aborted: " + e.Reason }

// PendingError marks a step that has not been implemented yet. It is not an
// abort signal: a pending step outranks a skip.
type PendingError struct {
	Reason string
}

func (e *PendingError) Error() string { return "pending: " + e.Reason }

// Skipf returns a *SkipError with a formatted reason.
func Skipf(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// Assumef returns a *AssumptionError with a formatted reason.
func Assumef(format string, args ...any) error {
	return &AssumptionError{Reason: fmt.Sprintf(format, args...)}
}

// Abortf returns a *AbortError with a formatted reason.
func Abortf(format string, args ...any) error {
	return &AbortError{Reason: fmt.Sprintf(format, args...)}
}

// Pendingf returns a *PendingError with a formatted reason.
func Pendingf(format string, args ...any) error {
	return &PendingError{Reason: fmt.Sprintf(format, args...)}
}

// abortedTypes is sorted once at init and never written afterwards.
var abortedTypes = sortedTypeNames(
	(*SkipError)(nil),
	(*AssumptionError)(nil),
	(*AbortError)(nil),
)

func sortedTypeNames(samples ...error) []string {
	names := make([]string, 0, len(samples))
	for _, s := range samples {
		names = append(names, TypeName(s))
	}
	slices.Sort(names)
	return names
}

// TypeName returns the fully qualified name of err's dynamic type, for
// example "*github.com/pithecene-io/verdict/failure.SkipError".
func TypeName(err error) string {
	t := reflect.TypeOf(err)
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

// IsAborted reports whether err is exactly one of the abort signal types.
// Wrapped abort signals do not count. Panics if err is nil.
func IsAborted(err error) bool {
	if err == nil {
		panic("failure: IsAborted called with nil error")
	}
	if f, ok := err.(*Failure); ok {
		err = f.Cause()
	}
	_, found := slices.BinarySearch(abortedTypes, TypeName(err))
	return found
}

// IsPending reports whether err is, or wraps, a *PendingError.
func IsPending(err error) bool {
	var p *PendingError
	return errors.As(err, &p)
}

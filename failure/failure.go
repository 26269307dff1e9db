package failure

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Failure is a primary error with the errors suppressed beneath it.
// Suppressed entries are themselves *Failure values, so a suppressed failure
// keeps whatever was already attached to it.
type Failure struct {
	cause error

	mu         sync.Mutex
	suppressed []*Failure
}

// Wrap returns err as a *Failure. A *Failure is returned unchanged.
func Wrap(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Failure); ok {
		return f
	}
	return &Failure{cause: err}
}

func (f *Failure) Error() string { return f.cause.Error() }

// Unwrap returns the cause. Suppressed errors are deliberately not part of
// the errors.Is / errors.As chain.
func (f *Failure) Unwrap() error { return f.cause }

// Cause returns the primary error.
func (f *Failure) Cause() error { return f.cause }

// Suppressed returns a snapshot of the directly suppressed errors.
func (f *Failure) Suppressed() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]error, len(f.suppressed))
	for i, s := range f.suppressed {
		out[i] = s
	}
	return out
}

func (f *Failure) suppress(other *Failure) {
	f.mu.Lock()
	f.suppressed = append(f.suppressed, other)
	f.mu.Unlock()
}

// Format implements fmt.Formatter. %+v renders the full trace.
func (f *Failure) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		_, _ = fmt.Fprint(s, Trace(f))
	case verb == 'q':
		_, _ = fmt.Fprintf(s, "%q", f.Error())
	default:
		_, _ = fmt.Fprint(s, f.Error())
	}
}

// sameError reports whether a and b are the same error instance. Only
// pointer-shaped errors have an identity; equal values from independent
// failures stay distinct.
func sameError(a, b error) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}

// Count returns the number of errors suppressed under err, transitively.
// Non-*Failure errors have none.
func Count(err error) int {
	f, ok := err.(*Failure)
	if !ok || f == nil {
		return 0
	}
	n := 0
	for _, s := range f.Suppressed() {
		n += 1 + Count(s)
	}
	return n
}

// Trace renders err and everything suppressed beneath it, one error per
// line, with suppressed errors indented under the error they belong to.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	writeTrace(&b, err, "", "")
	return strings.TrimRight(b.String(), "\n")
}

func writeTrace(b *strings.Builder, err error, indent, label string) {
	cause := err
	f, isFailure := err.(*Failure)
	if isFailure {
		cause = f.Cause()
	}
	fmt.Fprintf(b, "%s%s%s: %s\n", indent, label, TypeName(cause), cause.Error())

	if p, ok := cause.(*PanicError); ok && len(p.Stack) > 0 {
		for _, line := range strings.Split(strings.TrimRight(string(p.Stack), "\n"), "\n") {
			fmt.Fprintf(b, "%s\t%s\n", indent, line)
		}
	}
	if !isFailure {
		return
	}
	for _, s := range f.Suppressed() {
		writeTrace(b, s, indent+"\t", "Suppressed: ")
	}
}

// PanicError is a recovered panic whose value was not an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

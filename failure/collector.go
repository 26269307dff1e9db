package failure

import (
	"runtime/debug"
	"sync"
)

// Collector merges the errors raised by a sequence of actions into one
// primary error. The zero value is ready to use and safe for concurrent use.
type Collector struct {
	mu   sync.Mutex
	held *Failure
}

// Execute runs action and collects the error it returns or panics with.
// Unrecoverable errors are not collected: Execute returns them and the
// collector is left untouched. Otherwise Execute returns nil.
func (c *Collector) Execute(action func() error) error {
	err := run(action)
	if err == nil {
		return nil
	}
	if Escalation(err) == Propagate {
		return err
	}
	c.add(err)
	return nil
}

// Err returns the primary error, or nil if nothing was collected.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == nil {
		return nil
	}
	return c.held
}

func (c *Collector) add(err error) {
	f := Wrap(err)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.held == nil:
		c.held = f
	case !IsAborted(f.cause) && IsAborted(c.held.cause):
		f.suppress(c.held)
		c.held = f
	case f == c.held || sameError(f.cause, c.held.cause):
	default:
		c.held.suppress(f)
	}
}

// run calls action, turning a panic into an error.
func run(action func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = e
			return
		}
		err = &PanicError{Value: r, Stack: debug.Stack()}
	}()
	return action()
}

// Rethrowing is a Collector that hands the collected error back to the
// caller as soon as one is held, so a failing step stops the sequence it
// belongs to.
type Rethrowing struct {
	Collector
}

// ExecuteAndThrow runs action through the collector. It returns an
// unrecoverable error as-is, or else the collected primary error if any
// action so far has failed.
func (c *Rethrowing) ExecuteAndThrow(action func() error) error {
	if err := c.Execute(action); err != nil {
		return err
	}
	return c.Err()
}

// Supply runs fn through c and returns its value. If fn or any earlier
// action failed, the zero value and the collected error are returned.
func Supply[T any](c *Rethrowing, fn func() (T, error)) (T, error) {
	var value T
	err := c.ExecuteAndThrow(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

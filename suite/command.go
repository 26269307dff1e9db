package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/verdict/failure"
)

// outputTail is how much trailing command output a CommandError keeps.
const outputTail = 4 << 10

// waitDelay bounds how long Run waits for output pipes after the shell is
// killed, so orphaned grandchildren cannot hold a run open.
const waitDelay = 2 * time.Second

// Command is a shell script run for a hook or a scenario.
type Command struct {
	// Name identifies the command in errors.
	Name   string
	Script string
	Shell  string
	Dir    string
	// Env is the full environment of the process.
	Env []string
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
	// SkipCode is the exit code reported as a skip.
	SkipCode int
	// PendingCode is the exit code reported as pending, when HasPending.
	PendingCode int
	HasPending  bool
	// Output also receives the process's stdout and stderr, if set.
	Output io.Writer
}

// CommandError is a command that exited unsuccessfully.
type CommandError struct {
	Name     string
	Script   string
	ExitCode int
	// Output is the tail of the combined stdout and stderr.
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: ", e.Name)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "exited with code %d", e.ExitCode)
	} else {
		b.WriteString(e.Err.Error())
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

// Run executes the script with Shell -c and maps its exit status: zero is
// success, SkipCode is a skip, PendingCode is pending, and anything else is
// a *CommandError.
func (c *Command) Run(ctx context.Context) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Shell, "-c", c.Script)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = waitDelay

	tail := &tailBuffer{limit: outputTail}
	var out io.Writer = tail
	if c.Output != nil {
		out = io.MultiWriter(tail, c.Output)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &CommandError{
			Name:     c.Name,
			Script:   c.Script,
			ExitCode: -1,
			Output:   tail.String(),
			Err:      fmt.Errorf("failed to start %s: %w", c.Shell, err),
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		reason := ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) && c.Timeout > 0 {
			reason = fmt.Errorf("timed out after %s: %w", c.Timeout, ctxErr)
		}
		return &CommandError{
			Name:     c.Name,
			Script:   c.Script,
			ExitCode: -1,
			Output:   tail.String(),
			Err:      reason,
		}
	}

	code := exitErr.ExitCode()
	switch {
	case code == c.SkipCode:
		return failure.Skipf("%s exited with code %d", c.Name, code)
	case c.HasPending && code == c.PendingCode:
		return failure.Pendingf("%s exited with code %d", c.Name, code)
	}
	return &CommandError{
		Name:     c.Name,
		Script:   c.Script,
		ExitCode: code,
		Output:   tail.String(),
		Err:      exitErr,
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

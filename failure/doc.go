// Package failure captures errors raised while running hooks and scenarios
// and reduces them to one representative failure per unit of work.
//
// Three error kinds are distinguished:
//
//   - Unrecoverable: the environment cannot continue (see Escalation). These
//     are never collected and are handed straight back to the caller.
//   - Abort signals: intentional skips or unmet assumptions (see IsAborted).
//     They rank lowest and are displaced by any genuine failure.
//   - Genuine failures: everything else.
//
// A Collector keeps at most one primary error. Every other error it receives
// is attached to that primary as suppressed detail, so nothing reported to a
// collector is ever dropped:
//
//	var c failure.Collector
//	c.Execute(hookA)
//	c.Execute(hookB)
//	if err := c.Err(); err != nil {
//	    fmt.Println(failure.Trace(err))
//	}
package failure

package runtime

// Process exit codes for a run.
const (
	ExitCodeSuccess = 0 // verdict success
	ExitCodeFailure = 1 // run finished unsuccessfully
	ExitCodeError   = 2 // run abandoned on an unrecoverable failure, or invalid input
)

// DetermineExitCode maps the outcome of Execute to a process exit code.
//
// Mapping:
//   - err != nil (unrecoverable, run abandoned): 2
//   - result missing: 2
//   - result.Success: 0
//   - otherwise: 1
func DetermineExitCode(result *RunResult, err error) int {
	switch {
	case err != nil, result == nil:
		return ExitCodeError
	case result.Success:
		return ExitCodeSuccess
	default:
		return ExitCodeFailure
	}
}

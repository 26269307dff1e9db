// Package main provides the verdict CLI entrypoint.
//
// Usage:
//
//	verdict <command> [options]
//
// Exit codes for `run`:
//   - 0: verdict success
//   - 1: run finished unsuccessfully
//   - 2: run abandoned on an unrecoverable failure, or invalid input
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/verdict/cli/cmd"
	"github.com/pithecene-io/verdict/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           types.ToolName,
		Usage:          "Run acceptance suites and report a single verdict",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.EventsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler exits with the code carried by a cli.ExitCoder, or 1 for
// any other error.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus returns the exit code for err and the message worth printing.
// cli.Exit("", N) renders as "exit status N", which is not printed.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) {
		return 1, fmt.Sprintf("Error: %v", err)
	}
	code := exitCoder.ExitCode()
	msg := exitCoder.Error()
	if msg == fmt.Sprintf("exit status %d", code) {
		msg = ""
	}
	return code, msg
}

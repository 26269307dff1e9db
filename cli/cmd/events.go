package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/verdict/cli/render"
	"github.com/pithecene-io/verdict/ipc"
	"github.com/pithecene-io/verdict/runtime"
	"github.com/pithecene-io/verdict/types"
)

// EventRow is one decoded event, as listed by the events command.
type EventRow struct {
	Seq    int64           `json:"seq" yaml:"seq"`
	Type   types.EventType `json:"type" yaml:"type"`
	Ts     string          `json:"ts" yaml:"ts"`
	Detail string          `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// EventsCommand returns the events command.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Decode an event stream written by run --events-out",
		ArgsUsage: "<file|->",
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  "type",
				Usage: "Show only events of these types",
			},
			&cli.BoolFlag{
				Name:  "skip-corrupt",
				Usage: "Skip frames that fail to decode instead of stopping",
			},
		}, OutputFlags()...),
		Action: eventsAction,
	}
}

func eventsAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("events requires exactly one file argument", runtime.ExitCodeError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeError)
	}

	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot open event stream: %v", err), runtime.ExitCodeError)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	var onSkip func(error)
	if c.Bool("skip-corrupt") {
		onSkip = func(err error) {
			fmt.Fprintf(c.App.ErrWriter, "Warning: skipped frame: %v\n", err)
		}
	}

	rows, err := readEventRows(in, c.StringSlice("type"), onSkip)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid event stream: %v", err), runtime.ExitCodeError)
	}
	return r.Render(rows)
}

// readEventRows decodes the stream in r. A non-empty only keeps just the
// listed event types.
func readEventRows(r io.Reader, only []string, onSkip func(error)) ([]EventRow, error) {
	rows := []EventRow{}
	err := ipc.ReadAll(r, func(env *types.Envelope) error {
		if len(only) > 0 && !slices.Contains(only, string(env.Type)) {
			return nil
		}
		rows = append(rows, EventRow{
			Seq:    env.Seq,
			Type:   env.Type,
			Ts:     env.Ts,
			Detail: detail(env),
		})
		return nil
	}, onSkip)
	return rows, err
}

// detail summarizes a decoded payload in one line.
func detail(env *types.Envelope) string {
	p, ok := env.Payload.(map[string]any)
	if !ok {
		return ""
	}
	str := func(key string) string {
		if v, ok := p[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}
	result := func() map[string]any {
		m, _ := p["result"].(map[string]any)
		return m
	}

	switch env.Type {
	case types.EventTypeMeta:
		impl, _ := p["implementation"].(map[string]any)
		return strings.TrimSpace(fmt.Sprintf("%v %v", impl["name"], impl["version"]))
	case types.EventTypeTestSourceRead, types.EventTypeTestSourceParsed:
		return str("uri")
	case types.EventTypeScenarioCompiled, types.EventTypeTestCaseStarted:
		return str("uri") + ": " + str("name")
	case types.EventTypeTestCaseFinished:
		return fmt.Sprintf("%s: %s %v", str("uri"), str("name"), result()["status"])
	case types.EventTypeTestRunFinished:
		return fmt.Sprint(result()["status"])
	case types.EventTypeRunVerdict:
		if p["success"] == true {
			return "success"
		}
		return "failure"
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

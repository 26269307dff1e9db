package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/verdict/eventbus"
	"github.com/pithecene-io/verdict/ipc"
	"github.com/pithecene-io/verdict/types"
)

func TestOutputFlags(t *testing.T) {
	names := map[string]bool{}
	for _, f := range OutputFlags() {
		names[f.Names()[0]] = true
	}
	if !names["format"] || !names["no-color"] {
		t.Errorf("OutputFlags should include --format and --no-color, got %v", names)
	}
}

func TestCommands_AcceptOutputFlags(t *testing.T) {
	for _, c := range []struct {
		name  string
		flags []string
	}{
		{name: "run", flags: flagNames(RunCommand().Flags)},
		{name: "events", flags: flagNames(EventsCommand().Flags)},
		{name: "version", flags: flagNames(VersionCommand("").Flags)},
	} {
		joined := strings.Join(c.flags, ",")
		if !strings.Contains(joined, "format") || !strings.Contains(joined, "no-color") {
			t.Errorf("%s command is missing output flags: %s", c.name, joined)
		}
	}
}

func TestNewVersionResponse(t *testing.T) {
	resp := NewVersionResponse("abc123")
	if resp.Version != types.Version {
		t.Errorf("version = %q, want %q", resp.Version, types.Version)
	}
	if resp.ContractVersion != types.ContractVersion {
		t.Errorf("contract version = %q, want %q", resp.ContractVersion, types.ContractVersion)
	}
	if resp.Commit != "abc123" {
		t.Errorf("commit = %q", resp.Commit)
	}
	if !strings.HasPrefix(resp.GoVersion, "go") {
		t.Errorf("go version = %q", resp.GoVersion)
	}
}

// writeStream records a short run on a bus and returns the framed stream.
func writeStream(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := ipc.NewFrameEncoder(&buf)
	bus := eventbus.New("run-001", eventbus.NewStepClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Second))
	bus.SubscribeAll(enc)

	bus.Send(types.NewMeta(bus.Instant(), nil))
	bus.Send(&types.TestRunStarted{At: bus.Instant()})
	bus.Send(&types.TestCaseStarted{At: bus.Instant(), URI: "a.feature", Name: "works"})
	bus.Send(&types.TestCaseFinished{
		At: bus.Instant(), URI: "a.feature", Name: "works",
		Result: types.Result{Status: types.StatusPassed},
	})
	bus.Send(&types.TestRunFinished{At: bus.Instant(), Result: types.Result{Status: types.StatusPassed}})
	bus.Send(&types.RunVerdict{At: bus.Instant(), Success: true})

	if err := enc.Err(); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return &buf
}

func TestReadEventRows(t *testing.T) {
	rows, err := readEventRows(writeStream(t), nil, nil)
	if err != nil {
		t.Fatalf("readEventRows failed: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}

	want := []struct {
		typ    types.EventType
		detail string
	}{
		{types.EventTypeMeta, "verdict " + types.Version},
		{types.EventTypeTestRunStarted, ""},
		{types.EventTypeTestCaseStarted, "a.feature: works"},
		{types.EventTypeTestCaseFinished, "a.feature: works PASSED"},
		{types.EventTypeTestRunFinished, "PASSED"},
		{types.EventTypeRunVerdict, "success"},
	}
	for i, w := range want {
		if rows[i].Seq != int64(i+1) {
			t.Errorf("rows[%d].Seq = %d", i, rows[i].Seq)
		}
		if rows[i].Type != w.typ {
			t.Errorf("rows[%d].Type = %s, want %s", i, rows[i].Type, w.typ)
		}
		if rows[i].Detail != w.detail {
			t.Errorf("rows[%d].Detail = %q, want %q", i, rows[i].Detail, w.detail)
		}
	}
	if rows[0].Ts != "2026-03-01T12:00:00Z" {
		t.Errorf("rows[0].Ts = %q", rows[0].Ts)
	}
}

func TestReadEventRows_TypeFilter(t *testing.T) {
	rows, err := readEventRows(writeStream(t), []string{"test_case_finished", "run_verdict"}, nil)
	if err != nil {
		t.Fatalf("readEventRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Seq != 4 || rows[1].Seq != 6 {
		t.Errorf("unexpected sequence numbers: %d, %d", rows[0].Seq, rows[1].Seq)
	}
}

func TestReadEventRows_Empty(t *testing.T) {
	rows, err := readEventRows(&bytes.Buffer{}, nil, nil)
	if err != nil {
		t.Fatalf("readEventRows failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected an empty, non-nil slice, got %#v", rows)
	}
}

func TestReadEventRows_Truncated(t *testing.T) {
	stream := writeStream(t).Bytes()
	_, err := readEventRows(bytes.NewReader(stream[:len(stream)-3]), nil, nil)
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}
	var frameErr *ipc.FrameError
	if !errors.As(err, &frameErr) {
		t.Errorf("expected *ipc.FrameError, got %T", err)
	}
}

func flagNames(flags []cli.Flag) []string {
	var names []string
	for _, f := range flags {
		names = append(names, f.Names()...)
	}
	return names
}

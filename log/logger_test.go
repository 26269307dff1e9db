package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/verdict/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_RunContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&types.RunMeta{RunID: "run-001", Suite: "checkout", Attempt: 1}, &buf, zapcore.DebugLevel)

	l.Info("run started", map[string]any{"features": 2})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["run_id"] != "run-001" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["suite"] != "checkout" {
		t.Errorf("suite = %v", entry["suite"])
	}
	if entry["message"] != "run started" || entry["level"] != "info" {
		t.Errorf("unexpected entry: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["features"] != float64(2) {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&types.RunMeta{RunID: "run-001", Attempt: 1}, &buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Error("shown", nil)

	if got := len(decodeLines(t, &buf)); got != 2 {
		t.Errorf("expected 2 lines, got %d", got)
	}
}

func TestLogger_WithAndSugar(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&types.RunMeta{RunID: "run-001", Attempt: 1}, &buf, zapcore.DebugLevel).
		With(map[string]any{"component": "orchestrator"})

	l.Sugar().With("hook", "db").Infof("ran %d hooks", 3)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["component"] != "orchestrator" || lines[0]["hook"] != "db" {
		t.Errorf("missing context fields: %v", lines[0])
	}
	if lines[0]["message"] != "ran 3 hooks" {
		t.Errorf("message = %v", lines[0]["message"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("ignored", map[string]any{"k": "v"})
	l.Sugar().Errorf("ignored %d", 1)
}

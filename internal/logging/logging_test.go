package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/raysh454/medtriage/internal/logging"
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
			t.Fatalf("line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestStdoutLogger_WritesJSONLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := logging.NewLogger("history", logging.LevelDebug, &buf)

	l.Info("appended entry", logging.Field{Key: "id", Value: "abc"})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["level"] != "info" || lines[0]["msg"] != "appended entry" || lines[0]["component"] != "history" {
		t.Errorf("unexpected entry: %v", lines[0])
	}
	fields, _ := lines[0]["fields"].(map[string]any)
	if fields["id"] != "abc" {
		t.Errorf("expected id field, got %v", fields)
	}
}

func TestStdoutLogger_LevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := logging.NewLogger("x", logging.LevelWarn, &buf)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines at warn level, got %d", len(lines))
	}
}

func TestStdoutLogger_WithCarriesFieldsAndComponent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := logging.NewLogger("app", logging.LevelInfo, &buf)

	child := l.With(logging.Field{Key: "component", Value: "scanjob"}, logging.Field{Key: "job_id", Value: "j1"})
	child.Info("transition", logging.Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	if lines[0]["component"] != "scanjob" {
		t.Errorf("expected component override, got %v", lines[0]["component"])
	}
	fields, _ := lines[0]["fields"].(map[string]any)
	if fields["job_id"] != "j1" || fields["error"] != "boom" {
		t.Errorf("expected persistent and call fields, got %v", fields)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]logging.Level{
		"debug":   logging.LevelDebug,
		"INFO":    logging.LevelInfo,
		"warning": logging.LevelWarn,
		"error":   logging.LevelError,
		"bogus":   logging.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	cases := map[LogLevel]string{
		LogLevelDebug: "DEBUG",
		LogLevelInfo:  "INFO",
		LogLevelWarn:  "WARN",
		LogLevelError: "ERROR",
		LogLevel(99):  "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Fatalf("level %d: expected %q, got %q", level, want, got)
		}
	}
}

func newBufferLogger(level LogLevel) (*DelegationLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: &buf})
	return l, &buf
}

func TestDelegationLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("messages below the level leaked: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn message missing: %s", out)
	}
}

func TestDelegationLogger_ContextRidesAlong(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.WithDelegation("brisk-amber-heron").WithOwner("ses_1").WithComponent("engine").
		Info("Delegation submitted", "worker_kind", "coder")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	for key, want := range map[string]string{
		"delegation_id": "brisk-amber-heron",
		"owner_scope":   "ses_1",
		"component":     "engine",
		"worker_kind":   "coder",
	} {
		if entry[key] != want {
			t.Fatalf("expected %s=%q in entry, got %v", key, want, entry[key])
		}
	}
}

func TestDelegationLogger_WithDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	_ = l.WithDelegation("scoped-id")
	l.Info("no context")
	if strings.Contains(buf.String(), "scoped-id") {
		t.Fatal("WithDelegation mutated the parent logger")
	}
}

func TestNoOpLogger_Discards(t *testing.T) {
	var l Logger = NoOpLogger{}
	// Must not panic and must accept any arg shape.
	l.Debug("a", "k", 1)
	l.Info("b")
	l.Warn("c", "only-key")
	l.Error("d", "k", "v")
}

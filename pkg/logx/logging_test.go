package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode line: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" || m["message"] != "hello" || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if n, _ := m["n"].(float64); n != 3 {
		t.Fatalf("n = %v, want 3", m["n"])
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %q", c)
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	l.Info("dropped") // must not panic
	if Nop().IsZero() {
		t.Fatal("Nop() should not be zero")
	}
}

func TestFormatChatLine(t *testing.T) {
	got := formatChatLine([]byte(`{"level":"warn","message":"fetch failed","time":"x","kind":"timeout","comp":"monitor"}`))
	want := "[WARN] fetch failed\n- comp=monitor\n- kind=timeout"
	if got != want {
		t.Fatalf("formatChatLine = %q, want %q", got, want)
	}
	if got := formatChatLine([]byte("plain text\n")); got != "plain text" {
		t.Fatalf("non-json line = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("warning", LevelInfo) != LevelWarn {
		t.Fatal("warning should map to warn")
	}
	if parseLevel("nonsense", LevelError) != LevelError {
		t.Fatal("unknown level should fall back to default")
	}
}

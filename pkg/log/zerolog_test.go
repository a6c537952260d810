package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", b, err)
	}
	return m
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapterWithLogger(zerolog.New(&buf))

	a.Warn("frame rejected",
		String("reason", "no digit pair"),
		Bytes("payload", []byte("abc")),
		Int("len", 3),
		Uint64("seen", 7),
		Bool("strict", false),
		Duration("took", time.Second),
		Err(errors.New("boom")),
	)

	m := decodeLine(t, buf.Bytes())
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["message"] != "frame rejected" {
		t.Errorf("message = %v", m["message"])
	}
	if m["payload"] != "abc" {
		t.Errorf("payload = %v, want abc", m["payload"])
	}
	if m["len"] != float64(3) {
		t.Errorf("len = %v, want 3", m["len"])
	}
	if m["error"] != "boom" {
		t.Errorf("error = %v, want boom", m["error"])
	}
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapterWithLogger(zerolog.New(&buf))

	child := a.With(String("peer", "tcp://127.0.0.1:9000"), Int("conn", 2))
	child.Info("connected")

	m := decodeLine(t, buf.Bytes())
	if m["peer"] != "tcp://127.0.0.1:9000" {
		t.Errorf("peer = %v", m["peer"])
	}
	if m["conn"] != float64(2) {
		t.Errorf("conn = %v, want 2", m["conn"])
	}
}

func TestZerologAdapter_DisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	a.Debug("stray closer")
	if buf.Len() != 0 {
		t.Errorf("debug written at info level: %q", buf.String())
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	a := NewZerologAdapter()
	if OrNoop(a) != Logger(a) {
		t.Error("OrNoop should return the given logger")
	}
}

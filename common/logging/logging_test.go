package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/bdobrica/kioku/common/logging"
	"github.com/bdobrica/kioku/common/trace"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithTrace_JSON(t *testing.T) {
	var buf bytes.Buffer
	base := logging.New(&buf, "debug", "json")
	ctx := trace.WithTraceID(context.Background(), "t_test")

	logging.WithTrace(ctx, base).Info("hello", "conversation_id", "!room:x")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "t_test" {
		t.Errorf("trace_id = %v, want t_test", line["trace_id"])
	}
	if line["conversation_id"] != "!room:x" {
		t.Errorf("conversation_id = %v", line["conversation_id"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(&buf, "warn", "text")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn line should be written")
	}
}

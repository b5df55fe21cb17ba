package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/model"
)

// newTestLogger creates a logger that writes JSON to a buffer for assertion.
func newTestLogger(buf *bytes.Buffer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel)
	return zap.New(core)
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	return entry
}

func TestNewLogger_levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"info", false},
		{"debug", true},
		{"bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(config.ObservabilityConfig{LogLevel: tt.level})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			defer func() { _ = logger.Sync() }()

			if !logger.Core().Enabled(zapcore.InfoLevel) {
				t.Error("info level should be enabled")
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestNewLogger_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "addon.log")
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "info", LogFormat: "console", LogFile: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, want the message", data)
	}
}

func TestWithLogger_and_LoggerFrom(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithLogger(context.Background(), logger)

	if got := LoggerFrom(ctx, nil); got != logger {
		t.Error("LoggerFrom should return the stored logger")
	}
	fallback := zap.NewNop()
	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("LoggerFrom should return fallback when no logger in context")
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationIDFrom(context.Background()); got != "" {
		t.Errorf("CorrelationIDFrom(empty) = %q, want empty", got)
	}
	ctx := WithCorrelationID(context.Background(), "corr-1")
	if got := CorrelationIDFrom(ctx); got != "corr-1" {
		t.Errorf("CorrelationIDFrom() = %q, want corr-1", got)
	}
}

func TestRequestLogger_panelRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	rctx := &model.RequestContext{
		Request: &model.Request{
			EventType:  model.EventAction,
			ActionName: "vds.edit",
		},
		Identity:      &model.Identity{ID: 42},
		CorrelationID: "corr-abc",
		TraceID:       "trace-xyz",
	}
	ctx := model.WithRequestContext(context.Background(), rctx)

	RequestLogger(ctx, logger).Info("test message")
	entry := decodeEntry(t, &buf)

	checks := map[string]any{
		"event_type":     "action",
		"action_name":    "vds.edit",
		"correlation_id": "corr-abc",
		"trace_id":       "trace-xyz",
		"user_id":        float64(42),
		"msg":            "test message",
	}
	for key, want := range checks {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
	if _, exists := entry["func"]; exists {
		t.Error("func should not be present for panel requests")
	}
}

func TestRequestLogger_directRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	rctx := &model.RequestContext{Request: &model.Request{Func: "report"}}
	ctx := model.WithRequestContext(context.Background(), rctx)

	RequestLogger(ctx, logger).Info("direct")
	entry := decodeEntry(t, &buf)

	if entry["func"] != "report" {
		t.Errorf("func = %v, want report", entry["func"])
	}
	for _, key := range []string{"trace_id", "user_id", "event_type"} {
		if _, exists := entry[key]; exists {
			t.Errorf("%s should not be present", key)
		}
	}
}

func TestRequestLogger_noRequestContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	RequestLogger(context.Background(), logger).Info("no context")
	entry := decodeEntry(t, &buf)

	if entry["msg"] != "no context" {
		t.Errorf("msg = %v, want no context", entry["msg"])
	}
	if _, exists := entry["correlation_id"]; exists {
		t.Error("correlation_id should not be present without RequestContext")
	}
}

func TestRedactParams(t *testing.T) {
	params := model.Params{
		"name":    {"web-1"},
		"Passwd":  {"hunter2"},
		"confirm": {"hunter2"},
		"note":    {"a", "b"},
		"pin":     {"1234"},
	}

	got := RedactParams(params, []string{"PIN"})
	want := map[string][]string{
		"name":    {"web-1"},
		"Passwd":  {"[REDACTED]"},
		"confirm": {"[REDACTED]"},
		"note":    {"a", "b"},
		"pin":     {"[REDACTED]"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RedactParams() mismatch (-want +got):\n%s", diff)
	}
	if params.Get("Passwd") != "hunter2" {
		t.Error("RedactParams mutated its input")
	}
	if RedactParams(nil, nil) != nil {
		t.Error("RedactParams(nil) should be nil")
	}
}

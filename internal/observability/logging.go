package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/model"
)

// Context keys.
type (
	loggerKey        struct{}
	correlationIDKey struct{}
)

// NewLogger creates a zap.Logger writing to stderr, or to cfg.LogFile when
// set. Stdout is never used: in CGI panel mode it carries the envelope.
//
// Log level usage conventions:
//   - error: unknown endpoint failures, panics, encoding failures
//   - warn:  access denials, domain errors, missing direct handlers
//   - info:  echo fallbacks, startup and shutdown
//   - debug: request parameters (redacted)
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoding := cfg.LogFormat
	if encoding != "console" {
		encoding = "json"
	}

	output := "stderr"
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		output = cfg.LogFile
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or the provided
// fallback if none is found.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// WithCorrelationID stores the request correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFrom returns the correlation id, or "".
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// RequestLogger returns a logger enriched with RequestContext fields.
// If no logger is in the context, the fallback is used.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	fields := []zap.Field{zap.String("correlation_id", rctx.CorrelationID)}
	if req := rctx.Request; req != nil {
		if req.IsPanel() {
			fields = append(fields,
				zap.String("event_type", string(req.EventType)),
				zap.String("action_name", req.ActionName),
			)
		} else {
			fields = append(fields, zap.String("func", req.Func))
		}
	}
	if rctx.Identity != nil {
		fields = append(fields, zap.Int64("user_id", rctx.Identity.ID))
	}

	// Include trace_id if present.
	if rctx.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rctx.TraceID))
	}

	return logger.With(fields...)
}

// defaultSensitiveParams is the default set of parameter names that are
// redacted in debug logging output.
var defaultSensitiveParams = map[string]bool{
	"password":      true,
	"passwd":        true,
	"confirm":       true,
	"secret":        true,
	"token":         true,
	"auth":          true,
	"api_key":       true,
	"authorization": true,
	"billmgrses5":   true,
}

// RedactParams returns a copy of params with sensitive values replaced by
// "[REDACTED]". Names match case-insensitively; sensitive is merged with
// the default set. This is intended for debug-level logging only.
func RedactParams(params model.Params, sensitive []string) map[string][]string {
	if params == nil {
		return nil
	}

	redactSet := make(map[string]bool, len(defaultSensitiveParams)+len(sensitive))
	for k, v := range defaultSensitiveParams {
		redactSet[k] = v
	}
	for _, f := range sensitive {
		redactSet[strings.ToLower(f)] = true
	}

	result := make(map[string][]string, len(params))
	for k, v := range params {
		if redactSet[strings.ToLower(k)] {
			result[k] = []string{"[REDACTED]"}
			continue
		}
		result[k] = append([]string(nil), v...)
	}
	return result
}

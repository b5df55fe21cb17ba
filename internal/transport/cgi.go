package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cgi"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/model"
)

// ServePanel answers one panel event from a CGI environment. The envelope is
// written to stdout with no status line or headers. A malformed environment
// is answered with a parse error envelope and the error is returned.
func ServePanel(ctx context.Context, d Dispatcher, environ []string, stdin io.Reader, stdout io.Writer) error {
	req, err := RequestFromEnv(environ, stdin)
	if err != nil {
		body, encErr := envelope.FromError(model.NewParseError("Malformed request", err)).Encode()
		if encErr == nil {
			_, _ = io.WriteString(stdout, body)
		}
		return err
	}
	if observability.CorrelationIDFrom(ctx) == "" {
		ctx = observability.WithCorrelationID(ctx, uuid.NewString())
	}
	resp := d.Dispatch(ctx, req)
	if _, err := stdout.Write(resp.Body); err != nil {
		return fmt.Errorf("transport: write envelope: %w", err)
	}
	return nil
}

// CGIHandler is the handler served for direct requests in CGI mode. The
// panel mounts the plugin under its own script path, so every path
// dispatches.
func CGIHandler(d Dispatcher, logger *zap.Logger) http.Handler {
	return Recovery(logger)(RequestID(RequestLogging(logger)(DispatchHandler(d))))
}

// ServeCGI handles one CGI invocation. Panel events are answered by
// ServePanel. Anything else is served as HTTP through net/http/cgi, which
// reads the process environment and stdio itself.
func ServeCGI(ctx context.Context, d Dispatcher, logger *zap.Logger, environ []string, stdin io.Reader, stdout io.Writer) error {
	if IsPanelEnv(environ) {
		ctx = observability.WithLogger(ctx, logger)
		return ServePanel(ctx, d, environ, stdin, stdout)
	}
	return cgi.Serve(CGIHandler(d, logger))
}

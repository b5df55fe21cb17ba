package transport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/model"
)

// Dispatcher turns a request into a response. *dispatch.Router implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *model.Request) *model.Response
}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config     *config.Config
	Dispatcher Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Gatherer   prometheus.Gatherer
	Readiness  observability.ReadinessChecks
}

// NewRouter creates the service-mode chi router. Operational routes skip
// request logging, tracing, and HTTP metrics.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Readiness))
	if m := deps.Config.Observability.Metrics; m.Enabled && deps.Gatherer != nil {
		r.Handle(m.Path, observability.Handler(deps.Gatherer))
	}
	if dir := deps.Config.Paths.Public; dir != "" {
		r.Handle("/public/*", http.StripPrefix("/public/", http.FileServer(http.Dir(dir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}
		r.Use(RequestLogging(logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))

		h := DispatchHandler(deps.Dispatcher)
		r.Get("/", h)
		r.Post("/", h)
	})

	return r
}

// DispatchHandler extracts a request, dispatches it, and writes the result.
func DispatchHandler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := RequestFromHTTP(r)
		if err != nil {
			observability.LoggerFrom(r.Context(), zap.NewNop()).Warn("bad request", zap.Error(err))
			WriteText(w, http.StatusBadRequest, "Bad Request")
			return
		}
		WriteResponse(w, d.Dispatch(r.Context(), req))
	}
}

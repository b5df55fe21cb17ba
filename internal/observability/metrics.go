package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	dispatchDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	presetDurationBuckets   = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30}
	bodySizeBuckets         = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments of the plugin.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Preset metrics
	PresetResolutionsTotal *prometheus.CounterVec
	PresetDuration         prometheus.Histogram
	PresetSources          prometheus.Histogram

	// Cache metrics
	IdentityCacheHitsTotal   prometheus.Counter
	IdentityCacheMissesTotal prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billmgr_addon_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billmgr_addon_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billmgr_addon_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Dispatch
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billmgr_addon_dispatch_total",
			Help: "Total number of dispatched requests.",
		}, []string{"endpoint", "event", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billmgr_addon_dispatch_duration_seconds",
			Help:    "Dispatch duration in seconds.",
			Buckets: dispatchDurationBuckets,
		}, []string{"endpoint", "event"}),

		// Presets
		PresetResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billmgr_addon_preset_resolutions_total",
			Help: "Total number of option preset resolutions.",
		}, []string{"outcome"}),
		PresetDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billmgr_addon_preset_duration_seconds",
			Help:    "Option preset resolution duration in seconds.",
			Buckets: presetDurationBuckets,
		}),
		PresetSources: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billmgr_addon_preset_sources",
			Help:    "Number of option sources per resolution.",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		}),

		// Cache
		IdentityCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billmgr_addon_identity_cache_hits_total",
			Help: "Total identity cache hits.",
		}),
		IdentityCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billmgr_addon_identity_cache_misses_total",
			Help: "Total identity cache misses.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSizeBytes,
		m.DispatchTotal,
		m.DispatchDuration,
		m.PresetResolutionsTotal,
		m.PresetDuration,
		m.PresetSources,
		m.IdentityCacheHitsTotal,
		m.IdentityCacheMissesTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// ObserveDispatch records one dispatched request. Direct requests carry an
// empty event, reported as "direct".
func (m *Metrics) ObserveDispatch(endpoint, event, outcome string, duration time.Duration) {
	if event == "" {
		event = "direct"
	}
	m.DispatchTotal.WithLabelValues(endpoint, event, outcome).Inc()
	m.DispatchDuration.WithLabelValues(endpoint, event).Observe(duration.Seconds())
}

// ObservePreset records one option preset resolution.
func (m *Metrics) ObservePreset(outcome string, sources int, duration time.Duration) {
	m.PresetResolutionsTotal.WithLabelValues(outcome).Inc()
	m.PresetDuration.Observe(duration.Seconds())
	m.PresetSources.Observe(float64(sources))
}

// RecordIdentityCacheHit records an identity cache hit.
func (m *Metrics) RecordIdentityCacheHit() {
	m.IdentityCacheHitsTotal.Inc()
}

// RecordIdentityCacheMiss records an identity cache miss.
func (m *Metrics) RecordIdentityCacheMiss() {
	m.IdentityCacheMissesTotal.Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start), sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

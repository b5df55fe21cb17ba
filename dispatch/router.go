// Package dispatch routes panel events and direct UI requests to plugin
// endpoints and turns their results or failures into responses.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/model"
	"github.com/pulivilizator/billmgr-addon/preset"
)

// Outcomes reported to a Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeEcho     = "echo"
	OutcomeFallback = "fallback"
	OutcomeLanding  = "landing"
)

// Recorder observes dispatched requests. observability.Metrics implements it.
type Recorder interface {
	ObserveDispatch(endpoint, event, outcome string, d time.Duration)
}

// Router resolves endpoints by name. Panel endpoints and direct endpoints
// live in disjoint maps built once by NewRouter.
type Router struct {
	panel  map[string]Endpoint
	direct map[string]*DirectEndpoint

	logger        *zap.Logger
	recorder      Recorder
	identities    model.IdentityLookup
	catalog       model.Catalog
	settings      map[string]string
	defaultLocale string
	presetTimeout time.Duration
	presetRec     preset.Recorder
	landing       func(ctx context.Context) ([]byte, error)
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithRecorder sets the metrics recorder for dispatch and presets.
func WithRecorder(rec interface {
	Recorder
	preset.Recorder
}) Option {
	return func(r *Router) {
		r.recorder = rec
		r.presetRec = rec
	}
}

// WithIdentityLookup resolves session tokens into identities.
func WithIdentityLookup(l model.IdentityLookup) Option {
	return func(r *Router) { r.identities = l }
}

// WithCatalog sets the message catalog handed to endpoints.
func WithCatalog(c model.Catalog) Option {
	return func(r *Router) { r.catalog = c }
}

// WithSettings exposes plugin settings to endpoints.
func WithSettings(s map[string]string) Option {
	return func(r *Router) { r.settings = s }
}

// WithDefaultLocale sets the locale of requests that carry none.
func WithDefaultLocale(locale string) Option {
	return func(r *Router) { r.defaultLocale = locale }
}

// WithPresetTimeout bounds option resolution.
func WithPresetTimeout(d time.Duration) Option {
	return func(r *Router) { r.presetTimeout = d }
}

// WithLanding serves the page returned by fn for direct requests without a
// func name.
func WithLanding(fn func(ctx context.Context) ([]byte, error)) Option {
	return func(r *Router) { r.landing = fn }
}

// NewRouter indexes panel and direct endpoints by name. An empty or
// repeated name is a configuration error.
func NewRouter(endpoints []Endpoint, direct []*DirectEndpoint, opts ...Option) (*Router, error) {
	r := &Router{
		panel:         make(map[string]Endpoint, len(endpoints)),
		direct:        make(map[string]*DirectEndpoint, len(direct)),
		logger:        zap.NewNop(),
		defaultLocale: "en",
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, e := range endpoints {
		name := e.EndpointName()
		if name == "" {
			return nil, errors.New("dispatch: endpoint with empty name")
		}
		if _, dup := r.panel[name]; dup {
			return nil, fmt.Errorf("dispatch: duplicated endpoint %q", name)
		}
		r.panel[name] = e
	}
	for _, e := range direct {
		if e.Name == "" {
			return nil, errors.New("dispatch: direct endpoint with empty name")
		}
		if _, dup := r.direct[e.Name]; dup {
			return nil, fmt.Errorf("dispatch: duplicated direct endpoint %q", e.Name)
		}
		r.direct[e.Name] = e
	}
	return r, nil
}

// Endpoints returns the number of panel and direct endpoints.
func (r *Router) Endpoints() (panel, direct int) {
	return len(r.panel), len(r.direct)
}

func (r *Router) presetOptions() preset.Options {
	return preset.Options{Timeout: r.presetTimeout, Recorder: r.presetRec}
}

// Dispatch handles one request. It never returns an error: every failure is
// converted into a response.
func (r *Router) Dispatch(ctx context.Context, req *model.Request) *model.Response {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "dispatch.Dispatch",
		observability.AttrEventType.String(string(req.EventType)),
		observability.AttrActionName.String(req.ActionName),
		observability.AttrFunc.String(req.Func),
	)
	defer span.End()

	rc := r.requestContext(ctx, req)
	ctx = model.WithRequestContext(ctx, rc)
	logger := observability.RequestLogger(ctx, r.logger)
	ctx = observability.WithLogger(ctx, logger)

	var (
		resp    *model.Response
		name    string
		outcome string
	)
	if req.IsPanel() {
		name = req.ActionName
		resp, outcome = r.dispatchPanel(ctx, rc, logger, span)
	} else {
		name = req.Func
		resp, outcome = r.dispatchDirect(ctx, rc, logger, span)
	}
	span.SetAttributes(observability.AttrOutcome.String(outcome))
	if r.recorder != nil {
		r.recorder.ObserveDispatch(name, string(req.EventType), outcome, time.Since(start))
	}
	return resp
}

func (r *Router) requestContext(ctx context.Context, req *model.Request) *model.RequestContext {
	rc := &model.RequestContext{
		Request:       req,
		Locale:        req.Locale,
		Catalog:       r.catalog,
		Settings:      r.settings,
		CorrelationID: observability.CorrelationIDFrom(ctx),
		TraceID:       observability.TraceIDFromContext(ctx),
	}
	if req.SessionToken != "" && r.identities != nil {
		id, err := r.identities.LookupIdentity(ctx, req.SessionToken, req.RemoteAddr)
		if err != nil {
			r.logger.Warn("identity lookup failed", zap.Error(err))
		}
		rc.Identity = id
	}
	if rc.Locale == "" {
		rc.Locale = r.defaultLocale
	}
	return rc
}

func (r *Router) dispatchPanel(ctx context.Context, rc *model.RequestContext, logger *zap.Logger, span trace.Span) (*model.Response, string) {
	req := rc.Request
	logger.Debug("panel request", zap.Any("params", observability.RedactParams(req.Params, nil)))

	ep, ok := r.panel[req.ActionName]
	if !ok {
		logger.Info("no endpoint registered, echoing payload")
		return r.reply(logger, echoReply(rc)), OutcomeEcho
	}

	g := ep.guard()
	if g.authLevel != 0 && g.authLevel != req.AuthLevel {
		logger.Warn("access denied",
			zap.Int("required_auth_level", g.authLevel),
			zap.Int("auth_level", req.AuthLevel),
		)
		return r.reply(logger, envelope.FromError(model.NewAccessDeniedError())), OutcomeDenied
	}

	reply, err := call(func() (envelope.Reply, error) { return ep.serve(ctx, rc, r) })
	if err == nil {
		if reply == nil {
			reply = envelope.OK()
		}
		return r.reply(logger, reply), OutcomeOK
	}

	observability.RecordSpanError(span, err)
	me := model.AsError(err)
	if me.Kind != model.KindUnknown {
		logger.Warn("endpoint error", zap.String("kind", string(me.Kind)), zap.Error(err))
		return r.reply(logger, envelope.FromError(me)), OutcomeError
	}
	logger.Error("endpoint failed", zap.Error(err), zap.Stack("stack"))
	if g.fallbackOnError {
		logger.Info("falling back to echo after error")
		return r.reply(logger, echoReply(rc)), OutcomeFallback
	}
	return r.reply(logger, envelope.Unknown()), OutcomeError
}

func (r *Router) dispatchDirect(ctx context.Context, rc *model.RequestContext, logger *zap.Logger, span trace.Span) (*model.Response, string) {
	req := rc.Request
	if req.Func == "" {
		return r.landingPage(ctx, logger)
	}

	ep, ok := r.direct[req.Func]
	if !ok {
		logger.Warn("direct handler not found")
		return text(model.StatusNotFound, "Handler not found"), OutcomeNotFound
	}
	if !ep.admits(rc.Identity) {
		logger.Warn("access denied", zap.Int("required_auth_level", ep.AuthLevel), zap.Strings("roles", ep.Roles))
		return text(model.StatusDenied, "Forbidden"), OutcomeDenied
	}

	resp, err := call(func() (*model.Response, error) { return ep.Handle(ctx, rc) })
	if err != nil {
		observability.RecordSpanError(span, err)
		me := model.AsError(err)
		var reply envelope.Reply = envelope.Unknown()
		if me.Kind == model.KindUnknown {
			logger.Error("direct handler failed", zap.Error(err), zap.Stack("stack"))
		} else {
			logger.Warn("direct handler error", zap.String("kind", string(me.Kind)), zap.Error(err))
			reply = envelope.FromError(me)
		}
		out := r.reply(logger, reply)
		out.Status = model.StatusError
		return out, OutcomeError
	}
	if resp == nil {
		return r.reply(logger, envelope.OK()), OutcomeOK
	}
	return resp, OutcomeOK
}

func (r *Router) landingPage(ctx context.Context, logger *zap.Logger) (*model.Response, string) {
	if r.landing == nil {
		return text(model.StatusNotFound, "Handler not found"), OutcomeNotFound
	}
	body, err := r.landing(ctx)
	if err != nil {
		logger.Error("landing page unavailable", zap.Error(err))
		return text(model.StatusNotFound, "Handler not found"), OutcomeNotFound
	}
	return &model.Response{Status: model.StatusOK, ContentType: model.ContentTypeHTML, Body: body}, OutcomeLanding
}

// reply encodes an envelope. An encoding failure degrades to the unknown
// error envelope.
func (r *Router) reply(logger *zap.Logger, reply envelope.Reply) *model.Response {
	body, err := reply.Encode()
	if err != nil {
		logger.Error("encode reply", zap.Error(err))
		body, _ = envelope.Unknown().Encode()
	}
	return &model.Response{Status: model.StatusOK, ContentType: model.ContentTypeXML, Body: []byte(body)}
}

func echoReply(rc *model.RequestContext) envelope.Reply {
	reply, _ := echo{}.serve(context.Background(), rc, nil)
	return reply
}

func text(status model.Status, body string) *model.Response {
	return &model.Response{Status: status, ContentType: model.ContentTypeText, Body: []byte(body)}
}

// call runs fn and converts a panic into an error.
func call[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

package model

import "context"

// RequestContext is the request-scoped state handed to every endpoint call.
type RequestContext struct {
	Request       *Request
	Identity      *Identity
	Locale        string
	Catalog       Catalog
	Settings      map[string]string
	CorrelationID string
	TraceID       string
}

// T translates key for the request locale. Without a catalog the key is
// returned as is.
func (rc *RequestContext) T(key string, params map[string]any) string {
	if rc.Catalog == nil {
		return key
	}
	return rc.Catalog.Get(rc.Locale, key, params)
}

// Setting returns a plugin setting, or "" if unset.
func (rc *RequestContext) Setting(key string) string {
	return rc.Settings[key]
}

// Params returns the request parameters, never nil.
func (rc *RequestContext) Params() Params {
	if rc.Request == nil || rc.Request.Params == nil {
		return Params{}
	}
	return rc.Request.Params
}

// UserID returns the identity id, or 0 when the caller is anonymous.
func (rc *RequestContext) UserID() int64 {
	if rc.Identity == nil {
		return 0
	}
	return rc.Identity.ID
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}

// MustRequestContext extracts the RequestContext from the context, panicking if
// it is not present.
func MustRequestContext(ctx context.Context) *RequestContext {
	rctx := RequestContextFrom(ctx)
	if rctx == nil {
		panic("model: RequestContext not found in context")
	}
	return rctx
}

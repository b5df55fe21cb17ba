package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/pulivilizator/billmgr-addon/model"
)

// Panel markers carried as headers in service mode.
const (
	HeaderEventType     = "X-Mgr-Event-Type"
	HeaderActionName    = "X-Mgr-Action-Name"
	HeaderAuthLevel     = "X-Mgr-Auth-Level"
	HeaderCorrelationID = "X-Correlation-Id"
)

// CGI environment set by the panel.
const (
	EnvEventType   = "EVENT_TYPE"
	EnvActionName  = "ACTION_NAME"
	EnvAuthLevel   = "AUTH_LEVEL"
	EnvCookie      = "HTTP_COOKIE"
	EnvQueryString = "QUERY_STRING"
	EnvRemoteAddr  = "REMOTE_ADDR"
	EnvMethod      = "REQUEST_METHOD"
)

// SessionCookie is the panel session cookie.
const SessionCookie = "billmgrses5"

// ParamLang selects the request locale.
const ParamLang = "lang"

// MaxPayloadBytes bounds the XML payload read from a request body or stdin.
const MaxPayloadBytes = 16 << 20

// RequestFromHTTP builds a request from a service-mode HTTP request. Panel
// markers come from headers; params merge the query and form values.
func RequestFromHTTP(r *http.Request) (*model.Request, error) {
	req := &model.Request{
		EventType:  model.EventType(r.Header.Get(HeaderEventType)),
		ActionName: r.Header.Get(HeaderActionName),
		Method:     r.Method,
		RemoteAddr: remoteAddr(r),
		Params:     make(model.Params),
	}
	if v := r.Header.Get(HeaderAuthLevel); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid %s %q: %w", HeaderAuthLevel, v, err)
		}
		req.AuthLevel = level
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		req.SessionToken = c.Value
	}

	if req.IsPanel() {
		body, err := readPayload(r.Body)
		if err != nil {
			return nil, err
		}
		req.Payload = body
		addValues(req.Params, r.URL.Query())
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("transport: parse form: %w", err)
		}
		addValues(req.Params, r.Form)
		req.Func = req.Params.Get("func")
	}
	req.Locale = localeOf(req.Params.Get(ParamLang), r.Header.Get("Accept-Language"))
	return req, nil
}

// RequestFromEnv builds a panel request from a CGI environment, given as
// KEY=VALUE pairs, and the payload on stdin.
func RequestFromEnv(environ []string, stdin io.Reader) (*model.Request, error) {
	env := envMap(environ)
	req := &model.Request{
		EventType:    model.EventType(env[EnvEventType]),
		ActionName:   env[EnvActionName],
		Method:       env[EnvMethod],
		RemoteAddr:   env[EnvRemoteAddr],
		SessionToken: sessionFromCookie(env[EnvCookie]),
		Params:       model.ParamsFromEnv(environ),
	}
	if v := env[EnvAuthLevel]; v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid %s %q: %w", EnvAuthLevel, v, err)
		}
		req.AuthLevel = level
	}
	if qs := env[EnvQueryString]; qs != "" {
		values, err := url.ParseQuery(qs)
		if err != nil {
			return nil, fmt.Errorf("transport: parse %s: %w", EnvQueryString, err)
		}
		for k, vs := range values {
			if !req.Params.Has(k) {
				req.Params.Set(k, vs...)
			}
		}
	}
	if stdin != nil {
		body, err := readPayload(stdin)
		if err != nil {
			return nil, err
		}
		req.Payload = body
	}
	req.Locale = localeOf(req.Params.Get(ParamLang), "")
	return req, nil
}

// IsPanelEnv reports whether environ carries a panel event.
func IsPanelEnv(environ []string) bool {
	return model.EventType(envMap(environ)[EnvEventType]).IsPanel()
}

// remoteAddr prefers the first X-Forwarded-For hop set by the panel's web
// server.
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

func readPayload(r io.Reader) (string, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, MaxPayloadBytes+1))
	if err != nil {
		return "", fmt.Errorf("transport: read payload: %w", err)
	}
	if n > MaxPayloadBytes {
		return "", fmt.Errorf("transport: payload exceeds %d bytes", MaxPayloadBytes)
	}
	return buf.String(), nil
}

// addValues copies values into params, stripping the CGI parameter prefix.
func addValues(params model.Params, values url.Values) {
	for k, vs := range values {
		name := strings.TrimPrefix(k, model.ParamPrefix)
		if name == "" {
			continue
		}
		for _, v := range vs {
			params.Add(name, v)
		}
	}
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

func sessionFromCookie(header string) string {
	if header == "" {
		return ""
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == SessionCookie {
			return c.Value
		}
	}
	return ""
}

// localeOf picks the explicit lang param, else the preferred Accept-Language
// base. An empty result lets the router apply its default.
func localeOf(lang, acceptLanguage string) string {
	if lang != "" {
		return lang
	}
	if acceptLanguage == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return ""
	}
	base, _ := tags[0].Base()
	return base.String()
}

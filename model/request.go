package model

import "strings"

// EventType is the panel event marker of a request. An empty value marks a
// direct UI request.
type EventType string

// Panel event kinds.
const (
	EventAction EventType = "action"
	EventBefore EventType = "before"
	EventAfter  EventType = "after"
	EventFinal  EventType = "final"
)

// IsPanel reports whether e is one of the panel event kinds.
func (e EventType) IsPanel() bool {
	switch e {
	case EventAction, EventBefore, EventAfter, EventFinal:
		return true
	}
	return false
}

// ParamPrefix marks request parameters in a CGI environment.
const ParamPrefix = "PARAM_"

// Params is the flat request parameter set. Values may repeat.
type Params map[string][]string

// Get returns the first value of key, or "".
func (p Params) Get(key string) string {
	if v := p[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether key was sent at all, even with an empty value.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Values returns every value of key.
func (p Params) Values(key string) []string {
	return p[key]
}

// Set replaces the values of key.
func (p Params) Set(key string, values ...string) {
	p[key] = values
}

// Add appends a value to key.
func (p Params) Add(key, value string) {
	p[key] = append(p[key], value)
}

// ParamsFromEnv collects PARAM_-prefixed variables from environ, given as
// KEY=VALUE pairs.
func ParamsFromEnv(environ []string) Params {
	params := make(Params)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, ParamPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, ParamPrefix)
		if name == "" {
			continue
		}
		params.Add(name, value)
	}
	return params
}

// Request is one inbound call, either a panel event or a direct UI request.
type Request struct {
	EventType    EventType
	ActionName   string
	Func         string
	AuthLevel    int
	SessionToken string
	Locale       string
	Method       string
	RemoteAddr   string
	Params       Params
	Payload      string
}

// IsPanel reports whether r is a panel event.
func (r *Request) IsPanel() bool {
	return r.EventType.IsPanel()
}

// Status is the outcome signal for non-panel responses.
type Status int

// Response statuses.
const (
	StatusOK Status = iota
	StatusDenied
	StatusNotFound
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDenied:
		return "denied"
	case StatusNotFound:
		return "not_found"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Content types used by responses.
const (
	ContentTypeXML  = "text/xml; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response is the dispatcher output. Panel responses always carry StatusOK.
// A non-empty Filename marks the body as a file download.
type Response struct {
	Status      Status
	ContentType string
	Body        []byte
	Filename    string
}

// Download returns a response offering content as a file. An empty filename
// becomes "file.txt" and an empty content type becomes plain text.
func Download(content []byte, filename, contentType string) *Response {
	if filename == "" {
		filename = "file.txt"
	}
	if contentType == "" {
		contentType = ContentTypeText
	}
	return &Response{Status: StatusOK, ContentType: contentType, Body: content, Filename: filename}
}

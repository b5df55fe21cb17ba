// Package transport exposes the dispatcher over HTTP and CGI.
package transport

import (
	"mime"
	"net/http"

	"github.com/pulivilizator/billmgr-addon/model"
)

// statusForCode maps response statuses to HTTP status codes.
var statusForCode = map[model.Status]int{
	model.StatusOK:       http.StatusOK,
	model.StatusDenied:   http.StatusForbidden,
	model.StatusNotFound: http.StatusNotFound,
	model.StatusError:    http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code for s.
func HTTPStatus(s model.Status) int {
	if code, ok := statusForCode[s]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// WriteResponse writes a dispatcher response.
func WriteResponse(w http.ResponseWriter, resp *model.Response) {
	ct := resp.ContentType
	if ct == "" {
		ct = model.ContentTypeXML
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if resp.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": resp.Filename}))
	}
	w.WriteHeader(HTTPStatus(resp.Status))
	_, _ = w.Write(resp.Body)
}

// WriteText writes a plain text response.
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", model.ContentTypeText)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

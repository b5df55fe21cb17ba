package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pulivilizator/billmgr-addon/model"
)

const payload = `<doc><metadata name="vds.edit" type="form"/></doc>`

func TestRequestFromHTTP_panel(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/?PARAM_elid=5&sok=ok&lang=ru", strings.NewReader(payload))
	r.Header.Set(HeaderEventType, "action")
	r.Header.Set(HeaderActionName, "vds.edit")
	r.Header.Set(HeaderAuthLevel, "16")
	r.Header.Set("Content-Type", "text/xml")
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "ses-1"})

	req, err := RequestFromHTTP(r)
	if err != nil {
		t.Fatalf("RequestFromHTTP() error = %v", err)
	}

	if !req.IsPanel() || req.ActionName != "vds.edit" || req.AuthLevel != 16 {
		t.Errorf("markers = %q/%q/%d, want action/vds.edit/16", req.EventType, req.ActionName, req.AuthLevel)
	}
	if req.SessionToken != "ses-1" {
		t.Errorf("SessionToken = %q, want ses-1", req.SessionToken)
	}
	if req.Payload != payload {
		t.Errorf("Payload = %q, want %q", req.Payload, payload)
	}
	want := model.Params{"elid": {"5"}, "sok": {"ok"}, "lang": {"ru"}}
	if diff := cmp.Diff(want, req.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}
	if req.Locale != "ru" {
		t.Errorf("Locale = %q, want ru", req.Locale)
	}
}

func TestRequestFromHTTP_direct(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/?func=export", strings.NewReader("elid=3&elid=4"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")

	req, err := RequestFromHTTP(r)
	if err != nil {
		t.Fatalf("RequestFromHTTP() error = %v", err)
	}
	if req.IsPanel() {
		t.Error("request without event type should be direct")
	}
	if req.Func != "export" {
		t.Errorf("Func = %q, want export", req.Func)
	}
	if diff := cmp.Diff([]string{"3", "4"}, req.Params.Values("elid")); diff != "" {
		t.Errorf("elid mismatch (-want +got):\n%s", diff)
	}
	if req.Payload != "" {
		t.Errorf("Payload = %q, want empty for direct requests", req.Payload)
	}
	if req.Locale != "de" {
		t.Errorf("Locale = %q, want de", req.Locale)
	}
	if req.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", req.Method)
	}
	if req.RemoteAddr != "192.0.2.1:1234" {
		t.Errorf("RemoteAddr = %q, want the httptest default", req.RemoteAddr)
	}
}

func TestRequestFromHTTP_forwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?func=export", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	req, err := RequestFromHTTP(r)
	if err != nil {
		t.Fatalf("RequestFromHTTP() error = %v", err)
	}
	if req.RemoteAddr != "203.0.113.9" {
		t.Errorf("RemoteAddr = %q, want 203.0.113.9", req.RemoteAddr)
	}
}

func TestRequestFromHTTP_badAuthLevel(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(HeaderEventType, "action")
	r.Header.Set(HeaderAuthLevel, "admin")

	if _, err := RequestFromHTTP(r); err == nil {
		t.Fatal("expected error for non-numeric auth level")
	}
}

func TestRequestFromEnv(t *testing.T) {
	environ := []string{
		"EVENT_TYPE=before",
		"ACTION_NAME=vds.edit",
		"AUTH_LEVEL=29",
		"HTTP_COOKIE=theme=dark; billmgrses5=ses-9",
		"REQUEST_METHOD=POST",
		"REMOTE_ADDR=10.0.0.2",
		"QUERY_STRING=elid=7&out=xml",
		"PARAM_elid=5",
		"PARAM_sok=ok",
		"PARAM_lang=en",
		"PATH=/usr/bin",
	}

	req, err := RequestFromEnv(environ, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("RequestFromEnv() error = %v", err)
	}

	if req.EventType != model.EventBefore || req.ActionName != "vds.edit" || req.AuthLevel != 29 {
		t.Errorf("markers = %q/%q/%d, want before/vds.edit/29", req.EventType, req.ActionName, req.AuthLevel)
	}
	if req.SessionToken != "ses-9" {
		t.Errorf("SessionToken = %q, want ses-9", req.SessionToken)
	}
	if req.RemoteAddr != "10.0.0.2" || req.Method != "POST" {
		t.Errorf("RemoteAddr/Method = %q/%q", req.RemoteAddr, req.Method)
	}
	want := model.Params{"elid": {"5"}, "sok": {"ok"}, "lang": {"en"}, "out": {"xml"}}
	if diff := cmp.Diff(want, req.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}
	if req.Payload != payload {
		t.Errorf("Payload = %q, want %q", req.Payload, payload)
	}
	if req.Locale != "en" {
		t.Errorf("Locale = %q, want en", req.Locale)
	}
}

func TestRequestFromEnv_errors(t *testing.T) {
	tests := map[string][]string{
		"auth level":   {"EVENT_TYPE=action", "AUTH_LEVEL=x"},
		"query string": {"EVENT_TYPE=action", "QUERY_STRING=a=%zz"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := RequestFromEnv(environ, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRequestFromEnv_payloadTooLarge(t *testing.T) {
	big := strings.NewReader(strings.Repeat("x", MaxPayloadBytes+1))
	if _, err := RequestFromEnv([]string{"EVENT_TYPE=action"}, big); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestIsPanelEnv(t *testing.T) {
	tests := []struct {
		environ []string
		want    bool
	}{
		{[]string{"EVENT_TYPE=action"}, true},
		{[]string{"EVENT_TYPE=after"}, true},
		{[]string{"EVENT_TYPE=final"}, true},
		{[]string{"EVENT_TYPE=other"}, false},
		{[]string{"QUERY_STRING=func=export"}, false},
	}
	for _, tt := range tests {
		if got := IsPanelEnv(tt.environ); got != tt.want {
			t.Errorf("IsPanelEnv(%v) = %v, want %v", tt.environ, got, tt.want)
		}
	}
}

func TestSessionFromCookie(t *testing.T) {
	tests := map[string]string{
		"":                              "",
		"billmgrses5=abc":               "abc",
		"lang=ru; billmgrses5=def; x=1": "def",
		"other=1":                       "",
	}
	for header, want := range tests {
		if got := sessionFromCookie(header); got != want {
			t.Errorf("sessionFromCookie(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestLocaleOf(t *testing.T) {
	tests := []struct {
		lang, accept, want string
	}{
		{"ru", "en", "ru"},
		{"", "fr-CA,fr;q=0.8", "fr"},
		{"", "", ""},
		{"", "!!!", ""},
	}
	for _, tt := range tests {
		if got := localeOf(tt.lang, tt.accept); got != tt.want {
			t.Errorf("localeOf(%q, %q) = %q, want %q", tt.lang, tt.accept, got, tt.want)
		}
	}
}

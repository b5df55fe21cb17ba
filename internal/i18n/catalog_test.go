package i18n

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(filepath.Join("testdata", "locales"), "en")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func TestCatalog_Get(t *testing.T) {
	c := loadTestCatalog(t)

	tests := []struct {
		name   string
		locale string
		key    string
		params map[string]any
		want   string
	}{
		{name: "default locale", locale: "en", key: "button.save", want: "Save"},
		{name: "translated", locale: "ru", key: "button.save", want: "Сохранить"},
		{name: "nested directory", locale: "de", key: "button.save", want: "Speichern"},
		{name: "quoted dotted key", locale: "en", key: "field.os", want: "Operating system"},
		{name: "params", locale: "en", key: "greeting", params: map[string]any{"Name": "Alice"}, want: "Hello, Alice"},
		{name: "params translated", locale: "ru", key: "greeting", params: map[string]any{"Name": "Алиса"}, want: "Здравствуйте, Алиса"},
		{name: "falls back to default locale", locale: "ru", key: "button.cancel", want: "Cancel"},
		{name: "unknown locale", locale: "fr", key: "button.save", want: "Save"},
		{name: "empty locale", locale: "", key: "button.save", want: "Save"},
		{name: "regional locale", locale: "ru-RU", key: "button.save", want: "Сохранить"},
		{name: "missing key", locale: "ru", key: "no.such.key", want: "no.such.key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Get(tt.locale, tt.key, tt.params); got != tt.want {
				t.Errorf("Get(%q, %q) = %q, want %q", tt.locale, tt.key, got, tt.want)
			}
		})
	}
}

func TestCatalog_Locales(t *testing.T) {
	c := loadTestCatalog(t)

	got := c.Locales()
	if got[0] != "en" {
		t.Errorf("Locales()[0] = %q, want %q", got[0], "en")
	}
	want := []string{"de", "en", "ru"}
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("Locales() mismatch (-want +got):\n%s", diff)
	}
	if c.DefaultLocale() != "en" {
		t.Errorf("DefaultLocale() = %q, want %q", c.DefaultLocale(), "en")
	}
}

func TestLoad_missingDirectory(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent"), "ru")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.Get("ru", "button.save", nil); got != "button.save" {
		t.Errorf("Get() = %q, want key back", got)
	}
}

func TestLoad_errors(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "broken"), "en"); err == nil {
		t.Error("Load(broken) error = nil, want error")
	}
	if _, err := Load(filepath.Join("testdata", "locales"), "not a locale!"); err == nil {
		t.Error("Load(bad default) error = nil, want error")
	}
}

func TestCatalog_AddMessages(t *testing.T) {
	c, err := New("en")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := c.Get("kk", "title", nil); got != "title" {
		t.Fatalf("Get() before add = %q, want key", got)
	}

	if err := c.AddMessages("kk.yaml", []byte("title: Тақырып\n")); err != nil {
		t.Fatalf("AddMessages() error = %v", err)
	}
	if got := c.Get("kk", "title", nil); got != "Тақырып" {
		t.Errorf("Get() = %q, want %q", got, "Тақырып")
	}

	if err := c.AddMessages("kk.ini", []byte("title=x")); err == nil {
		t.Error("AddMessages(unknown format) error = nil, want error")
	}
}

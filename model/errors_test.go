package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	e := NewNotFoundError("Page not found")
	want := "not_found: Page not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_implementsError(t *testing.T) {
	var _ error = (*Error)(nil)
	var _ error = (*PresetTaskError)(nil)
	var _ error = (*PresetTimeoutError)(nil)
}

func TestError_unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	e := NewParseError("Malformed envelope", cause)
	if !errors.Is(e, cause) {
		t.Error("errors.Is(parse error, cause) = false, want true")
	}
	if e.Code != ErrParse {
		t.Errorf("Code = %q, want %q", e.Code, ErrParse)
	}
}

func TestNewActionNotImplementedError(t *testing.T) {
	e := NewActionNotImplementedError("edit", "vds.edit")
	want := `Action "edit" is not implemented by endpoint "vds.edit"`
	if e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
	if e.Kind != KindActionNotImplemented {
		t.Errorf("Kind = %q, want %q", e.Kind, KindActionNotImplemented)
	}
}

func TestNewAccessDeniedError(t *testing.T) {
	e := NewAccessDeniedError()
	if e.Code != ErrForbidden {
		t.Errorf("Code = %q, want %q", e.Code, ErrForbidden)
	}
}

func TestNewUnknownError_hidesCause(t *testing.T) {
	e := NewUnknownError(errors.New("dial tcp 10.0.0.1:3306: refused"))
	if e.Message != "Internal server error" {
		t.Errorf("Message = %q, want %q", e.Message, "Internal server error")
	}
	if e.Code != ErrUnknown {
		t.Errorf("Code = %q, want %q", e.Code, ErrUnknown)
	}
}

func TestAsError_passesClassifiedErrors(t *testing.T) {
	orig := NewDomainError("QUOTA", "Quota exceeded")
	got := AsError(fmt.Errorf("create: %w", orig))
	if got != orig {
		t.Errorf("AsError() = %v, want %v", got, orig)
	}
}

func TestAsError_presetTask(t *testing.T) {
	err := &PresetTaskError{Field: "tariff", Err: errors.New("boom")}
	got := AsError(err)
	if got.Kind != KindPresetTask {
		t.Errorf("Kind = %q, want %q", got.Kind, KindPresetTask)
	}
	if got.Message != `Failed to load options for field "tariff"` {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestAsError_presetTaskKeepsDomainMessage(t *testing.T) {
	err := &PresetTaskError{Field: "tariff", Err: NewDomainError("", "Billing API is down")}
	got := AsError(err)
	if got.Kind != KindPresetTask {
		t.Errorf("Kind = %q, want %q", got.Kind, KindPresetTask)
	}
	if got.Message != "Billing API is down" {
		t.Errorf("Message = %q, want %q", got.Message, "Billing API is down")
	}
}

func TestAsError_presetTimeout(t *testing.T) {
	err := &PresetTimeoutError{Timeout: 30 * time.Second, Pending: []string{"a", "b"}}
	if got := KindOf(err); got != KindPresetTimeout {
		t.Errorf("KindOf() = %q, want %q", got, KindPresetTimeout)
	}
	want := "option presets timed out after 30s (pending: a, b)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
	if got := KindOf(errors.New("x")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindUnknown)
	}
}

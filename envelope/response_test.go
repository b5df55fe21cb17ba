package envelope

import (
	"testing"

	"github.com/pulivilizator/billmgr-addon/model"
)

func encode(t *testing.T, r Reply) string {
	t.Helper()
	s, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return s
}

func TestError(t *testing.T) {
	if got := encode(t, Error("Quota <exceeded>", "QUOTA")); got != `<doc><error code="QUOTA">Quota &lt;exceeded&gt;</error></doc>` {
		t.Errorf("Error() = %s", got)
	}
	if got := encode(t, Error("Nope", "")); got != `<doc><error>Nope</error></doc>` {
		t.Errorf("Error() without code = %s", got)
	}
}

func TestFromError(t *testing.T) {
	got := encode(t, FromError(model.NewAccessDeniedError()))
	if got != `<doc><error code="FORBIDDEN">Access denied</error></doc>` {
		t.Errorf("FromError() = %s", got)
	}
}

func TestUnknown(t *testing.T) {
	got := encode(t, Unknown())
	if got != `<doc><error code="UNKNOWN_ERROR">Internal server error</error></doc>` {
		t.Errorf("Unknown() = %s", got)
	}
}

func TestSuccess(t *testing.T) {
	if got := encode(t, Success("Saved")); got != `<doc><ok>Saved</ok></doc>` {
		t.Errorf("Success() = %s", got)
	}
	if got := encode(t, Success("")); got != `<doc><ok/></doc>` {
		t.Errorf("Success(empty) = %s", got)
	}
}

func TestOK(t *testing.T) {
	if got := encode(t, OK()); got != `<doc/>` {
		t.Errorf("OK() = %s", got)
	}
}

func TestRaw(t *testing.T) {
	payload := `<doc><x a="1"/></doc>`
	if got := encode(t, Raw(payload)); got != payload {
		t.Errorf("Raw() = %s, want %s", got, payload)
	}
	if got := encode(t, Raw("")); got != `<doc/>` {
		t.Errorf("Raw(empty) = %s", got)
	}
}

func TestText(t *testing.T) {
	if got := encode(t, Text("done & dusted")); got != `<doc>done &amp; dusted</doc>` {
		t.Errorf("Text() = %s", got)
	}
	if got := encode(t, Text("")); got != `<doc/>` {
		t.Errorf("Text(empty) = %s", got)
	}
}

func TestFeatures(t *testing.T) {
	got := encode(t, Features(
		[]Attributes{{{Key: "name", Value: "vds"}}},
		[]Attributes{{{Key: "name", Value: "open"}}, {{Key: "name", Value: "close"}, {Key: "public", Value: "yes"}}},
		nil,
	))
	want := `<doc><itemtypes><itemtype name="vds"/></itemtypes>` +
		`<features><feature name="open"/><feature name="close" public="yes"/></features>` +
		`<params/></doc>`
	if got != want {
		t.Errorf("Features() =\n%s\nwant\n%s", got, want)
	}
}

package envelope

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
)

func TestAttributesOf_keepsOrder(t *testing.T) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(`<col name="id" type="data" xml:lang="ru" sort="digit"/>`); err != nil {
		t.Fatal(err)
	}
	got := AttributesOf(doc.Root())
	want := Attributes{{"name", "id"}, {"type", "data"}, {"xml:lang", "ru"}, {"sort", "digit"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AttributesOf() mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributes_Set_inPlace(t *testing.T) {
	a := Attributes{{"name", "id"}, {"required", "no"}, {"width", "10px"}}
	a.Set("required", "yes")
	a.Set("align", "left")
	want := Attributes{{"name", "id"}, {"required", "yes"}, {"width", "10px"}, {"align", "left"}}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("Set() mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributes_SetYesNo(t *testing.T) {
	var a Attributes
	a.SetYesNo("required", false)
	if a.Has("required") {
		t.Error("SetYesNo(false) added an absent attribute")
	}
	a.SetYesNo("required", true)
	if got := a.Value("required"); got != "yes" {
		t.Errorf("required = %q, want yes", got)
	}
	a.SetYesNo("required", false)
	if got := a.Value("required"); got != "no" {
		t.Errorf("required = %q, want no", got)
	}
}

func TestAttributes_SetFlag(t *testing.T) {
	a := Attributes{{"shadow", "yes"}}
	a.SetFlag("shadow", false)
	if a.Has("shadow") {
		t.Error("SetFlag(false) kept the attribute")
	}
	a.SetFlag("empty", true)
	if !a.Yes("empty") {
		t.Error("Yes(empty) = false, want true")
	}
}

func TestAttributes_Clone_independent(t *testing.T) {
	a := Attributes{{"name", "x"}}
	b := a.Clone()
	b.Set("name", "y")
	if a.Value("name") != "x" {
		t.Errorf("original mutated: %q", a.Value("name"))
	}
}

func TestAttributes_Apply(t *testing.T) {
	el := NewElement("field", Attributes{{"name", "a"}, {"xml:lang", "en"}})
	doc := etree.NewDocumentWithRoot(el)
	got, err := doc.WriteToString()
	if err != nil {
		t.Fatal(err)
	}
	if got != `<field name="a" xml:lang="en"/>` {
		t.Errorf("WriteToString() = %s", got)
	}
}

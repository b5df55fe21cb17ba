package ui

import (
	"github.com/beevik/etree"

	"github.com/pulivilizator/billmgr-addon/envelope"
)

// ConditionKind is the tag of a field visibility condition.
type ConditionKind string

// Field condition kinds.
const (
	ConditionIf   ConditionKind = "if"
	ConditionElse ConditionKind = "else"
)

// Condition controls the visibility of another field from the value of the
// field it belongs to.
type Condition struct {
	Kind   ConditionKind
	Hide   string
	Value  string
	Shadow bool
	Empty  bool
	Attrs  envelope.Attributes
}

func isCondition(el *etree.Element) bool {
	return el.Tag == string(ConditionIf) || el.Tag == string(ConditionElse)
}

func parseCondition(el *etree.Element) Condition {
	attrs := envelope.AttributesOf(el)
	return Condition{
		Kind:   ConditionKind(el.Tag),
		Hide:   attrs.Value("hide"),
		Value:  attrs.Value("value"),
		Shadow: attrs.Has("shadow"),
		Empty:  attrs.Has("empty"),
		Attrs:  attrs,
	}
}

func (c Condition) element() *etree.Element {
	attrs := c.Attrs.Clone()
	setText(&attrs, "hide", c.Hide)
	setText(&attrs, "value", c.Value)
	setPresent(&attrs, "shadow", c.Shadow)
	setPresent(&attrs, "empty", c.Empty)
	return envelope.NewElement(string(c.Kind), attrs)
}

// ToolCondition shows, hides or removes a toolbar button for rows whose
// Column holds Value.
type ToolCondition struct {
	Kind   string
	Column string
	Value  string
	Attrs  envelope.Attributes
}

func parseToolCondition(el *etree.Element) ToolCondition {
	attrs := envelope.AttributesOf(el)
	return ToolCondition{
		Kind:   el.Tag,
		Column: attrs.Value("name"),
		Value:  attrs.Value("value"),
		Attrs:  attrs,
	}
}

func (c ToolCondition) element() *etree.Element {
	attrs := c.Attrs.Clone()
	setText(&attrs, "name", c.Column)
	setText(&attrs, "value", c.Value)
	return envelope.NewElement(c.Kind, attrs)
}

// setText writes v under key. An empty v removes key unless the attribute
// was already present, so explicit empty values survive a round trip.
func setText(attrs *envelope.Attributes, key, v string) {
	if v != "" || attrs.Has(key) {
		attrs.Set(key, v)
	}
}

// setPresent keeps a present flag attribute untouched, adds "yes" when a flag
// turns on and removes the attribute when it turns off.
func setPresent(attrs *envelope.Attributes, key string, on bool) {
	switch {
	case on && !attrs.Has(key):
		attrs.Set(key, "yes")
	case !on:
		attrs.Delete(key)
	}
}

// setNegated maps a positive flag onto a "noX" attribute: off writes
// "yes", on removes a "yes" and leaves any other value alone.
func setNegated(attrs *envelope.Attributes, key string, on bool) {
	switch {
	case !on:
		attrs.Set(key, "yes")
	case attrs.Yes(key):
		attrs.Delete(key)
	}
}

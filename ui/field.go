package ui

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/pulivilizator/billmgr-addon/envelope"
)

// Field is a form field. The set of implementations is closed: InputField,
// TextDataField, ListField, ButtonField and UnknownField.
type Field interface {
	FieldName() string
	element() *etree.Element
}

// InputKind identifies an editable field.
type InputKind string

// Input kinds. The first four are <input type="..."> elements, the rest are
// elements of their own.
const (
	InputText     InputKind = "text"
	InputCheckbox InputKind = "checkbox"
	InputPassword InputKind = "password"
	InputHidden   InputKind = "hidden"
	InputSelect   InputKind = "select"
	InputSlider   InputKind = "slider"
	InputTextArea InputKind = "textarea"
)

func (k InputKind) tag() string {
	switch k {
	case InputSelect, InputSlider, InputTextArea:
		return string(k)
	}
	return "input"
}

// InputField is an editable field with visibility conditions.
type InputField struct {
	Kind       InputKind
	Name       string
	Required   bool
	Conditions []Condition
	Attrs      envelope.Attributes

	extra []*etree.Element
}

// NewInput returns an input field of the given kind.
func NewInput(kind InputKind, name string) *InputField {
	return &InputField{Kind: kind, Name: name}
}

// FieldName implements Field.
func (f *InputField) FieldName() string { return f.Name }

func (f *InputField) element() *etree.Element {
	attrs := f.Attrs.Clone()
	attrs.Set("name", f.Name)
	if f.Kind.tag() == "input" {
		attrs.Set("type", string(f.Kind))
	}
	attrs.SetYesNo("required", f.Required)
	el := envelope.NewElement(f.Kind.tag(), attrs)
	for _, c := range f.Conditions {
		el.AddChild(c.element())
	}
	for _, x := range f.extra {
		el.AddChild(x.Copy())
	}
	return el
}

// TextDataField is a read-only text block.
type TextDataField struct {
	Name  string
	Attrs envelope.Attributes
}

// FieldName implements Field.
func (f *TextDataField) FieldName() string { return f.Name }

func (f *TextDataField) element() *etree.Element {
	attrs := f.Attrs.Clone()
	attrs.Set("name", f.Name)
	return envelope.NewElement("textdata", attrs)
}

// ListField is a table embedded in a form. Its rows live in the form data.
type ListField struct {
	Name    string
	Columns *columnSet
	Attrs   envelope.Attributes

	extra []*etree.Element
}

// NewListField returns a list field with no columns.
func NewListField(name string) *ListField {
	return &ListField{Name: name, Columns: newColumnSet()}
}

// FieldName implements Field.
func (f *ListField) FieldName() string { return f.Name }

// AddColumn appends c. Column names are unique within the field.
func (f *ListField) AddColumn(c *Column) error {
	return addColumn(f.Columns, c)
}

// Column returns the named column or nil.
func (f *ListField) Column(name string) *Column {
	c, _ := f.Columns.Get(name)
	return c
}

// ColumnNames returns the column names in order.
func (f *ListField) ColumnNames() []string {
	return columnNames(f.Columns)
}

func (f *ListField) element() *etree.Element {
	attrs := f.Attrs.Clone()
	attrs.Set("name", f.Name)
	el := envelope.NewElement("list", attrs)
	for p := f.Columns.Oldest(); p != nil; p = p.Next() {
		el.AddChild(p.Value.element())
	}
	for _, x := range f.extra {
		el.AddChild(x.Copy())
	}
	return el
}

// ButtonField is a button, either inside a field group or in the form's
// button bar.
type ButtonField struct {
	Name  string
	Type  string
	Attrs envelope.Attributes
}

// NewButton returns a button.
func NewButton(buttonType, name string) *ButtonField {
	return &ButtonField{Name: name, Type: buttonType}
}

// FieldName implements Field.
func (f *ButtonField) FieldName() string { return f.Name }

func (f *ButtonField) element() *etree.Element {
	attrs := f.Attrs.Clone()
	setText(&attrs, "name", f.Name)
	setText(&attrs, "type", f.Type)
	return envelope.NewElement("button", attrs)
}

// UnknownField is a field element the model does not interpret. It is
// written back exactly as received.
type UnknownField struct {
	Element *etree.Element
}

// FieldName implements Field. Elements without a name attribute are keyed by tag.
func (f *UnknownField) FieldName() string {
	if name := f.Element.SelectAttrValue("name", ""); name != "" {
		return name
	}
	return f.Element.Tag
}

func (f *UnknownField) element() *etree.Element {
	return f.Element.Copy()
}

func parseField(el *etree.Element) (Field, error) {
	attrs := envelope.AttributesOf(el)
	name := attrs.Value("name")
	switch el.Tag {
	case "list":
		cols, err := parseColumns(el.ChildElements())
		if err != nil {
			return nil, err
		}
		f := &ListField{Name: name, Columns: cols, Attrs: attrs}
		for _, child := range el.ChildElements() {
			if child.Tag != "col" {
				f.extra = append(f.extra, child)
			}
		}
		return f, nil
	case "textdata":
		return &TextDataField{Name: name, Attrs: attrs}, nil
	case "button":
		return &ButtonField{Name: name, Type: attrs.Value("type"), Attrs: attrs}, nil
	case "select", "slider", "textarea":
		return parseInput(InputKind(el.Tag), el, attrs), nil
	case "input":
		switch kind := InputKind(attrs.Value("type")); kind {
		case InputText, InputCheckbox, InputPassword, InputHidden:
			return parseInput(kind, el, attrs), nil
		}
	}
	return &UnknownField{Element: el}, nil
}

func parseInput(kind InputKind, el *etree.Element, attrs envelope.Attributes) *InputField {
	f := &InputField{
		Kind:     kind,
		Name:     attrs.Value("name"),
		Required: attrs.Yes("required"),
		Attrs:    attrs,
	}
	for _, child := range el.ChildElements() {
		if isCondition(child) {
			f.Conditions = append(f.Conditions, parseCondition(child))
			continue
		}
		f.extra = append(f.extra, child)
	}
	return f
}

func duplicateFieldError(scope, name string) error {
	return fmt.Errorf("ui: %s already has a field %q", scope, name)
}

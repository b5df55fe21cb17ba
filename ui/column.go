package ui

import (
	"fmt"

	"github.com/beevik/etree"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/model"
)

// ColumnKind is the type attribute of a column.
type ColumnKind string

// Column kinds.
const (
	ColumnData    ColumnKind = "data"
	ColumnMessage ColumnKind = "msg"
	ColumnImage   ColumnKind = "img"
	ColumnPrice   ColumnKind = "price"
	ColumnButton  ColumnKind = "button"
	ColumnControl ColumnKind = "control"
)

// ParseColumnKind validates s as a column kind.
func ParseColumnKind(s string) (ColumnKind, error) {
	switch k := ColumnKind(s); k {
	case ColumnData, ColumnMessage, ColumnImage, ColumnPrice, ColumnButton, ColumnControl:
		return k, nil
	}
	return "", fmt.Errorf("unknown column type %q", s)
}

// Column is a column of a list or of a list-valued form field.
type Column struct {
	Kind   ColumnKind
	Name   string
	Hidden bool
	Attrs  envelope.Attributes
}

// NewColumn returns a column of the given kind.
func NewColumn(kind ColumnKind, name string) *Column {
	return &Column{Kind: kind, Name: name}
}

// Style returns the style attributes of the column.
func (c *Column) Style() Style {
	return styleOf(c.Attrs)
}

// SetStyle validates s and writes its set members onto the column.
func (c *Column) SetStyle(s Style) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.apply(&c.Attrs)
	return nil
}

// WithStyle is SetStyle for chained construction; it panics on an invalid
// style, which is a programming error.
func (c *Column) WithStyle(s Style) *Column {
	if err := c.SetStyle(s); err != nil {
		panic(err)
	}
	return c
}

func parseColumn(el *etree.Element) (*Column, error) {
	attrs := envelope.AttributesOf(el)
	kind, err := ParseColumnKind(attrs.Value("type"))
	if err != nil {
		return nil, model.NewParseError(fmt.Sprintf("Column %q has an invalid type", attrs.Value("name")), err)
	}
	return &Column{
		Kind:   kind,
		Name:   attrs.Value("name"),
		Hidden: attrs.Yes("hidden"),
		Attrs:  attrs,
	}, nil
}

func (c *Column) element() *etree.Element {
	attrs := c.Attrs.Clone()
	attrs.Set("name", c.Name)
	attrs.Set("type", string(c.Kind))
	attrs.SetYesNo("hidden", c.Hidden)
	return envelope.NewElement("col", attrs)
}

type columnSet = orderedmap.OrderedMap[string, *Column]

func newColumnSet() *columnSet {
	return orderedmap.New[string, *Column]()
}

func parseColumns(els []*etree.Element) (*columnSet, error) {
	cols := newColumnSet()
	for _, el := range els {
		if el.Tag != "col" {
			continue
		}
		col, err := parseColumn(el)
		if err != nil {
			return nil, err
		}
		if _, dup := cols.Get(col.Name); dup {
			return nil, model.NewParseError(fmt.Sprintf("Duplicate column %q", col.Name), nil)
		}
		cols.Set(col.Name, col)
	}
	return cols, nil
}

func addColumn(cols *columnSet, c *Column) error {
	if _, dup := cols.Get(c.Name); dup {
		return fmt.Errorf("ui: column %q already exists", c.Name)
	}
	cols.Set(c.Name, c)
	return nil
}

func columnNames(cols *columnSet) []string {
	names := make([]string, 0, cols.Len())
	for p := cols.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}
	return names
}

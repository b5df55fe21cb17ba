package ui

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pulivilizator/billmgr-addon/envelope"
)

// Value is a form data entry: a Scalar or a Rows table.
type Value interface {
	isValue()
}

// Scalar is a single text value.
type Scalar string

// Rows is the data of a list-valued field.
type Rows []*Row

func (Scalar) isValue() {}
func (Rows) isValue()   {}

// Cell is one value of a row.
type Cell interface {
	// String returns the display text of the cell.
	String() string
	element(column string) *etree.Element
}

// TextCell is a plain text cell. Attrs carries per-cell style.
type TextCell struct {
	Value string
	Attrs envelope.Attributes
}

// Text returns a text cell.
func Text(v string) TextCell {
	return TextCell{Value: v}
}

func (c TextCell) String() string { return c.Value }

func (c TextCell) element(column string) *etree.Element {
	el := envelope.NewElement(column, c.Attrs)
	el.SetText(c.Value)
	return el
}

// PriceCell is a cost with its currency, written as
// <col><price><cost/><currency/></price></col>.
type PriceCell struct {
	Cost       string
	Currency   string
	Attrs      envelope.Attributes
	PriceAttrs envelope.Attributes
}

// PriceOf formats amount with two decimal places.
func PriceOf(amount decimal.Decimal, currency string) PriceCell {
	return PriceCell{Cost: amount.StringFixed(2), Currency: currency}
}

// Amount parses the cost.
func (c PriceCell) Amount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Cost)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ui: price cost %q: %w", c.Cost, err)
	}
	return d, nil
}

func (c PriceCell) String() string {
	if c.Currency == "" {
		return c.Cost
	}
	return c.Cost + " " + c.Currency
}

func (c PriceCell) element(column string) *etree.Element {
	el := envelope.NewElement(column, c.Attrs)
	price := el.CreateElement("price")
	c.PriceAttrs.Apply(price)
	price.CreateElement("cost").SetText(c.Cost)
	price.CreateElement("currency").SetText(c.Currency)
	return el
}

func parsePriceCell(el *etree.Element) (PriceCell, bool) {
	price := el.SelectElement("price")
	if price == nil {
		return PriceCell{}, false
	}
	cell := PriceCell{Attrs: envelope.AttributesOf(el), PriceAttrs: envelope.AttributesOf(price)}
	if cost := price.SelectElement("cost"); cost != nil {
		cell.Cost = cost.Text()
	}
	if currency := price.SelectElement("currency"); currency != nil {
		cell.Currency = currency.Text()
	}
	return cell, true
}

// parseCell reads a row cell. Price columns yield a PriceCell when the
// element carries a price block; everything else is text.
func parseCell(el *etree.Element, col *Column) Cell {
	if col != nil && col.Kind == ColumnPrice {
		if cell, ok := parsePriceCell(el); ok {
			return cell
		}
	}
	return TextCell{Value: el.Text(), Attrs: envelope.AttributesOf(el)}
}

// Row is an ordered set of cells keyed by column name.
type Row struct {
	cells *orderedmap.OrderedMap[string, Cell]
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{cells: orderedmap.New[string, Cell]()}
}

// RowOf builds a text row from alternating column/value pairs.
func RowOf(pairs ...string) *Row {
	r := NewRow()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.SetText(pairs[i], pairs[i+1])
	}
	return r
}

// Set stores c under column.
func (r *Row) Set(column string, c Cell) *Row {
	r.cells.Set(column, c)
	return r
}

// SetText stores a text cell under column.
func (r *Row) SetText(column, v string) *Row {
	return r.Set(column, Text(v))
}

// Get returns the cell of column.
func (r *Row) Get(column string) (Cell, bool) {
	return r.cells.Get(column)
}

// Text returns the display text of column, or "".
func (r *Row) Text(column string) string {
	if c, ok := r.cells.Get(column); ok {
		return c.String()
	}
	return ""
}

// Columns returns the column names in order.
func (r *Row) Columns() []string {
	cols := make([]string, 0, r.cells.Len())
	for p := r.cells.Oldest(); p != nil; p = p.Next() {
		cols = append(cols, p.Key)
	}
	return cols
}

// Len returns the number of cells.
func (r *Row) Len() int {
	return r.cells.Len()
}

func (r *Row) element() *etree.Element {
	el := etree.NewElement("elem")
	for p := r.cells.Oldest(); p != nil; p = p.Next() {
		el.AddChild(p.Value.element(p.Key))
	}
	return el
}

func parseRow(el *etree.Element, columns *orderedmap.OrderedMap[string, *Column]) *Row {
	row := NewRow()
	for _, child := range el.ChildElements() {
		var col *Column
		if columns != nil {
			col, _ = columns.Get(child.Tag)
		}
		row.Set(child.Tag, parseCell(child, col))
	}
	return row
}

func formatAny(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

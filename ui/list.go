package ui

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/beevik/etree"

	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/model"
)

// List layout tags.
const (
	TagList    = "list"
	TagColdata = "coldata"
)

// List is the tabular paradigm of a panel screen.
type List struct {
	Toolbar *Toolbar
	Columns *columnSet
	// ColdataAttrs are the attributes of the <coldata> layout element.
	ColdataAttrs envelope.Attributes
	Rows         []*Row

	ParentID    string
	ParentName  string
	TotalCount  string
	PageNumber  string
	OnPageCount string
	SortField   string
	SortOrder   string
	PageNames   []string

	env          *envelope.Envelope
	layout       []*etree.Element
	hasColdata   bool
	coldataExtra []*etree.Element
}

// NewList returns an empty list.
func NewList(name string) *List {
	return &List{Columns: newColumnSet(), env: envelope.New(name, TagList)}
}

// ParseList parses a list envelope.
func ParseList(raw string) (*List, error) {
	env, err := envelope.Parse(raw)
	if err != nil {
		return nil, err
	}
	return ListFromEnvelope(env)
}

// ListFromEnvelope builds a list from a parsed envelope.
func ListFromEnvelope(env *envelope.Envelope) (*List, error) {
	if kind := env.Kind(); kind != "" && kind != TagList {
		return nil, model.NewParseError(fmt.Sprintf("Envelope of type %q is not a list", kind), nil)
	}
	l := &List{Columns: newColumnSet(), env: env, layout: env.Layout()}
	for _, el := range l.layout {
		switch {
		case el.Tag == TagToolbar && l.Toolbar == nil:
			l.Toolbar = parseToolbar(el)
		case el.Tag == TagColdata && !l.hasColdata:
			cols, err := parseColumns(el.ChildElements())
			if err != nil {
				return nil, err
			}
			l.Columns = cols
			l.ColdataAttrs = envelope.AttributesOf(el)
			l.hasColdata = true
			for _, child := range el.ChildElements() {
				if child.Tag != "col" {
					l.coldataExtra = append(l.coldataExtra, child)
				}
			}
		}
	}
	l.parseData(env.Data())
	return l, nil
}

func (l *List) parseData(data []*etree.Element) {
	for _, el := range data {
		switch el.Tag {
		case "elem":
			l.Rows = append(l.Rows, parseRow(el, l.Columns))
		case "plid":
			l.ParentID = el.Text()
		case "plname":
			l.ParentName = el.Text()
		case "p_elems":
			l.TotalCount = el.Text()
		case "p_num":
			l.PageNumber = el.Text()
		case "p_cnt":
			l.OnPageCount = el.Text()
		case "p_sort":
			l.SortField = el.Text()
		case "p_order":
			l.SortOrder = el.Text()
		case "page":
			l.PageNames = append(l.PageNames, el.Text())
		}
	}
}

// Name returns the action name of the list.
func (l *List) Name() string {
	return l.env.Name()
}

// Envelope returns the envelope shell the list is written into.
func (l *List) Envelope() *envelope.Envelope {
	return l.env
}

// Key returns the name of the column holding the record id.
func (l *List) Key() string {
	if k, ok := l.env.MetadataAttrs.Get("key"); ok {
		return k
	}
	return l.env.MessagesAttrs.Value("key")
}

// KeyName returns the name of the column holding the record title. It
// defaults to Key.
func (l *List) KeyName() string {
	if k, ok := l.env.MetadataAttrs.Get("keyname"); ok {
		return k
	}
	if k, ok := l.env.MessagesAttrs.Get("keyname"); ok {
		return k
	}
	return l.Key()
}

// Column returns the named column or nil.
func (l *List) Column(name string) *Column {
	c, _ := l.Columns.Get(name)
	return c
}

// AddColumn appends c. Column names are unique within the list.
func (l *List) AddColumn(c *Column) error {
	return addColumn(l.Columns, c)
}

// RemoveColumn deletes the named column.
func (l *List) RemoveColumn(name string) bool {
	_, ok := l.Columns.Delete(name)
	return ok
}

// ColumnNames returns the column names in order.
func (l *List) ColumnNames() []string {
	return columnNames(l.Columns)
}

// AddRow appends a row.
func (l *List) AddRow(r *Row) {
	l.Rows = append(l.Rows, r)
}

// SetRowsFromRecords replaces the rows with records. When columns are
// given, only those keys are written, in that order. Otherwise the list
// columns lead and the remaining keys follow in sorted order.
func (l *List) SetRowsFromRecords(records []map[string]any, columns ...string) {
	explicit := len(columns) > 0
	if !explicit {
		columns = l.ColumnNames()
	}
	rows := make([]*Row, 0, len(records))
	for _, rec := range records {
		row := NewRow()
		for _, col := range columns {
			if v, ok := rec[col]; ok {
				row.Set(col, cellOf(v))
			}
		}
		if !explicit {
			for _, k := range sortedKeys(rec) {
				if _, seen := row.Get(k); !seen {
					row.Set(k, cellOf(rec[k]))
				}
			}
		}
		rows = append(rows, row)
	}
	l.Rows = rows
}

// SetRowsFromValues replaces the rows with positional values named by columns.
func (l *List) SetRowsFromValues(values [][]any, columns []string) error {
	rows := make([]*Row, 0, len(values))
	for i, vals := range values {
		if len(vals) != len(columns) {
			return fmt.Errorf("ui: row %d has %d values for %d columns", i, len(vals), len(columns))
		}
		row := NewRow()
		for j, col := range columns {
			row.Set(col, cellOf(vals[j]))
		}
		rows = append(rows, row)
	}
	l.Rows = rows
	return nil
}

// SetPagination sets the paging counters of the list.
func (l *List) SetPagination(total, page, perPage int) {
	l.TotalCount = strconv.Itoa(total)
	l.PageNumber = strconv.Itoa(page)
	l.OnPageCount = strconv.Itoa(perPage)
}

// Message returns a catalog string of the envelope.
func (l *List) Message(key string) string {
	v, _ := l.env.Messages.Get(key)
	return v
}

// SetMessage stores a catalog string.
func (l *List) SetMessage(key, text string) {
	l.env.Messages.Set(key, text)
}

func (l *List) coldataElement() *etree.Element {
	el := envelope.NewElement(TagColdata, l.ColdataAttrs)
	for cp := l.Columns.Oldest(); cp != nil; cp = cp.Next() {
		el.AddChild(cp.Value.element())
	}
	for _, x := range l.coldataExtra {
		el.AddChild(x.Copy())
	}
	return el
}

func (l *List) layoutElements() []*etree.Element {
	var out []*etree.Element
	var toolbarDone, coldataDone bool
	for _, el := range l.layout {
		switch {
		case el.Tag == TagToolbar && !toolbarDone:
			if l.Toolbar != nil {
				out = append(out, l.Toolbar.element())
			}
			toolbarDone = true
		case el.Tag == TagColdata && !coldataDone:
			out = append(out, l.coldataElement())
			coldataDone = true
		default:
			out = append(out, el.Copy())
		}
	}
	if !toolbarDone && l.Toolbar != nil {
		out = append(out, l.Toolbar.element())
	}
	if !coldataDone && l.Columns.Len() > 0 {
		out = append(out, l.coldataElement())
	}
	return out
}

func (l *List) dataElements() []*etree.Element {
	out := make([]*etree.Element, 0, len(l.Rows)+8)
	for _, row := range l.Rows {
		out = append(out, row.element())
	}
	out = append(out, textElements(
		"plid", l.ParentID,
		"plname", l.ParentName,
		"p_elems", l.TotalCount,
		"p_num", l.PageNumber,
		"p_cnt", l.OnPageCount,
	)...)
	for _, name := range l.PageNames {
		el := etree.NewElement("page")
		el.SetText(name)
		out = append(out, el)
	}
	out = append(out, textElements("p_sort", l.SortField, "p_order", l.SortOrder)...)
	return out
}

// Encode writes the list into its envelope.
func (l *List) Encode() (string, error) {
	return l.env.Encode(l.layoutElements(), l.dataElements())
}

func cellOf(v any) Cell {
	if c, ok := v.(Cell); ok {
		return c
	}
	return Text(formatAny(v))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

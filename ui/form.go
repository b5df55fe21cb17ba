package ui

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/model"
)

// Form layout tags.
const (
	TagForm    = "form"
	TagPage    = "page"
	TagGroup   = "field"
	TagButtons = "buttons"
)

// Group is a named field group (a <field> element of the layout).
type Group struct {
	Name   string
	Attrs  envelope.Attributes
	Fields *orderedmap.OrderedMap[string, Field]
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name, Fields: orderedmap.New[string, Field]()}
}

// Field returns the named field or nil.
func (g *Group) Field(name string) Field {
	f, _ := g.Fields.Get(name)
	return f
}

// AddField appends f. Field names are unique within the group.
func (g *Group) AddField(f Field) error {
	if _, dup := g.Fields.Get(f.FieldName()); dup {
		return duplicateFieldError(fmt.Sprintf("group %q", g.Name), f.FieldName())
	}
	g.Fields.Set(f.FieldName(), f)
	return nil
}

// RemoveField deletes the named field and reports whether it existed.
func (g *Group) RemoveField(name string) bool {
	_, ok := g.Fields.Delete(name)
	return ok
}

func (g *Group) element() *etree.Element {
	attrs := g.Attrs.Clone()
	attrs.Set("name", g.Name)
	el := envelope.NewElement(TagGroup, attrs)
	for p := g.Fields.Oldest(); p != nil; p = p.Next() {
		el.AddChild(p.Value.element())
	}
	return el
}

func parseGroup(el *etree.Element) (*Group, error) {
	g := &Group{
		Name:   el.SelectAttrValue("name", ""),
		Attrs:  envelope.AttributesOf(el),
		Fields: orderedmap.New[string, Field](),
	}
	for _, child := range el.ChildElements() {
		f, err := parseField(child)
		if err != nil {
			return nil, err
		}
		if err := g.AddField(f); err != nil {
			return nil, model.NewParseError(fmt.Sprintf("Duplicate field %q in group %q", f.FieldName(), g.Name), err)
		}
	}
	return g, nil
}

// Page is a tab of a form. The implicit page of an unpaged form has an
// empty name and is written without a <page> wrapper.
type Page struct {
	Name   string
	Attrs  envelope.Attributes
	Groups *orderedmap.OrderedMap[string, *Group]
}

// NewPage returns an empty page.
func NewPage(name string) *Page {
	return &Page{Name: name, Groups: orderedmap.New[string, *Group]()}
}

// Implicit reports whether p stands for an unpaged layout.
func (p *Page) Implicit() bool {
	return p.Name == ""
}

// Group returns the named group or nil.
func (p *Page) Group(name string) *Group {
	g, _ := p.Groups.Get(name)
	return g
}

// AddGroup appends g.
func (p *Page) AddGroup(g *Group) error {
	if _, dup := p.Groups.Get(g.Name); dup {
		return fmt.Errorf("ui: page %q already has a group %q", p.Name, g.Name)
	}
	p.Groups.Set(g.Name, g)
	return nil
}

// Field searches every group of the page.
func (p *Page) Field(name string) Field {
	for gp := p.Groups.Oldest(); gp != nil; gp = gp.Next() {
		if f := gp.Value.Field(name); f != nil {
			return f
		}
	}
	return nil
}

func (p *Page) groupElements() []*etree.Element {
	els := make([]*etree.Element, 0, p.Groups.Len())
	for gp := p.Groups.Oldest(); gp != nil; gp = gp.Next() {
		els = append(els, gp.Value.element())
	}
	return els
}

func parsePage(name string, attrs envelope.Attributes, children []*etree.Element) (*Page, error) {
	p := &Page{Name: name, Attrs: attrs, Groups: orderedmap.New[string, *Group]()}
	for _, child := range children {
		g, err := parseGroup(child)
		if err != nil {
			return nil, err
		}
		if err := p.AddGroup(g); err != nil {
			return nil, model.NewParseError(fmt.Sprintf("Duplicate group %q", g.Name), err)
		}
	}
	return p, nil
}

// Form is the form paradigm of a panel screen.
type Form struct {
	// Attrs are the attributes of the <form> layout element.
	Attrs   envelope.Attributes
	Pages   *orderedmap.OrderedMap[string, *Page]
	Buttons *orderedmap.OrderedMap[string, *ButtonField]
	// ButtonsAttrs are the attributes of the <buttons> layout element.
	ButtonsAttrs envelope.Attributes

	Data    *orderedmap.OrderedMap[string, Value]
	Options *orderedmap.OrderedMap[string, []Option]

	ParentID     string
	ParentName   string
	UpdatedField string

	Submit bool
	Cancel bool
	Back   bool

	env    *envelope.Envelope
	layout []*etree.Element
}

// NewForm returns an empty, unpaged form.
func NewForm(name string) *Form {
	f := &Form{
		Pages:   orderedmap.New[string, *Page](),
		Data:    orderedmap.New[string, Value](),
		Options: orderedmap.New[string, []Option](),
		Submit:  true,
		Cancel:  true,
		Back:    true,
		env:     envelope.New(name, TagForm),
	}
	f.Pages.Set("", NewPage(""))
	return f
}

// ParseForm parses a form envelope.
func ParseForm(raw string) (*Form, error) {
	env, err := envelope.Parse(raw)
	if err != nil {
		return nil, err
	}
	return FormFromEnvelope(env)
}

// FormFromEnvelope builds a form from a parsed envelope.
func FormFromEnvelope(env *envelope.Envelope) (*Form, error) {
	if kind := env.Kind(); kind != "" && kind != TagForm {
		return nil, model.NewParseError(fmt.Sprintf("Envelope of type %q is not a form", kind), nil)
	}
	f := &Form{
		Pages:   orderedmap.New[string, *Page](),
		Data:    orderedmap.New[string, Value](),
		Options: orderedmap.New[string, []Option](),
		env:     env,
		layout:  env.Layout(),
	}

	var formEl, buttonsEl *etree.Element
	for _, el := range f.layout {
		switch {
		case el.Tag == TagForm && formEl == nil:
			formEl = el
		case el.Tag == TagButtons && buttonsEl == nil:
			buttonsEl = el
		}
	}
	if formEl == nil {
		return nil, model.NewParseError("Form envelope has no form layout", nil)
	}
	if err := f.parseLayout(formEl, buttonsEl); err != nil {
		return nil, err
	}
	f.parseData(env.Data())
	return f, nil
}

func (f *Form) parseLayout(formEl, buttonsEl *etree.Element) error {
	f.Attrs = envelope.AttributesOf(formEl)
	f.Submit = !f.Attrs.Yes("nosubmit")
	f.Cancel = !f.Attrs.Yes("nocancel")
	f.Back = !f.Attrs.Yes("noback")

	pages := formEl.SelectElements(TagPage)
	if len(pages) == 0 {
		p, err := parsePage("", nil, formEl.ChildElements())
		if err != nil {
			return err
		}
		f.Pages.Set("", p)
	}
	for _, el := range pages {
		attrs := envelope.AttributesOf(el)
		name := attrs.Value("name")
		if _, dup := f.Pages.Get(name); dup {
			return model.NewParseError(fmt.Sprintf("Duplicate page %q", name), nil)
		}
		p, err := parsePage(name, attrs, el.ChildElements())
		if err != nil {
			return err
		}
		f.Pages.Set(name, p)
	}

	if buttonsEl != nil {
		f.Buttons = orderedmap.New[string, *ButtonField]()
		f.ButtonsAttrs = envelope.AttributesOf(buttonsEl)
		for _, el := range buttonsEl.SelectElements("button") {
			attrs := envelope.AttributesOf(el)
			f.Buttons.Set(attrs.Value("name"), &ButtonField{Name: attrs.Value("name"), Type: attrs.Value("type"), Attrs: attrs})
		}
	}
	return nil
}

func (f *Form) parseData(data []*etree.Element) {
	for _, el := range data {
		switch el.Tag {
		case "slist":
			f.Options.Set(el.SelectAttrValue("name", ""), parseOptions(el))
		case "list":
			name := el.SelectAttrValue("name", "")
			var cols *columnSet
			if lf, ok := f.Field(name).(*ListField); ok {
				cols = lf.Columns
			}
			rows := Rows{}
			for _, rowEl := range el.SelectElements("elem") {
				rows = append(rows, parseRow(rowEl, cols))
			}
			f.Data.Set(name, rows)
		case "plid":
			f.ParentID = el.Text()
		case "plname":
			f.ParentName = el.Text()
		default:
			if len(el.ChildElements()) == 0 {
				f.Data.Set(el.Tag, Scalar(el.Text()))
			}
		}
	}
}

// Name returns the action name of the form.
func (f *Form) Name() string {
	return f.env.Name()
}

// Envelope returns the envelope shell the form is written into.
func (f *Form) Envelope() *envelope.Envelope {
	return f.env
}

// Page returns the named page or nil. The implicit page has the empty name.
func (f *Form) Page(name string) *Page {
	p, _ := f.Pages.Get(name)
	return p
}

// AddPage appends a named page.
func (f *Form) AddPage(p *Page) error {
	if _, dup := f.Pages.Get(p.Name); dup {
		return fmt.Errorf("ui: form already has a page %q", p.Name)
	}
	f.Pages.Set(p.Name, p)
	return nil
}

// Field searches every page for the named field.
func (f *Form) Field(name string) Field {
	for pp := f.Pages.Oldest(); pp != nil; pp = pp.Next() {
		if field := pp.Value.Field(name); field != nil {
			return field
		}
	}
	return nil
}

// Input returns the named field if it is an InputField.
func (f *Form) Input(name string) *InputField {
	in, _ := f.Field(name).(*InputField)
	return in
}

// ListField returns the named field if it is a ListField.
func (f *Form) ListField(name string) *ListField {
	lf, _ := f.Field(name).(*ListField)
	return lf
}

// RemoveField deletes the named field from whichever group holds it.
func (f *Form) RemoveField(name string) bool {
	for pp := f.Pages.Oldest(); pp != nil; pp = pp.Next() {
		for gp := pp.Value.Groups.Oldest(); gp != nil; gp = gp.Next() {
			if gp.Value.RemoveField(name) {
				return true
			}
		}
	}
	return false
}

// Value returns the scalar value of name, or "".
func (f *Form) Value(name string) string {
	if v, ok := f.Data.Get(name); ok {
		if s, ok := v.(Scalar); ok {
			return string(s)
		}
	}
	return ""
}

// HasValue reports whether name has a data entry.
func (f *Form) HasValue(name string) bool {
	_, ok := f.Data.Get(name)
	return ok
}

// SetValue stores a scalar value.
func (f *Form) SetValue(name, v string) {
	f.Data.Set(name, Scalar(v))
}

// DeleteValue removes a data entry.
func (f *Form) DeleteValue(name string) {
	f.Data.Delete(name)
}

// Rows returns the rows of a list-valued field.
func (f *Form) Rows(name string) Rows {
	if v, ok := f.Data.Get(name); ok {
		if r, ok := v.(Rows); ok {
			return r
		}
	}
	return nil
}

// SetRows replaces the rows of a list-valued field.
func (f *Form) SetRows(name string, rows Rows) {
	if rows == nil {
		rows = Rows{}
	}
	f.Data.Set(name, rows)
}

// OptionsOf returns the options of a field.
func (f *Form) OptionsOf(name string) ([]Option, bool) {
	return f.Options.Get(name)
}

// SetOptions replaces the options of a field.
func (f *Form) SetOptions(name string, opts []Option) {
	if opts == nil {
		opts = []Option{}
	}
	f.Options.Set(name, opts)
}

// Message returns a catalog string of the envelope.
func (f *Form) Message(key string) string {
	v, _ := f.env.Messages.Get(key)
	return v
}

// SetMessage stores a catalog string.
func (f *Form) SetMessage(key, text string) {
	f.env.Messages.Set(key, text)
}

// Label returns the label of a field, which is the message of the same name.
func (f *Form) Label(field string) string {
	return f.Message(field)
}

// SetLabel sets the label of a field.
func (f *Form) SetLabel(field, text string) {
	f.SetMessage(field, text)
}

// TitleField returns the name of the field whose value titles the form.
func (f *Form) TitleField() string {
	return f.Attrs.Value("title")
}

// SetTitleField changes the field whose value titles the form.
func (f *Form) SetTitleField(name string) {
	f.Attrs.Set("title", name)
}

// Title returns the value of the title field.
func (f *Form) Title() string {
	if tf := f.TitleField(); tf != "" {
		return f.Value(tf)
	}
	return ""
}

// SetTitle stores v as the value of the title field. It has no effect on a
// form without a title field.
func (f *Form) SetTitle(v string) {
	if tf := f.TitleField(); tf != "" {
		f.SetValue(tf, v)
	}
}

// AddButton appends a button to the button bar, creating the bar if needed.
func (f *Form) AddButton(buttonType, name string, attrs envelope.Attributes) *ButtonField {
	if f.Buttons == nil {
		f.Buttons = orderedmap.New[string, *ButtonField]()
	}
	b := &ButtonField{Name: name, Type: buttonType, Attrs: attrs.Clone()}
	f.Buttons.Set(name, b)
	return b
}

// RemoveButton deletes a button from the button bar.
func (f *Form) RemoveButton(name string) bool {
	if f.Buttons == nil {
		return false
	}
	_, ok := f.Buttons.Delete(name)
	return ok
}

// UUIDError reports a field value that should have been a UUID.
type UUIDError struct {
	Field string
	Value string
	Err   error
}

func (e *UUIDError) Error() string {
	return fmt.Sprintf("ui: field %q value %q is not a UUID: %v", e.Field, e.Value, e.Err)
}

func (e *UUIDError) Unwrap() error { return e.Err }

// UUIDValue returns the canonical UUID selected in field name. An unset
// value or the null option yields "".
func (f *Form) UUIDValue(name string) (string, error) {
	v := f.Value(name)
	if v == "" || v == NullKey {
		return "", nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return "", &UUIDError{Field: name, Value: v, Err: err}
	}
	return id.String(), nil
}

func (f *Form) formElement() *etree.Element {
	attrs := f.Attrs.Clone()
	setNegated(&attrs, "nosubmit", f.Submit)
	setNegated(&attrs, "nocancel", f.Cancel)
	setNegated(&attrs, "noback", f.Back)
	el := envelope.NewElement(TagForm, attrs)
	for pp := f.Pages.Oldest(); pp != nil; pp = pp.Next() {
		page := pp.Value
		if page.Implicit() {
			for _, g := range page.groupElements() {
				el.AddChild(g)
			}
			continue
		}
		pattrs := page.Attrs.Clone()
		pattrs.Set("name", page.Name)
		pel := envelope.NewElement(TagPage, pattrs)
		for _, g := range page.groupElements() {
			pel.AddChild(g)
		}
		el.AddChild(pel)
	}
	return el
}

func (f *Form) buttonsElement() *etree.Element {
	el := envelope.NewElement(TagButtons, f.ButtonsAttrs)
	for bp := f.Buttons.Oldest(); bp != nil; bp = bp.Next() {
		el.AddChild(bp.Value.element())
	}
	return el
}

func (f *Form) layoutElements() []*etree.Element {
	var out []*etree.Element
	var formDone, buttonsDone bool
	for _, el := range f.layout {
		switch {
		case el.Tag == TagForm && !formDone:
			out = append(out, f.formElement())
			formDone = true
		case el.Tag == TagButtons && !buttonsDone:
			if f.Buttons != nil {
				out = append(out, f.buttonsElement())
			}
			buttonsDone = true
		default:
			out = append(out, el.Copy())
		}
	}
	if !formDone {
		out = append(out, f.formElement())
	}
	if !buttonsDone && f.Buttons != nil {
		out = append(out, f.buttonsElement())
	}
	return out
}

func (f *Form) dataElements() []*etree.Element {
	var out []*etree.Element
	for dp := f.Data.Oldest(); dp != nil; dp = dp.Next() {
		switch v := dp.Value.(type) {
		case Scalar:
			el := etree.NewElement(dp.Key)
			el.SetText(string(v))
			out = append(out, el)
		case Rows:
			el := envelope.NewElement("list", envelope.Attributes{{Key: "name", Value: dp.Key}})
			for _, row := range v {
				el.AddChild(row.element())
			}
			out = append(out, el)
		}
	}
	out = append(out, textElements("plid", f.ParentID, "plname", f.ParentName)...)
	for op := f.Options.Oldest(); op != nil; op = op.Next() {
		out = append(out, optionsElement(op.Key, op.Value))
	}
	return out
}

// Encode writes the form into its envelope.
func (f *Form) Encode() (string, error) {
	return f.env.Encode(f.layoutElements(), f.dataElements())
}

// textElements builds <tag>value</tag> elements from tag/value pairs,
// skipping unset values.
func textElements(pairs ...string) []*etree.Element {
	var out []*etree.Element
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		el := etree.NewElement(pairs[i])
		el.SetText(pairs[i+1])
		out = append(out, el)
	}
	return out
}

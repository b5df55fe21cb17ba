package ui

import (
	"fmt"

	"github.com/beevik/etree"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pulivilizator/billmgr-addon/envelope"
)

// Toolbar layout tags.
const (
	TagToolbar = "toolbar"
	TagToolGrp = "toolgrp"
	TagToolBtn = "toolbtn"
)

// Toolbar is the button bar above a list. Groups that are not <toolgrp>
// elements, and later groups repeating an earlier name, are kept under
// synthetic keys starting with "#" and written back in place.
type Toolbar struct {
	Attrs  envelope.Attributes
	Groups *orderedmap.OrderedMap[string, *ToolGroup]

	raw int
}

// NewToolbar returns an empty toolbar.
func NewToolbar() *Toolbar {
	return &Toolbar{Groups: orderedmap.New[string, *ToolGroup]()}
}

// Group returns the named group or nil.
func (t *Toolbar) Group(name string) *ToolGroup {
	g, ok := t.Groups.Get(name)
	if !ok || g.Raw != nil {
		return nil
	}
	return g
}

// AddGroup appends g.
func (t *Toolbar) AddGroup(g *ToolGroup) error {
	if _, dup := t.Groups.Get(g.Name); dup {
		return fmt.Errorf("ui: toolbar already has a group %q", g.Name)
	}
	t.Groups.Set(g.Name, g)
	return nil
}

// Button searches every group for the named button.
func (t *Toolbar) Button(name string) *ToolButton {
	for gp := t.Groups.Oldest(); gp != nil; gp = gp.Next() {
		if gp.Value.Raw != nil {
			continue
		}
		if b := gp.Value.Button(name); b != nil {
			return b
		}
	}
	return nil
}

func (t *Toolbar) element() *etree.Element {
	el := envelope.NewElement(TagToolbar, t.Attrs)
	for gp := t.Groups.Oldest(); gp != nil; gp = gp.Next() {
		el.AddChild(gp.Value.element())
	}
	return el
}

func parseToolbar(el *etree.Element) *Toolbar {
	t := &Toolbar{Attrs: envelope.AttributesOf(el), Groups: orderedmap.New[string, *ToolGroup]()}
	for _, child := range el.ChildElements() {
		if child.Tag != TagToolGrp {
			t.raw++
			t.Groups.Set(fmt.Sprintf("#%s-%d", child.Tag, t.raw), &ToolGroup{Raw: child})
			continue
		}
		g := parseToolGroup(child)
		key := g.Name
		if _, dup := t.Groups.Get(key); dup {
			t.raw++
			key = fmt.Sprintf("#%s-%d", key, t.raw)
		}
		t.Groups.Set(key, g)
	}
	return t
}

// ToolGroup is a named group of toolbar buttons. Raw holds a non-group child
// of the toolbar, written back verbatim.
type ToolGroup struct {
	Name    string
	Attrs   envelope.Attributes
	Buttons *orderedmap.OrderedMap[string, *ToolButton]
	Raw     *etree.Element

	raw int
}

// NewToolGroup returns an empty group.
func NewToolGroup(name string) *ToolGroup {
	return &ToolGroup{Name: name, Buttons: orderedmap.New[string, *ToolButton]()}
}

// Button returns the named button or nil.
func (g *ToolGroup) Button(name string) *ToolButton {
	b, ok := g.Buttons.Get(name)
	if !ok || b.Raw != nil {
		return nil
	}
	return b
}

// AddButton appends b.
func (g *ToolGroup) AddButton(b *ToolButton) error {
	if _, dup := g.Buttons.Get(b.Name); dup {
		return fmt.Errorf("ui: tool group %q already has a button %q", g.Name, b.Name)
	}
	g.Buttons.Set(b.Name, b)
	return nil
}

// RemoveButton deletes the named button.
func (g *ToolGroup) RemoveButton(name string) bool {
	_, ok := g.Buttons.Delete(name)
	return ok
}

func (g *ToolGroup) element() *etree.Element {
	if g.Raw != nil {
		return g.Raw.Copy()
	}
	attrs := g.Attrs.Clone()
	attrs.Set("name", g.Name)
	el := envelope.NewElement(TagToolGrp, attrs)
	for bp := g.Buttons.Oldest(); bp != nil; bp = bp.Next() {
		el.AddChild(bp.Value.element())
	}
	return el
}

func parseToolGroup(el *etree.Element) *ToolGroup {
	g := &ToolGroup{
		Name:    el.SelectAttrValue("name", ""),
		Attrs:   envelope.AttributesOf(el),
		Buttons: orderedmap.New[string, *ToolButton](),
	}
	for _, child := range el.ChildElements() {
		if child.Tag != TagToolBtn {
			g.raw++
			g.Buttons.Set(fmt.Sprintf("#%s-%d", child.Tag, g.raw), &ToolButton{Raw: child})
			continue
		}
		b := parseToolButton(child)
		key := b.Name
		if _, dup := g.Buttons.Get(key); dup {
			g.raw++
			key = fmt.Sprintf("#%s-%d", key, g.raw)
		}
		g.Buttons.Set(key, b)
	}
	return g
}

// ToolButton is a toolbar button. Raw holds a non-button child of a group,
// such as a separator, kept in place and written back verbatim.
type ToolButton struct {
	Name       string
	Type       string
	Attrs      envelope.Attributes
	Conditions []ToolCondition
	Raw        *etree.Element
}

// NewToolButton returns a button.
func NewToolButton(buttonType, name string) *ToolButton {
	return &ToolButton{Name: name, Type: buttonType}
}

// ShowWhen adds a condition that shows the button for rows where column
// equals value.
func (b *ToolButton) ShowWhen(column, value string) *ToolButton {
	b.Conditions = append(b.Conditions, ToolCondition{Kind: "show", Column: column, Value: value})
	return b
}

// HideWhen adds a condition that hides the button for rows where column
// equals value.
func (b *ToolButton) HideWhen(column, value string) *ToolButton {
	b.Conditions = append(b.Conditions, ToolCondition{Kind: "hide", Column: column, Value: value})
	return b
}

func (b *ToolButton) element() *etree.Element {
	if b.Raw != nil {
		return b.Raw.Copy()
	}
	attrs := b.Attrs.Clone()
	setText(&attrs, "name", b.Name)
	setText(&attrs, "type", b.Type)
	el := envelope.NewElement(TagToolBtn, attrs)
	for _, c := range b.Conditions {
		el.AddChild(c.element())
	}
	return el
}

func parseToolButton(el *etree.Element) *ToolButton {
	attrs := envelope.AttributesOf(el)
	b := &ToolButton{Name: attrs.Value("name"), Type: attrs.Value("type"), Attrs: attrs}
	for _, child := range el.ChildElements() {
		b.Conditions = append(b.Conditions, parseToolCondition(child))
	}
	return b
}

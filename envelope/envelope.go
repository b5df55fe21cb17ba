// Package envelope reads and writes the XML document exchanged between the
// panel and a plugin: a metadata block, a message catalog and a data section.
package envelope

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/pulivilizator/billmgr-addon/model"
)

// Structural tags of an envelope.
const (
	TagDoc      = "doc"
	TagMetadata = "metadata"
	TagMessages = "messages"
	TagMsg      = "msg"
)

// Envelope is a parsed panel document. Parsing keeps copies of the layout and
// data elements; Encode always builds a fresh tree, so nothing from the
// inbound document leaks into the output unless the caller passes it back.
type Envelope struct {
	Tag           string
	Attrs         Attributes
	MetadataAttrs Attributes
	MessagesAttrs Attributes
	Messages      *Messages

	layout        []*etree.Element
	data          []*etree.Element
	hasMessages   bool
	messagesExtra []*etree.Element
}

// New returns an empty envelope for a document of the given kind.
func New(name, kind string) *Envelope {
	e := &Envelope{Tag: TagDoc, Messages: NewMessages()}
	if name != "" {
		e.MetadataAttrs.Set("name", name)
	}
	if kind != "" {
		e.MetadataAttrs.Set("type", kind)
	}
	return e
}

// Parse reads raw into an Envelope. A document without a root or without a
// metadata block is a parse error.
func Parse(raw string) (*Envelope, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, model.NewParseError("Empty envelope", nil)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, model.NewParseError("Malformed envelope", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewParseError("Envelope has no root element", nil)
	}
	metadata := root.SelectElement(TagMetadata)
	if metadata == nil {
		return nil, model.NewParseError("Envelope has no metadata block", nil)
	}

	e := &Envelope{
		Tag:           root.FullTag(),
		Attrs:         AttributesOf(root),
		MetadataAttrs: AttributesOf(metadata),
		Messages:      NewMessages(),
		layout:        metadata.ChildElements(),
	}

	if messages := root.SelectElement(TagMessages); messages != nil {
		e.hasMessages = true
		e.MessagesAttrs = AttributesOf(messages)
		for _, child := range messages.ChildElements() {
			if child.Tag != TagMsg {
				e.messagesExtra = append(e.messagesExtra, child)
				continue
			}
			e.Messages.setParsed(child.SelectAttrValue("name", ""), child.Text(), AttributesOf(child))
		}
	}

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case TagMetadata, TagMessages, e.Tag:
			continue
		}
		e.data = append(e.data, child)
	}
	return e, nil
}

// Name returns the action name declared by the metadata block.
func (e *Envelope) Name() string {
	return e.MetadataAttrs.Value("name")
}

// Kind returns the UI kind declared by the metadata block, e.g. "form" or "list".
func (e *Envelope) Kind() string {
	return e.MetadataAttrs.Value("type")
}

// Layout returns the metadata children of the inbound document.
func (e *Envelope) Layout() []*etree.Element {
	return e.layout
}

// Data returns the top-level data elements of the inbound document.
func (e *Envelope) Data() []*etree.Element {
	return e.data
}

// Encode serializes the envelope shell with the given metadata children and
// data elements. The elements are adopted by the new tree.
func (e *Envelope) Encode(layout, data []*etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true

	tag := e.Tag
	if tag == "" {
		tag = TagDoc
	}
	root := NewElement(tag, e.Attrs)
	doc.SetRoot(root)

	metadata := root.CreateElement(TagMetadata)
	e.MetadataAttrs.Apply(metadata)
	for _, el := range layout {
		metadata.AddChild(el)
	}

	if e.hasMessages || e.Messages.Len() > 0 {
		messages := root.CreateElement(TagMessages)
		e.MessagesAttrs.Apply(messages)
		e.Messages.elements(messages)
		for _, el := range e.messagesExtra {
			messages.AddChild(el.Copy())
		}
	}

	for _, el := range data {
		root.AddChild(el)
	}
	return doc.WriteToString()
}

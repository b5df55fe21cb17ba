package envelope

import (
	"github.com/beevik/etree"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Messages is the envelope's string catalog in document order.
type Messages struct {
	m *orderedmap.OrderedMap[string, message]
}

// message is one <msg> entry. attrs holds the attributes it was parsed
// with, name included.
type message struct {
	text  string
	attrs Attributes
}

// NewMessages returns an empty catalog.
func NewMessages() *Messages {
	return &Messages{m: orderedmap.New[string, message]()}
}

// Get returns the text stored under key.
func (m *Messages) Get(key string) (string, bool) {
	msg, ok := m.m.Get(key)
	return msg.text, ok
}

// Set stores text under key, keeping the position and attributes of an
// existing key.
func (m *Messages) Set(key, text string) {
	msg, _ := m.m.Get(key)
	msg.text = text
	m.m.Set(key, msg)
}

func (m *Messages) setParsed(key, text string, attrs Attributes) {
	m.m.Set(key, message{text: text, attrs: attrs})
}

// Delete removes key.
func (m *Messages) Delete(key string) {
	m.m.Delete(key)
}

// Len returns the number of entries.
func (m *Messages) Len() int {
	return m.m.Len()
}

// Keys returns the keys in order.
func (m *Messages) Keys() []string {
	keys := make([]string, 0, m.m.Len())
	for pair := m.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every entry in order.
func (m *Messages) Each(fn func(key, text string)) {
	for pair := m.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value.text)
	}
}

func (m *Messages) elements(parent *etree.Element) {
	for pair := m.m.Oldest(); pair != nil; pair = pair.Next() {
		attrs := pair.Value.attrs.Clone()
		attrs.Set("name", pair.Key)
		el := NewElement(TagMsg, attrs)
		el.SetText(pair.Value.text)
		parent.AddChild(el)
	}
}

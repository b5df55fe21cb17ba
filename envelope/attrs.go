package envelope

import "github.com/beevik/etree"

// Attr is a single attribute. Key may carry a namespace prefix.
type Attr struct {
	Key   string
	Value string
}

// Attributes is an ordered attribute bag. Typed values owned by the document
// model are written back into it in place, so attributes the model does not
// know about keep both their value and their position.
type Attributes []Attr

// AttributesOf copies the attributes of el in document order.
func AttributesOf(el *etree.Element) Attributes {
	if el == nil || len(el.Attr) == 0 {
		return nil
	}
	attrs := make(Attributes, 0, len(el.Attr))
	for i := range el.Attr {
		attrs = append(attrs, Attr{Key: el.Attr[i].FullKey(), Value: el.Attr[i].Value})
	}
	return attrs
}

func (a Attributes) index(key string) int {
	for i := range a {
		if a[i].Key == key {
			return i
		}
	}
	return -1
}

// Get returns the value of key and whether it is present.
func (a Attributes) Get(key string) (string, bool) {
	if i := a.index(key); i >= 0 {
		return a[i].Value, true
	}
	return "", false
}

// Value returns the value of key, or "".
func (a Attributes) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	return a.index(key) >= 0
}

// Yes reports whether key is set to "yes".
func (a Attributes) Yes(key string) bool {
	return a.Value(key) == "yes"
}

// Set replaces the value of key in place or appends it.
func (a *Attributes) Set(key, value string) {
	if i := a.index(key); i >= 0 {
		(*a)[i].Value = value
		return
	}
	*a = append(*a, Attr{Key: key, Value: value})
}

// Delete removes key.
func (a *Attributes) Delete(key string) {
	if i := a.index(key); i >= 0 {
		*a = append((*a)[:i], (*a)[i+1:]...)
	}
}

// SetFlag writes "yes" when on and removes key otherwise.
func (a *Attributes) SetFlag(key string, on bool) {
	if on {
		a.Set(key, "yes")
		return
	}
	a.Delete(key)
}

// SetYesNo writes "yes" when on. When off, an existing attribute becomes "no"
// and an absent one stays absent.
func (a *Attributes) SetYesNo(key string, on bool) {
	switch {
	case on:
		a.Set(key, "yes")
	case a.Has(key):
		a.Set(key, "no")
	}
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// Apply writes the attributes onto el in order.
func (a Attributes) Apply(el *etree.Element) {
	for _, attr := range a {
		el.CreateAttr(attr.Key, attr.Value)
	}
}

// NewElement creates a detached element carrying attrs.
func NewElement(tag string, attrs Attributes) *etree.Element {
	el := etree.NewElement(tag)
	attrs.Apply(el)
	return el
}

package ui

import (
	"github.com/beevik/etree"

	"github.com/pulivilizator/billmgr-addon/envelope"
)

// NullKey is the option key meaning "no selection". It is distinct from an
// option whose key is the empty string.
const NullKey = "null"

// Option is one selectable value of a field. A nil Label is written as a
// catalog reference (<msg>key</msg>) instead of a labelled value.
type Option struct {
	Key      string
	Label    *string
	Original *string
}

// Opt returns a labelled option.
func Opt(key, label string) Option {
	return Option{Key: key, Label: &label}
}

// KeyOnly returns an option whose label is looked up from the message catalog.
func KeyOnly(key string) Option {
	return Option{Key: key}
}

// NullOption returns the "no selection" option.
func NullOption() Option {
	return Option{Key: NullKey}
}

// IsNull reports whether o is the "no selection" option.
func (o Option) IsNull() bool {
	return o.Key == NullKey
}

// LabelText returns the label, or "" for catalog references.
func (o Option) LabelText() string {
	if o.Label == nil {
		return ""
	}
	return *o.Label
}

// OptionsFromRecords builds options from record maps. A nil key becomes the
// null option. Records without labelField become catalog references unless
// keysAsLabels is set, in which case the key doubles as the label. An
// "original_value" entry is carried along.
func OptionsFromRecords(records []map[string]any, keyField, labelField string, keysAsLabels bool) []Option {
	opts := make([]Option, 0, len(records))
	for _, rec := range records {
		key := NullKey
		if v, ok := rec[keyField]; ok && v != nil {
			key = formatAny(v)
		}
		var opt Option
		switch label, ok := rec[labelField]; {
		case keysAsLabels:
			opt = Opt(key, key)
		case ok:
			opt = Opt(key, formatAny(label))
		default:
			opt = KeyOnly(key)
		}
		if orig, ok := rec["original_value"]; ok && opt.Label != nil {
			s := formatAny(orig)
			opt.Original = &s
		}
		opts = append(opts, opt)
	}
	return opts
}

// OptionsFromKeys builds labelled options whose label equals the key.
func OptionsFromKeys(keys ...string) []Option {
	opts := make([]Option, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, Opt(k, k))
	}
	return opts
}

func parseOptions(el *etree.Element) []Option {
	var opts []Option
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "val":
			opts = append(opts, Opt(child.SelectAttrValue("key", ""), child.Text()))
		case "msg":
			opts = append(opts, KeyOnly(child.Text()))
		}
	}
	return opts
}

func optionsElement(name string, opts []Option) *etree.Element {
	el := envelope.NewElement("slist", envelope.Attributes{{Key: "name", Value: name}})
	for _, o := range opts {
		if o.Label != nil {
			val := el.CreateElement("val")
			val.CreateAttr("key", o.Key)
			val.SetText(*o.Label)
			continue
		}
		el.CreateElement("msg").SetText(o.Key)
	}
	return el
}

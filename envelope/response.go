package envelope

import (
	"github.com/beevik/etree"

	"github.com/pulivilizator/billmgr-addon/model"
)

// Reply is anything an endpoint can return to the panel.
type Reply interface {
	Encode() (string, error)
}

type replyFunc func() (string, error)

func (f replyFunc) Encode() (string, error) { return f() }

func write(root *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	doc.SetRoot(root)
	return doc.WriteToString()
}

// Error renders <doc><error code="CODE">message</error></doc>. An empty code
// is omitted.
func Error(message, code string) Reply {
	return replyFunc(func() (string, error) {
		root := etree.NewElement(TagDoc)
		el := root.CreateElement("error")
		if code != "" {
			el.CreateAttr("code", code)
		}
		el.SetText(message)
		return write(root)
	})
}

// FromError renders a classified error as an error envelope.
func FromError(err *model.Error) Reply {
	return Error(err.Message, err.Code)
}

// Unknown renders the opaque envelope used for unclassified failures.
func Unknown() Reply {
	return Error("Internal server error", model.ErrUnknown)
}

// Success renders <doc><ok>message</ok></doc>.
func Success(message string) Reply {
	return replyFunc(func() (string, error) {
		root := etree.NewElement(TagDoc)
		root.CreateElement("ok").SetText(message)
		return write(root)
	})
}

// OK renders an empty <doc/> acknowledgement.
func OK() Reply {
	return replyFunc(func() (string, error) {
		return write(etree.NewElement(TagDoc))
	})
}

// Raw returns payload unchanged. An empty payload becomes <doc/>.
func Raw(payload string) Reply {
	return replyFunc(func() (string, error) {
		if payload == "" {
			return write(etree.NewElement(TagDoc))
		}
		return payload, nil
	})
}

// Text renders <doc>text</doc>. An empty text gives <doc/>.
func Text(text string) Reply {
	return replyFunc(func() (string, error) {
		root := etree.NewElement(TagDoc)
		if text != "" {
			root.SetText(text)
		}
		return write(root)
	})
}

// Features renders the capability report of a processing module:
// <doc><itemtypes><itemtype/>...</itemtypes><features><feature/>...</features>
// <params><param/>...</params></doc>. Each entry becomes one element
// carrying its attributes in order.
func Features(itemTypes, features, params []Attributes) Reply {
	return replyFunc(func() (string, error) {
		root := etree.NewElement(TagDoc)
		for _, block := range []struct {
			tag, item string
			entries   []Attributes
		}{
			{"itemtypes", "itemtype", itemTypes},
			{"features", "feature", features},
			{"params", "param", params},
		} {
			el := root.CreateElement(block.tag)
			for _, attrs := range block.entries {
				el.AddChild(NewElement(block.item, attrs))
			}
		}
		return write(root)
	})
}

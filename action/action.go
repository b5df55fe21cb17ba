// Package action resolves the intent of a panel request from its parameters.
package action

import "github.com/pulivilizator/billmgr-addon/model"

// Kind is the resolved intent of a request.
type Kind string

const (
	Get       Kind = "get"
	New       Kind = "new"
	Edit      Kind = "edit"
	SetValues Kind = "setvalues"
)

// Request markers sent by the panel.
const (
	ParamSetValues = "setvalues"
	ParamSubmit    = "sok"
	ParamRecordID  = "elid"
)

// ForForm resolves a form request. The field-change marker wins over the
// submit marker, so an interactive edit is never taken for a final submit.
func ForForm(p model.Params) Kind {
	switch {
	case p.Has(ParamSetValues):
		return SetValues
	case !p.Has(ParamSubmit):
		return Get
	case p.Get(ParamRecordID) == "":
		return New
	default:
		return Edit
	}
}

// ForList resolves a list request.
func ForList(model.Params) Kind { return Get }

// ForAction resolves a generic action request.
func ForAction(model.Params) Kind { return Get }

func (k Kind) String() string { return string(k) }

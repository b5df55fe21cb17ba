package dispatch

import (
	"context"

	"github.com/pulivilizator/billmgr-addon/action"
	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/model"
	"github.com/pulivilizator/billmgr-addon/preset"
	"github.com/pulivilizator/billmgr-addon/ui"
)

// Request parameters read by endpoints.
const (
	ParamParentID     = "elid"
	ParamParentName   = "elname"
	ParamUpdatedField = "sv_field"
)

// FormHandler handles one action of a form endpoint.
type FormHandler func(ctx context.Context, form *ui.Form, rc *model.RequestContext) (envelope.Reply, error)

// ListHandler handles a list endpoint.
type ListHandler func(ctx context.Context, list *ui.List, rc *model.RequestContext) (envelope.Reply, error)

// ActionHandler handles a generic panel action.
type ActionHandler func(ctx context.Context, rc *model.RequestContext) (envelope.Reply, error)

// PresetErrorHandler answers a failed option resolution.
type PresetErrorHandler func(ctx context.Context, form *ui.Form, rc *model.RequestContext, err error) (envelope.Reply, error)

// DirectHandler handles a direct UI request.
type DirectHandler func(ctx context.Context, rc *model.RequestContext) (*model.Response, error)

// Endpoint is a panel endpoint: *FormEndpoint, *ListEndpoint or
// *ActionEndpoint.
type Endpoint interface {
	EndpointName() string
	guard() guard
	serve(ctx context.Context, rc *model.RequestContext, r *Router) (envelope.Reply, error)
}

// guard holds the per-endpoint policy. AuthLevel 0 admits every level.
type guard struct {
	authLevel       int
	fallbackOnError bool
}

// FormEndpoint serves a form. Handlers are picked by action.ForForm; a nil
// handler for the resolved kind is reported as not implemented. Presets are
// resolved before Get and SetValues.
type FormEndpoint struct {
	Name                 string
	AuthLevel            int
	FallbackOnError      bool
	UseParentFromRequest bool
	Presets              []preset.Binding

	Get       FormHandler
	New       FormHandler
	Edit      FormHandler
	SetValues FormHandler

	OnPresetError PresetErrorHandler
}

func (e *FormEndpoint) EndpointName() string { return e.Name }

func (e *FormEndpoint) guard() guard {
	return guard{authLevel: e.AuthLevel, fallbackOnError: e.FallbackOnError}
}

func (e *FormEndpoint) handler(kind action.Kind) FormHandler {
	switch kind {
	case action.New:
		return e.New
	case action.Edit:
		return e.Edit
	case action.SetValues:
		return e.SetValues
	default:
		return e.Get
	}
}

func (e *FormEndpoint) serve(ctx context.Context, rc *model.RequestContext, r *Router) (envelope.Reply, error) {
	params := rc.Params()
	kind := action.ForForm(params)
	h := e.handler(kind)
	if h == nil {
		return nil, model.NewActionNotImplementedError(kind.String(), e.Name)
	}

	form, err := formFor(rc.Request, e.Name)
	if err != nil {
		return nil, err
	}
	if e.UseParentFromRequest {
		form.ParentID = params.Get(ParamParentID)
		form.ParentName = params.Get(ParamParentName)
	}
	form.UpdatedField = params.Get(ParamUpdatedField)

	if (kind == action.Get || kind == action.SetValues) && len(e.Presets) > 0 {
		if err := preset.Resolve(ctx, form, rc, e.Presets, r.presetOptions()); err != nil {
			if e.OnPresetError != nil {
				return e.OnPresetError(ctx, form, rc, err)
			}
			return nil, err
		}
	}
	return h(ctx, form, rc)
}

// ListEndpoint serves a list. Every list request resolves to get.
type ListEndpoint struct {
	Name                 string
	AuthLevel            int
	FallbackOnError      bool
	UseParentFromRequest bool

	Get ListHandler
}

func (e *ListEndpoint) EndpointName() string { return e.Name }

func (e *ListEndpoint) guard() guard {
	return guard{authLevel: e.AuthLevel, fallbackOnError: e.FallbackOnError}
}

func (e *ListEndpoint) serve(ctx context.Context, rc *model.RequestContext, _ *Router) (envelope.Reply, error) {
	kind := action.ForList(rc.Params())
	if e.Get == nil {
		return nil, model.NewActionNotImplementedError(kind.String(), e.Name)
	}
	list, err := listFor(rc.Request, e.Name)
	if err != nil {
		return nil, err
	}
	if e.UseParentFromRequest {
		list.ParentID = rc.Params().Get(ParamParentID)
		list.ParentName = rc.Params().Get(ParamParentName)
	}
	return e.Get(ctx, list, rc)
}

// ActionEndpoint serves a generic panel action or event hook.
type ActionEndpoint struct {
	Name            string
	AuthLevel       int
	FallbackOnError bool

	Handle ActionHandler
}

func (e *ActionEndpoint) EndpointName() string { return e.Name }

func (e *ActionEndpoint) guard() guard {
	return guard{authLevel: e.AuthLevel, fallbackOnError: e.FallbackOnError}
}

func (e *ActionEndpoint) serve(ctx context.Context, rc *model.RequestContext, _ *Router) (envelope.Reply, error) {
	if e.Handle == nil {
		return nil, model.NewActionNotImplementedError(action.ForAction(rc.Params()).String(), e.Name)
	}
	return e.Handle(ctx, rc)
}

// DirectEndpoint serves a direct UI request addressed by func name. A
// non-zero AuthLevel or any Roles require a resolved identity.
type DirectEndpoint struct {
	Name      string
	AuthLevel int
	Roles     []string

	Handle DirectHandler
}

func (e *DirectEndpoint) admits(id *model.Identity) bool {
	if e.AuthLevel == 0 && len(e.Roles) == 0 {
		return true
	}
	if id == nil {
		return false
	}
	if e.AuthLevel != 0 && id.AuthLevel != e.AuthLevel {
		return false
	}
	return id.HasRoles(e.Roles...)
}

// echo returns the inbound payload unchanged.
type echo struct{}

func (echo) EndpointName() string { return "" }

func (echo) guard() guard { return guard{} }

func (echo) serve(_ context.Context, rc *model.RequestContext, _ *Router) (envelope.Reply, error) {
	if rc.Request == nil {
		return envelope.Raw(""), nil
	}
	return envelope.Raw(rc.Request.Payload), nil
}

func formFor(req *model.Request, name string) (*ui.Form, error) {
	if req == nil || req.Payload == "" {
		return ui.NewForm(name), nil
	}
	return ui.ParseForm(req.Payload)
}

func listFor(req *model.Request, name string) (*ui.List, error) {
	if req == nil || req.Payload == "" {
		return ui.NewList(name), nil
	}
	return ui.ParseList(req.Payload)
}

// Package preset resolves the option lists of form fields before endpoint
// logic runs. Static and synchronous sources resolve inline, asynchronous
// sources run concurrently under a shared time bound.
package preset

import (
	"context"

	"github.com/pulivilizator/billmgr-addon/model"
	"github.com/pulivilizator/billmgr-addon/ui"
)

// SyncFunc computes options inline.
type SyncFunc func(form *ui.Form, rc *model.RequestContext) ([]ui.Option, error)

// AsyncFunc computes options concurrently with other async sources. It
// must honour ctx and must not mutate form.
type AsyncFunc func(ctx context.Context, form *ui.Form, rc *model.RequestContext) ([]ui.Option, error)

type sourceKind int

const (
	kindStatic sourceKind = iota
	kindSync
	kindAsync
)

// Source supplies the options of one field.
type Source struct {
	kind    sourceKind
	options []ui.Option
	sync    SyncFunc
	async   AsyncFunc
}

// Static returns a source of a fixed list.
func Static(opts ...ui.Option) Source {
	return Source{kind: kindStatic, options: opts}
}

// Sync returns a source computed inline.
func Sync(fn SyncFunc) Source {
	return Source{kind: kindSync, sync: fn}
}

// Async returns a source computed concurrently.
func Async(fn AsyncFunc) Source {
	return Source{kind: kindAsync, async: fn}
}

// IsAsync reports whether s is scheduled concurrently.
func (s Source) IsAsync() bool {
	return s.kind == kindAsync
}

// Binding ties a source to a field name.
type Binding struct {
	Field  string
	Source Source
}

// Bind returns a binding of field to src.
func Bind(field string, src Source) Binding {
	return Binding{Field: field, Source: src}
}

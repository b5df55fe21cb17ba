package preset

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/model"
	"github.com/pulivilizator/billmgr-addon/ui"
)

// DefaultTimeout bounds the async sources of one resolution.
const DefaultTimeout = 30 * time.Second

// Outcomes reported to a Recorder.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Recorder observes resolutions. observability.Metrics implements it.
type Recorder interface {
	ObservePreset(outcome string, sources int, d time.Duration)
}

// Options tune Resolve.
type Options struct {
	Timeout  time.Duration
	Recorder Recorder
}

// Resolve computes every binding and replaces the options of each bound
// field on form. Either all bindings are applied or none are.
//
// A failing source yields *model.PresetTaskError and cancels the others.
// When the async sources have not finished within the timeout, Resolve
// returns *model.PresetTimeoutError naming the pending fields, without
// waiting for sources that ignore cancellation. Cancellation of ctx
// itself is returned as ctx.Err().
func Resolve(ctx context.Context, form *ui.Form, rc *model.RequestContext, bindings []Binding, opts Options) (err error) {
	if len(bindings) == 0 {
		return nil
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, span := observability.StartSpan(ctx, "preset.Resolve", observability.AttrPresetSources.Int(len(bindings)))
	start := time.Now()
	defer func() {
		observability.EndSpanWithError(span, err)
		if opts.Recorder != nil {
			opts.Recorder.ObservePreset(outcomeOf(err), len(bindings), time.Since(start))
		}
	}()

	results := make([][]ui.Option, len(bindings))
	var async []int
	for i, b := range bindings {
		switch b.Source.kind {
		case kindStatic:
			results[i] = b.Source.options
		case kindSync:
			list, serr := b.Source.sync(form, rc)
			if serr != nil {
				return &model.PresetTaskError{Field: b.Field, Err: serr}
			}
			results[i] = list
		case kindAsync:
			async = append(async, i)
		}
	}

	if len(async) > 0 {
		if aerr := runAsync(ctx, form, rc, bindings, async, results, timeout); aerr != nil {
			return aerr
		}
	}

	for i, b := range bindings {
		form.SetOptions(b.Field, results[i])
	}
	return nil
}

func runAsync(ctx context.Context, form *ui.Form, rc *model.RequestContext, bindings []Binding, async []int, results [][]ui.Option, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	done := make(map[int]bool, len(async))
	// failed receives the first source error; later ones are dropped.
	failed := make(chan error, 1)
	g, gctx := errgroup.WithContext(tctx)
	for _, i := range async {
		b := bindings[i]
		g.Go(func() error {
			list, err := b.Source.async(gctx, form, rc)
			mu.Lock()
			defer mu.Unlock()
			// A source stopped by cancellation is still pending.
			done[i] = err == nil || gctx.Err() == nil
			if err != nil {
				taskErr := &model.PresetTaskError{Field: b.Field, Err: err}
				select {
				case failed <- taskErr:
				default:
				}
				return taskErr
			}
			results[i] = list
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	pending := func() []string {
		mu.Lock()
		defer mu.Unlock()
		var out []string
		for _, i := range async {
			if !done[i] {
				out = append(out, bindings[i].Field)
			}
		}
		return out
	}

	fail := func(err error) error {
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) && tctx.Err() != nil {
			return &model.PresetTimeoutError{Timeout: timeout, Pending: pending()}
		}
		return err
	}

	select {
	case err := <-failed:
		return fail(err)
	case <-finished:
		select {
		case err := <-failed:
			return fail(err)
		default:
			return nil
		}
	case <-tctx.Done():
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.PresetTimeoutError{Timeout: timeout, Pending: pending()}
	}
}

func outcomeOf(err error) string {
	var timeoutErr *model.PresetTimeoutError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &timeoutErr):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// Package processing implements a service processing module: the program the
// panel runs with --command to open, suspend or close services of the item
// types it handles, and to report which of those operations it supports.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/envelope"
	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/model"
)

// Command names the panel sends.
const (
	CommandFeatures = "features"
	CommandOpen     = "open"
	CommandSuspend  = "suspend"
	CommandResume   = "resume"
	CommandClose    = "close"
)

// Event is the dispatch event reported for processing commands.
const Event = "processing"

// Outcomes reported to a Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Args are the command line arguments of one invocation.
type Args struct {
	Command          string
	Subcommand       string
	Module           string
	ItemType         string
	Item             int64
	RunningOperation int64
}

// CommandFunc runs one command. A nil reply is written as <doc/>.
type CommandFunc func(ctx context.Context, args Args) (envelope.Reply, error)

// Recorder observes commands. observability.Metrics implements it.
type Recorder interface {
	ObserveDispatch(endpoint, event, outcome string, d time.Duration)
}

// Features is the capability report answered to the features command.
type Features struct {
	ItemTypes []envelope.Attributes
	Features  []envelope.Attributes
	Params    []envelope.Attributes
}

// Module is a set of named commands.
type Module struct {
	name     string
	commands map[string]CommandFunc
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Module) { m.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Module) { m.recorder = r }
}

// New returns a module with no commands.
func New(name string, opts ...Option) *Module {
	m := &Module{name: name, commands: make(map[string]CommandFunc), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Register adds a command. An empty or repeated name is an error.
func (m *Module) Register(command string, fn CommandFunc) error {
	if command == "" {
		return errors.New("processing: command with empty name")
	}
	if _, dup := m.commands[command]; dup {
		return fmt.Errorf("processing: duplicated command %q", command)
	}
	m.commands[command] = fn
	return nil
}

// RegisterOpen adds the command that opens a service.
func (m *Module) RegisterOpen(fn CommandFunc) error {
	return m.Register(CommandOpen, fn)
}

// RegisterFeatures adds the features command answering f.
func (m *Module) RegisterFeatures(f Features) error {
	return m.Register(CommandFeatures, func(context.Context, Args) (envelope.Reply, error) {
		return envelope.Features(f.ItemTypes, f.Features, f.Params), nil
	})
}

// Commands returns the number of registered commands.
func (m *Module) Commands() int {
	return len(m.commands)
}

// Run executes the command named by args and returns the envelope to print.
// Failures are answered with an error envelope; the returned error is
// non-nil only when nothing could be encoded.
func (m *Module) Run(ctx context.Context, args Args) (string, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "processing.Run", observability.AttrCommand.String(args.Command))
	defer span.End()

	logger := observability.LoggerFrom(ctx, m.logger).With(
		zap.String("module", m.name),
		zap.String("command", args.Command),
		zap.Int64("item", args.Item),
	)
	ctx = observability.WithLogger(ctx, logger)

	reply, outcome := m.run(ctx, args, logger)
	span.SetAttributes(observability.AttrOutcome.String(outcome))
	if m.recorder != nil {
		m.recorder.ObserveDispatch(args.Command, Event, outcome, time.Since(start))
	}

	body, err := reply.Encode()
	if err != nil {
		observability.RecordSpanError(span, err)
		logger.Error("encode reply", zap.Error(err))
		body, err = envelope.Unknown().Encode()
	}
	return body, err
}

func (m *Module) run(ctx context.Context, args Args, logger *zap.Logger) (envelope.Reply, string) {
	fn, ok := m.commands[args.Command]
	if !ok {
		logger.Warn("unknown processing command")
		return envelope.FromError(model.NewNotFoundError(fmt.Sprintf("Unknown command %q", args.Command))), OutcomeNotFound
	}

	reply, err := call(ctx, fn, args)
	if err != nil {
		me := model.AsError(err)
		if me.Kind == model.KindUnknown {
			logger.Error("processing command failed", zap.Error(err), zap.Stack("stack"))
			return envelope.Unknown(), OutcomeError
		}
		logger.Warn("processing command error", zap.String("kind", string(me.Kind)), zap.Error(err))
		return envelope.FromError(me), OutcomeError
	}
	if reply == nil {
		reply = envelope.OK()
	}
	logger.Debug("processing command done")
	return reply, OutcomeOK
}

func call(ctx context.Context, fn CommandFunc, args Args) (reply envelope.Reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, args)
}

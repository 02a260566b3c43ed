package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// ReasonUnimplemented is the rejection reason for unconfigured capabilities
// in strict mode.
const ReasonUnimplemented = "unimplemented"

// ErrNotCapability is returned when Dispatch is handed a kind that no
// capability handler answers.
var ErrNotCapability = errors.New("not a capability request")

// Sender delivers an action to the builder.
type Sender interface {
	Send(kind protocol.Kind, payload any) error
}

// Observer is notified about dispatch outcomes.
type Observer interface {
	RequestReceived(kind protocol.Kind)
	ResponseSent(kind protocol.Kind, outcome string)
}

type nopObserver struct{}

func (nopObserver) RequestReceived(protocol.Kind)       {}
func (nopObserver) ResponseSent(protocol.Kind, string) {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger.Named("dispatch")
		}
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithStrict rejects requests for unconfigured capabilities instead of
// dropping them.
func WithStrict(strict bool) Option {
	return func(d *Dispatcher) {
		d.strict = strict
	}
}

// Dispatcher routes capability requests for one session.
type Dispatcher struct {
	handlers Handlers
	sender   Sender
	observer Observer
	logger   *zap.Logger
	strict   bool

	wg sync.WaitGroup
}

// New creates a dispatcher answering through sender.
func New(handlers Handlers, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: handlers,
		sender:   sender,
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes a capability request to its handler and returns without
// waiting for the handler to answer.
func (d *Dispatcher) Dispatch(ctx context.Context, action protocol.Action) error {
	switch action.Type {
	case protocol.KindAddMedia:
		var extra protocol.AddMediaExtra
		if err := decodeExtra(action, &extra); err != nil {
			return err
		}
		d.observer.RequestReceived(action.Type)
		return addMedia(ctx, d, d.handlers.AddMedia, extra)
	case protocol.KindFormFields:
		d.observer.RequestReceived(action.Type)
		return formFields(ctx, d, d.handlers.FormFields)
	case protocol.KindFormAction:
		d.observer.RequestReceived(action.Type)
		return formAction(ctx, d, d.handlers.FormAction)
	case protocol.KindDCRichText:
		d.observer.RequestReceived(action.Type)
		return richText(ctx, d, d.handlers.RichText)
	case protocol.KindTrigger:
		var extra protocol.TriggerExtra
		if err := decodeExtra(action, &extra); err != nil {
			return err
		}
		d.observer.RequestReceived(action.Type)
		return trigger(ctx, d, d.handlers.Trigger, extra)
	default:
		return fmt.Errorf("%w: %s", ErrNotCapability, action.Type)
	}
}

// Wait blocks until every handler invocation started so far has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func addMedia(ctx context.Context, d *Dispatcher, h AddMediaHandler, extra protocol.AddMediaExtra) error {
	if h == nil {
		return d.unconfigured(protocol.KindAddMedia)
	}
	r := d.responder(protocol.KindAddMedia)
	d.run(r.kind, func() { h(ctx, resolver[protocol.AddMediaData](r), r.reject, extra) })
	return nil
}

func formFields(ctx context.Context, d *Dispatcher, h FormFieldsHandler) error {
	if h == nil {
		return d.unconfigured(protocol.KindFormFields)
	}
	r := d.responder(protocol.KindFormFields)
	d.run(r.kind, func() { h(ctx, resolver[[]protocol.FormFieldsOption](r), r.reject) })
	return nil
}

func formAction(ctx context.Context, d *Dispatcher, h FormActionHandler) error {
	if h == nil {
		return d.unconfigured(protocol.KindFormAction)
	}
	r := d.responder(protocol.KindFormAction)
	d.run(r.kind, func() { h(ctx, resolver[string](r), r.reject) })
	return nil
}

func richText(ctx context.Context, d *Dispatcher, h RichTextHandler) error {
	if h == nil {
		return d.unconfigured(protocol.KindDCRichText)
	}
	r := d.responder(protocol.KindDCRichText)
	d.run(r.kind, func() { h(ctx, resolver[protocol.DynamicContentOption](r), r.reject) })
	return nil
}

func trigger(ctx context.Context, d *Dispatcher, h TriggerHandler, extra protocol.TriggerExtra) error {
	if h == nil {
		return d.unconfigured(protocol.KindTrigger)
	}
	r := d.responder(protocol.KindTrigger)
	d.run(r.kind, func() { h(ctx, resolver[string](r), r.reject, extra) })
	return nil
}

func (d *Dispatcher) responder(kind protocol.Kind) *responder {
	return &responder{
		kind:     kind,
		sender:   d.sender,
		observer: d.observer,
		logger:   d.logger,
	}
}

// unconfigured handles a request with no handler. Outside strict mode the
// builder's pending request is left unanswered.
func (d *Dispatcher) unconfigured(kind protocol.Kind) error {
	if !d.strict {
		d.logger.Debug("No handler configured, dropping request", zap.String("kind", string(kind)))
		d.observer.ResponseSent(kind, OutcomeDropped)
		return nil
	}
	if err := d.sender.Send(kind.Rejected(), ReasonUnimplemented); err != nil {
		return fmt.Errorf("reject unconfigured %s: %w", kind, err)
	}
	d.observer.ResponseSent(kind, OutcomeUnimplemented)
	return nil
}

func (d *Dispatcher) run(kind protocol.Kind, fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("Capability handler panicked",
					zap.String("kind", string(kind)),
					zap.Any("panic", rec),
				)
			}
		}()
		fn()
	}()
}

func decodeExtra(action protocol.Action, v any) error {
	if !action.HasPayload() {
		return nil
	}
	return protocol.DecodePayload(action, v)
}

package dispatch

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Outcomes reported to the Observer.
const (
	OutcomeResolved      = "resolved"
	OutcomeRejected      = "rejected"
	OutcomeUnimplemented = "unimplemented"
	OutcomeDropped       = "dropped"
)

// responder answers one request exactly once.
type responder struct {
	kind     protocol.Kind
	sender   Sender
	observer Observer
	logger   *zap.Logger
	done     atomic.Bool
}

func (r *responder) resolve(v any) {
	if !r.done.CompareAndSwap(false, true) {
		r.logger.Debug("Ignoring repeated response", zap.String("kind", string(r.kind)))
		return
	}
	r.send(r.kind.Resolved(), v, OutcomeResolved)
}

func (r *responder) reject(reason string) {
	if !r.done.CompareAndSwap(false, true) {
		r.logger.Debug("Ignoring repeated response", zap.String("kind", string(r.kind)))
		return
	}
	r.send(r.kind.Rejected(), reason, OutcomeRejected)
}

func (r *responder) send(kind protocol.Kind, payload any, outcome string) {
	if err := r.sender.Send(kind, payload); err != nil {
		r.logger.Warn("Failed to send response",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	r.observer.ResponseSent(r.kind, outcome)
}

// resolver adapts a responder to a typed resolve function.
func resolver[T any](r *responder) func(T) {
	return func(v T) { r.resolve(v) }
}

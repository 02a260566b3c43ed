package tracing

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Instrument wraps every configured handler so each capability request runs
// in its own span. Providers forward the span through outbound headers.
// Unconfigured handlers stay nil. A span ends on the first answer.
func Instrument(tracer *Tracer, containerID string, h dispatch.Handlers) dispatch.Handlers {
	if tracer == nil {
		return h
	}
	start := func(ctx context.Context, kind protocol.Kind) (*Span, context.Context, func(error)) {
		span, ctx := tracer.StartSpan(ctx, "capability "+string(kind))
		span.SetTag("container_id", containerID)
		var once sync.Once
		return span, ctx, func(err error) {
			once.Do(func() {
				if err != nil {
					span.SetError(err)
				}
				span.Finish()
				tracer.Submit(span)
			})
		}
	}

	out := h
	if fn := h.AddMedia; fn != nil {
		out.AddMedia = func(ctx context.Context, resolve func(protocol.AddMediaData), reject dispatch.Reject, extra protocol.AddMediaExtra) {
			_, ctx, end := start(ctx, protocol.KindAddMedia)
			fn(ctx, func(v protocol.AddMediaData) { end(nil); resolve(v) }, rejecting(end, reject), extra)
		}
	}
	if fn := h.FormFields; fn != nil {
		out.FormFields = func(ctx context.Context, resolve func([]protocol.FormFieldsOption), reject dispatch.Reject) {
			_, ctx, end := start(ctx, protocol.KindFormFields)
			fn(ctx, func(v []protocol.FormFieldsOption) { end(nil); resolve(v) }, rejecting(end, reject))
		}
	}
	if fn := h.FormAction; fn != nil {
		out.FormAction = func(ctx context.Context, resolve func(string), reject dispatch.Reject) {
			_, ctx, end := start(ctx, protocol.KindFormAction)
			fn(ctx, func(v string) { end(nil); resolve(v) }, rejecting(end, reject))
		}
	}
	if fn := h.RichText; fn != nil {
		out.RichText = func(ctx context.Context, resolve func(protocol.DynamicContentOption), reject dispatch.Reject) {
			_, ctx, end := start(ctx, protocol.KindDCRichText)
			fn(ctx, func(v protocol.DynamicContentOption) { end(nil); resolve(v) }, rejecting(end, reject))
		}
	}
	if fn := h.Trigger; fn != nil {
		out.Trigger = func(ctx context.Context, resolve func(string), reject dispatch.Reject, extra protocol.TriggerExtra) {
			span, ctx, end := start(ctx, protocol.KindTrigger)
			span.SetTag("element_type", string(extra.Type))
			fn(ctx, func(v string) { end(nil); resolve(v) }, rejecting(end, reject), extra)
		}
	}
	return out
}

func rejecting(end func(error), reject dispatch.Reject) dispatch.Reject {
	return func(reason string) {
		end(errors.New(reason))
		reject(reason)
	}
}

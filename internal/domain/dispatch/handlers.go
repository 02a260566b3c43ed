package dispatch

import (
	"context"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Reject answers a request with a failure reason.
type Reject func(reason string)

// AddMediaHandler picks a media asset.
type AddMediaHandler func(ctx context.Context, resolve func(protocol.AddMediaData), reject Reject, extra protocol.AddMediaExtra)

// FormFieldsHandler lists integration form fields.
type FormFieldsHandler func(ctx context.Context, resolve func([]protocol.FormFieldsOption), reject Reject)

// FormActionHandler returns the form submit target.
type FormActionHandler func(ctx context.Context, resolve func(string), reject Reject)

// RichTextHandler returns a dynamic-content option.
type RichTextHandler func(ctx context.Context, resolve func(protocol.DynamicContentOption), reject Reject)

// TriggerHandler runs a custom UI trigger for an element kind.
type TriggerHandler func(ctx context.Context, resolve func(string), reject Reject, extra protocol.TriggerExtra)

// Handlers holds one optional handler per capability kind.
type Handlers struct {
	AddMedia   AddMediaHandler
	FormFields FormFieldsHandler
	FormAction FormActionHandler
	RichText   RichTextHandler
	Trigger    TriggerHandler
}

// Configured lists the capability kinds that have a handler.
func (h Handlers) Configured() []protocol.Kind {
	kinds := make([]protocol.Kind, 0, len(protocol.Capabilities))
	for _, kind := range protocol.Capabilities {
		if h.has(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func (h Handlers) has(kind protocol.Kind) bool {
	switch kind {
	case protocol.KindAddMedia:
		return h.AddMedia != nil
	case protocol.KindFormFields:
		return h.FormFields != nil
	case protocol.KindFormAction:
		return h.FormAction != nil
	case protocol.KindDCRichText:
		return h.RichText != nil
	case protocol.KindTrigger:
		return h.Trigger != nil
	}
	return false
}

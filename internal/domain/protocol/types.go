package protocol

import "encoding/json"

// Tag routes an envelope to one side of the channel.
type Tag string

const (
	// TargetBuilder marks envelopes sent by the builder to the host.
	TargetBuilder Tag = "builder"
	// TargetCore marks envelopes sent by the host to the builder.
	TargetCore Tag = "core"
)

// Kind identifies an Action.
type Kind string

const (
	KindInit   Kind = "init"
	KindSave   Kind = "save"
	KindOnLoad Kind = "onLoad"

	KindAddMedia    Kind = "addMedia"
	KindAddMediaRes Kind = "addMediaRes"
	KindAddMediaRej Kind = "addMediaRej"

	KindFormFields    Kind = "formFields"
	KindFormFieldsRes Kind = "formFieldsRes"
	KindFormFieldsRej Kind = "formFieldsRej"

	KindFormAction    Kind = "formAction"
	KindFormActionRes Kind = "formActionRes"
	KindFormActionRej Kind = "formActionRej"

	KindDCRichText    Kind = "dcRichText"
	KindDCRichTextRes Kind = "dcRichTextRes"
	KindDCRichTextRej Kind = "dcRichTextRej"

	KindTrigger    Kind = "trigger"
	KindTriggerRes Kind = "triggerRes"
	KindTriggerRej Kind = "triggerRej"
)

// Capabilities lists the request kinds answered by host capability handlers.
var Capabilities = []Kind{
	KindAddMedia,
	KindFormFields,
	KindFormAction,
	KindDCRichText,
	KindTrigger,
}

// IsCapability reports whether k is a capability request kind.
func (k Kind) IsCapability() bool {
	switch k {
	case KindAddMedia, KindFormFields, KindFormAction, KindDCRichText, KindTrigger:
		return true
	}
	return false
}

// Resolved returns the success response kind for a capability request.
func (k Kind) Resolved() Kind { return k + "Res" }

// Rejected returns the failure response kind for a capability request.
func (k Kind) Rejected() Kind { return k + "Rej" }

// Envelope is the outer wrapper exchanged over the embedding channel.
type Envelope struct {
	Target Tag    `json:"target"`
	Data   string `json:"data"`
}

// Action is a typed request or response unit.
type Action struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HasPayload reports whether the action carries a non-null payload.
func (a Action) HasPayload() bool {
	return len(a.Payload) > 0 && string(a.Payload) != "null"
}

// InitPayload is sent with the init action.
type InitPayload struct {
	Token  string     `json:"token"`
	Config PeerConfig `json:"config"`
}

// PeerConfig is the serializable projection of the host configuration that
// the builder receives at init. Handlers themselves never cross the channel;
// only the fact that they exist does.
type PeerConfig struct {
	HTMLOutputType string         `json:"htmlOutputType"`
	Capabilities   []Kind         `json:"capabilities"`
	Options        map[string]any `json:"options,omitempty"`
}

// AddMediaExtra is the media context sent with an addMedia request.
type AddMediaExtra struct {
	AcceptedExtensions []string       `json:"acceptedExtensions,omitempty"`
	Multiple           bool           `json:"multiple,omitempty"`
	Context            map[string]any `json:"context,omitempty"`
}

// AddMediaData references a media asset picked by the host.
type AddMediaData struct {
	UID       string `json:"uid"`
	FileName  string `json:"fileName"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// FormFieldsOption describes one integration form field.
type FormFieldsOption struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// DynamicContentOption is a dynamic-content placeholder value.
type DynamicContentOption struct {
	Label       string                 `json:"label"`
	Placeholder string                 `json:"placeholder"`
	Options     []DynamicContentOption `json:"options,omitempty"`
}

// ElementType names a builder element kind.
type ElementType string

// TriggerExtra is sent with a trigger request.
type TriggerExtra struct {
	Type ElementType `json:"type"`
}

// BuilderStyle is one stylesheet produced by the builder.
type BuilderStyle struct {
	ID  string `json:"id"`
	CSS string `json:"css"`
}

// BuilderOutput is the raw document delivered with a save action.
type BuilderOutput struct {
	HTML   string         `json:"html"`
	Styles []BuilderStyle `json:"styles,omitempty"`
	Fonts  []string       `json:"fonts,omitempty"`
}

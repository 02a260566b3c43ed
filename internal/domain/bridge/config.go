package bridge

import (
	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/domain/session"
)

// Config configures one embedding.
type Config struct {
	Container      *page.Container
	HTMLOutputType output.Type
	OnLoad         func()
	OnSave         session.OnSave

	API            APIConfig
	Integration    IntegrationConfig
	DynamicContent DynamicContentConfig
	Elements       ElementsConfig

	// StrictCapabilities answers requests for unconfigured capabilities
	// with a rejection instead of dropping them.
	StrictCapabilities bool
	// BuilderOptions are forwarded to the builder verbatim at init.
	BuilderOptions map[string]any
}

// APIConfig groups the host API capabilities.
type APIConfig struct {
	Media MediaConfig
}

// MediaConfig holds the addMedia handler.
type MediaConfig struct {
	AddMedia struct {
		Handler dispatch.AddMediaHandler
	}
}

// IntegrationConfig groups third-party integrations.
type IntegrationConfig struct {
	Form FormConfig
}

// FormConfig holds the formFields and formAction handlers.
type FormConfig struct {
	Fields struct {
		Handler dispatch.FormFieldsHandler
	}
	Action struct {
		Handler dispatch.FormActionHandler
	}
}

// DynamicContentConfig holds the dcRichText handler.
type DynamicContentConfig struct {
	RichText struct {
		Handler dispatch.RichTextHandler
	}
}

// ElementsConfig holds per-element options, currently the trigger handler.
type ElementsConfig struct {
	Options struct {
		Trigger struct {
			Handler dispatch.TriggerHandler
		}
	}
}

// Handlers flattens the handler groups into a dispatch table.
func (c Config) Handlers() dispatch.Handlers {
	return dispatch.Handlers{
		AddMedia:   c.API.Media.AddMedia.Handler,
		FormFields: c.Integration.Form.Fields.Handler,
		FormAction: c.Integration.Form.Action.Handler,
		RichText:   c.DynamicContent.RichText.Handler,
		Trigger:    c.Elements.Options.Trigger.Handler,
	}
}

// SetHandlers is the inverse of Handlers.
func (c *Config) SetHandlers(h dispatch.Handlers) {
	c.API.Media.AddMedia.Handler = h.AddMedia
	c.Integration.Form.Fields.Handler = h.FormFields
	c.Integration.Form.Action.Handler = h.FormAction
	c.DynamicContent.RichText.Handler = h.RichText
	c.Elements.Options.Trigger.Handler = h.Trigger
}

// PeerConfig is the part of c the builder receives at init.
func (c Config) PeerConfig() protocol.PeerConfig {
	t := c.HTMLOutputType
	if t == "" {
		t = output.TypeMonolith
	}
	return protocol.PeerConfig{
		HTMLOutputType: string(t),
		Capabilities:   c.Handlers().Configured(),
		Options:        c.BuilderOptions,
	}
}

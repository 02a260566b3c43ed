package providers

import (
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/providers/dynamiccontent"
	"github.com/GriffinCanCode/builderbridge/internal/providers/forms"
	"github.com/GriffinCanCode/builderbridge/internal/providers/media"
	"github.com/GriffinCanCode/builderbridge/internal/providers/trigger"
)

// Set holds the capability providers built from a provider file.
type Set struct {
	Media          *media.Library
	Forms          *forms.Client
	DynamicContent *dynamiccontent.Source
	Trigger        *trigger.Runner
	BuilderOptions map[string]any
}

// Build creates the providers named in defs. A nil defs yields an empty set.
func Build(defs *Definitions, logger *zap.Logger, metrics *monitoring.Metrics) (*Set, error) {
	set := &Set{}
	if defs == nil {
		return set, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if defs.Media != nil {
		lib, err := media.NewLibrary(*defs.Media, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("media provider: %w", err)
		}
		set.Media = lib
	}
	if defs.Forms != nil {
		set.Forms = forms.NewClient(*defs.Forms, logger, metrics)
	}
	if defs.DynamicContent != nil {
		set.DynamicContent = dynamiccontent.NewSource(*defs.DynamicContent, logger, metrics)
	}
	if defs.Trigger != nil {
		runner, err := trigger.NewRunner(*defs.Trigger, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("trigger provider: %w", err)
		}
		set.Trigger = runner
	}
	set.BuilderOptions = maps.Clone(defs.BuilderOptions)
	return set, nil
}

// Apply installs the set's handlers into cfg. Handlers already present in
// cfg are kept.
func (s *Set) Apply(cfg *bridge.Config) {
	if s == nil {
		return
	}
	if s.Media != nil && cfg.API.Media.AddMedia.Handler == nil {
		cfg.API.Media.AddMedia.Handler = s.Media.Handler()
	}
	if s.Forms != nil {
		if cfg.Integration.Form.Fields.Handler == nil {
			cfg.Integration.Form.Fields.Handler = s.Forms.FieldsHandler()
		}
		if cfg.Integration.Form.Action.Handler == nil {
			cfg.Integration.Form.Action.Handler = s.Forms.ActionHandler()
		}
	}
	if s.DynamicContent != nil && cfg.DynamicContent.RichText.Handler == nil {
		cfg.DynamicContent.RichText.Handler = s.DynamicContent.Handler()
	}
	if s.Trigger != nil && cfg.Elements.Options.Trigger.Handler == nil {
		cfg.Elements.Options.Trigger.Handler = s.Trigger.Handler()
	}
	if len(s.BuilderOptions) > 0 {
		merged := maps.Clone(s.BuilderOptions)
		maps.Copy(merged, cfg.BuilderOptions)
		cfg.BuilderOptions = merged
	}
}

package providers

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/builderbridge/internal/providers/dynamiccontent"
	"github.com/GriffinCanCode/builderbridge/internal/providers/forms"
	"github.com/GriffinCanCode/builderbridge/internal/providers/media"
	"github.com/GriffinCanCode/builderbridge/internal/providers/trigger"
)

// ErrUnsupportedFormat is returned for provider files that are neither YAML
// nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported provider file format")

// Definitions is the provider file. Every section is optional; a missing
// section leaves that capability unconfigured.
type Definitions struct {
	Media          *media.Config          `yaml:"media" toml:"media"`
	Forms          *forms.Config          `yaml:"forms" toml:"forms"`
	DynamicContent *dynamiccontent.Config `yaml:"dynamic_content" toml:"dynamic_content"`
	Trigger        *trigger.Config        `yaml:"trigger" toml:"trigger"`
	BuilderOptions map[string]any         `yaml:"builder_options" toml:"builder_options"`
}

// Load reads a provider file. The format follows the extension: .yaml,
// .yml or .toml. Unknown keys are rejected.
func Load(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider file: %w", err)
	}

	var defs Definitions
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.UnmarshalWithOptions(data, &defs, yaml.DisallowUnknownField())
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&defs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse provider file %s: %w", filepath.Base(path), err)
	}
	return &defs, nil
}

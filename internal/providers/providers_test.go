package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/builderbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/providers/trigger"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	root := t.TempDir()
	p := writeFile(t, "providers.yaml", `
media:
  root: `+root+`
  patterns: ["**/*.png"]
forms:
  base_url: https://forms.example.com
  timeout: 5s
dynamic_content:
  static:
    label: Customer
    placeholder: "{{customer}}"
trigger:
  script: "function trigger(t) { return t; }"
builder_options:
  locale: de
`)

	defs, err := Load(p)
	require.NoError(t, err)
	require.NotNil(t, defs.Media)
	assert.Equal(t, root, defs.Media.Root)
	assert.Equal(t, []string{"**/*.png"}, defs.Media.Patterns)
	require.NotNil(t, defs.Forms)
	assert.Equal(t, 5*time.Second, defs.Forms.Timeout.Std())
	require.NotNil(t, defs.DynamicContent)
	assert.Equal(t, "Customer", defs.DynamicContent.Static.Label)
	assert.Equal(t, "de", defs.BuilderOptions["locale"])
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "providers.toml", `
[forms]
base_url = "https://forms.example.com"
action_url = "https://forms.example.com/submit"

[trigger]
script = "function trigger(t) { return t; }"
`)

	defs, err := Load(p)
	require.NoError(t, err)
	require.NotNil(t, defs.Forms)
	assert.Equal(t, "https://forms.example.com/submit", defs.Forms.ActionURL)
	require.NotNil(t, defs.Trigger)
	assert.Nil(t, defs.Media)
}

func TestLoadTOMLDurations(t *testing.T) {
	p := writeFile(t, "providers.toml", `
[forms]
base_url = "https://forms.example.com"
timeout = "5s"

[dynamic_content]
url = "https://content.example.com/option"
timeout = "1m30s"

[trigger]
script = "function trigger(t) { return t; }"
timeout = "250ms"
`)

	defs, err := Load(p)
	require.NoError(t, err)
	require.NotNil(t, defs.Forms)
	require.NotNil(t, defs.DynamicContent)
	require.NotNil(t, defs.Trigger)
	assert.Equal(t, 5*time.Second, defs.Forms.Timeout.Std())
	assert.Equal(t, 90*time.Second, defs.DynamicContent.Timeout.Std())
	assert.Equal(t, 250*time.Millisecond, defs.Trigger.Timeout.Std())

	_, err = Load(writeFile(t, "providers.toml", "[forms]\ntimeout = \"soon\"\n"))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "providers.json", `{}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(writeFile(t, "providers.yaml", "unknown_section: {}\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "providers.toml", "[mystery]\nx = 1\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildAndApply(t *testing.T) {
	set, err := Build(&Definitions{
		BuilderOptions: map[string]any{"locale": "de", "theme": "dark"},
	}, nil, nil)
	require.NoError(t, err)

	cfg := bridge.Config{BuilderOptions: map[string]any{"theme": "light"}}
	set.Apply(&cfg)
	assert.Equal(t, "de", cfg.BuilderOptions["locale"])
	assert.Equal(t, "light", cfg.BuilderOptions["theme"], "per-session options win")
	assert.Empty(t, cfg.Handlers().Configured())
}

func TestApplyKeepsExistingHandlers(t *testing.T) {
	set, err := Build(&Definitions{
		Trigger: &trigger.Config{Script: "function trigger(t) { return 'file'; }"},
	}, nil, nil)
	require.NoError(t, err)

	cfg := bridge.Config{}
	cfg.Elements.Options.Trigger.Handler = func(_ context.Context, resolve func(string), _ dispatch.Reject, _ protocol.TriggerExtra) {
		resolve("own")
	}
	set.Apply(&cfg)

	var got string
	cfg.Elements.Options.Trigger.Handler(context.Background(), func(s string) { got = s }, func(string) {}, protocol.TriggerExtra{})
	assert.Equal(t, "own", got)
}

func TestBuildAllProviders(t *testing.T) {
	p := writeFile(t, "providers.yaml", `
media:
  root: `+t.TempDir()+`
forms:
  base_url: https://forms.example.com
dynamic_content:
  url: https://content.example.com/option
trigger:
  script: "function trigger(t) { return t; }"
`)
	defs, err := Load(p)
	require.NoError(t, err)

	set, err := Build(defs, nil, nil)
	require.NoError(t, err)

	var cfg bridge.Config
	set.Apply(&cfg)
	assert.Equal(t, []protocol.Kind{
		protocol.KindAddMedia,
		protocol.KindFormFields,
		protocol.KindFormAction,
		protocol.KindDCRichText,
		protocol.KindTrigger,
	}, cfg.Handlers().Configured())
}

func TestBuildFailsOnBadProvider(t *testing.T) {
	_, err := Build(&Definitions{Trigger: &trigger.Config{}}, nil, nil)
	assert.Error(t, err)

	_, err = Build(&Definitions{Trigger: &trigger.Config{Script: "function ("}}, nil, nil)
	assert.Error(t, err)
}

func TestNilSet(t *testing.T) {
	var s *Set
	var cfg bridge.Config
	assert.NotPanics(t, func() { s.Apply(&cfg) })

	empty, err := Build(nil, nil, nil)
	require.NoError(t, err)
	empty.Apply(&cfg)
	assert.Empty(t, cfg.Handlers().Configured())
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid is returned when a loaded configuration cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig
	Bridge    BridgeConfig
	Output    OutputConfig
	Providers ProvidersConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Peer      PeerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BridgeConfig configures builder embedding.
type BridgeConfig struct {
	PublicHost         string        `envconfig:"PUBLIC_HOST" default:"http://localhost:3000"`
	Token              string        `envconfig:"BUILDER_TOKEN"`
	AllowedOrigins     []string      `envconfig:"ALLOWED_ORIGINS"`
	StrictCapabilities bool          `envconfig:"STRICT_CAPABILITIES" default:"false"`
	SaveTimeout        time.Duration `envconfig:"SAVE_TIMEOUT" default:"30s"`
}

// OutputConfig configures saved document handling.
type OutputConfig struct {
	Dir      string `envconfig:"OUTPUT_DIR" default:"./data/output"`
	Sanitize bool   `envconfig:"OUTPUT_SANITIZE" default:"false"`
}

// ProvidersConfig points at the capability provider definitions.
type ProvidersConfig struct {
	File string `envconfig:"PROVIDERS_FILE"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// PeerConfig limits inbound messages per builder connection.
type PeerConfig struct {
	MessagesPerSecond float64 `envconfig:"PEER_MSG_RPS" default:"50"`
	Burst             int     `envconfig:"PEER_MSG_BURST" default:"100"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns the
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8000", Host: "0.0.0.0"},
		Bridge: BridgeConfig{
			PublicHost:  "http://localhost:3000",
			SaveTimeout: 30 * time.Second,
		},
		Output:  OutputConfig{Dir: "./data/output"},
		Logging: LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Peer: PeerConfig{MessagesPerSecond: 50, Burst: 100},
	}
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Bridge.PublicHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: PUBLIC_HOST %q is not an absolute url", ErrInvalid, c.Bridge.PublicHost)
	}
	if c.Bridge.SaveTimeout <= 0 {
		return fmt.Errorf("%w: SAVE_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Peer.MessagesPerSecond <= 0 || c.Peer.Burst <= 0 {
		return fmt.Errorf("%w: peer message limits must be positive", ErrInvalid)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

package forms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/builderbridge/internal/shared/duration"
)

// ErrUpstream wraps a non-success answer from the form service.
var ErrUpstream = errors.New("form service error")

// Config points at a form integration service. When ActionURL is set it is
// returned for formAction without asking the service.
type Config struct {
	BaseURL    string        `yaml:"base_url" toml:"base_url"`
	FieldsPath string        `yaml:"fields_path" toml:"fields_path"`
	ActionPath string        `yaml:"action_path" toml:"action_path"`
	ActionURL  string        `yaml:"action_url" toml:"action_url"`
	Token      string        `yaml:"token" toml:"token"`
	Timeout    duration.Duration `yaml:"timeout" toml:"timeout"`
	Retries    int           `yaml:"retries" toml:"retries"`
}

type actionResponse struct {
	URL string `json:"url"`
}

// Client answers formFields and formAction requests from a remote service.
type Client struct {
	cfg     Config
	resty   *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewClient creates a client for cfg.
func NewClient(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.Duration(10 * time.Second)
	}
	if cfg.FieldsPath == "" {
		cfg.FieldsPath = "/fields"
	}
	if cfg.ActionPath == "" {
		cfg.ActionPath = "/action"
	}
	logger = logger.Named("forms")

	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout.Std()).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "builderbridge-forms/1.0")
	if cfg.Token != "" {
		r.SetAuthToken(cfg.Token)
	}

	breaker := resilience.New("forms", resilience.Settings{
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Client{cfg: cfg, resty: r, breaker: breaker, logger: logger, metrics: metrics}
}

// Breaker exposes the client's circuit breaker.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// Fields lists the integration form fields.
func (c *Client) Fields(ctx context.Context) ([]protocol.FormFieldsOption, error) {
	timer := monitoring.NewTimer(c.metrics, "forms", "fields")
	fields, err := resilience.Do(ctx, c.breaker, func(ctx context.Context) ([]protocol.FormFieldsOption, error) {
		var out []protocol.FormFieldsOption
		resp, err := c.resty.R().SetContext(ctx).SetHeaders(tracing.Headers(ctx)).SetResult(&out).Get(c.cfg.FieldsPath)
		if err := checkResponse(resp, err); err != nil {
			return nil, err
		}
		return out, nil
	})
	timer.Stop(status(err))
	return fields, err
}

// Action returns the URL the builder's form should submit to.
func (c *Client) Action(ctx context.Context) (string, error) {
	if c.cfg.ActionURL != "" {
		return c.cfg.ActionURL, nil
	}

	timer := monitoring.NewTimer(c.metrics, "forms", "action")
	url, err := resilience.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
		var out actionResponse
		resp, err := c.resty.R().SetContext(ctx).SetHeaders(tracing.Headers(ctx)).SetResult(&out).Get(c.cfg.ActionPath)
		if err := checkResponse(resp, err); err != nil {
			return "", err
		}
		if out.URL == "" {
			return "", fmt.Errorf("%w: empty action url", ErrUpstream)
		}
		return out.URL, nil
	})
	timer.Stop(status(err))
	return url, err
}

// FieldsHandler answers formFields requests.
func (c *Client) FieldsHandler() dispatch.FormFieldsHandler {
	return func(ctx context.Context, resolve func([]protocol.FormFieldsOption), reject dispatch.Reject) {
		fields, err := c.Fields(ctx)
		if err != nil {
			c.logger.Warn("Form fields request failed", zap.Error(err))
			reject(err.Error())
			return
		}
		resolve(fields)
	}
}

// ActionHandler answers formAction requests.
func (c *Client) ActionHandler() dispatch.FormActionHandler {
	return func(ctx context.Context, resolve func(string), reject dispatch.Reject) {
		url, err := c.Action(ctx)
		if err != nil {
			c.logger.Warn("Form action request failed", zap.Error(err))
			reject(err.Error())
			return
		}
		resolve(url)
	}
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUpstream, resp.Status())
	}
	return nil
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}

package dynamiccontent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/builderbridge/internal/shared/duration"
)

const maxBody = 1 << 20

// ErrBadOption is returned when the service answers with an unusable option.
var ErrBadOption = errors.New("invalid dynamic content option")

// Config points at a dynamic content service, or holds a fixed option.
type Config struct {
	URL     string                         `yaml:"url" toml:"url"`
	Timeout duration.Duration              `yaml:"timeout" toml:"timeout"`
	Retries int                            `yaml:"retries" toml:"retries"`
	Static  *protocol.DynamicContentOption `yaml:"static" toml:"static"`
}

// Source answers dcRichText requests.
type Source struct {
	cfg     Config
	client  *retryablehttp.Client
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewSource creates a source for cfg.
func NewSource(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.Duration(10 * time.Second)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout.Std()
	client.Logger = nil

	return &Source{cfg: cfg, client: client, logger: logger.Named("dynamic-content"), metrics: metrics}
}

// RichText fetches the dynamic content option.
func (s *Source) RichText(ctx context.Context) (protocol.DynamicContentOption, error) {
	if s.cfg.Static != nil {
		return *s.cfg.Static, nil
	}

	timer := monitoring.NewTimer(s.metrics, "dynamic-content", "rich-text")
	opt, err := s.fetch(ctx)
	if err != nil {
		timer.Stop("error")
		return protocol.DynamicContentOption{}, err
	}
	timer.Stop("success")
	return opt, nil
}

func (s *Source) fetch(ctx context.Context) (protocol.DynamicContentOption, error) {
	var opt protocol.DynamicContentOption

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return opt, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return opt, fmt.Errorf("fetch dynamic content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return opt, fmt.Errorf("fetch dynamic content: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return opt, fmt.Errorf("read dynamic content: %w", err)
	}
	if err := sonic.ConfigStd.Unmarshal(body, &opt); err != nil {
		return opt, fmt.Errorf("%w: %w", ErrBadOption, err)
	}
	if opt.Label == "" {
		return opt, fmt.Errorf("%w: missing label", ErrBadOption)
	}
	return opt, nil
}

// Handler answers dcRichText requests.
func (s *Source) Handler() dispatch.RichTextHandler {
	return func(ctx context.Context, resolve func(protocol.DynamicContentOption), reject dispatch.Reject) {
		opt, err := s.RichText(ctx)
		if err != nil {
			s.logger.Warn("Dynamic content request failed", zap.Error(err))
			reject(err.Error())
			return
		}
		resolve(opt)
	}
}

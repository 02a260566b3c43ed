package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/builderbridge/internal/providers"
	"github.com/GriffinCanCode/builderbridge/internal/providers/storage"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

const defaultSaveTimeout = 30 * time.Second

// Options configures Handlers.
type Options struct {
	Host        *bridge.Host
	Store       *storage.Store
	Providers   *providers.Set
	Metrics     *monitoring.Metrics
	Tracer      *tracing.Tracer
	Logger      *zap.Logger
	Token       string
	Strict      bool
	SaveTimeout time.Duration
	Version     string
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	host        *bridge.Host
	store       *storage.Store
	providers   *providers.Set
	metrics     *monitoring.Metrics
	tracer      *tracing.Tracer
	logger      *zap.Logger
	token       string
	strict      bool
	saveTimeout time.Duration
	version     string

	mu      sync.Mutex
	waiters map[id.SessionID][]chan output.Output
}

// NewHandlers creates a new handler set.
func NewHandlers(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.SaveTimeout
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Handlers{
		host:        opts.Host,
		store:       opts.Store,
		providers:   opts.Providers,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		logger:      logger.Named("http"),
		token:       opts.Token,
		strict:      opts.Strict,
		saveTimeout: timeout,
		version:     version,
		waiters:     make(map[id.SessionID][]chan output.Output),
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"service":   "builder bridge",
		"version":   h.version,
		"frame_src": h.host.FrameSrc(),
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"sessions": h.host.Sessions().Len(),
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
		resp["uptime_seconds"] = int64(h.metrics.Uptime().Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

// Metrics serves the Prometheus exposition.
func (h *Handlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Register mounts the session API on r.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)

	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/sessions/:id/save", h.SaveSession)
	r.GET("/sessions/:id/output", h.GetOutput)
	r.GET("/sessions/:id/outputs", h.ListOutputs)
	r.DELETE("/sessions/:id", h.DeleteSession)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/builderbridge/internal/api/http"
	"github.com/GriffinCanCode/builderbridge/internal/api/middleware"
	"github.com/GriffinCanCode/builderbridge/internal/api/ws"
	"github.com/GriffinCanCode/builderbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/builderbridge/internal/providers"
	"github.com/GriffinCanCode/builderbridge/internal/providers/storage"
)

// Version is reported by the root endpoint.
var Version = "0.1.0"

// Server wraps the HTTP server and dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	host       *bridge.Host
	store      *storage.Store
	providers  *providers.Set
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return NewServerWithLogger(cfg, logger)
}

// NewServerWithLogger creates a server that logs through logger.
func NewServerWithLogger(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Initializing builder bridge",
		zap.String("addr", cfg.Addr()),
		zap.String("public_host", cfg.Bridge.PublicHost),
		zap.Bool("strict_capabilities", cfg.Bridge.StrictCapabilities),
	)
	if cfg.Bridge.Token == "" {
		logger.Warn("BUILDER_TOKEN is empty; sessions need a token in the request body")
	}

	metrics := monitoring.NewMetrics()

	var err error
	defs := &providers.Definitions{}
	if cfg.Providers.File != "" {
		defs, err = providers.Load(cfg.Providers.File)
		if err != nil {
			return nil, err
		}
	}
	set, err := providers.Build(defs, logger.Component("providers"), metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build providers: %w", err)
	}
	logger.Info("Capability providers ready",
		zap.Bool("media", set.Media != nil),
		zap.Bool("forms", set.Forms != nil),
		zap.Bool("dynamic_content", set.DynamicContent != nil),
		zap.Bool("trigger", set.Trigger != nil),
	)

	store, err := storage.NewStore(cfg.Output.Dir, logger.Logger)
	if err != nil {
		return nil, err
	}

	builderOrigin, err := page.OriginOf(cfg.Bridge.PublicHost)
	if err != nil {
		return nil, fmt.Errorf("%w: PUBLIC_HOST: %v", config.ErrInvalid, err)
	}

	tracer := tracing.New("bridge", logger.Logger)
	window := page.NewWindow("host", logger.Logger)
	host := bridge.NewHost(window, bridge.Options{
		PublicHost: cfg.Bridge.PublicHost,
		Logger:     logger.Logger,
		Observer:   metrics,
		Shaper:     output.NewShaper(output.Options{Sanitize: cfg.Output.Sanitize}),
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Bridge.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(apihttp.Options{
		Host:        host,
		Store:       store,
		Providers:   set,
		Metrics:     metrics,
		Tracer:      tracer,
		Logger:      logger.Logger,
		Token:       cfg.Bridge.Token,
		Strict:      cfg.Bridge.StrictCapabilities,
		SaveTimeout: cfg.Bridge.SaveTimeout,
		Version:     Version,
	})
	handlers.Register(router)

	wsCfg := ws.DefaultConfig()
	wsCfg.AllowedOrigins = []string{builderOrigin}
	wsCfg.MessagesPerSecond = cfg.Peer.MessagesPerSecond
	wsCfg.Burst = cfg.Peer.Burst
	wsHandler := ws.NewHandler(host, window, wsCfg, logger.Logger, metrics)
	router.GET("/frames/:id/socket", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		host:      host,
		store:     store,
		providers: set,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
		tracer:    tracer,
	}, nil
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Host returns the bridge host.
func (s *Server) Host() *bridge.Host { return s.host }

// Run serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown destroys every session, which closes builder sockets, then
// drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	n := s.host.Sessions().Len()
	s.host.Close()
	s.logger.Info("Closed builder sessions", zap.Int("count", n))

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to drain HTTP server", zap.Error(err))
		err = fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}

package ws

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
)

// FrameLookup resolves a frame id to a mounted frame.
type FrameLookup interface {
	Frame(frameID string) (*page.Frame, bool)
}

// Metrics receives connection and frame counts.
type Metrics interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(direction string)
}

type nopMetrics struct{}

func (nopMetrics) IncWSConnections()       {}
func (nopMetrics) DecWSConnections()       {}
func (nopMetrics) RecordWSMessage(string) {}

// Config tunes builder connections.
type Config struct {
	// AllowedOrigins restricts which builder origins may connect. Empty
	// accepts any origin; a missing Origin header is always refused.
	AllowedOrigins    []string
	MessagesPerSecond float64
	Burst             int
	MaxMessageSize    int64
	WriteTimeout      time.Duration
	PongWait          time.Duration
	PingPeriod        time.Duration
}

// DefaultConfig returns production connection settings.
func DefaultConfig() Config {
	return Config{
		MessagesPerSecond: 50,
		Burst:             100,
		MaxMessageSize:    8 << 20,
		WriteTimeout:      10 * time.Second,
		PongWait:          60 * time.Second,
		PingPeriod:        54 * time.Second,
	}
}

// Handler accepts builder connections for mounted frames.
type Handler struct {
	frames   FrameLookup
	window   *page.Window
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  Metrics
}

// NewHandler creates a handler posting inbound messages into window.
func NewHandler(frames FrameLookup, window *page.Window, cfg Config, logger *zap.Logger, metrics Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	def := DefaultConfig()
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = def.MessagesPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}

	h := &Handler{
		frames:  frames,
		window:  window,
		cfg:     cfg,
		logger:  logger.Named("ws"),
		metrics: metrics,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	return len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, origin)
}

// HandleConnection upgrades GET /frames/:id/socket. The connection becomes
// the frame's content window: the frame load event fires before any
// inbound message is read, so the init handshake always comes first.
//
// A frame loads once. A second connection is refused with 409 while the
// first is open and with 410 after it has gone.
func (h *Handler) HandleConnection(c *gin.Context) {
	frameID := c.Param("id")
	frame, ok := h.frames.Frame(frameID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
		return
	}
	if frame.ContentWindow() != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "frame already connected"})
		return
	}
	if frame.Loads() > 0 {
		c.JSON(http.StatusGone, gin.H{"error": "frame already loaded"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("frame", frameID), zap.Error(err))
		return
	}

	origin := c.GetHeader("Origin")
	peer := newPeer(conn, origin, h.cfg, h.logger, h.metrics)
	h.metrics.IncWSConnections()
	h.logger.Info("Builder connected", zap.String("frame", frameID), zap.String("peer", peer.ID()))

	defer func() {
		frame.Unload(peer)
		_ = peer.Close()
		h.metrics.DecWSConnections()
		h.logger.Info("Builder disconnected", zap.String("frame", frameID), zap.String("peer", peer.ID()))
	}()

	if !frame.TryLoad(peer, origin) {
		h.logger.Warn("Frame already loaded", zap.String("frame", frameID), zap.String("peer", peer.ID()))
		_ = peer.closeWith(websocket.ClosePolicyViolation, "frame already loaded")
		return
	}
	go peer.pingLoop()
	peer.readLoop(h.window)
}

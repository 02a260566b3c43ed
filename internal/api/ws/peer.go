package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// ErrClosed is returned when posting to a disconnected peer.
var ErrClosed = errors.New("peer connection closed")

// Peer is a builder connected over a WebSocket. It is the content window of
// the frame it connected to.
type Peer struct {
	id      string
	origin  string
	conn    *websocket.Conn
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics Metrics

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func newPeer(conn *websocket.Conn, origin string, cfg Config, logger *zap.Logger, metrics Metrics) *Peer {
	peerID := uuid.NewString()
	return &Peer{
		id:      peerID,
		origin:  origin,
		conn:    conn,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		logger:  logger.With(zap.String("peer", peerID), zap.String("origin", origin)),
		metrics: metrics,
		closed:  make(chan struct{}),
	}
}

// ID implements page.PeerWindow.
func (p *Peer) ID() string { return p.id }

// Origin implements page.PeerWindow.
func (p *Peer) Origin() string { return p.origin }

// PostMessage implements page.PeerWindow.
func (p *Peer) PostMessage(env protocol.Envelope, targetOrigin string) error {
	if !page.MatchOrigin(targetOrigin, p.origin) {
		return page.ErrOriginMismatch
	}
	raw, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	if err := p.write(websocket.TextMessage, raw); err != nil {
		return err
	}
	p.metrics.RecordWSMessage("out")
	return nil
}

func (p *Peer) write(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(messageType, data)
}

// Close disconnects the peer. It is safe to call more than once.
func (p *Peer) Close() error {
	return p.closeWith(websocket.CloseNormalClosure, "session closed")
}

func (p *Peer) closeWith(code int, reason string) error {
	var err error
	p.once.Do(func() {
		p.writeMu.Lock()
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
		_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		close(p.closed)
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

// readLoop forwards inbound text frames to w until the connection drops.
func (p *Peer) readLoop(w *page.Window) {
	p.conn.SetReadLimit(p.cfg.MaxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	})

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !p.limiter.Allow() {
			p.metrics.RecordWSMessage("dropped")
			p.logger.Debug("Dropping message over rate limit")
			continue
		}
		p.metrics.RecordWSMessage("in")
		w.Post(page.MessageEvent{Data: data, Origin: p.origin, Source: p})
	}
}

// pingLoop keeps the connection alive until the peer closes.
func (p *Peer) pingLoop() {
	ticker := time.NewTicker(p.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.closed:
			return
		}
	}
}

package http

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/domain/session"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/builderbridge/internal/providers/storage"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

// CreateSessionRequest is the optional body of POST /sessions.
type CreateSessionRequest struct {
	Token          string         `json:"token"`
	OutputType     string         `json:"output_type"`
	BuilderOptions map[string]any `json:"builder_options"`
}

// CreateSessionResponse describes a freshly mounted session.
type CreateSessionResponse struct {
	Session  session.Info `json:"session"`
	FrameSrc string       `json:"frame_src"`
	Socket   string       `json:"socket"`
}

// SocketPath returns the path a builder frame connects to.
func SocketPath(sessionID id.SessionID) string {
	return "/frames/" + sessionID.String() + "/socket"
}

// CreateSession mounts a builder into a new container.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	outputType, err := output.ParseType(req.OutputType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := req.Token
	if token == "" {
		token = h.token
	}

	cfg := bridge.Config{
		Container:          h.host.NewContainer(),
		HTMLOutputType:     outputType,
		StrictCapabilities: h.strict,
		BuilderOptions:     req.BuilderOptions,
	}
	h.providers.Apply(&cfg)
	cfg.SetHandlers(tracing.Instrument(h.tracer, cfg.Container.ID(), cfg.Handlers()))

	// The session id is only known after Core returns.
	var owner atomic.Pointer[session.Session]
	cfg.OnSave = func(out output.Output) {
		if s := owner.Load(); s != nil {
			h.persist(s.ID(), out)
		}
	}

	s, err := h.host.Core(token, cfg, func(api *session.API) {
		h.logger.Info("Builder ready for saves", zap.String("session_id", api.SessionID().String()))
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bridge.ErrTokenRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	owner.Store(s)

	c.JSON(http.StatusCreated, CreateSessionResponse{
		Session:  s.Info(),
		FrameSrc: h.host.FrameSrc(),
		Socket:   SocketPath(s.ID()),
	})
}

func (h *Handlers) persist(sessionID id.SessionID, out output.Output) {
	if h.store == nil {
		return
	}
	rec, err := h.store.Save(sessionID, out)
	if err != nil {
		h.logger.Error("Failed to persist builder output",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
		return
	}
	h.logger.Debug("Builder output persisted",
		zap.String("session_id", sessionID.String()),
		zap.String("record_id", rec.ID),
	)
}

// ListSessions lists all live sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	list := h.host.Sessions().List()
	infos := make([]session.Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"count":    len(infos),
	})
}

// GetSession returns one session.
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// SaveSession asks the builder for its document and waits for the answer.
func (h *Handlers) SaveSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	ch := h.wait(s.ID())
	defer h.release(s.ID(), ch)

	if err := s.Save(h.notifier(s.ID())); err != nil {
		switch {
		case errors.Is(err, session.ErrNotInitialized):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, session.ErrDestroyed):
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	timer := time.NewTimer(h.saveTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		c.JSON(http.StatusOK, gin.H{
			"session_id": s.ID(),
			"output":     out,
		})
	case <-timer.C:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "builder did not answer the save request"})
	case <-c.Request.Context().Done():
		c.Status(499)
	}
}

// wait registers a waiter for the next save of a session. Concurrent save
// requests all observe the same answer.
func (h *Handlers) wait(sessionID id.SessionID) chan output.Output {
	ch := make(chan output.Output, 1)
	h.mu.Lock()
	h.waiters[sessionID] = append(h.waiters[sessionID], ch)
	h.mu.Unlock()
	return ch
}

func (h *Handlers) release(sessionID id.SessionID, ch chan output.Output) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.waiters[sessionID]
	for i, w := range list {
		if w == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.waiters, sessionID)
		return
	}
	h.waiters[sessionID] = list
}

func (h *Handlers) notifier(sessionID id.SessionID) session.OnSave {
	return func(out output.Output) {
		h.mu.Lock()
		list := h.waiters[sessionID]
		delete(h.waiters, sessionID)
		h.mu.Unlock()
		for _, ch := range list {
			ch <- out
		}
	}
}

// GetOutput returns the most recently saved document of a session.
func (h *Handlers) GetOutput(c *gin.Context) {
	sessionID, ok := h.parseID(c)
	if !ok {
		return
	}
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": storage.ErrNotFound.Error()})
		return
	}

	var (
		rec storage.Record
		err error
	)
	if recordID := c.Query("record"); recordID != "" {
		rec, err = h.store.Load(sessionID, recordID)
	} else {
		rec, err = h.store.Latest(sessionID)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListOutputs lists the saved record ids of a session, oldest first.
func (h *Handlers) ListOutputs(c *gin.Context) {
	sessionID, ok := h.parseID(c)
	if !ok {
		return
	}
	var records []string
	if h.store != nil {
		var err error
		records, err = h.store.List(sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if records == nil {
		records = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"records":    records,
	})
}

// DeleteSession destroys a session.
func (h *Handlers) DeleteSession(c *gin.Context) {
	sessionID, ok := h.parseID(c)
	if !ok {
		return
	}
	if !h.host.Destroy(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
	})
}

func (h *Handlers) parseID(c *gin.Context) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return sessionID, true
}

func (h *Handlers) lookup(c *gin.Context) (*session.Session, bool) {
	sessionID, ok := h.parseID(c)
	if !ok {
		return nil, false
	}
	s, found := h.host.Session(sessionID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

package bridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/session"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

var (
	// ErrTokenRequired is returned by Core when the credential is empty.
	ErrTokenRequired = errors.New("token is required")
	// ErrInvalidContainer is returned by Core when the container cannot
	// host the builder.
	ErrInvalidContainer = errors.New("invalid container")
)

// FramePath is the builder document served from the public host.
const FramePath = "/index.html"

// Options configures a Host.
type Options struct {
	PublicHost string
	Logger     *zap.Logger
	Observer   session.Observer
	Shaper     *output.Shaper
}

// sessionTracker is implemented by observers that count live sessions.
type sessionTracker interface {
	SessionOpened()
	SessionClosed()
}

// Host embeds builder sessions into containers of one host window.
type Host struct {
	window   *page.Window
	frameSrc string
	logger   *zap.Logger
	observer session.Observer
	shaper   *output.Shaper
	sessions *session.Registry
}

// NewHost creates a host for window.
func NewHost(window *page.Window, opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	shaper := opts.Shaper
	if shaper == nil {
		shaper = output.NewShaper(output.Options{})
	}
	return &Host{
		window:   window,
		frameSrc: strings.TrimRight(opts.PublicHost, "/") + FramePath,
		logger:   logger.Named("bridge"),
		observer: opts.Observer,
		shaper:   shaper,
		sessions: session.NewRegistry(),
	}
}

// Window returns the host window.
func (h *Host) Window() *page.Window { return h.window }

// FrameSrc returns the address every builder frame loads.
func (h *Host) FrameSrc() string { return h.frameSrc }

// Sessions returns the live session registry.
func (h *Host) Sessions() *session.Registry { return h.sessions }

// NewContainer creates a container owned by the host window.
func (h *Host) NewContainer() *page.Container {
	return page.NewContainer(id.NewContainerID().String(), h.window)
}

// Core mounts the builder into cfg.Container and returns the new session.
// onInit receives the session API once the builder has been initialized.
func (h *Host) Core(token string, cfg Config, onInit func(*session.API)) (*session.Session, error) {
	if token == "" {
		h.logger.Error("Token is required")
		return nil, ErrTokenRequired
	}
	if err := h.validContainer(cfg.Container); err != nil {
		h.logger.Error("Container is not valid", zap.Error(err))
		return nil, err
	}
	outputType := cfg.HTMLOutputType
	if outputType == "" {
		outputType = output.TypeMonolith
	}
	if _, err := output.ParseType(string(outputType)); err != nil {
		h.logger.Error("Unsupported output type", zap.Error(err))
		return nil, err
	}

	sessionID := id.NewSessionID()
	s := session.New(sessionID, cfg.Container, h.frameSrc, session.Config{
		Token:      token,
		OutputType: outputType,
		Shaper:     h.shaper,
		Handlers:   cfg.Handlers(),
		Strict:     cfg.StrictCapabilities,
		PeerConfig: cfg.PeerConfig(),
		OnLoad:     cfg.OnLoad,
		OnSave:     cfg.OnSave,
		Logger:     h.logger,
		Observer:   h.observer,
	})
	if err := s.Mount(onInit); err != nil {
		h.logger.Error("Failed to mount builder", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidContainer, err)
	}
	h.sessions.Add(s)
	if t, ok := h.observer.(sessionTracker); ok {
		t.SessionOpened()
	}

	h.logger.Info("Builder session created",
		zap.String("session_id", sessionID.String()),
		zap.String("container_id", cfg.Container.ID()),
		zap.String("token", Fingerprint(token)),
		zap.Any("capabilities", cfg.Handlers().Configured()),
	)
	return s, nil
}

func (h *Host) validContainer(c *page.Container) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: missing", ErrInvalidContainer)
	case !c.Attachable():
		return fmt.Errorf("%w: %s is detached", ErrInvalidContainer, c.ID())
	case c.OwnerWindow() != h.window:
		return fmt.Errorf("%w: %s belongs to another window", ErrInvalidContainer, c.ID())
	}
	return nil
}

// Session looks up a live session.
func (h *Host) Session(sessionID id.SessionID) (*session.Session, bool) {
	return h.sessions.Get(sessionID)
}

// Frame looks up the frame of a live session by frame id.
func (h *Host) Frame(frameID string) (*page.Frame, bool) {
	sessionID, err := id.ParseSessionID(frameID)
	if err != nil {
		return nil, false
	}
	s, ok := h.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return s.Frame(), true
}

// Destroy tears a session down and forgets it. It reports whether the
// session was live.
func (h *Host) Destroy(sessionID id.SessionID) bool {
	s, ok := h.sessions.Remove(sessionID)
	if !ok {
		return false
	}
	s.Destroy()
	if t, ok := h.observer.(sessionTracker); ok {
		t.SessionClosed()
	}
	return true
}

// Close destroys every session.
func (h *Host) Close() {
	for _, s := range h.sessions.List() {
		h.Destroy(s.ID())
	}
}

// Fingerprint returns a short stable digest of a credential, safe to log.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

// OnSave receives a shaped builder document.
type OnSave func(output.Output)

// Config carries everything a session needs from the host.
type Config struct {
	Token      string
	OutputType output.Type
	Shaper     *output.Shaper
	Handlers   dispatch.Handlers
	Strict     bool
	PeerConfig protocol.PeerConfig
	OnLoad     func()
	OnSave     OnSave
	Logger     *zap.Logger
	Observer   Observer
}

// API is handed to the host once the handshake completes.
type API struct {
	s *Session
}

// Save asks the builder for its current document. See Session.Save.
func (a *API) Save(onSaved OnSave) error {
	return a.s.Save(onSaved)
}

// SessionID returns the id of the session behind the API.
func (a *API) SessionID() id.SessionID {
	return a.s.id
}

// Info is a point-in-time view of a session.
type Info struct {
	ID          id.SessionID `json:"id"`
	ContainerID string       `json:"container_id"`
	FrameSrc    string       `json:"frame_src"`
	Origin      string       `json:"origin,omitempty"`
	State       State        `json:"state"`
	Initialized bool         `json:"initialized"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Session is one embedding of the builder in a container.
type Session struct {
	id        id.SessionID
	container *page.Container
	window    *page.Window
	frame     *page.Frame
	loader    *page.Loader
	cfg       Config
	logger    *zap.Logger
	observer  Observer
	createdAt time.Time

	transport  *Transport
	dispatcher *dispatch.Dispatcher
	lifecycle  *Lifecycle

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	handshaken     bool
	initialized    bool
	destroyed      bool
	removeListener func()
	saveCallback   OnSave
	onInit         func(*API)
}

// New creates a session for container whose frame will load src. Nothing is
// mounted until Mount is called.
func New(sessionID id.SessionID, container *page.Container, src string, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session").With(zap.String("session_id", sessionID.String()))

	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.Shaper == nil {
		cfg.Shaper = output.NewShaper(output.Options{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        sessionID,
		container: container,
		window:    container.OwnerWindow(),
		frame:     page.NewFrame(sessionID.String(), src),
		loader:    page.NewLoader("Loading builder"),
		cfg:       cfg,
		logger:    logger,
		observer:  observer,
		createdAt: time.Now(),
		transport: &Transport{},
		lifecycle: newLifecycle(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.dispatcher = dispatch.New(cfg.Handlers, s.transport,
		dispatch.WithLogger(logger),
		dispatch.WithObserver(observer),
		dispatch.WithStrict(cfg.Strict),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() id.SessionID { return s.id }

// Frame returns the embedding frame.
func (s *Session) Frame() *page.Frame { return s.frame }

// Loader returns the loading indicator.
func (s *Session) Loader() *page.Loader { return s.loader }

// Container returns the owning container.
func (s *Session) Container() *page.Container { return s.container }

// State returns the load state.
func (s *Session) State() State { return s.lifecycle.State() }

// Mount shows the loader, mounts the frame and arms the init handshake.
// onInit is called once the handshake has completed.
func (s *Session) Mount(onInit func(*API)) error {
	s.mu.Lock()
	s.onInit = onInit
	s.mu.Unlock()

	if err := s.container.AppendChild(s.loader); err != nil {
		return fmt.Errorf("mount loader: %w", err)
	}
	s.frame.OnLoad(s.handshake)
	if err := s.container.AppendChild(s.frame); err != nil {
		s.container.RemoveChild(s.loader)
		return fmt.Errorf("mount frame: %w", err)
	}
	return nil
}

// handshake runs on the first frame load event only. A failure leaves the
// session uninitialized; there is no retry.
func (s *Session) handshake(ev page.LoadEvent) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.handshaken {
		s.mu.Unlock()
		s.logger.Warn("Ignoring repeated frame load", zap.String("src", ev.Src))
		return
	}
	s.handshaken = true
	s.mu.Unlock()

	if ev.Window == nil {
		s.logger.Error("Something went wrong on frame load", zap.Error(ErrNoContentWindow))
		return
	}

	origin, err := page.OriginOf(ev.Src)
	if err != nil {
		origin, err = page.OriginOf(s.frame.Src())
	}
	if err != nil {
		s.logger.Error("Cannot resolve target origin", zap.String("src", ev.Src), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.transport.bind(ev.Window, origin)
	s.mu.Unlock()

	payload := protocol.InitPayload{Token: s.cfg.Token, Config: s.cfg.PeerConfig}
	if err := s.transport.Send(protocol.KindInit, payload); err != nil {
		s.logger.Error("Failed to send init", zap.String("origin", origin), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		s.releasePeer()
		return
	}
	s.removeListener = s.window.AddListener(s.receive)
	s.initialized = true
	onInit := s.onInit
	s.mu.Unlock()

	s.observer.HandshakeCompleted()
	s.logger.Info("Builder handshake completed",
		zap.String("origin", origin),
		zap.String("peer", ev.Window.ID()),
	)

	if onInit != nil {
		onInit(&API{s: s})
	}
}

// receive is the session's listener on the host window.
func (s *Session) receive(ev page.MessageEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Invalid event data", zap.Any("panic", rec))
		}
	}()

	if !s.transport.Accepts(ev) {
		return
	}

	action, err := protocol.Decode(ev.Data)
	if errors.Is(err, protocol.ErrNotAddressed) {
		return
	}
	if err != nil {
		s.observer.MalformedMessage()
		s.logger.Warn("Invalid event data", zap.Error(err))
		return
	}

	s.observer.MessageReceived(action.Type)
	s.route(action)
}

func (s *Session) route(action protocol.Action) {
	switch action.Type {
	case protocol.KindSave:
		s.onSave(action)
	case protocol.KindOnLoad:
		s.onLoad()
	default:
		if err := s.dispatcher.Dispatch(s.ctx, action); err != nil {
			s.logger.Warn("Invalid event data",
				zap.String("kind", string(action.Type)),
				zap.Error(err),
			)
		}
	}
}

func (s *Session) onLoad() {
	if !s.lifecycle.MarkReady() {
		return
	}
	s.container.RemoveChild(s.loader)
	s.observer.SessionReady()
	s.logger.Info("Builder ready")

	if s.cfg.OnLoad != nil {
		s.cfg.OnLoad()
	}
}

// Save registers onSaved as the session's save callback, replacing any
// earlier one, and asks the builder for its document. A nil onSaved keeps
// the current registration. Only the most recent callback runs when the
// builder answers.
func (s *Session) Save(onSaved OnSave) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if onSaved != nil {
		s.saveCallback = onSaved
	}
	s.mu.Unlock()

	if err := s.transport.Send(protocol.KindSave, nil); err != nil {
		return err
	}
	s.observer.SaveRequested()
	return nil
}

func (s *Session) onSave(action protocol.Action) {
	var raw protocol.BuilderOutput
	if err := protocol.DecodePayload(action, &raw); err != nil {
		s.observer.MalformedMessage()
		s.logger.Warn("Invalid event data", zap.Error(err))
		return
	}

	shaped, err := s.cfg.Shaper.Create(s.cfg.OutputType, raw)
	if err != nil {
		s.logger.Error("Failed to shape builder output", zap.Error(err))
		return
	}

	if s.cfg.OnSave != nil {
		s.cfg.OnSave(shaped)
	}

	s.mu.Lock()
	cb := s.saveCallback
	s.mu.Unlock()
	if cb != nil {
		cb(shaped)
	}
	s.observer.SaveCompleted()
}

// Destroy detaches the session: the listener is removed, the frame and
// loader are unmounted, the peer is closed if it can be, and the context
// given to capability handlers is cancelled. It is safe to call twice.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	remove := s.removeListener
	s.removeListener = nil
	s.saveCallback = nil
	s.mu.Unlock()

	if remove != nil {
		remove()
	}
	s.cancel()
	s.container.RemoveChild(s.frame)
	s.container.RemoveChild(s.loader)

	s.releasePeer()
	s.logger.Info("Session destroyed")
}

// releasePeer unbinds the content window, unloads it from the frame and
// closes it if it can be closed.
func (s *Session) releasePeer() {
	peer := s.transport.unbind()
	if peer == nil {
		return
	}
	s.frame.Unload(peer)
	if closer, ok := peer.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Debug("Failed to close peer", zap.Error(err))
		}
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	_, origin := s.transport.Peer()

	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()

	return Info{
		ID:          s.id,
		ContainerID: s.container.ID(),
		FrameSrc:    s.frame.Src(),
		Origin:      origin,
		State:       s.lifecycle.State(),
		Initialized: initialized,
		CreatedAt:   s.createdAt,
	}
}

// Wait blocks until running capability handlers have returned.
func (s *Session) Wait() {
	s.dispatcher.Wait()
}

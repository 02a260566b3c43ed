package page

import (
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// ErrOriginMismatch is returned when a message is posted to a peer whose
// origin does not match the requested target origin.
var ErrOriginMismatch = errors.New("target origin does not match peer origin")

// WildcardOrigin delivers regardless of the peer origin.
const WildcardOrigin = "*"

// PeerWindow is the content window of a loaded frame.
type PeerWindow interface {
	// ID uniquely identifies the window for the lifetime of the process.
	ID() string
	// Origin is the origin the peer actually runs under.
	Origin() string
	// PostMessage delivers env to the peer if targetOrigin matches its
	// origin or is the wildcard.
	PostMessage(env protocol.Envelope, targetOrigin string) error
}

// SameWindow compares two peer windows by identity.
func SameWindow(a, b PeerWindow) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}

// MatchOrigin reports whether a message addressed to target may be delivered
// to a peer running under origin.
func MatchOrigin(target, origin string) bool {
	return target == WildcardOrigin || target == origin
}

// MessageEvent is one inbound message on the host window.
type MessageEvent struct {
	Data   []byte
	Origin string
	Source PeerWindow
}

// Listener receives inbound message events.
type Listener func(MessageEvent)

// Window is the host window. Its inbound channel is shared by every session
// embedded in it.
type Window struct {
	name   string
	logger *zap.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewWindow creates a host window.
func NewWindow(name string, logger *zap.Logger) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Window{
		name:      name,
		logger:    logger.Named("window"),
		listeners: make(map[uint64]Listener),
	}
}

// Name returns the window name.
func (w *Window) Name() string {
	return w.name
}

// AddListener subscribes l to inbound messages. The returned function removes
// the subscription and is safe to call more than once.
func (w *Window) AddListener(l Listener) (remove func()) {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = l
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

// ListenerCount returns the number of active subscriptions.
func (w *Window) ListenerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.listeners)
}

// Post delivers ev to every listener registered at the time of the call.
// Listeners run on the caller's goroutine, in registration order. A listener
// that panics is logged and does not stop delivery to the rest.
func (w *Window) Post(ev MessageEvent) {
	w.mu.RLock()
	ids := make([]uint64, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	w.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		w.mu.RLock()
		l, ok := w.listeners[id]
		w.mu.RUnlock()
		if !ok {
			continue
		}
		w.deliver(id, l, ev)
	}
}

func (w *Window) deliver(id uint64, l Listener, ev MessageEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Listener panicked",
				zap.String("window", w.name),
				zap.Uint64("listener", id),
				zap.String("origin", ev.Origin),
				zap.Any("panic", r))
		}
	}()
	l(ev)
}

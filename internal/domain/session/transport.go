package session

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Transport posts actions to the session's content window, restricted to
// the origin pinned at handshake.
type Transport struct {
	mu     sync.Mutex
	peer   page.PeerWindow
	origin string
}

// bind pins the peer window and target origin. It only takes effect once.
func (t *Transport) bind(peer page.PeerWindow, origin string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peer != nil {
		return false
	}
	t.peer = peer
	t.origin = origin
	return true
}

func (t *Transport) unbind() page.PeerWindow {
	t.mu.Lock()
	defer t.mu.Unlock()
	peer := t.peer
	t.peer = nil
	return peer
}

// Peer returns the bound content window and pinned origin.
func (t *Transport) Peer() (page.PeerWindow, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peer, t.origin
}

// Send encodes an action and posts it to the peer. Sends are serialized, so
// the builder sees them in call order.
func (t *Transport) Send(kind protocol.Kind, payload any) error {
	env, err := protocol.Encode(kind, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peer == nil {
		return ErrNotInitialized
	}
	if err := t.peer.PostMessage(env, t.origin); err != nil {
		return fmt.Errorf("post %s: %w", kind, err)
	}
	return nil
}

// Accepts reports whether ev came from the bound peer under the pinned
// origin.
func (t *Transport) Accepts(ev page.MessageEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peer == nil {
		return false
	}
	return page.SameWindow(ev.Source, t.peer) && ev.Origin == t.origin
}

// Package pagetest provides an in-memory builder peer for tests.
package pagetest

import (
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Peer is an in-memory content window. It records what the host posts and
// can post builder messages back into a host window.
type Peer struct {
	id     string
	origin string

	mu       sync.Mutex
	received []protocol.Action
	dropped  int
	notify   chan struct{}
}

// NewPeer creates a peer running under origin.
func NewPeer(id, origin string) *Peer {
	return &Peer{id: id, origin: origin, notify: make(chan struct{}, 64)}
}

// ID implements page.PeerWindow.
func (p *Peer) ID() string { return p.id }

// Origin implements page.PeerWindow.
func (p *Peer) Origin() string { return p.origin }

// PostMessage implements page.PeerWindow.
func (p *Peer) PostMessage(env protocol.Envelope, targetOrigin string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !page.MatchOrigin(targetOrigin, p.origin) {
		p.dropped++
		return page.ErrOriginMismatch
	}

	// Mirror the tag so the builder-side decode path can be reused.
	env.Target = protocol.TargetBuilder
	action, err := protocol.DecodeEnvelope(env)
	if err != nil {
		return err
	}
	p.received = append(p.received, action)

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// Received returns a snapshot of every action delivered to the peer.
func (p *Peer) Received() []protocol.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Action, len(p.received))
	copy(out, p.received)
	return out
}

// Kinds returns the kinds of every delivered action, in order.
func (p *Peer) Kinds() []protocol.Kind {
	actions := p.Received()
	kinds := make([]protocol.Kind, len(actions))
	for i, a := range actions {
		kinds[i] = a.Type
	}
	return kinds
}

// Count returns how many delivered actions have the given kind.
func (p *Peer) Count(kind protocol.Kind) int {
	n := 0
	for _, k := range p.Kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// Dropped returns how many posts were refused for origin mismatch.
func (p *Peer) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// WaitFor blocks until an action of kind has been delivered or the timeout
// elapses, and returns it.
func (p *Peer) WaitFor(t *testing.T, kind protocol.Kind, timeout time.Duration) protocol.Action {
	t.Helper()
	deadline := time.After(timeout)
	for {
		for _, a := range p.Received() {
			if a.Type == kind {
				return a
			}
		}
		select {
		case <-p.notify:
		case <-deadline:
			t.Fatalf("peer %s never received %s; got %v", p.id, kind, p.Kinds())
			return protocol.Action{}
		}
	}
}

// Send posts a builder message with the given kind and payload into w as if
// it came from this peer.
func (p *Peer) Send(t *testing.T, w *page.Window, kind protocol.Kind, payload any) {
	t.Helper()
	env, err := protocol.Encode(kind, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", kind, err)
	}
	env.Target = protocol.TargetBuilder
	p.SendEnvelope(t, w, env)
}

// SendEnvelope posts an arbitrary envelope into w as if it came from this
// peer.
func (p *Peer) SendEnvelope(t *testing.T, w *page.Window, env protocol.Envelope) {
	t.Helper()
	raw, err := protocol.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	p.SendRaw(w, raw)
}

// SendRaw posts raw bytes into w as if they came from this peer.
func (p *Peer) SendRaw(w *page.Window, raw []byte) {
	w.Post(page.MessageEvent{Data: raw, Origin: p.origin, Source: p})
}

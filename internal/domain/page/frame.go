package page

import (
	"fmt"
	"net/url"
	"sync"
)

// LoadEvent fires when the frame's resource has loaded. Window is nil when
// the content window could not be obtained.
type LoadEvent struct {
	Frame  *Frame
	Src    string
	Window PeerWindow
}

// Frame embeds the builder application.
type Frame struct {
	id  string
	src string

	mu       sync.Mutex
	handlers []func(LoadEvent)
	content  PeerWindow
	loads    int
}

// NewFrame creates a frame pointing at src.
func NewFrame(id, src string) *Frame {
	return &Frame{id: id, src: src}
}

// NodeName implements Node.
func (f *Frame) NodeName() string { return "iframe" }

// ID returns the frame id.
func (f *Frame) ID() string { return f.id }

// Src returns the configured resource address.
func (f *Frame) Src() string { return f.src }

// OnLoad registers fn for every load event.
func (f *Frame) OnLoad(fn func(LoadEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fn)
}

// Load records that the resource at loadedSrc finished loading with win as
// its content window, then fires the load handlers. An empty loadedSrc means
// the configured src was loaded.
func (f *Frame) Load(win PeerWindow, loadedSrc string) {
	f.mu.Lock()
	handlers := f.loadLocked(win)
	f.mu.Unlock()

	f.fire(handlers, win, loadedSrc)
}

// TryLoad is Load for a frame that may only ever load once. It reports false,
// and fires nothing, when the frame has already loaded.
func (f *Frame) TryLoad(win PeerWindow, loadedSrc string) bool {
	f.mu.Lock()
	if f.loads > 0 {
		f.mu.Unlock()
		return false
	}
	handlers := f.loadLocked(win)
	f.mu.Unlock()

	f.fire(handlers, win, loadedSrc)
	return true
}

func (f *Frame) loadLocked(win PeerWindow) []func(LoadEvent) {
	f.content = win
	f.loads++
	handlers := make([]func(LoadEvent), len(f.handlers))
	copy(handlers, f.handlers)
	return handlers
}

func (f *Frame) fire(handlers []func(LoadEvent), win PeerWindow, loadedSrc string) {
	if loadedSrc == "" {
		loadedSrc = f.src
	}
	ev := LoadEvent{Frame: f, Src: loadedSrc, Window: win}
	for _, h := range handlers {
		h(ev)
	}
}

// Unload clears the content window if it is still win.
func (f *Frame) Unload(win PeerWindow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if SameWindow(f.content, win) {
		f.content = nil
	}
}

// ContentWindow returns the current content window, if any.
func (f *Frame) ContentWindow() PeerWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

// Loads returns how many load events have fired.
func (f *Frame) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// OriginOf returns the scheme://host[:port] origin of an absolute URL.
func OriginOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute url", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

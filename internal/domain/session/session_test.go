package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page/pagetest"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

const (
	builderSrc    = "https://builder.example.com/index.html"
	builderOrigin = "https://builder.example.com"
	waitTimeout   = 2 * time.Second
)

type fixture struct {
	window    *page.Window
	container *page.Container
	session   *Session
	peer      *pagetest.Peer
	apis      []*API
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	w := page.NewWindow("main", nil)
	f := &fixture{
		window:    w,
		container: page.NewContainer("editor", w),
		peer:      pagetest.NewPeer("peer-1", builderOrigin),
	}
	if cfg.Token == "" {
		cfg.Token = "secret-token"
	}
	f.session = New(id.NewSessionID(), f.container, builderSrc, cfg)
	require.NoError(t, f.session.Mount(func(api *API) { f.apis = append(f.apis, api) }))
	return f
}

func (f *fixture) load() {
	f.session.Frame().Load(f.peer, builderSrc)
}

func TestMountShowsLoaderAndFrame(t *testing.T) {
	f := newFixture(t, Config{})

	children := f.container.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "loader", children[0].NodeName())
	assert.Equal(t, "iframe", children[1].NodeName())
	assert.Equal(t, StateLoading, f.session.State())
	assert.Equal(t, 0, f.window.ListenerCount(), "nothing to route before the handshake")
}

func TestMountIntoDetachedContainer(t *testing.T) {
	w := page.NewWindow("main", nil)
	c := page.NewContainer("gone", w)
	c.Detach()

	s := New(id.NewSessionID(), c, builderSrc, Config{Token: "t"})
	assert.ErrorIs(t, s.Mount(nil), page.ErrDetached)
}

func TestHandshake(t *testing.T) {
	f := newFixture(t, Config{
		OutputType: output.TypeHTMLCSS,
		PeerConfig: protocol.PeerConfig{HTMLOutputType: "htmlCss"},
	})
	f.load()

	require.Len(t, f.apis, 1)
	assert.Equal(t, f.session.ID(), f.apis[0].SessionID())
	assert.Equal(t, 1, f.window.ListenerCount())

	initAction := f.peer.WaitFor(t, protocol.KindInit, waitTimeout)
	var payload protocol.InitPayload
	require.NoError(t, protocol.DecodePayload(initAction, &payload))
	assert.Equal(t, "secret-token", payload.Token)
	assert.Equal(t, "htmlCss", payload.Config.HTMLOutputType)

	info := f.session.Info()
	assert.True(t, info.Initialized)
	assert.Equal(t, builderOrigin, info.Origin)
	assert.Equal(t, "editor", info.ContainerID)
}

func TestHandshakeRunsOnce(t *testing.T) {
	f := newFixture(t, Config{})
	f.load()
	f.load()

	assert.Len(t, f.apis, 1)
	assert.Equal(t, 1, f.window.ListenerCount())
	assert.Equal(t, 1, f.peer.Count(protocol.KindInit))
}

func TestHandshakeWithoutContentWindow(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.Frame().Load(nil, builderSrc)
	f.load()

	assert.Empty(t, f.apis)
	assert.Equal(t, 0, f.window.ListenerCount())
	assert.Empty(t, f.peer.Received())
	assert.False(t, f.session.Info().Initialized)
}

func TestHandshakeOriginFallsBackToFrameSrc(t *testing.T) {
	f := newFixture(t, Config{})
	f.session.Frame().Load(f.peer, "about:blank")

	require.Len(t, f.apis, 1)
	_, origin := f.session.transport.Peer()
	assert.Equal(t, builderOrigin, origin)
}

func TestHandshakePinsLoadedOrigin(t *testing.T) {
	f := newFixture(t, Config{})
	redirected := pagetest.NewPeer("peer-r", "https://cdn.builder.example.com")
	f.session.Frame().Load(redirected, "https://cdn.builder.example.com/index.html")

	require.Len(t, f.apis, 1)
	_, origin := f.session.transport.Peer()
	assert.Equal(t, "https://cdn.builder.example.com", origin)
	assert.Equal(t, 1, redirected.Count(protocol.KindInit))
}

func TestLoadLifecycle(t *testing.T) {
	loads := 0
	f := newFixture(t, Config{OnLoad: func() { loads++ }})
	f.load()

	f.peer.Send(t, f.window, protocol.KindOnLoad, nil)
	assert.Equal(t, StateReady, f.session.State())
	assert.False(t, f.container.Contains(f.session.Loader()))
	assert.True(t, f.container.Contains(f.session.Frame()))

	f.peer.Send(t, f.window, protocol.KindOnLoad, nil)
	assert.Equal(t, 1, loads)
	assert.Equal(t, StateReady, f.session.State())
}

func TestSaveLastCallbackWins(t *testing.T) {
	var (
		global []output.Output
		first  []output.Output
		second []output.Output
	)
	f := newFixture(t, Config{
		OutputType: output.TypeHTMLCSS,
		OnSave:     func(o output.Output) { global = append(global, o) },
	})
	f.load()
	api := f.apis[0]

	require.NoError(t, api.Save(func(o output.Output) { first = append(first, o) }))
	require.NoError(t, api.Save(func(o output.Output) { second = append(second, o) }))
	require.NoError(t, api.Save(nil))
	assert.Equal(t, 3, f.peer.Count(protocol.KindSave))

	f.peer.Send(t, f.window, protocol.KindSave, protocol.BuilderOutput{HTML: "<p>hi</p>"})

	assert.Empty(t, first)
	require.Len(t, second, 1)
	require.Len(t, global, 1)
	assert.Equal(t, "<p>hi</p>", second[0].HTML)
	assert.Equal(t, output.TypeHTMLCSS, second[0].Type)
}

func TestSaveCallbackOrder(t *testing.T) {
	var order []string
	f := newFixture(t, Config{
		OnSave: func(output.Output) { order = append(order, "global") },
	})
	f.load()
	require.NoError(t, f.apis[0].Save(func(output.Output) { order = append(order, "call") }))

	f.peer.Send(t, f.window, protocol.KindSave, protocol.BuilderOutput{HTML: "<p>x</p>"})
	assert.Equal(t, []string{"global", "call"}, order)
}

func TestSaveBeforeHandshake(t *testing.T) {
	f := newFixture(t, Config{})
	assert.ErrorIs(t, f.session.Save(nil), ErrNotInitialized)
}

func TestMalformedMessageIsContained(t *testing.T) {
	called := false
	f := newFixture(t, Config{
		Handlers: dispatch.Handlers{
			FormAction: func(ctx context.Context, resolve func(string), reject dispatch.Reject) {
				called = true
			},
		},
	})
	f.load()

	f.peer.SendEnvelope(t, f.window, protocol.Envelope{Target: protocol.TargetBuilder, Data: "{\"type\":\"formAction\""})
	f.peer.SendRaw(f.window, []byte("garbage"))
	f.session.Wait()

	assert.False(t, called)
	assert.Equal(t, []protocol.Kind{protocol.KindInit}, f.peer.Kinds())

	f.peer.Send(t, f.window, protocol.KindOnLoad, nil)
	assert.Equal(t, StateReady, f.session.State(), "session keeps working after bad input")
}

type malformedCounter struct {
	nopObserver
	mu    sync.Mutex
	count int
}

func (c *malformedCounter) MalformedMessage() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *malformedCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestNonStringDataCountsAsMalformed(t *testing.T) {
	counter := &malformedCounter{}
	f := newFixture(t, Config{Observer: counter})
	f.load()

	f.peer.SendRaw(f.window, []byte(`{"target":"builder","data":{"type":"save"}}`))
	f.peer.SendRaw(f.window, []byte(`{"target":"builder","data":42}`))
	f.peer.SendRaw(f.window, []byte(`{"target":"devtools","data":42}`))
	f.session.Wait()

	assert.Equal(t, 2, counter.Count())
	assert.Equal(t, []protocol.Kind{protocol.KindInit}, f.peer.Kinds())
}

func TestUnconfiguredCapabilityIsDropped(t *testing.T) {
	var mu sync.Mutex
	mediaCalls := 0
	f := newFixture(t, Config{
		Handlers: dispatch.Handlers{
			AddMedia: func(ctx context.Context, resolve func(protocol.AddMediaData), reject dispatch.Reject, extra protocol.AddMediaExtra) {
				mu.Lock()
				mediaCalls++
				mu.Unlock()
			},
		},
	})
	f.load()

	f.peer.Send(t, f.window, protocol.KindFormFields, nil)
	f.session.Wait()

	assert.Equal(t, []protocol.Kind{protocol.KindInit}, f.peer.Kinds())
	mu.Lock()
	assert.Equal(t, 0, mediaCalls)
	mu.Unlock()
}

func TestCapabilityRoundTrip(t *testing.T) {
	f := newFixture(t, Config{
		Handlers: dispatch.Handlers{
			Trigger: func(ctx context.Context, resolve func(string), reject dispatch.Reject, extra protocol.TriggerExtra) {
				go resolve("opened " + string(extra.Type))
			},
		},
	})
	f.load()

	f.peer.Send(t, f.window, protocol.KindTrigger, protocol.TriggerExtra{Type: "Popup"})
	res := f.peer.WaitFor(t, protocol.KindTriggerRes, waitTimeout)

	var value string
	require.NoError(t, protocol.DecodePayload(res, &value))
	assert.Equal(t, "opened Popup", value)
}

func TestForeignSourcesAreIgnored(t *testing.T) {
	loads := 0
	f := newFixture(t, Config{OnLoad: func() { loads++ }})
	f.load()

	impostor := pagetest.NewPeer("peer-2", builderOrigin)
	impostor.Send(t, f.window, protocol.KindOnLoad, nil)

	wrongOrigin := pagetest.NewPeer("peer-1", "https://evil.example.com")
	wrongOrigin.Send(t, f.window, protocol.KindOnLoad, nil)

	env, err := protocol.Encode(protocol.KindOnLoad, nil)
	require.NoError(t, err)
	f.peer.SendEnvelope(t, f.window, env) // tagged for the builder, not for us

	assert.Equal(t, 0, loads)
	assert.Equal(t, StateLoading, f.session.State())
}

func TestSessionsShareWindowWithoutCrosstalk(t *testing.T) {
	w := page.NewWindow("main", nil)
	newSession := func(name string, peer *pagetest.Peer, answer string) *Session {
		c := page.NewContainer(name, w)
		s := New(id.NewSessionID(), c, builderSrc, Config{
			Token: "t",
			Handlers: dispatch.Handlers{
				FormAction: func(ctx context.Context, resolve func(string), reject dispatch.Reject) {
					resolve(answer)
				},
			},
		})
		require.NoError(t, s.Mount(nil))
		s.Frame().Load(peer, builderSrc)
		return s
	}

	peerA := pagetest.NewPeer("peer-a", builderOrigin)
	peerB := pagetest.NewPeer("peer-b", builderOrigin)
	a := newSession("a", peerA, "endpoint-a")
	b := newSession("b", peerB, "endpoint-b")
	assert.Equal(t, 2, w.ListenerCount())

	peerA.Send(t, w, protocol.KindFormAction, nil)
	a.Wait()
	b.Wait()

	res := peerA.WaitFor(t, protocol.KindFormActionRes, waitTimeout)
	var endpoint string
	require.NoError(t, protocol.DecodePayload(res, &endpoint))
	assert.Equal(t, "endpoint-a", endpoint)
	assert.Equal(t, 1, peerA.Count(protocol.KindFormActionRes))
	assert.Equal(t, 0, peerB.Count(protocol.KindFormActionRes))
}

func TestDestroy(t *testing.T) {
	var handlerCtx context.Context
	started := make(chan struct{})
	f := newFixture(t, Config{
		Handlers: dispatch.Handlers{
			FormFields: func(ctx context.Context, resolve func([]protocol.FormFieldsOption), reject dispatch.Reject) {
				handlerCtx = ctx
				close(started)
				<-ctx.Done()
			},
		},
	})
	f.load()
	f.peer.Send(t, f.window, protocol.KindFormFields, nil)
	<-started

	f.session.Destroy()
	f.session.Destroy()
	f.session.Wait()

	assert.ErrorIs(t, handlerCtx.Err(), context.Canceled)
	assert.Equal(t, 0, f.window.ListenerCount())
	assert.Empty(t, f.container.Children())
	assert.Nil(t, f.session.Frame().ContentWindow())
	assert.ErrorIs(t, f.session.Save(nil), ErrDestroyed)
}

type gatedPeer struct {
	*pagetest.Peer
	posting chan struct{}
	release chan struct{}
	once    sync.Once
	closed  chan struct{}
}

func newGatedPeer() *gatedPeer {
	return &gatedPeer{
		Peer:    pagetest.NewPeer("peer-gated", builderOrigin),
		posting: make(chan struct{}),
		release: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (p *gatedPeer) PostMessage(env protocol.Envelope, targetOrigin string) error {
	p.once.Do(func() {
		close(p.posting)
		<-p.release
	})
	return p.Peer.PostMessage(env, targetOrigin)
}

func (p *gatedPeer) Close() error {
	close(p.closed)
	return nil
}

func TestDestroyDuringHandshakeReleasesPeer(t *testing.T) {
	f := newFixture(t, Config{})
	peer := newGatedPeer()

	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		f.session.Frame().Load(peer, builderSrc)
	}()
	<-peer.posting

	go f.session.Destroy()
	require.Eventually(t, func() bool {
		f.session.mu.Lock()
		defer f.session.mu.Unlock()
		return f.session.destroyed
	}, waitTimeout, 5*time.Millisecond)
	close(peer.release)
	<-loaded

	select {
	case <-peer.closed:
	case <-time.After(waitTimeout):
		t.Fatal("peer was not closed")
	}
	require.Eventually(t, func() bool {
		current, _ := f.session.transport.Peer()
		return current == nil
	}, waitTimeout, 5*time.Millisecond)
	assert.Nil(t, f.session.Frame().ContentWindow())
	assert.Equal(t, 0, f.window.ListenerCount())
	assert.False(t, f.session.Info().Initialized)
}

func TestRegistry(t *testing.T) {
	w := page.NewWindow("main", nil)
	r := NewRegistry()

	c1 := page.NewContainer("one", w)
	c2 := page.NewContainer("two", w)
	s1 := New(id.NewSessionID(), c1, builderSrc, Config{Token: "t"})
	time.Sleep(2 * time.Millisecond)
	s2 := New(id.NewSessionID(), c1, builderSrc, Config{Token: "t"})
	s3 := New(id.NewSessionID(), c2, builderSrc, Config{Token: "t"})
	for _, s := range []*Session{s3, s1, s2} {
		r.Add(s)
	}

	assert.Equal(t, 3, r.Len())
	got, ok := r.Get(s2.ID())
	require.True(t, ok)
	assert.Same(t, s2, got)

	assert.Equal(t, []*Session{s1, s2}, r.ByContainer("one"))

	removed, ok := r.Remove(s1.ID())
	require.True(t, ok)
	assert.Same(t, s1, removed)
	_, ok = r.Remove(s1.ID())
	assert.False(t, ok)
	assert.Equal(t, 2, len(r.List()))
}

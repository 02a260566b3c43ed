package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/builderbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page"
	"github.com/GriffinCanCode/builderbridge/internal/domain/page/pagetest"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/domain/session"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/providers/storage"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

const builderOrigin = "http://builder.test"

type fixture struct {
	host    *bridge.Host
	store   *storage.Store
	metrics *monitoring.Metrics
	router  *gin.Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	host := bridge.NewHost(page.NewWindow("main", nil), bridge.Options{
		PublicHost: builderOrigin,
		Observer:   metrics,
	})
	store, err := storage.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	opts.Host = host
	opts.Store = store
	opts.Metrics = metrics
	if opts.Token == "" {
		opts.Token = "secret"
	}

	router := gin.New()
	NewHandlers(opts).Register(router)
	t.Cleanup(host.Close)
	return &fixture{host: host, store: store, metrics: metrics, router: router}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) create(t *testing.T) CreateSessionResponse {
	t.Helper()
	w := f.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// connect loads the session frame with an in-memory builder peer.
func (f *fixture) connect(t *testing.T, sessionID id.SessionID) *pagetest.Peer {
	t.Helper()
	frame, ok := f.host.Frame(sessionID.String())
	require.True(t, ok)
	peer := pagetest.NewPeer("peer-"+sessionID.String(), builderOrigin)
	frame.Load(peer, builderOrigin+bridge.FramePath)
	peer.WaitFor(t, protocol.KindInit, time.Second)
	return peer
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, Options{Version: "1.2.3"})

	w := f.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
	assert.Contains(t, w.Body.String(), builderOrigin+"/index.html")

	f.create(t)
	w = f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Status   string              `json:"status"`
		Sessions int                 `json:"sessions"`
		Metrics  monitoring.Snapshot `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Sessions)
	assert.EqualValues(t, 1, health.Metrics.ActiveSessions)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	f.create(t)

	w := f.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "builderbridge_")
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.create(t)
	assert.Equal(t, session.StateLoading, resp.Session.State)
	assert.False(t, resp.Session.Initialized)
	assert.Equal(t, builderOrigin+"/index.html", resp.FrameSrc)
	assert.Equal(t, "/frames/"+resp.Session.ID.String()+"/socket", resp.Socket)

	_, ok := f.host.Session(resp.Session.ID)
	assert.True(t, ok)
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodPost, "/sessions", map[string]any{"output_type": "pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, f.host.Sessions().Len())
}

func TestCreateSessionWithoutToken(t *testing.T) {
	f := newFixture(t, Options{})
	f2 := &fixture{host: f.host, router: gin.New()}
	NewHandlers(Options{Host: f.host}).Register(f2.router)

	w := f2.do(http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), bridge.ErrTokenRequired.Error())
	assert.Zero(t, f.host.Sessions().Len())

	w = f2.do(http.MethodPost, "/sessions", map[string]any{"token": "from-request"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListAndGetSession(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.create(t)
	b := f.create(t)

	w := f.do(http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sessions []session.Info `json:"sessions"`
		Count    int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)

	ids := []id.SessionID{list.Sessions[0].ID, list.Sessions[1].ID}
	assert.ElementsMatch(t, []id.SessionID{a.Session.ID, b.Session.ID}, ids)

	w = f.do(http.MethodGet, "/sessions/"+a.Session.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, a.Session.ID, info.ID)
}

func TestSessionLookupErrors(t *testing.T) {
	f := newFixture(t, Options{})

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/sessions/garbage", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/sessions/"+id.NewSessionID().String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/sessions/"+id.NewSessionID().String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/sessions/"+id.NewSessionID().String()+"/save", nil).Code)
}

func TestSaveBeforeHandshake(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.create(t)

	w := f.do(http.MethodPost, "/sessions/"+resp.Session.ID.String()+"/save", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSaveRoundTrip(t *testing.T) {
	f := newFixture(t, Options{SaveTimeout: 2 * time.Second})
	resp := f.create(t)
	peer := f.connect(t, resp.Session.ID)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- f.do(http.MethodPost, "/sessions/"+resp.Session.ID.String()+"/save", nil)
	}()

	peer.WaitFor(t, protocol.KindSave, time.Second)
	peer.Send(t, f.host.Window(), protocol.KindSave, protocol.BuilderOutput{HTML: "<p>hello</p>"})

	var w *httptest.ResponseRecorder
	select {
	case w = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("save request never returned")
	}
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "hello")

	rec, err := f.store.Latest(resp.Session.ID)
	require.NoError(t, err)
	assert.Contains(t, rec.Output.HTML, "<p>hello</p>")

	w = f.do(http.MethodGet, "/sessions/"+resp.Session.ID.String()+"/output", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got storage.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, rec.ID, got.ID)

	w = f.do(http.MethodGet, "/sessions/"+resp.Session.ID.String()+"/output?record="+rec.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/sessions/"+resp.Session.ID.String()+"/outputs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rec.ID)
}

func TestBuilderInitiatedSaveIsPersisted(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.create(t)
	peer := f.connect(t, resp.Session.ID)

	peer.Send(t, f.host.Window(), protocol.KindSave, protocol.BuilderOutput{HTML: "<p>autosave</p>"})

	rec, err := f.store.Latest(resp.Session.ID)
	require.NoError(t, err)
	assert.Contains(t, rec.Output.HTML, "autosave")
}

func TestSaveTimesOut(t *testing.T) {
	f := newFixture(t, Options{SaveTimeout: 50 * time.Millisecond})
	resp := f.create(t)
	peer := f.connect(t, resp.Session.ID)

	w := f.do(http.MethodPost, "/sessions/"+resp.Session.ID.String()+"/save", nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, 1, peer.Count(protocol.KindSave))
}

func TestConcurrentSavesShareAnswer(t *testing.T) {
	f := newFixture(t, Options{SaveTimeout: 2 * time.Second})
	resp := f.create(t)
	peer := f.connect(t, resp.Session.ID)

	path := "/sessions/" + resp.Session.ID.String() + "/save"
	done := make(chan int, 2)
	for range 2 {
		go func() { done <- f.do(http.MethodPost, path, nil).Code }()
	}

	require.Eventually(t, func() bool {
		return peer.Count(protocol.KindSave) == 2
	}, time.Second, 5*time.Millisecond)
	peer.Send(t, f.host.Window(), protocol.KindSave, protocol.BuilderOutput{HTML: "<p>shared</p>"})

	for range 2 {
		select {
		case code := <-done:
			assert.Equal(t, http.StatusOK, code)
		case <-time.After(3 * time.Second):
			t.Fatal("save request never returned")
		}
	}
}

func TestGetOutputMissing(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.create(t)

	w := f.do(http.MethodGet, "/sessions/"+resp.Session.ID.String()+"/output", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/sessions/"+resp.Session.ID.String()+"/output?record=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/sessions/"+resp.Session.ID.String()+"/outputs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"records":[]`)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.create(t)
	peer := f.connect(t, resp.Session.ID)
	window := f.host.Window()
	require.Equal(t, 1, window.ListenerCount())

	w := f.do(http.MethodDelete, "/sessions/"+resp.Session.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, window.ListenerCount())
	assert.Zero(t, f.host.Sessions().Len())

	w = f.do(http.MethodDelete, "/sessions/"+resp.Session.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, peer.Count(protocol.KindInit))
}

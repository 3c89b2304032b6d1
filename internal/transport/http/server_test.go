package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/voiceaccess/internal/auth"
	"github.com/vovakirdan/voiceaccess/internal/config"
	"github.com/vovakirdan/voiceaccess/internal/invite"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/platform/platformtest"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
)

const testPassword = "correct horse"

type fakeWatch struct {
	mu      sync.Mutex
	running bool
	starts  int
	notify  supervisor.NotifyFunc
}

func (w *fakeWatch) Start(notify supervisor.NotifyFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return supervisor.ErrAlreadyRunning
	}
	w.running = true
	w.starts++
	w.notify = notify
	return nil
}

func (w *fakeWatch) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return supervisor.ErrNotRunning
	}
	w.running = false
	return nil
}

func (w *fakeWatch) Status() supervisor.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return supervisor.Status{Running: true, Phase: supervisor.PhaseLocating}
	}
	return supervisor.Status{Phase: supervisor.PhaseIdle}
}

type testEnv struct {
	router   *gin.Engine
	channels *registry.Service
	platform *platformtest.Platform
	watch    *fakeWatch
}

func newTestEnv(t *testing.T, loginLimit int) *testEnv {
	t.Helper()

	logger := zerolog.Nop()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	authService := auth.NewService(hash, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "voiceaccess",
		Audience: "voiceaccess-admin",
		TTL:      time.Hour,
	})

	channels := registry.NewService(registry.NewMemoryStorage(), &logger)
	ctx := context.Background()
	require.NoError(t, channels.Add(ctx, registry.Entry{Label: "news", ID: 42, AccessHash: 7, Kind: registry.KindPublic, Username: "newsroom"}))
	require.NoError(t, channels.Add(ctx, registry.Entry{Label: "Team", ID: 43, AccessHash: 8, Kind: registry.KindPrivate}))

	p := platformtest.New(1)
	p.Channels[42] = platform.ChannelInfo{
		Session: &platform.SessionHandle{ID: 500, AccessHash: 501},
		Chats:   []platform.Chat{{ID: 42, Username: "newsroom"}},
	}
	p.ExportLink = "https://t.me/newsroom?voicechat=abc123"

	watch := &fakeWatch{}
	cfg := config.AdminConfig{
		Addr:            ":0",
		ShutdownTimeout: time.Second,
		LoginRateLimit:  loginLimit,
	}
	router := NewRouter(Deps{
		Auth:     authService,
		Channels: channels,
		Links:    invite.New(p, nil, &logger),
		Watch:    watch,
	}, cfg, &logger)

	return &testEnv{router: router, channels: channels, platform: p, watch: watch}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/login", "", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/login", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	token := env.login(t)
	rec = env.do(t, http.MethodGet, "/api/channels", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/watch", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/login", "", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestChannelManagement(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, 0)
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/channels", token, nil)
	req.Equal(http.StatusOK, rec.Code)
	var list ChannelsResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	req.Len(list.Channels, 2)
	req.Equal("news", list.Channels[0].Label)
	req.Equal("Team", list.Channels[1].Label)
	req.Empty(list.Default)

	rec = env.do(t, http.MethodPut, "/api/channels/default", token, SetDefaultRequest{Label: "Team"})
	req.Equal(http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/channels/default", token, SetDefaultRequest{Label: "missing"})
	req.Equal(http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/channels", token, nil)
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	req.Equal("Team", list.Default)
	req.True(list.Channels[1].Default)
	req.False(list.Channels[0].Default)

	rec = env.do(t, http.MethodDelete, "/api/channels/Team", token, nil)
	req.Equal(http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/channels/Team", token, nil)
	req.Equal(http.StatusNotFound, rec.Code)

	reg, err := env.channels.Snapshot(context.Background())
	req.NoError(err)
	req.Equal([]string{"news"}, reg.Labels())
	req.Empty(reg.DefaultLabel())
}

func TestChannelLink(t *testing.T) {
	env := newTestEnv(t, 0)
	token := env.login(t)

	tests := []struct {
		name   string
		path   string
		status int
		link   string
	}{
		{"default kind", "/api/channels/news/link", http.StatusOK, "https://t.me/newsroom?voicechat=abc123"},
		{"livestream", "/api/channels/news/link?kind=livestream", http.StatusOK, "https://t.me/newsroom?livestream=abc123"},
		{"unknown kind", "/api/channels/news/link?kind=radio", http.StatusBadRequest, ""},
		{"unknown label", "/api/channels/nope/link", http.StatusNotFound, ""},
		{"platform failure", "/api/channels/Team/link", http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, token, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.link == "" {
				return
			}
			var resp LinkResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tt.link, resp.Link)
		})
	}
}

func TestChannelLinkWithoutSession(t *testing.T) {
	env := newTestEnv(t, 0)
	env.platform.Channels[43] = platform.ChannelInfo{}
	token := env.login(t)

	rec := env.do(t, http.MethodGet, "/api/channels/Team/link", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWatchControl(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, 0)
	token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/watch/stop", token, nil)
	req.Equal(http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/watch/start", token, nil)
	req.Equal(http.StatusAccepted, rec.Code)
	var st supervisor.Status
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &st))
	req.True(st.Running)
	req.NotNil(env.watch.notify)

	rec = env.do(t, http.MethodPost, "/api/watch/start", token, nil)
	req.Equal(http.StatusConflict, rec.Code)
	req.Equal(1, env.watch.starts)

	rec = env.do(t, http.MethodGet, "/api/watch", token, nil)
	req.Equal(http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/watch/stop", token, nil)
	req.Equal(http.StatusOK, rec.Code)
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &st))
	req.False(st.Running)
	req.Equal(supervisor.PhaseIdle, st.Phase)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	r := newRateLimiter(1)
	r.now = func() time.Time { return now }

	require.True(t, r.allow())
	require.False(t, r.allow())

	now = now.Add(time.Minute)
	require.True(t, r.allow())

	var unlimited *rateLimiter
	require.True(t, unlimited.allow())
	require.True(t, newRateLimiter(0).allow())
}

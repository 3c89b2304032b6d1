package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/voiceaccess/internal/config"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/platform/platformtest"
	"github.com/vovakirdan/voiceaccess/internal/registry"
)

// scriptedUpdates delivers its updates on the first Listen call and then
// reports a lost stream; later calls block until ctx is done.
type scriptedUpdates struct {
	updates []platform.Update

	mu    sync.Mutex
	calls int
}

func (s *scriptedUpdates) Listen(ctx context.Context, handle func(platform.Update)) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		for _, u := range s.updates {
			handle(u)
		}
		return errors.New("stream lost")
	}
	<-ctx.Done()
	return nil
}

func (s *scriptedUpdates) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Bridge.ReconnectDelay = 10 * time.Millisecond
	cfg.Admin.ShutdownTimeout = time.Second
	return &cfg
}

func TestRunDispatchesUpdatesAndReconnects(t *testing.T) {
	req := require.New(t)
	logger := zerolog.Nop()

	p := platformtest.New(1)
	// Reply ids stay below the incoming message ids.
	p.SetNextMessageID(0)
	updates := &scriptedUpdates{updates: []platform.Update{
		{ChatID: 7, MessageID: 10, Text: "/start"},
		{ChatID: 7, MessageID: 11, Text: "2"},
	}}

	a, err := assemble(testConfig(), p, updates, registry.NewMemoryStorage(), &logger)
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	req.Eventually(func() bool { return updates.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)

	sent := p.Sent()
	req.Len(sent, 3)
	req.Equal(int64(7), sent[0].ChatID)
	req.Equal(int64(10), sent[0].ReplyTo)
	req.True(strings.HasPrefix(sent[0].Text, "🛠 Main menu"))
	req.Equal(int64(11), sent[1].ReplyTo)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAssembleRejectsUnknownLinkKind(t *testing.T) {
	logger := zerolog.Nop()
	cfg := testConfig()
	cfg.Links.DefaultKind = "radio"

	_, err := assemble(cfg, platformtest.New(1), &scriptedUpdates{}, registry.NewMemoryStorage(), &logger)
	require.Error(t, err)
}

func TestAdminServerWiredWhenAddrSet(t *testing.T) {
	req := require.New(t)
	logger := zerolog.Nop()

	cfg := testConfig()
	a, err := assemble(cfg, platformtest.New(1), &scriptedUpdates{}, registry.NewMemoryStorage(), &logger)
	req.NoError(err)
	req.Nil(a.server)

	cfg.Admin.Addr = "127.0.0.1:0"
	cfg.Admin.JWTSecret = "secret"
	cfg.Admin.PasswordHash = "hash"
	a, err = assemble(cfg, platformtest.New(1), &scriptedUpdates{}, registry.NewMemoryStorage(), &logger)
	req.NoError(err)
	req.NotNil(a.server)

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	req.Equal(http.StatusOK, rec.Code)
}

func TestOpenStorage(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()
	dir := t.TempDir()

	backends := []config.RegistryConfig{
		{Backend: "file", Path: filepath.Join(dir, "config.json")},
		{Backend: "sqlite", Path: filepath.Join(dir, "registry.db")},
	}
	for _, cfg := range backends {
		t.Run(cfg.Backend, func(t *testing.T) {
			st, closeFn, err := OpenStorage(cfg, &logger)
			require.NoError(t, err)
			defer func() { require.NoError(t, closeFn()) }()

			reg := registry.New()
			require.NoError(t, reg.Add(registry.Entry{Label: "news", ID: 1, AccessHash: 2, Kind: registry.KindPrivate}))
			require.NoError(t, st.Save(ctx, reg))

			got, err := st.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"news"}, got.Labels())
		})
	}

	_, _, err := OpenStorage(config.RegistryConfig{Backend: "etcd"}, &logger)
	require.Error(t, err)
}

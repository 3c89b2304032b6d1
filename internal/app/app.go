// Package app wires the platform bridge, the channel registry, the watch
// supervisor, the dialogue engine and the admin API into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/auth"
	"github.com/vovakirdan/voiceaccess/internal/config"
	"github.com/vovakirdan/voiceaccess/internal/dialogue"
	"github.com/vovakirdan/voiceaccess/internal/invite"
	"github.com/vovakirdan/voiceaccess/internal/locator"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/platform/bridge"
	"github.com/vovakirdan/voiceaccess/internal/reconcile"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
	transporthttp "github.com/vovakirdan/voiceaccess/internal/transport/http"
)

const (
	jwtIssuer   = "voiceaccess"
	jwtAudience = "voiceaccess-admin"
)

// App wires together the platform, domain services and transports.
type App struct {
	updates         platform.UpdateSource
	engine          *dialogue.Engine
	watch           *supervisor.Supervisor
	server          *stdhttp.Server
	reconnectDelay  time.Duration
	shutdownTimeout time.Duration
	closeStorage    func() error
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	storage, closeStorage, err := OpenStorage(cfg.Registry, logger)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}
	logger.Info().Str("backend", cfg.Registry.Backend).Str("path", cfg.Registry.Path).Msg("registry initialized")

	client := bridge.New(bridge.Options{
		BaseURL:        cfg.Bridge.URL,
		Token:          cfg.Bridge.Token,
		RequestTimeout: cfg.Bridge.RequestTimeout,
	}, logger)

	a, err := assemble(cfg, client, client, storage, logger)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}
	a.closeStorage = closeStorage
	return a, nil
}

// assemble builds the App around an already constructed platform.
func assemble(cfg *config.Config, client platform.Client, updates platform.UpdateSource, storage registry.Storage, logger *zerolog.Logger) (*App, error) {
	kind, err := invite.ParseKind(cfg.Links.DefaultKind)
	if err != nil {
		return nil, fmt.Errorf("links default kind: %w", err)
	}

	channels := registry.NewService(storage, logger)
	links := invite.New(client, invite.CommandFallback(cfg.Links.FallbackCommand, cfg.Links.FallbackTimeout), logger)

	reconciler := reconcile.New(client, reconcile.Config{
		Interval:   cfg.Watch.PollInterval,
		ErrorDelay: cfg.Watch.PollErrorDelay,
		Limit:      cfg.Watch.ParticipantLimit,
	}, logger)
	watch := supervisor.New(supervisor.Deps{
		Channels:   channels,
		Locator:    locator.New(client, logger),
		Reconciler: reconciler,
		Self:       client,
	}, supervisor.Options{Backoff: cfg.Watch.Backoff}, logger)

	engine := dialogue.New(dialogue.Deps{
		Replier:   client,
		Channels:  channels,
		Directory: client,
		Links:     links,
		Watch:     watch,
	}, dialogue.Options{
		DefaultKind:  kind,
		AllowedChats: cfg.Dialogue.AllowedChats,
	}, logger)

	a := &App{
		updates:         updates,
		engine:          engine,
		watch:           watch,
		reconnectDelay:  cfg.Bridge.ReconnectDelay,
		shutdownTimeout: cfg.Admin.ShutdownTimeout,
		closeStorage:    func() error { return nil },
		log:             logger,
	}
	if a.reconnectDelay <= 0 {
		a.reconnectDelay = config.Default().Bridge.ReconnectDelay
	}
	if a.shutdownTimeout <= 0 {
		a.shutdownTimeout = config.Default().Admin.ShutdownTimeout
	}

	if cfg.Admin.Addr != "" {
		authService := auth.NewService(cfg.Admin.PasswordHash, &auth.JWTConfig{
			Secret:   []byte(cfg.Admin.JWTSecret),
			Issuer:   jwtIssuer,
			Audience: jwtAudience,
			TTL:      cfg.Admin.TokenTTL,
		})
		a.server = transporthttp.NewServer(transporthttp.Deps{
			Auth:        authService,
			Channels:    channels,
			Links:       links,
			Watch:       watch,
			DefaultKind: kind,
		}, cfg.Admin, logger)
	}

	return a, nil
}

// Run consumes platform updates and serves the admin API until ctx is
// cancelled or the admin server fails.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("admin api listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	listenDone := make(chan struct{})
	go func() {
		defer close(listenDone)
		a.listen(runCtx)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = err
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancelShutdown()

	a.log.Info().Msg("shutting down")
	if err := a.watch.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("watch did not stop in time")
	}
	if a.server != nil && runErr == nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("shutdown admin api: %w", err)
		} else {
			runErr = <-serverErr
		}
	}
	<-listenDone

	a.cleanup()
	return runErr
}

// listen keeps the update stream open, reconnecting after failures.
func (a *App) listen(ctx context.Context) {
	for {
		err := a.updates.Listen(ctx, func(u platform.Update) {
			a.engine.Handle(ctx, dialogue.Message{
				ConversationID: u.ChatID,
				ID:             u.MessageID,
				Text:           u.Text,
			})
		})
		if ctx.Err() != nil {
			return
		}
		a.log.Warn().Err(err).Dur("retry_in", a.reconnectDelay).Msg("update stream lost")

		t := time.NewTimer(a.reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// cleanup closes the registry storage.
func (a *App) cleanup() {
	if err := a.closeStorage(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close registry")
	} else {
		a.log.Info().Msg("registry closed")
	}
}

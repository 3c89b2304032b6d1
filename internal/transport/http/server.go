// Package http serves the admin API: channel registry management, invite
// links and control of the auto-unmute watch.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/config"
	"github.com/vovakirdan/voiceaccess/internal/invite"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
)

// Authenticator logs the admin in and validates issued tokens.
type Authenticator interface {
	TokenValidator
	Login(password string) (string, error)
}

// Channels is the registry surface the API uses.
type Channels interface {
	Snapshot(ctx context.Context) (*registry.Registry, error)
	Remove(ctx context.Context, label string) error
	SetDefault(ctx context.Context, label string) error
}

// Links exports invite links.
type Links interface {
	Export(ctx context.Context, entry registry.Entry, kind invite.Kind) (string, error)
}

// Watch controls the auto-unmute supervisor.
type Watch interface {
	Start(notify supervisor.NotifyFunc) error
	Stop(ctx context.Context) error
	Status() supervisor.Status
}

// Deps are the services behind the API.
type Deps struct {
	Auth     Authenticator
	Channels Channels
	Links    Links
	Watch    Watch
	// DefaultKind is used when a link request names no kind.
	DefaultKind invite.Kind
}

// NewRouter builds the gin engine with every admin route.
func NewRouter(deps Deps, cfg config.AdminConfig, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	l := logger.With().Str("component", "admin").Logger()
	log := &l

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	stopTimeout := cfg.ShutdownTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	h := NewAPIHandlers(deps, newRateLimiter(cfg.LoginRateLimit), stopTimeout, log)

	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.POST("/login", h.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(deps.Auth, log))
	{
		protected.GET("/channels", h.ListChannels)
		protected.DELETE("/channels/:label", h.DeleteChannel)
		protected.PUT("/channels/default", h.SetDefaultChannel)
		protected.GET("/channels/:label/link", h.ChannelLink)

		protected.GET("/watch", h.WatchStatus)
		protected.POST("/watch/start", h.StartWatch)
		protected.POST("/watch/stop", h.StopWatch)
	}

	return router
}

// NewServer builds the admin HTTP server.
func NewServer(deps Deps, cfg config.AdminConfig, logger *zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

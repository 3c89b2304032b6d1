package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/auth"
	"github.com/vovakirdan/voiceaccess/internal/invite"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	deps        Deps
	limiter     *rateLimiter
	stopTimeout time.Duration
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(deps Deps, limiter *rateLimiter, stopTimeout time.Duration, logger *zerolog.Logger) *APIHandlers {
	if deps.DefaultKind == "" {
		deps.DefaultKind = invite.KindSpeaker
	}
	return &APIHandlers{
		deps:        deps,
		limiter:     limiter,
		stopTimeout: stopTimeout,
		log:         logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// SetDefaultRequest represents the set-default request body.
type SetDefaultRequest struct {
	Label string `json:"label" binding:"required"`
}

// LinkResponse carries a generated invite link.
type LinkResponse struct {
	Label string      `json:"label"`
	Kind  invite.Kind `json:"kind"`
	Link  string      `json:"link"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Login exchanges the admin password for a token.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	if !h.limiter.allow() {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("login rate limit exceeded")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts"})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.deps.Auth.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.Info().Str("client_ip", c.ClientIP()).Msg("rejected admin login")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("failed to log in")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// ListChannels returns every registered channel.
// GET /api/channels
func (h *APIHandlers) ListChannels(c *gin.Context) {
	reg, err := h.deps.Channels.Snapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load registry")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toChannelsResponse(reg))
}

// DeleteChannel removes a channel by label.
// DELETE /api/channels/:label
func (h *APIHandlers) DeleteChannel(c *gin.Context) {
	label := c.Param("label")
	if err := h.deps.Channels.Remove(c.Request.Context(), label); err != nil {
		h.registryError(c, err, label)
		return
	}
	h.log.Info().Str("label", label).Msg("channel removed")
	c.Status(http.StatusNoContent)
}

// SetDefaultChannel selects the default channel.
// PUT /api/channels/default
func (h *APIHandlers) SetDefaultChannel(c *gin.Context) {
	var req SetDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.deps.Channels.SetDefault(c.Request.Context(), req.Label); err != nil {
		h.registryError(c, err, req.Label)
		return
	}
	h.log.Info().Str("label", req.Label).Msg("default channel set")
	c.JSON(http.StatusOK, gin.H{"default": req.Label})
}

// ChannelLink exports an invite link to the channel's live session.
// GET /api/channels/:label/link?kind=
func (h *APIHandlers) ChannelLink(c *gin.Context) {
	ctx := c.Request.Context()
	label := c.Param("label")

	kind := h.deps.DefaultKind
	if raw := c.Query("kind"); raw != "" {
		k, err := invite.ParseKind(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		kind = k
	}

	reg, err := h.deps.Channels.Snapshot(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load registry")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	entry, ok := reg.Lookup(label)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}

	link, err := h.deps.Links.Export(ctx, entry, kind)
	if err != nil {
		status, msg := linkErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Warn().Err(err).Str("label", label).Msg("link export failed")
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, LinkResponse{Label: label, Kind: kind, Link: link})
}

// WatchStatus returns the supervisor state.
// GET /api/watch
func (h *APIHandlers) WatchStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Watch.Status())
}

// StartWatch starts the auto-unmute watch.
// POST /api/watch/start
func (h *APIHandlers) StartWatch(c *gin.Context) {
	err := h.deps.Watch.Start(h.logEvent)
	if errors.Is(err, supervisor.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "watch already running"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to start watch")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusAccepted, h.deps.Watch.Status())
}

// StopWatch stops the auto-unmute watch and waits for it to exit.
// POST /api/watch/stop
func (h *APIHandlers) StopWatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.stopTimeout)
	defer cancel()

	err := h.deps.Watch.Stop(ctx)
	if errors.Is(err, supervisor.ErrNotRunning) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "watch not running"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to stop watch")
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "watch did not stop in time"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Watch.Status())
}

func (h *APIHandlers) logEvent(ev supervisor.Event) {
	h.log.Info().
		Str("label", ev.Label).
		Int64("session_id", ev.Session.ID).
		Str("event", eventName(ev.Type)).
		Msg("watch event")
}

func (h *APIHandlers) registryError(c *gin.Context, err error, label string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
	case errors.Is(err, registry.ErrInvalidLabel):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("label", label).Msg("registry update failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func linkErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, invite.ErrNoActiveSession):
		return http.StatusConflict, "no active session"
	case errors.Is(err, invite.ErrNoUsername):
		return http.StatusUnprocessableEntity, "channel has no public username"
	case errors.Is(err, platform.ErrAdminRequired):
		return http.StatusUnprocessableEntity, "admin rights required in the channel"
	case errors.Is(err, platform.ErrPublicChannelRequired):
		return http.StatusUnprocessableEntity, "channel must be public to export links"
	}
	return http.StatusBadGateway, "link export failed"
}

// Package reconcile keeps the participants of a live session unmuted.
//
// A run polls the participant list on a fixed interval, unmutes every muted
// participant it has not handled yet and remembers them in a SeenSet so each
// user is corrected at most once per run. A run ends when its context is
// cancelled or the platform reports the session as gone.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/platform"
)

// Outcome tells the caller why a run returned.
type Outcome int

const (
	// Cancelled means the run context was cancelled.
	Cancelled Outcome = iota
	// SessionEnded means the platform reported the session invalid or over.
	SessionEnded
)

func (o Outcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case SessionEnded:
		return "session_ended"
	}
	return "unknown"
}

const (
	DefaultInterval   = 15 * time.Second
	DefaultErrorDelay = 10 * time.Second
	DefaultLimit      = 200
)

// Client is the subset of the platform a run needs.
type Client interface {
	GetParticipants(ctx context.Context, session platform.SessionHandle, limit int) ([]platform.Participant, error)
	ResolveUser(ctx context.Context, userID int64) (platform.UserRef, error)
	SetParticipantMuted(ctx context.Context, session platform.SessionHandle, user platform.UserRef, muted bool) error
}

// Config tunes the polling loop.
type Config struct {
	// Interval is the pause between successful polls.
	Interval time.Duration
	// ErrorDelay is the pause after a failed poll.
	ErrorDelay time.Duration
	// Limit caps the participants fetched per poll. Only one page is read.
	Limit int
}

// Reconciler runs polling loops against a Client.
type Reconciler struct {
	client Client
	cfg    Config
	log    *zerolog.Logger
}

// New creates a reconciler. Zero config fields take package defaults.
func New(client Client, cfg Config, logger *zerolog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = DefaultErrorDelay
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	l := logger.With().Str("component", "reconciler").Logger()
	return &Reconciler{client: client, cfg: cfg, log: &l}
}

// Run polls session until ctx is cancelled or the session ends. selfID is
// never touched. corrected, if non-nil, is called after every successful
// unmute. Polls never overlap and no mute command is issued once ctx is done.
func (r *Reconciler) Run(ctx context.Context, session platform.SessionHandle, selfID int64, corrected func(platform.UserRef)) Outcome {
	log := r.log.With().Int64("session_id", session.ID).Logger()
	seen := NewSeenSet()
	seen.Add(selfID)

	log.Info().Int64("self_id", selfID).Msg("watching session")

	for {
		if ctx.Err() != nil {
			log.Info().Int("corrected", seen.Len()-1).Msg("watch cancelled")
			return Cancelled
		}

		parts, err := r.client.GetParticipants(ctx, session, r.cfg.Limit)
		switch {
		case ctx.Err() != nil:
			continue
		case errors.Is(err, platform.ErrSessionInvalid):
			log.Info().Err(err).Msg("session ended")
			return SessionEnded
		case err != nil:
			log.Warn().Err(err).Dur("retry_in", r.cfg.ErrorDelay).Msg("poll participants failed")
			sleep(ctx, r.cfg.ErrorDelay)
			continue
		}

		if r.correct(ctx, &log, session, parts, seen, corrected) {
			log.Info().Msg("session ended while unmuting")
			return SessionEnded
		}

		sleep(ctx, r.cfg.Interval)
	}
}

// correct unmutes every eligible participant of one poll. It reports whether
// the session turned out to be gone.
func (r *Reconciler) correct(ctx context.Context, log *zerolog.Logger, session platform.SessionHandle, parts []platform.Participant, seen *SeenSet, corrected func(platform.UserRef)) (ended bool) {
	for _, p := range parts {
		if p.UserID == 0 || seen.Has(p.UserID) || !p.Muted {
			continue
		}
		if ctx.Err() != nil {
			return false
		}

		user, err := r.client.ResolveUser(ctx, p.UserID)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", p.UserID).Msg("resolve participant failed")
			continue
		}
		if ctx.Err() != nil {
			return false
		}

		if err := r.client.SetParticipantMuted(ctx, session, user, false); err != nil {
			if errors.Is(err, platform.ErrSessionInvalid) {
				return true
			}
			log.Warn().Err(err).Int64("user_id", p.UserID).Msg("unmute failed")
			continue
		}

		seen.Add(p.UserID)
		log.Info().Int64("user_id", p.UserID).Str("name", user.DisplayName()).Msg("unmuted participant")
		if corrected != nil {
			corrected(user)
		}
	}
	return false
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

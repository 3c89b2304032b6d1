// Package locator finds the live group call of a registered channel.
package locator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/registry"
)

// ChannelInfoGetter is the boundary call the locator needs.
type ChannelInfoGetter interface {
	GetFullChannel(ctx context.Context, ch platform.ChannelRef) (platform.ChannelInfo, error)
}

// Locator resolves a channel to its active session.
type Locator struct {
	client ChannelInfoGetter
	log    *zerolog.Logger
}

// New creates a locator.
func New(client ChannelInfoGetter, logger *zerolog.Logger) *Locator {
	l := logger.With().Str("component", "locator").Logger()
	return &Locator{client: client, log: &l}
}

// Locate returns the active session of entry. ok is false when the channel
// has no session or the lookup failed; callers retry later either way.
// Locate has no side effects.
func (l *Locator) Locate(ctx context.Context, entry registry.Entry) (session platform.SessionHandle, ok bool) {
	info, err := l.client.GetFullChannel(ctx, entry.Ref())
	if err != nil {
		ev := l.log.Warn()
		if errors.Is(err, context.Canceled) {
			ev = l.log.Debug()
		}
		ev.Err(err).Str("label", entry.Label).Int64("channel_id", entry.ID).Msg("channel lookup failed")
		return platform.SessionHandle{}, false
	}
	if info.Session == nil {
		l.log.Debug().Str("label", entry.Label).Msg("no active session")
		return platform.SessionHandle{}, false
	}
	return *info.Session, true
}

// Package invite exports invite links to a channel's live session and
// publishes them.
package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/registry"
)

var (
	// ErrNoActiveSession is returned when the channel has no live session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrNoUsername is returned when a deep link needs a public username.
	ErrNoUsername = errors.New("channel has no public username")
	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("unknown link kind")
	// ErrMalformedLink is returned when an exported link carries no hash.
	ErrMalformedLink = errors.New("exported link has no hash")
)

// Kind selects the shape of the generated link.
type Kind string

const (
	// KindSpeaker is the exported link as is; it lets the holder speak.
	KindSpeaker    Kind = "speaker"
	KindVoiceChat  Kind = "voicechat"
	KindVideoChat  Kind = "videochat"
	KindLivestream Kind = "livestream"
)

// Kinds lists every kind in menu order.
var Kinds = []Kind{KindSpeaker, KindVoiceChat, KindVideoChat, KindLivestream}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// PublishPrefix starts every published message.
const PublishPrefix = "🎙 Live now: "

// Client is the platform surface the exporter uses.
type Client interface {
	GetFullChannel(ctx context.Context, ch platform.ChannelRef) (platform.ChannelInfo, error)
	ExportInviteLink(ctx context.Context, session platform.SessionHandle, canSelfUnmute bool) (string, error)
	SendMessage(ctx context.Context, ch platform.ChannelRef, text string) error
}

// FallbackFunc retrieves a raw invite link by other means when the platform
// refuses to export one.
type FallbackFunc func(ctx context.Context, entry registry.Entry) (string, error)

// Exporter builds and publishes invite links.
type Exporter struct {
	client   Client
	fallback FallbackFunc
	log      *zerolog.Logger
}

// New creates an exporter. fallback may be nil.
func New(client Client, fallback FallbackFunc, logger *zerolog.Logger) *Exporter {
	l := logger.With().Str("component", "invite").Logger()
	return &Exporter{client: client, fallback: fallback, log: &l}
}

// Export returns a link of the given kind to entry's live session.
func (e *Exporter) Export(ctx context.Context, entry registry.Entry, kind Kind) (string, error) {
	info, err := e.client.GetFullChannel(ctx, entry.Ref())
	if err != nil {
		return "", fmt.Errorf("get channel %q: %w", entry.Label, err)
	}
	if info.Session == nil {
		return "", ErrNoActiveSession
	}

	raw, err := e.client.ExportInviteLink(ctx, *info.Session, true)
	if err != nil {
		if !errors.Is(err, platform.ErrPublicChannelRequired) || e.fallback == nil {
			return "", fmt.Errorf("export invite: %w", err)
		}
		e.log.Info().Str("label", entry.Label).Msg("export refused, trying fallback")
		var ferr error
		raw, ferr = e.fallback(ctx, entry)
		if ferr != nil {
			return "", fmt.Errorf("export invite: %w (fallback: %v)", err, ferr)
		}
	}

	username := entry.Username
	if len(info.Chats) > 0 && info.Chats[0].Username != "" {
		username = info.Chats[0].Username
	}
	return Format(raw, kind, username)
}

// Publish exports a link and posts it to the channel itself.
func (e *Exporter) Publish(ctx context.Context, entry registry.Entry, kind Kind) (string, error) {
	link, err := e.Export(ctx, entry, kind)
	if err != nil {
		return "", err
	}
	if err := e.client.SendMessage(ctx, entry.Ref(), PublishPrefix+link); err != nil {
		return "", fmt.Errorf("publish to %q: %w", entry.Label, err)
	}
	e.log.Info().Str("label", entry.Label).Str("kind", string(kind)).Msg("link published")
	return link, nil
}

// Format turns a raw exported link into a link of the given kind. Deep
// links reuse the hash after the last '=' of the raw link.
func Format(raw string, kind Kind, username string) (string, error) {
	if kind == KindSpeaker || kind == "" {
		return raw, nil
	}
	if username == "" {
		return "", ErrNoUsername
	}
	i := strings.LastIndex(raw, "=")
	if i < 0 || i == len(raw)-1 {
		return "", fmt.Errorf("%w: %s", ErrMalformedLink, raw)
	}
	return fmt.Sprintf("https://t.me/%s?%s=%s", strings.TrimPrefix(username, "@"), kind, raw[i+1:]), nil
}

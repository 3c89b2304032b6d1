// Package platform describes the messaging-platform boundary the bot talks to:
// channel lookups, group call participants, mute commands, invite export and
// message delivery. Concrete transports live in subpackages.
package platform

import "context"

// ChannelRef addresses a channel on the platform.
type ChannelRef struct {
	ID         int64 `json:"id"`
	AccessHash int64 `json:"access_hash"`
}

// SessionHandle addresses a live group voice/broadcast session.
// It is obtained fresh on every lookup and never persisted.
type SessionHandle struct {
	ID         int64 `json:"id"`
	AccessHash int64 `json:"access_hash"`
}

// Chat is a chat object returned alongside full channel info.
type Chat struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
}

// ChannelInfo is the subset of full channel info the bot needs.
type ChannelInfo struct {
	Session *SessionHandle `json:"call,omitempty"`
	Chats   []Chat         `json:"chats"`
}

// Participant is a user connected to a session.
type Participant struct {
	UserID int64 `json:"user_id"`
	Muted  bool  `json:"muted"`
}

// UserRef is a fully resolved user, usable as a command target.
type UserRef struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"access_hash"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
}

// DisplayName returns the best human-readable name for the user.
func (u UserRef) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

// Dialog is a chat visible to the account, as returned by search and resolve.
type Dialog struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"access_hash"`
	Title      string `json:"title"`
	Username   string `json:"username,omitempty"`
	IsChannel  bool   `json:"is_channel"`
}

// Ref returns the channel reference of the dialog.
func (d Dialog) Ref() ChannelRef {
	return ChannelRef{ID: d.ID, AccessHash: d.AccessHash}
}

// Update is an incoming message observed on the account.
type Update struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Outgoing  bool   `json:"outgoing"`
}

// Client is the full set of boundary operations. Consumers should depend on
// the narrow interfaces they need instead.
type Client interface {
	Self(ctx context.Context) (UserRef, error)
	GetFullChannel(ctx context.Context, ch ChannelRef) (ChannelInfo, error)
	GetParticipants(ctx context.Context, session SessionHandle, limit int) ([]Participant, error)
	SetParticipantMuted(ctx context.Context, session SessionHandle, user UserRef, muted bool) error
	ResolveUser(ctx context.Context, userID int64) (UserRef, error)
	ResolveChannel(ctx context.Context, username string) (Dialog, error)
	SearchDialogs(ctx context.Context, query string) ([]Dialog, error)
	ExportInviteLink(ctx context.Context, session SessionHandle, canSelfUnmute bool) (string, error)
	SendMessage(ctx context.Context, ch ChannelRef, text string) error
	Reply(ctx context.Context, chatID, replyTo int64, text string) (int64, error)
}

// UpdateSource delivers incoming messages to handle until ctx is done or the
// underlying stream fails.
type UpdateSource interface {
	Listen(ctx context.Context, handle func(Update)) error
}

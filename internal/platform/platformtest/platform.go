// Package platformtest provides an in-memory platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vovakirdan/voiceaccess/internal/platform"
)

// MuteCall records one SetParticipantMuted invocation.
type MuteCall struct {
	Session platform.SessionHandle
	UserID  int64
	Muted   bool
}

// SentMessage records one SendMessage or Reply invocation.
type SentMessage struct {
	ChatID    int64
	ChannelID int64
	ReplyTo   int64
	Text      string
	MessageID int64
}

// Platform is a scripted, concurrency-safe platform.Client.
// Zero value is not usable; call New.
type Platform struct {
	mu sync.Mutex

	SelfUser platform.UserRef
	Channels map[int64]platform.ChannelInfo
	Dialogs  []platform.Dialog
	Users    map[int64]platform.UserRef

	// Polls is consumed in order by GetParticipants; once exhausted the last
	// entry repeats.
	Polls []Poll
	// ExportLink is returned by ExportInviteLink unless ExportErr is set.
	ExportLink string
	ExportErr  error
	// ChannelErr, when set, is returned by GetFullChannel.
	ChannelErr error
	// MuteErr is consulted per user id.
	MuteErr map[int64]error
	// OnPoll, if set, runs after each GetParticipants call with the poll number.
	OnPoll func(n int)

	polls     int
	mutes     []MuteCall
	sent      []SentMessage
	nextMsgID int64
	fullCalls int
}

// Poll is one scripted GetParticipants response.
type Poll struct {
	Participants []platform.Participant
	Err          error
}

// New creates an empty platform logged in as self.
func New(self int64) *Platform {
	return &Platform{
		SelfUser:  platform.UserRef{ID: self, AccessHash: self * 10, Username: "self"},
		Channels:  make(map[int64]platform.ChannelInfo),
		Users:     make(map[int64]platform.UserRef),
		MuteErr:   make(map[int64]error),
		nextMsgID: 1000,
	}
}

func (p *Platform) Self(context.Context) (platform.UserRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SelfUser, nil
}

func (p *Platform) GetFullChannel(_ context.Context, ch platform.ChannelRef) (platform.ChannelInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullCalls++
	if p.ChannelErr != nil {
		return platform.ChannelInfo{}, p.ChannelErr
	}
	info, ok := p.Channels[ch.ID]
	if !ok {
		return platform.ChannelInfo{}, &platform.RPCError{Code: 400, Type: "CHANNEL_INVALID"}
	}
	return info, nil
}

func (p *Platform) GetParticipants(ctx context.Context, _ platform.SessionHandle, limit int) ([]platform.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	var poll Poll
	if len(p.Polls) > 0 {
		idx := p.polls
		if idx >= len(p.Polls) {
			idx = len(p.Polls) - 1
		}
		poll = p.Polls[idx]
	}
	p.polls++
	n := p.polls
	hook := p.OnPoll
	p.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if poll.Err != nil {
		return nil, poll.Err
	}
	parts := poll.Participants
	if limit > 0 && len(parts) > limit {
		parts = parts[:limit]
	}
	return parts, nil
}

func (p *Platform) SetParticipantMuted(_ context.Context, session platform.SessionHandle, user platform.UserRef, muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.MuteErr[user.ID]; err != nil {
		return err
	}
	p.mutes = append(p.mutes, MuteCall{Session: session, UserID: user.ID, Muted: muted})
	return nil
}

func (p *Platform) ResolveUser(_ context.Context, userID int64) (platform.UserRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.Users[userID]; ok {
		return u, nil
	}
	return platform.UserRef{ID: userID, AccessHash: userID * 10}, nil
}

func (p *Platform) ResolveChannel(_ context.Context, username string) (platform.Dialog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := strings.TrimPrefix(username, "@")
	for _, d := range p.Dialogs {
		if strings.EqualFold(d.Username, name) {
			return d, nil
		}
	}
	return platform.Dialog{}, fmt.Errorf("resolve %s: %w", username, &platform.RPCError{Code: 400, Type: "USERNAME_NOT_OCCUPIED"})
}

func (p *Platform) SearchDialogs(_ context.Context, query string) ([]platform.Dialog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := strings.ToLower(query)
	var out []platform.Dialog
	for _, d := range p.Dialogs {
		if strings.Contains(strings.ToLower(d.Title), q) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Platform) ExportInviteLink(context.Context, platform.SessionHandle, bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ExportErr != nil {
		return "", p.ExportErr
	}
	return p.ExportLink, nil
}

func (p *Platform) SendMessage(_ context.Context, ch platform.ChannelRef, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextMsgID++
	p.sent = append(p.sent, SentMessage{ChannelID: ch.ID, Text: text, MessageID: p.nextMsgID})
	return nil
}

func (p *Platform) Reply(_ context.Context, chatID, replyTo int64, text string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextMsgID++
	p.sent = append(p.sent, SentMessage{ChatID: chatID, ReplyTo: replyTo, Text: text, MessageID: p.nextMsgID})
	return p.nextMsgID, nil
}

// Mutes returns a copy of every recorded mute command.
func (p *Platform) Mutes() []MuteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MuteCall(nil), p.mutes...)
}

// Sent returns a copy of every recorded outgoing message.
func (p *Platform) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentMessage(nil), p.sent...)
}

// PollCount returns how many times GetParticipants was called.
func (p *Platform) PollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// FullChannelCalls returns how many times GetFullChannel was called.
func (p *Platform) FullChannelCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fullCalls
}

// SetNextMessageID makes the next sent message get id+1.
func (p *Platform) SetNextMessageID(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextMsgID = id
}

var _ platform.Client = (*Platform)(nil)

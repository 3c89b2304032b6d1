package bridge

import (
	"encoding/json"

	"github.com/vovakirdan/voiceaccess/internal/platform"
)

const (
	// ProtocolVersion is sent on every request so the sidecar can reject
	// clients it does not understand.
	ProtocolVersion = 1

	UpdateTypeMessage = "message"
	UpdateTypePing    = "ping"
)

// Envelope is a single frame on the update stream.
type Envelope struct {
	Type  string             `json:"type"`
	Data  json.RawMessage    `json:"data,omitempty"`
	Error *platform.RPCError `json:"error,omitempty"`
}

// Peer addresses a message destination: either a plain chat or a channel.
type Peer struct {
	ChatID  *int64               `json:"chat_id,omitempty"`
	Channel *platform.ChannelRef `json:"channel,omitempty"`
}

type errorResponse struct {
	Error *platform.RPCError `json:"error"`
}

type selfResponse struct {
	User platform.UserRef `json:"user"`
}

type fullChannelRequest struct {
	Channel platform.ChannelRef `json:"channel"`
}

type participantsRequest struct {
	Call  platform.SessionHandle `json:"call"`
	Limit int                    `json:"limit"`
}

type participantsResponse struct {
	Participants []platform.Participant `json:"participants"`
}

type editParticipantRequest struct {
	Call  platform.SessionHandle `json:"call"`
	User  platform.UserRef       `json:"user"`
	Muted bool                   `json:"muted"`
}

type userResponse struct {
	User platform.UserRef `json:"user"`
}

type dialogResponse struct {
	Dialog platform.Dialog `json:"dialog"`
}

type dialogsResponse struct {
	Dialogs []platform.Dialog `json:"dialogs"`
}

type inviteRequest struct {
	Call          platform.SessionHandle `json:"call"`
	CanSelfUnmute bool                   `json:"can_self_unmute"`
}

type inviteResponse struct {
	Link string `json:"link"`
}

type sendRequest struct {
	Peer    Peer   `json:"peer"`
	Text    string `json:"text"`
	ReplyTo int64  `json:"reply_to,omitempty"`
}

type sendResponse struct {
	MessageID int64 `json:"message_id"`
}

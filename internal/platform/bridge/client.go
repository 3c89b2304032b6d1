// Package bridge implements the platform boundary on top of an MTProto bridge
// sidecar that exposes the account over HTTP and a websocket update stream.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/platform"
)

// Options configures a bridge client.
type Options struct {
	BaseURL string
	Token   string
	// RequestTimeout bounds every call when non-zero.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client talks to the bridge sidecar.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	log     *zerolog.Logger
}

// New creates a bridge client.
func New(opts Options, logger *zerolog.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	l := logger.With().Str("component", "bridge").Logger()
	return &Client{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		token:   opts.Token,
		timeout: opts.RequestTimeout,
		http:    hc,
		log:     &l,
	}
}

// Self returns the account the bridge is logged in as.
func (c *Client) Self(ctx context.Context) (platform.UserRef, error) {
	var resp selfResponse
	if err := c.do(ctx, http.MethodGet, "/v1/self", nil, &resp); err != nil {
		return platform.UserRef{}, fmt.Errorf("get self: %w", err)
	}
	return resp.User, nil
}

// GetFullChannel returns the active session (if any) and chats of a channel.
func (c *Client) GetFullChannel(ctx context.Context, ch platform.ChannelRef) (platform.ChannelInfo, error) {
	var resp platform.ChannelInfo
	if err := c.do(ctx, http.MethodPost, "/v1/channels/full", fullChannelRequest{Channel: ch}, &resp); err != nil {
		return platform.ChannelInfo{}, fmt.Errorf("get full channel %d: %w", ch.ID, err)
	}
	return resp, nil
}

// GetParticipants lists at most limit participants of a session.
func (c *Client) GetParticipants(ctx context.Context, session platform.SessionHandle, limit int) ([]platform.Participant, error) {
	var resp participantsResponse
	req := participantsRequest{Call: session, Limit: limit}
	if err := c.do(ctx, http.MethodPost, "/v1/calls/participants", req, &resp); err != nil {
		return nil, fmt.Errorf("get participants of call %d: %w", session.ID, err)
	}
	return resp.Participants, nil
}

// SetParticipantMuted mutes or unmutes a session participant.
func (c *Client) SetParticipantMuted(ctx context.Context, session platform.SessionHandle, user platform.UserRef, muted bool) error {
	req := editParticipantRequest{Call: session, User: user, Muted: muted}
	if err := c.do(ctx, http.MethodPost, "/v1/calls/participants/edit", req, nil); err != nil {
		return fmt.Errorf("edit participant %d: %w", user.ID, err)
	}
	return nil
}

// ResolveUser resolves a user id into a full user reference.
func (c *Client) ResolveUser(ctx context.Context, userID int64) (platform.UserRef, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+strconv.FormatInt(userID, 10), nil, &resp); err != nil {
		return platform.UserRef{}, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return resp.User, nil
}

// ResolveChannel resolves a public @username.
func (c *Client) ResolveChannel(ctx context.Context, username string) (platform.Dialog, error) {
	name := strings.TrimPrefix(username, "@")
	var resp dialogResponse
	if err := c.do(ctx, http.MethodGet, "/v1/resolve/"+url.PathEscape(name), nil, &resp); err != nil {
		return platform.Dialog{}, fmt.Errorf("resolve %s: %w", username, err)
	}
	return resp.Dialog, nil
}

// SearchDialogs returns dialogs whose title matches query.
func (c *Client) SearchDialogs(ctx context.Context, query string) ([]platform.Dialog, error) {
	var resp dialogsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/dialogs?q="+url.QueryEscape(query), nil, &resp); err != nil {
		return nil, fmt.Errorf("search dialogs: %w", err)
	}
	return resp.Dialogs, nil
}

// ExportInviteLink exports an invite link to the session.
func (c *Client) ExportInviteLink(ctx context.Context, session platform.SessionHandle, canSelfUnmute bool) (string, error) {
	var resp inviteResponse
	req := inviteRequest{Call: session, CanSelfUnmute: canSelfUnmute}
	if err := c.do(ctx, http.MethodPost, "/v1/calls/invite", req, &resp); err != nil {
		return "", fmt.Errorf("export invite of call %d: %w", session.ID, err)
	}
	return resp.Link, nil
}

// SendMessage posts text to a channel.
func (c *Client) SendMessage(ctx context.Context, ch platform.ChannelRef, text string) error {
	req := sendRequest{Peer: Peer{Channel: &ch}, Text: text}
	if err := c.do(ctx, http.MethodPost, "/v1/messages/send", req, nil); err != nil {
		return fmt.Errorf("send message to channel %d: %w", ch.ID, err)
	}
	return nil
}

// Reply sends text to a chat as a reply and returns the new message id.
func (c *Client) Reply(ctx context.Context, chatID, replyTo int64, text string) (int64, error) {
	var resp sendResponse
	req := sendRequest{Peer: Peer{ChatID: &chatID}, Text: text, ReplyTo: replyTo}
	if err := c.do(ctx, http.MethodPost, "/v1/messages/send", req, &resp); err != nil {
		return 0, fmt.Errorf("reply in chat %d: %w", chatID, err)
	}
	return resp.MessageID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	reqID := uuid.NewString()
	c.authorize(req.Header)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := decodeError(resp)
		c.log.Debug().Err(err).Str("path", path).Str("request_id", reqID).Msg("bridge call failed")
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	h.Set("X-Bridge-Protocol", strconv.Itoa(ProtocolVersion))
}

// decodeError turns a non-2xx response into a *platform.RPCError.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != nil && er.Error.Type != "" {
		if er.Error.Code == 0 {
			er.Error.Code = resp.StatusCode
		}
		return er.Error
	}

	typ := "INTERNAL"
	switch resp.StatusCode {
	case http.StatusNotFound:
		typ = "PEER_NOT_FOUND"
	case http.StatusUnauthorized:
		typ = "AUTH_KEY_UNREGISTERED"
	}
	return &platform.RPCError{
		Code:    resp.StatusCode,
		Type:    typ,
		Message: strings.TrimSpace(string(raw)),
	}
}

var _ platform.Client = (*Client)(nil)

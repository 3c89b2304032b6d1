package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/voiceaccess/internal/platform"
)

const maxFrameBytes = 1 << 20

// Listen subscribes to the bridge update stream and calls handle for every
// incoming message, in stream order. It returns when ctx is done (nil) or the
// stream fails.
func (c *Client) Listen(ctx context.Context, handle func(platform.Update)) error {
	header := http.Header{}
	c.authorize(header)

	conn, _, err := websocket.Dial(ctx, c.updatesURL(), &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: c.http,
	})
	if err != nil {
		return fmt.Errorf("dial updates: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(maxFrameBytes)

	c.log.Info().Msg("update stream connected")

	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
				return fmt.Errorf("update stream closed by bridge: %w", err)
			}
			return fmt.Errorf("read update: %w", err)
		}

		if env.Error != nil {
			return fmt.Errorf("update stream: %w", env.Error)
		}

		switch env.Type {
		case UpdateTypeMessage:
			var u platform.Update
			if err := json.Unmarshal(env.Data, &u); err != nil {
				c.log.Warn().Err(err).Msg("malformed message update")
				continue
			}
			handle(u)
		case UpdateTypePing:
		default:
			c.log.Debug().Str("type", env.Type).Msg("ignoring update")
		}
	}
}

func (c *Client) updatesURL() string {
	u := c.baseURL + "/v1/updates"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

var _ platform.UpdateSource = (*Client)(nil)

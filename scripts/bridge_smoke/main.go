// Command bridge_smoke checks a running bridge: it resolves the logged-in
// account, optionally inspects a channel and prints incoming messages until
// the timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/vovakirdan/voiceaccess/internal/log"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/platform/bridge"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bridge_smoke: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := pflag.String("addr", "http://127.0.0.1:8081", "bridge base URL")
	token := pflag.String("token", os.Getenv("VOICEACCESS_BRIDGE_TOKEN"), "bridge token")
	channelID := pflag.Int64("channel-id", 0, "channel to inspect")
	channelHash := pflag.Int64("channel-hash", 0, "access hash of --channel-id")
	timeout := pflag.Duration("timeout", 10*time.Second, "total timeout for the run")
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := log.New("warn", "console")
	client := bridge.New(bridge.Options{BaseURL: *addr, Token: *token, RequestTimeout: 5 * time.Second}, logger)

	self, err := client.Self(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as: id=%d name=%s\n", self.ID, self.DisplayName())

	if *channelID != 0 {
		info, err := client.GetFullChannel(ctx, platform.ChannelRef{ID: *channelID, AccessHash: *channelHash})
		if err != nil {
			return err
		}
		if info.Session == nil {
			fmt.Println("Channel has no active voice chat")
		} else {
			fmt.Printf("Active voice chat: id=%d\n", info.Session.ID)
		}
	}

	err = client.Listen(ctx, func(u platform.Update) {
		fmt.Printf("Received message: chat=%d id=%d outgoing=%t text=%q\n", u.ChatID, u.MessageID, u.Outgoing, u.Text)
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

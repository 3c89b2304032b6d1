package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/vovakirdan/voiceaccess/internal/invite"
	"github.com/vovakirdan/voiceaccess/internal/platform"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
)

const menuText = "🛠 Main menu:\n" +
	"0. 🔄 Back to menu\n" +
	"1. ➕ Add channel\n" +
	"2. 📋 List channels\n" +
	"3. 🗑 Delete channel\n" +
	"4. 🎯 Set default\n" +
	"5. 🔗 Generate link\n" +
	"6. 📩 Publish to default\n" +
	"7. 🚪 Exit\n" +
	"8. 🚨 Auto-unmute on/off\n" +
	"9. 🎛 Choose link type\n" +
	"Enter a digit (0–9):"

const (
	textBadMenuChoice   = "❌ Enter a digit from 0 to 9"
	textChooseType      = "🔐 Channel type:\n1. public\n2. private"
	textBadType         = "❌ Choose 1 or 2"
	textAskPublic       = "Enter: @username label"
	textBadPublic       = "❌ Format: @username label"
	textAskPrivate      = "Enter part of the channel title"
	textBadPrivate      = "❌ Enter part of the channel title"
	textNothingFound    = "❌ Nothing found."
	textNeedNumber      = "❌ Enter a number"
	textBadNumber       = "❌ No such number"
	textNoChannels      = "⚠️ No channels."
	textNoDefault       = "❌ No default channel selected"
	textBye             = "👋 Bye!"
	textWatchStarted    = "👀 Watching the default channel for live sessions…"
	textWatchRunning    = "⚠️ Auto-unmute is already running."
	textWatchStopped    = "🛑 Auto-unmute stopped."
	textWatchNotRunning = "⚠️ Auto-unmute is not running."
)

func numbered(items []string) string {
	return strings.Join(lo.Map(items, func(s string, i int) string {
		return fmt.Sprintf("%d. %s", i+1, s)
	}), "\n")
}

func formatChannels(r *registry.Registry) string {
	if r.Len() == 0 {
		return textNoChannels
	}
	def := r.DefaultLabel()
	return numbered(lo.Map(r.Labels(), func(label string, _ int) string {
		if label == def {
			return label + " (default)"
		}
		return label
	}))
}

func formatKinds() string {
	return numbered(lo.Map(invite.Kinds, func(k invite.Kind, _ int) string {
		return string(k)
	}))
}

func formatStatus(st supervisor.Status) string {
	if !st.Running {
		return "ℹ️ Auto-unmute: stopped"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ℹ️ Auto-unmute: %s", st.Phase)
	if st.Channel != "" {
		fmt.Fprintf(&b, "\nchannel: %s", st.Channel)
	}
	if st.SessionID != 0 {
		fmt.Fprintf(&b, "\nsession: %d", st.SessionID)
	}
	fmt.Fprintf(&b, "\nunmuted: %d", st.Corrections)
	if st.LastError != "" {
		fmt.Fprintf(&b, "\nlast error: %s", st.LastError)
	}
	return b.String()
}

func formatEvent(ev supervisor.Event) string {
	switch ev.Type {
	case supervisor.EventSessionFound:
		return fmt.Sprintf("🎉 Live session found in %s, unmuting participants…", ev.Label)
	case supervisor.EventSessionEnded:
		return fmt.Sprintf("ℹ️ Live session in %s ended, waiting for the next one…", ev.Label)
	}
	return ""
}

// describe turns an operation error into a user-facing reply.
func describe(err error) string {
	switch {
	case errors.Is(err, invite.ErrNoActiveSession):
		return "❌ No live session in this channel."
	case errors.Is(err, invite.ErrNoUsername):
		return "❌ The channel has no public username; use the speaker link."
	case errors.Is(err, platform.ErrAdminRequired):
		return "❌ The account must be an admin allowed to manage live sessions."
	case errors.Is(err, platform.ErrPublicChannelRequired):
		return "❌ The channel must be public to export this link."
	case errors.Is(err, platform.ErrNotFound):
		return "❌ Not found."
	case errors.Is(err, registry.ErrDuplicateLabel):
		return "❌ This label already exists. Delete it first."
	case errors.Is(err, registry.ErrNotFound):
		return "❌ This channel no longer exists."
	}
	return "❌ " + err.Error()
}

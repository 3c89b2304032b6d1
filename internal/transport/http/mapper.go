package http

import (
	"github.com/samber/lo"

	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/supervisor"
)

// ChannelDTO is a registered channel as exposed by the API.
type ChannelDTO struct {
	Label    string `json:"label"`
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Username string `json:"username,omitempty"`
	Default  bool   `json:"default"`
}

// ChannelsResponse lists the registry in insertion order.
type ChannelsResponse struct {
	Channels []ChannelDTO `json:"channels"`
	Default  string       `json:"default,omitempty"`
}

func toChannelsResponse(reg *registry.Registry) ChannelsResponse {
	def := reg.DefaultLabel()
	return ChannelsResponse{
		Channels: lo.Map(reg.Entries(), func(e registry.Entry, _ int) ChannelDTO {
			return ChannelDTO{
				Label:    e.Label,
				ID:       e.ID,
				Kind:     string(e.Kind),
				Username: e.Username,
				Default:  e.Label == def,
			}
		}),
		Default: def,
	}
}

func eventName(t supervisor.EventType) string {
	switch t {
	case supervisor.EventSessionFound:
		return "session_found"
	case supervisor.EventSessionEnded:
		return "session_ended"
	}
	return "unknown"
}

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds all bot configuration values.
type Config struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`

	Bridge   BridgeConfig   `mapstructure:"bridge" yaml:"bridge"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Links    LinksConfig    `mapstructure:"links" yaml:"links"`
	Dialogue DialogueConfig `mapstructure:"dialogue" yaml:"dialogue"`
	Admin    AdminConfig    `mapstructure:"admin" yaml:"admin"`
}

// BridgeConfig points at the platform bridge sidecar.
type BridgeConfig struct {
	URL            string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Token          string        `mapstructure:"token" yaml:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gte=0"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay" validate:"gte=100ms"`
}

// RegistryConfig selects where channels are stored.
type RegistryConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=file sqlite"`
	Path    string `mapstructure:"path" yaml:"path" validate:"required"`
}

// WatchConfig tunes the auto-unmute watch.
type WatchConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gte=1s"`
	PollErrorDelay   time.Duration `mapstructure:"poll_error_delay" yaml:"poll_error_delay" validate:"gte=1s"`
	Backoff          time.Duration `mapstructure:"backoff" yaml:"backoff" validate:"gte=1s"`
	ParticipantLimit int           `mapstructure:"participant_limit" yaml:"participant_limit" validate:"min=1,max=1000"`
}

// LinksConfig controls invite link generation.
type LinksConfig struct {
	DefaultKind     string        `mapstructure:"default_kind" yaml:"default_kind" validate:"oneof=speaker voicechat videochat livestream"`
	FallbackCommand []string      `mapstructure:"fallback_command" yaml:"fallback_command"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout" yaml:"fallback_timeout" validate:"gte=0"`
}

// DialogueConfig restricts who can drive the menu.
type DialogueConfig struct {
	AllowedChats []int64 `mapstructure:"allowed_chats" yaml:"allowed_chats"`
}

// AdminConfig configures the admin HTTP API. An empty Addr disables it.
type AdminConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	PasswordHash      string        `mapstructure:"password_hash" yaml:"password_hash" validate:"required_with=Addr"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"required_with=Addr"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" validate:"gte=1m"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LoginRateLimit    int           `mapstructure:"login_rate_limit" yaml:"login_rate_limit" validate:"gte=0"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",
		Bridge: BridgeConfig{
			URL:            "http://127.0.0.1:8081",
			ReconnectDelay: 5 * time.Second,
		},
		Registry: RegistryConfig{
			Backend: "file",
			Path:    "config.json",
		},
		Watch: WatchConfig{
			PollInterval:     15 * time.Second,
			PollErrorDelay:   10 * time.Second,
			Backoff:          30 * time.Second,
			ParticipantLimit: 200,
		},
		Links: LinksConfig{
			DefaultKind:     "speaker",
			FallbackTimeout: 60 * time.Second,
		},
		Admin: AdminConfig{
			TokenTTL:          24 * time.Hour,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			LoginRateLimit:    10,
		},
	}
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

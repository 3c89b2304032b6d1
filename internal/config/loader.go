package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "VOICEACCESS"
	envConfigDefaultPath = "VOICEACCESS_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
	dotEnvFile           = ".env"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"log-format":    "log_format",
	"bridge-url":    "bridge.url",
	"registry-path": "registry.path",
	"admin-addr":    "admin.addr",
}

// Load builds configuration from defaults, optional config file, env vars and
// flags, and returns the resolved path.
// Precedence: defaults < config file < .env / env vars < flags.
func Load(logger *zerolog.Logger, explicitPath string, flags *pflag.FlagSet) (Config, string, error) {
	cfg := Default()

	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) && logger != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, "", fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	v.SetDefault("bridge.url", cfg.Bridge.URL)
	v.SetDefault("bridge.token", cfg.Bridge.Token)
	v.SetDefault("bridge.request_timeout", cfg.Bridge.RequestTimeout)
	v.SetDefault("bridge.reconnect_delay", cfg.Bridge.ReconnectDelay)

	v.SetDefault("registry.backend", cfg.Registry.Backend)
	v.SetDefault("registry.path", cfg.Registry.Path)

	v.SetDefault("watch.poll_interval", cfg.Watch.PollInterval)
	v.SetDefault("watch.poll_error_delay", cfg.Watch.PollErrorDelay)
	v.SetDefault("watch.backoff", cfg.Watch.Backoff)
	v.SetDefault("watch.participant_limit", cfg.Watch.ParticipantLimit)

	v.SetDefault("links.default_kind", cfg.Links.DefaultKind)
	v.SetDefault("links.fallback_command", cfg.Links.FallbackCommand)
	v.SetDefault("links.fallback_timeout", cfg.Links.FallbackTimeout)

	v.SetDefault("dialogue.allowed_chats", cfg.Dialogue.AllowedChats)

	v.SetDefault("admin.addr", cfg.Admin.Addr)
	v.SetDefault("admin.password_hash", cfg.Admin.PasswordHash)
	v.SetDefault("admin.jwt_secret", cfg.Admin.JWTSecret)
	v.SetDefault("admin.token_ttl", cfg.Admin.TokenTTL)
	v.SetDefault("admin.read_header_timeout", cfg.Admin.ReadHeaderTimeout)
	v.SetDefault("admin.shutdown_timeout", cfg.Admin.ShutdownTimeout)
	v.SetDefault("admin.login_rate_limit", cfg.Admin.LoginRateLimit)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	req := require.New(t)
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(&logger, path, nil)
	req.NoError(err)
	req.Equal(path, resolved)
	def := Default()
	req.Equal(def.Bridge, cfg.Bridge)
	req.Equal(def.Registry, cfg.Registry)
	req.Equal(def.Watch, cfg.Watch)
	req.Equal(def.Links.DefaultKind, cfg.Links.DefaultKind)
	req.Equal(def.Admin.LoginRateLimit, cfg.Admin.LoginRateLimit)

	_, err = os.Stat(path)
	req.NoError(err, "default config must be written")

	again, _, err := Load(&logger, path, nil)
	req.NoError(err)
	req.Equal(cfg.Watch, again.Watch)
	req.Equal(cfg.Admin.TokenTTL, again.Admin.TokenTTL)
}

func TestFileEnvAndFlagPrecedence(t *testing.T) {
	req := require.New(t)
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
log_level: debug
bridge:
  url: http://bridge.local:9000
watch:
  backoff: 40s
  poll_interval: 5s
registry:
  backend: sqlite
  path: registry.db
`), 0o600))

	t.Setenv("VOICEACCESS_WATCH_BACKOFF", "45s")
	t.Setenv("VOICEACCESS_BRIDGE_TOKEN", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	req.NoError(flags.Parse([]string{"--log-level=warn"}))

	cfg, _, err := Load(&logger, path, flags)
	req.NoError(err)

	req.Equal("warn", cfg.LogLevel)
	req.Equal("http://bridge.local:9000", cfg.Bridge.URL)
	req.Equal("from-env", cfg.Bridge.Token)
	req.Equal(45*time.Second, cfg.Watch.Backoff)
	req.Equal(5*time.Second, cfg.Watch.PollInterval)
	req.Equal("sqlite", cfg.Registry.Backend)
	req.Equal(200, cfg.Watch.ParticipantLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Registry.Backend = "redis" }},
		{"bad link kind", func(c *Config) { c.Links.DefaultKind = "radio" }},
		{"missing bridge url", func(c *Config) { c.Bridge.URL = "" }},
		{"admin without secret", func(c *Config) { c.Admin.Addr = ":8080"; c.Admin.PasswordHash = "x" }},
		{"tiny poll interval", func(c *Config) { c.Watch.PollInterval = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, Default().Validate())
}

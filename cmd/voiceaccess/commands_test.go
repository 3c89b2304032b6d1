package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/voiceaccess/internal/auth"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/registry/file"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestChannelsCommandListsRegistry(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "config.json")

	logger := zerolog.Nop()
	reg := registry.New()
	require.NoError(t, reg.Add(registry.Entry{Label: "news", ID: 42, AccessHash: 1, Kind: registry.KindPublic, Username: "newsroom"}))
	require.NoError(t, reg.Add(registry.Entry{Label: "team", ID: 43, AccessHash: 2, Kind: registry.KindPrivate}))
	require.NoError(t, reg.SetDefault("team"))
	require.NoError(t, file.New(regPath, &logger).Save(context.Background(), reg))

	out, err := execute(t, "channels",
		"--config", filepath.Join(dir, "config.yaml"),
		"--registry-path", regPath,
	)
	require.NoError(t, err)
	require.Contains(t, out, "news")
	require.Contains(t, out, "@newsroom")
	require.Contains(t, out, "team")
	require.Less(t, strings.Index(out, "news"), strings.Index(out, "team"))
}

func TestChannelsCommandEmptyRegistry(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "channels",
		"--config", filepath.Join(dir, "config.yaml"),
		"--registry-path", filepath.Join(dir, "missing.json"),
	)
	require.NoError(t, err)
	require.Contains(t, out, "No channels registered.")
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "hash-password", "s3cret")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	require.NoError(t, auth.ComparePassword(hash, "s3cret"))

	_, err = execute(t, "hash-password")
	require.Error(t, err)
}

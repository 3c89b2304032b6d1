// Package file stores the registry as a JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/registry"
)

// Store is a registry.Storage backed by a single JSON file.
type Store struct {
	path string
	log  *zerolog.Logger
}

// New creates a file store at path. The file is created on first save.
func New(path string, logger *zerolog.Logger) *Store {
	l := logger.With().Str("component", "registry_file").Str("path", path).Logger()
	return &Store{path: path, log: &l}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the registry. A missing or corrupt file yields an empty registry.
func (s *Store) Load(context.Context) (*registry.Registry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return registry.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	r := registry.New()
	if err := json.Unmarshal(data, r); err != nil {
		s.log.Warn().Err(err).Msg("registry file is corrupt, starting empty")
		return registry.New(), nil
	}
	return r, nil
}

// Save replaces the file via write-to-temp, fsync and rename.
func (s *Store) Save(_ context.Context, r *registry.Registry) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

var _ registry.Storage = (*Store)(nil)

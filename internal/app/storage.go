package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/config"
	"github.com/vovakirdan/voiceaccess/internal/registry"
	"github.com/vovakirdan/voiceaccess/internal/registry/file"
	"github.com/vovakirdan/voiceaccess/internal/registry/sqlite"
)

const defaultSQLitePath = "registry.db"

// OpenStorage opens the registry backend selected by cfg. The returned close
// func is never nil.
func OpenStorage(cfg config.RegistryConfig, logger *zerolog.Logger) (registry.Storage, func() error, error) {
	switch cfg.Backend {
	case "", "file":
		return file.New(cfg.Path, logger), func() error { return nil }, nil
	case "sqlite":
		path := cfg.Path
		// The file default is a JSON document, never a database.
		if path == "" || path == config.Default().Registry.Path {
			path = defaultSQLitePath
		}
		st, err := sqlite.New(path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite registry: %w", err)
		}
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
}

// Package sqlite stores the registry document in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/registry"
)

// Schema creates the single-row document table.
const Schema = `
CREATE TABLE IF NOT EXISTS registry_document (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	body       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store implements registry.Storage for SQLite.
type Store struct {
	db  *sql.DB
	log *zerolog.Logger
}

// New opens the database at dbPath and applies Schema.
func New(dbPath string, logger *zerolog.Logger) (*Store, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	}, logger)
}

// NewWithSetup opens the database and runs setup before the first query.
func NewWithSetup(dbPath string, setup func(*sql.DB) error, logger *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; :memory: requires it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	l := logger.With().Str("component", "registry_sqlite").Logger()
	return &Store{db: db, log: &l}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the registry document. No row or an undecodable body yields an
// empty registry.
func (s *Store) Load(ctx context.Context) (*registry.Registry, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM registry_document WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select registry: %w", err)
	}

	r := registry.New()
	if err := json.Unmarshal([]byte(body), r); err != nil {
		s.log.Warn().Err(err).Msg("stored registry is corrupt, starting empty")
		return registry.New(), nil
	}
	return r, nil
}

// Save upserts the whole document in one statement.
func (s *Store) Save(ctx context.Context, r *registry.Registry) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	query := `
		INSERT INTO registry_document (id, body, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, string(body)); err != nil {
		return fmt.Errorf("upsert registry: %w", err)
	}
	return nil
}

var _ registry.Storage = (*Store)(nil)

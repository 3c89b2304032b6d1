package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/voiceaccess/internal/registry"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	logger := zerolog.Nop()
	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	}, &logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmptyDatabase(t *testing.T) {
	s := newMemStore(t)

	r, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Len() != 0 || r.DefaultLabel() != "" {
		t.Fatalf("expected empty registry, got %d entries default %q", r.Len(), r.DefaultLabel())
	}
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	first := registry.New()
	_ = first.Add(registry.Entry{Label: "one", ID: 1, AccessHash: 11})
	_ = first.Add(registry.Entry{Label: "two", ID: 2, AccessHash: 22})
	_ = first.SetDefault("two")
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := registry.New()
	_ = second.Add(registry.Entry{Label: "three", ID: 3, AccessHash: 33, Username: "three"})
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	labels := got.Labels()
	if len(labels) != 1 || labels[0] != "three" {
		t.Fatalf("expected [three], got %v", labels)
	}
	if got.DefaultLabel() != "" {
		t.Fatalf("expected no default, got %q", got.DefaultLabel())
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM registry_document`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single document row, got %d", rows)
	}
}

func TestCorruptBodyLoadsEmpty(t *testing.T) {
	s := newMemStore(t)
	if _, err := s.db.Exec(`INSERT INTO registry_document (id, body) VALUES (1, 'garbage')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d entries", r.Len())
	}
}

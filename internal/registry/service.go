package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Storage persists the registry document as a whole.
//
// Load returns an empty registry when nothing was saved yet or the saved
// payload is unreadable. Save replaces the stored document atomically.
type Storage interface {
	Load(ctx context.Context) (*Registry, error)
	Save(ctx context.Context, r *Registry) error
}

// Service serializes every load → mutate → save cycle so concurrent callers
// never overwrite each other's changes.
type Service struct {
	mu      sync.Mutex
	storage Storage
	log     *zerolog.Logger
}

// NewService creates a registry service on top of storage.
func NewService(storage Storage, logger *zerolog.Logger) *Service {
	l := logger.With().Str("component", "registry").Logger()
	return &Service{storage: storage, log: &l}
}

// Snapshot returns a private copy of the current registry.
func (s *Service) Snapshot(ctx context.Context) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return r, nil
}

// Default returns the default entry. ok is false when no default is set.
func (s *Service) Default(ctx context.Context) (entry Entry, ok bool, err error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok = r.Default()
	return entry, ok, nil
}

// Add registers a new entry.
func (s *Service) Add(ctx context.Context, e Entry) error {
	return s.update(ctx, func(r *Registry) error {
		return r.Add(e)
	})
}

// Remove deletes an entry, clearing the default if needed.
func (s *Service) Remove(ctx context.Context, label string) error {
	return s.update(ctx, func(r *Registry) error {
		return r.Remove(label)
	})
}

// SetDefault selects the default entry.
func (s *Service) SetDefault(ctx context.Context, label string) error {
	return s.update(ctx, func(r *Registry) error {
		return r.SetDefault(label)
	})
}

func (s *Service) update(ctx context.Context, mutate func(*Registry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if err := mutate(r); err != nil {
		return err
	}
	if err := s.storage.Save(ctx, r); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	s.log.Debug().Int("entries", r.Len()).Str("default", r.DefaultLabel()).Msg("registry saved")
	return nil
}

// MemoryStorage keeps the registry in process memory.
type MemoryStorage struct {
	mu  sync.Mutex
	doc *Registry
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{doc: New()}
}

func (m *MemoryStorage) Load(context.Context) (*Registry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), nil
}

func (m *MemoryStorage) Save(_ context.Context, r *Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = r.Clone()
	return nil
}

var _ Storage = (*MemoryStorage)(nil)

package authz

import (
	"errors"
	"sync/atomic"
)

// Store holds the active Config behind an atomic pointer. Readers take a
// snapshot with Load and keep using it for the length of one evaluation;
// Swap replaces the whole table set and bumps the version so callers can
// detect a reload boundary.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a Store seeded with cfg.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("authz: store requires an initial config")
	}
	s := &Store{}
	s.current.Store(cfg)
	return s, nil
}

// Load returns the active configuration snapshot.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Swap installs cfg as the active configuration. The incoming config gets
// the next version number regardless of what the loader stamped on it.
func (s *Store) Swap(cfg *Config) *Config {
	if cfg == nil {
		return s.current.Load()
	}
	prev := s.current.Load()
	next := *cfg
	next.version = prev.version + 1
	s.current.Store(&next)
	return &next
}

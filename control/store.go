// control/store.go
// Author: momentics <momentics@gmail.com>
//
// Store holds the active configuration snapshot and notifies listeners on change.

package control

import (
	"sync"
)

// Store is a thread-safe holder of the current *Config.
type Store struct {
	mu        sync.RWMutex
	config    *Config
	listeners []func(old, cur *Config)
}

// NewStore initializes a store with cfg (DefaultConfig when nil).
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{config: cfg.Clone()}
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// Update validates and installs cfg, then invokes every listener synchronously.
func (s *Store) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	old := s.config
	s.config = cfg.Clone()
	listeners := append([]func(old, cur *Config){}, s.listeners...)
	cur := s.config.Clone()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(old, cur)
	}
	return nil
}

// OnReload registers a listener called after every successful Update.
func (s *Store) OnReload(fn func(old, cur *Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

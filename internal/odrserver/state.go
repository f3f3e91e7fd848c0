package odrserver

import (
	"sync"
	"time"

	"github.com/r9s-ai/open-data-router/internal/keystore"
)

// state holds what a reload swaps while requests are served.
type state struct {
	mu        sync.RWMutex
	keys      *keystore.Store
	startedAt time.Time
}

func (s *state) Keys() *keystore.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys
}

func (s *state) SetKeys(k *keystore.Store) {
	s.mu.Lock()
	s.keys = k
	s.mu.Unlock()
}

func (s *state) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

package lifecycle

import (
	"context"
	"sync"

	"custodia/internal/ledger/models"
)

// InMemoryStore holds the single lifecycle state value.
type InMemoryStore struct {
	mu    sync.RWMutex
	state models.LifecycleState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{state: models.StateActive}
}

func (s *InMemoryStore) State(_ context.Context) (models.LifecycleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *InMemoryStore) SetState(_ context.Context, state models.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

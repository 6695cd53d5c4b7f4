package enforcement

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
)

// InMemoryStore is a map-backed FreezeStore.
type InMemoryStore struct {
	mu     sync.RWMutex
	flags  map[id.Address]bool
	frozen map[id.Address]id.Amount
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flags:  make(map[id.Address]bool),
		frozen: make(map[id.Address]id.Amount),
	}
}

func (s *InMemoryStore) IsFrozen(_ context.Context, account id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[account], nil
}

func (s *InMemoryStore) SetFrozen(_ context.Context, account id.Address, frozen bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[account] == frozen {
		return false, nil
	}
	if frozen {
		s.flags[account] = true
	} else {
		delete(s.flags, account)
	}
	return true, nil
}

func (s *InMemoryStore) FrozenAmount(_ context.Context, account id.Address) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen[account], nil
}

func (s *InMemoryStore) SetFrozenAmount(_ context.Context, account id.Address, amount id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount.IsZero() {
		delete(s.frozen, account)
		return nil
	}
	s.frozen[account] = amount
	return nil
}

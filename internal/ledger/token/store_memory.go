package token

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
)

type allowanceKey struct {
	owner   id.Address
	spender id.Address
}

// InMemoryStore is a map-backed AccountStore.
type InMemoryStore struct {
	mu         sync.RWMutex
	balances   map[id.Address]id.Amount
	allowances map[allowanceKey]id.Amount
	supply     id.Amount
	name       string
	symbol     string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		balances:   make(map[id.Address]id.Amount),
		allowances: make(map[allowanceKey]id.Amount),
	}
}

func (s *InMemoryStore) Balance(_ context.Context, account id.Address) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

func (s *InMemoryStore) SetBalance(_ context.Context, account id.Address, balance id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balance.IsZero() {
		delete(s.balances, account)
		return nil
	}
	s.balances[account] = balance
	return nil
}

func (s *InMemoryStore) TotalSupply(_ context.Context) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supply, nil
}

func (s *InMemoryStore) SetTotalSupply(_ context.Context, supply id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supply = supply
	return nil
}

func (s *InMemoryStore) Allowance(_ context.Context, owner, spender id.Address) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowances[allowanceKey{owner, spender}], nil
}

func (s *InMemoryStore) SetAllowance(_ context.Context, owner, spender id.Address, amount id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allowanceKey{owner, spender}
	if amount.IsZero() {
		delete(s.allowances, key)
		return nil
	}
	s.allowances[key] = amount
	return nil
}

func (s *InMemoryStore) Metadata(_ context.Context) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.symbol, nil
}

func (s *InMemoryStore) SetMetadata(_ context.Context, name, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.symbol = symbol
	return nil
}

package roles

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
)

// InMemoryStore is a map-backed RoleStore for tests and single-node runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[id.RoleID]map[id.Address]struct{}
	admins map[id.RoleID]id.RoleID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants: make(map[id.RoleID]map[id.Address]struct{}),
		admins: make(map[id.RoleID]id.RoleID),
	}
}

func (s *InMemoryStore) HasGrant(_ context.Context, role id.RoleID, account id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[role][account]
	return ok, nil
}

func (s *InMemoryStore) SetGrant(_ context.Context, role id.RoleID, account id.Address, granted bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.grants[role]
	if !ok {
		if !granted {
			return false, nil
		}
		members = make(map[id.Address]struct{})
		s.grants[role] = members
	}

	_, held := members[account]
	if granted == held {
		return false, nil
	}
	if granted {
		members[account] = struct{}{}
	} else {
		delete(members, account)
	}
	return true, nil
}

func (s *InMemoryStore) AdminOf(_ context.Context, role id.RoleID) (id.RoleID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[role]
	return admin, ok, nil
}

func (s *InMemoryStore) SetAdmin(_ context.Context, role, admin id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[role] = admin
	return nil
}

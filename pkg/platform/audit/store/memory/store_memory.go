package memory

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
	audit "custodia/pkg/platform/audit"
)

// InMemoryStore keeps audit events in memory, indexed by affected account.
// It backs single-process deployments and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	ordered []audit.Event
	byAddr  map[id.Address][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byAddr: make(map[id.Address][]int)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ordered = nil
	s.byAddr = make(map[id.Address][]int)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.ordered)
	s.ordered = append(s.ordered, event)
	for _, addr := range relatedAddresses(event) {
		s.byAddr[addr] = append(s.byAddr[addr], idx)
	}
	return nil
}

// ListByAccount returns every event touching the account, oldest first.
func (s *InMemoryStore) ListByAccount(_ context.Context, account id.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := s.byAddr[account]
	events := make([]audit.Event, 0, len(indices))
	for _, idx := range indices {
		events = append(events, s.ordered[idx])
	}
	return events, nil
}

// ListRecent returns the most recent N events across all accounts.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.ordered) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.ordered[start:]...), nil
}

// relatedAddresses lists the distinct non-zero addresses an event touches.
func relatedAddresses(event audit.Event) []id.Address {
	var addrs []id.Address
	seen := make(map[id.Address]bool, 3)
	for _, addr := range []id.Address{event.Actor, event.From, event.To} {
		if addr.IsZero() || seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	return addrs
}

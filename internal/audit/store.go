package audit

import (
	"context"
	"sort"
	"sync"

	id "persona-gateway/pkg/domain"
)

// Store persists audit events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account id.AccountID) ([]Event, error)
}

// InMemoryStore keeps events in memory. Tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, account id.AccountID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.Account == account {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

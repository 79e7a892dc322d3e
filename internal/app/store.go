package app

import (
	"context"
	"slices"
	"sync"
)

// Store is the persistence handle for the users and availability tables.
//
// UpdateUsers and UpdateAvailability hold an exclusive writer lock from the
// read through the write, so concurrent mutators never lose each other's
// changes. When fn returns an error nothing is written.
type Store interface {
	Users(ctx context.Context) ([]Identity, error)
	UpdateUsers(ctx context.Context, fn func([]Identity) ([]Identity, error)) error
	Availability(ctx context.Context) ([]AvailabilityRecord, error)
	UpdateAvailability(ctx context.Context, fn func([]AvailabilityRecord) ([]AvailabilityRecord, error)) error
	Close() error
}

// MemoryStore keeps both tables in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	users   []Identity
	records []AvailabilityRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Users(_ context.Context) ([]Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.users), nil
}

func (m *MemoryStore) UpdateUsers(_ context.Context, fn func([]Identity) ([]Identity, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(slices.Clone(m.users))
	if err != nil {
		return err
	}
	m.users = next
	return nil
}

func (m *MemoryStore) Availability(_ context.Context) ([]AvailabilityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

func (m *MemoryStore) UpdateAvailability(_ context.Context, fn func([]AvailabilityRecord) ([]AvailabilityRecord, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(slices.Clone(m.records))
	if err != nil {
		return err
	}
	m.records = next
	return nil
}

func (m *MemoryStore) Close() error { return nil }

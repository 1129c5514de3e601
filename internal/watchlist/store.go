package watchlist

import (
	"context"
	"sync"
)

// Store maps subscribers to the set of pod pubkeys they watch.
// Implementations must be safe for concurrent use: the watchdog reads
// the full list every cycle while bot commands add and remove entries.
type Store interface {
	// All returns every subscription, keyed by subscriber.
	All(ctx context.Context) (map[string][]string, error)
	// Get returns the pubkeys one subscriber watches.
	Get(ctx context.Context, subscriber string) ([]string, error)
	// Add registers a watch; false if it already existed.
	Add(ctx context.Context, subscriber, pubkey string) (bool, error)
	// Remove drops a watch; false if it did not exist.
	Remove(ctx context.Context, subscriber, pubkey string) (bool, error)
}

// MemoryStore is the in-process implementation used when Firebase is
// not configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	watches map[string][]string
}

// NewMemoryStore creates an empty in-memory watch-list.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watches: make(map[string][]string)}
}

func (m *MemoryStore) All(ctx context.Context) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.watches))
	for sub, keys := range m.watches {
		out[sub] = append([]string(nil), keys...)
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, subscriber string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.watches[subscriber]...), nil
}

func (m *MemoryStore) Add(ctx context.Context, subscriber, pubkey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.watches[subscriber] {
		if existing == pubkey {
			return false, nil
		}
	}
	m.watches[subscriber] = append(m.watches[subscriber], pubkey)
	return true, nil
}

func (m *MemoryStore) Remove(ctx context.Context, subscriber, pubkey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.watches[subscriber]
	for i, existing := range keys {
		if existing == pubkey {
			m.watches[subscriber] = append(keys[:i], keys[i+1:]...)
			if len(m.watches[subscriber]) == 0 {
				delete(m.watches, subscriber)
			}
			return true, nil
		}
	}
	return false, nil
}

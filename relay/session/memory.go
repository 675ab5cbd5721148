package session

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of issued ids between two full expiry sweeps.
const sweepEvery = 256

// MemoryStore keeps issued ids in process memory. Expired ids are dropped
// when looked up, and by a full sweep every sweepEvery issued ids.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	expires    map[string]time.Time
	created    int
	sweepEvery int
}

// NewMemoryStore creates a MemoryStore. A zero ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:        ttl,
		now:        time.Now,
		expires:    make(map[string]time.Time),
		sweepEvery: sweepEvery,
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context) (string, error) {
	id := newID()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.created++
	if m.created%m.sweepEvery == 0 {
		m.evict(now)
	}
	m.expires[id] = now.Add(m.ttl)

	return id, nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.expires[id]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.expires, id)
		return false, nil
	}
	return true, nil
}

// Len returns the number of ids that have not been evicted yet.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) evict(now time.Time) {
	for id, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, id)
		}
	}
}

// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/l-messias/ragrelay/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of transcripts
	mu sync.RWMutex

	// transcripts is keyed by transcript ID
	transcripts map[string]*storage.Transcript
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		transcripts: make(map[string]*storage.Transcript),
	}
}

// Put stores a transcript. Returns true if it was newly inserted.
func (s *Driver) Put(_ context.Context, t *storage.Transcript) (bool, error) {
	if t == nil {
		return false, storage.ErrNilTranscript
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[t.ID]; ok {
		return false, nil
	}

	stored := *t
	s.transcripts[t.ID] = &stored
	return true, nil
}

// Get retrieves a transcript by its ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := *t
	return &out, nil
}

// List returns all transcripts, oldest first.
func (s *Driver) List(_ context.Context) ([]*storage.Transcript, error) {
	return s.filter(func(*storage.Transcript) bool { return true }), nil
}

// ListByClient returns the transcripts of one client session, oldest first.
func (s *Driver) ListByClient(_ context.Context, clientID string) ([]*storage.Transcript, error) {
	return s.filter(func(t *storage.Transcript) bool { return t.ClientID == clientID }), nil
}

func (s *Driver) filter(keep func(*storage.Transcript) bool) []*storage.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Transcript, 0, len(s.transcripts))
	for _, t := range s.transcripts {
		if keep(t) {
			out := *t
			result = append(result, &out)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result
}

// Count returns the number of transcripts in the in-memory store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

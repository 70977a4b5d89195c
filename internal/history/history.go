// Package history records the files recent searches resolved to.
package history

import (
	"context"
	"sync"
	"time"
)

// DefaultLimit is the number of entries Recent returns when asked for none.
const DefaultLimit = 20

// Entry is one resolved search.
type Entry struct {
	Query  string    `json:"query"`
	FileID string    `json:"file_id"`
	Name   string    `json:"name"`
	Path   string    `json:"path"`
	URL    string    `json:"url"`
	Stage  string    `json:"stage,omitempty"`
	At     time.Time `json:"at"`
}

// Store persists entries.
type Store interface {
	Add(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// MemoryStore keeps the newest entries in a ring.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryStore{max: capacity}
}

func (m *MemoryStore) Add(_ context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.max; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

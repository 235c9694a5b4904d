// Package storage persists client-side state (token pair, identity, saved
// addresses, wishlist) as key/value entries.
//
// # Architecture boundaries
//
// A Store knows nothing about tokens or addresses. Callers encode values
// with a [Codec] and group writes that must land together into a single
// SetMany call.
//
// # What this package must NOT do
//
//   - Apply a SetMany partially. Either every entry is visible afterwards or
//     none is.
//   - Expire entries on its own. Lifetime is owned by the session manager.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Well-known keys.
const (
	KeyAccessToken    = "token"
	KeyRefreshToken   = "refreshToken"
	KeyUser           = "user"
	KeySavedAddresses = "savedAddresses"
	KeyWishlist       = "wishlist"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("storage: key not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage: store closed")
)

// Store is a small transactional key/value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetMany writes every entry atomically.
	SetMany(ctx context.Context, entries map[string][]byte) error
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Set writes a single entry.
func Set(ctx context.Context, s Store, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

// MemoryStore keeps entries in process memory. It is the default store and
// the analogue of a browser tab's storage.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	closed  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

func (m *MemoryStore) SetMany(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k, v := range entries {
		m.entries[k] = cloneBytes(v)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Keys lists stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

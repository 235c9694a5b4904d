package address

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/storefront/storage"
	"go.uber.org/zap"
)

// DefaultCapacity is how many pairs a Book keeps.
const DefaultCapacity = 5

// Prepend returns list with p at the head, truncated to capacity. list is
// not modified.
func Prepend(list []Pair, p Pair, capacity int) []Pair {
	if capacity <= 0 {
		return nil
	}
	n := len(list) + 1
	if n > capacity {
		n = capacity
	}
	out := make([]Pair, 0, n)
	out = append(out, p)
	for _, existing := range list {
		if len(out) == n {
			break
		}
		out = append(out, existing)
	}
	return out
}

// Book is the persisted list of recently used address pairs, most recent
// first.
type Book struct {
	store    storage.Store
	codec    storage.Codec
	capacity int
	logger   *zap.Logger

	mu sync.Mutex
}

// BookOption configures a Book.
type BookOption func(*Book)

func WithCodec(c storage.Codec) BookOption {
	return func(b *Book) { b.codec = c }
}

func WithCapacity(n int) BookOption {
	return func(b *Book) { b.capacity = n }
}

func WithLogger(l *zap.Logger) BookOption {
	return func(b *Book) { b.logger = l }
}

// NewBook returns a Book backed by store under storage.KeySavedAddresses.
func NewBook(store storage.Store, opts ...BookOption) *Book {
	b := &Book{
		store:    store,
		codec:    storage.JSON{},
		capacity: DefaultCapacity,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.capacity <= 0 || b.capacity > DefaultCapacity {
		b.capacity = DefaultCapacity
	}
	return b
}

// List returns the saved pairs, most recent first.
func (b *Book) List(ctx context.Context) ([]Pair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Latest returns the most recently saved pair.
func (b *Book) Latest(ctx context.Context) (Pair, bool, error) {
	list, err := b.List(ctx)
	if err != nil || len(list) == 0 {
		return Pair{}, false, err
	}
	return list[0], true, nil
}

// Add stores p.Effective() at the head, evicting the oldest pair when the
// book is full. It returns the new list.
func (b *Book) Add(ctx context.Context, p Pair) ([]Pair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		b.logger.Warn("discarding unreadable saved addresses", zap.Error(err))
		list = nil
	}
	list = Prepend(list, p.Effective(), b.capacity)

	raw, err := b.codec.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("address: encode: %w", err)
	}
	if err := storage.Set(ctx, b.store, storage.KeySavedAddresses, raw); err != nil {
		return nil, fmt.Errorf("address: save: %w", err)
	}
	return list, nil
}

// Clear removes every saved pair.
func (b *Book) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Delete(ctx, storage.KeySavedAddresses)
}

func (b *Book) load(ctx context.Context) ([]Pair, error) {
	raw, err := b.store.Get(ctx, storage.KeySavedAddresses)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("address: load: %w", err)
	}
	var list []Pair
	if err := b.codec.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("address: decode: %w", err)
	}
	if len(list) > b.capacity {
		list = list[:b.capacity]
	}
	return list, nil
}

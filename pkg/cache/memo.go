package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds the in-process read-through memo.
const DefaultMemoSize = 4096

// Memo fronts a Store with an in-process LRU. Because entries are never
// updated, a memoized hit can never go stale.
type Memo struct {
	inner Store
	lru   *lru.Cache[string, Entry]
}

// NewMemo wraps inner. A size of 0 uses DefaultMemoSize.
func NewMemo(inner Store, size int) (*Memo, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Memo{inner: inner, lru: c}, nil
}

// Get serves from the memo, falling back to the wrapped store.
func (m *Memo) Get(ctx context.Context, hash string) (Entry, bool, error) {
	if e, ok := m.lru.Get(hash); ok {
		return e, true, nil
	}
	e, ok, err := m.inner.Get(ctx, hash)
	if err != nil || !ok {
		return e, ok, err
	}
	m.lru.Add(hash, e)
	return e, true, nil
}

// Put writes through. Only the winning write is memoized; a losing
// writer reads the winner on its next Get.
func (m *Memo) Put(ctx context.Context, hash string, e Entry) (bool, error) {
	stored, err := m.inner.Put(ctx, hash, e)
	if err == nil && stored {
		m.lru.Add(hash, e)
	}
	return stored, err
}

// Close closes the wrapped store.
func (m *Memo) Close() error {
	m.lru.Purge()
	return m.inner.Close()
}

var _ Store = (*Memo)(nil)

package cache

import "context"

// NullStore is a no-op store that never remembers anything.
// Useful for testing or when caching should be disabled.
type NullStore struct{}

// NewNullStore creates a null store.
func NewNullStore() Store {
	return &NullStore{}
}

// Get always returns a miss.
func (NullStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, nil
}

// Put validates e and discards it.
func (NullStore) Put(_ context.Context, _ string, e Entry) (bool, error) {
	return false, e.Validate()
}

// Close does nothing.
func (NullStore) Close() error {
	return nil
}

// Ensure NullStore implements Store.
var _ Store = (*NullStore)(nil)

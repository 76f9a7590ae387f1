package store

import (
	"context"
	"sync"
)

// FakeStore is an in-memory Store for tests, with scriptable failures.
type FakeStore struct {
	mu     sync.Mutex
	values map[Key]string

	// GetError, if set, will be returned by Get.
	GetError error

	// SetError, if set, will be returned by Set and SetMany.
	SetError error

	// SetCalls counts Set and SetMany invocations.
	SetCalls int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{values: make(map[Key]string)}
}

// Get returns the stored value, if any.
func (f *FakeStore) Get(ctx context.Context, key Key) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetError != nil {
		return "", false, f.GetError
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// Set writes a single field.
func (f *FakeStore) Set(ctx context.Context, key Key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCalls++
	if f.SetError != nil {
		return f.SetError
	}
	f.values[key] = value
	return nil
}

// SetMany writes several fields of one user's record.
func (f *FakeStore) SetMany(ctx context.Context, userID string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCalls++
	if f.SetError != nil {
		return f.SetError
	}
	for field, value := range fields {
		f.values[Key{UserID: userID, Field: field}] = value
	}
	return nil
}

// Close marks the store as closed.
func (f *FakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Seed writes a value directly, bypassing scripted errors.
func (f *FakeStore) Seed(key Key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

// Value reads a value directly, bypassing scripted errors.
func (f *FakeStore) Value(key Key) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// Reset clears all state.
func (f *FakeStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[Key]string)
	f.GetError = nil
	f.SetError = nil
	f.SetCalls = 0
	f.Closed = false
}

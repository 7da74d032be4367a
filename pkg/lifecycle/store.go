package lifecycle

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/go-drift/driftx/pkg/errors"
)

// Store holds per-owner instances keyed by string. It outlives transient
// destruction and is cleared when its owner is destroyed permanently.
//
// Store is NOT thread-safe. It must only be accessed from the UI thread.
type Store struct {
	entries map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]any)}
}

// Get returns the instance stored under key.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Put stores v under key. A previous instance under the same key is
// disposed after being replaced.
func (s *Store) Put(key string, v any) error {
	old, ok := s.entries[key]
	s.entries[key] = v
	if ok && old != v {
		return dispose(key, old)
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored instances.
func (s *Store) Len() int {
	return len(s.entries)
}

// Clear removes every instance and disposes those implementing Disposable.
// All instances are removed even if some fail to dispose.
func (s *Store) Clear() error {
	keys := s.Keys()
	entries := s.entries
	s.entries = make(map[string]any)

	var errs []error
	for _, k := range keys {
		if err := dispose(k, entries[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func dispose(key string, v any) error {
	d, ok := v.(Disposable)
	if !ok {
		return nil
	}
	if err := d.Dispose(); err != nil {
		cleanup := &errors.CleanupError{Key: key, Instance: fmt.Sprintf("%T", v), Err: err}
		errors.Report(&errors.DriftError{
			Op:   "lifecycle.Store.Clear",
			Kind: errors.KindCleanup,
			Key:  key,
			Err:  cleanup,
		})
		return cleanup
	}
	return nil
}

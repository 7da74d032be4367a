package shared

import (
	"sync"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/lazy"
)

// Shared returns a handle that resolves T on first Value call. The owner
// and the key name are produced at that moment, not when the handle is
// created. A nil cache means Default(); a nil keyProducer means no name.
//
// The handle is NOT thread-safe. It must only be accessed from the UI thread.
func Shared[T any](c *Cache, ownerProducer func() Owner, keyProducer func() *string, factory func() T) *lazy.Unsafe[T] {
	if ownerProducer == nil {
		panic(&errors.ContractError{Op: "shared.Shared", Reason: "nil owner producer"})
	}
	return lazy.NewUnsafe(func() T {
		cache := c
		if cache == nil {
			cache = Default()
		}
		var name *string
		if keyProducer != nil {
			name = keyProducer()
		}
		return Get[T](cache, ownerProducer(), name, factory)
	})
}

var (
	defaultMu    sync.Mutex
	defaultCache = newDefault()
)

func newDefault() *lazy.Sync[*Cache] {
	return lazy.NewSync(func() *Cache { return New() })
}

// Default returns the process-wide cache, creating it on first use.
func Default() *Cache {
	defaultMu.Lock()
	l := defaultCache
	defaultMu.Unlock()
	return l.Value()
}

// ResetDefault closes the process-wide cache if it was created and arranges
// for the next Default call to create a fresh one.
func ResetDefault() error {
	defaultMu.Lock()
	old := defaultCache
	defaultCache = newDefault()
	defaultMu.Unlock()
	if !old.IsInitialized() {
		return nil
	}
	return old.Value().Close()
}

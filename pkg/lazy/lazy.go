// Package lazy provides deferred, once-computed values.
//
// Sync is safe for concurrent use. Unsafe performs no locking and must only
// be used from a single goroutine, typically the UI thread.
package lazy

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Lazy is a value computed on first access.
type Lazy[T any] interface {
	// Value returns the value, computing it on first call.
	Value() T
	// IsInitialized reports whether the value has been computed.
	IsInitialized() bool
}

// Sync is a Lazy guarded by a mutex. Only one goroutine runs the
// initializer; others block until it finishes. If the initializer panics the
// value stays uninitialized and the next call retries.
type Sync[T any] struct {
	init  func() T
	mu    sync.Mutex
	done  atomic.Bool
	value T
}

// NewSync returns a Sync lazy that computes its value with init.
func NewSync[T any](init func() T) *Sync[T] {
	if init == nil {
		panic("lazy: nil initializer")
	}
	return &Sync[T]{init: init}
}

// Value returns the value, computing it on first call.
func (l *Sync[T]) Value() T {
	if l.done.Load() {
		return l.value
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done.Load() {
		l.value = l.init()
		l.done.Store(true)
	}
	return l.value
}

// IsInitialized reports whether the value has been computed.
func (l *Sync[T]) IsInitialized() bool {
	return l.done.Load()
}

func (l *Sync[T]) String() string {
	if !l.IsInitialized() {
		return "Sync{value=(uninitialized)}"
	}
	return fmt.Sprintf("Sync{value=%v}", l.value)
}

// Unsafe is a Lazy without any synchronization.
//
// Unsafe is NOT thread-safe. It must only be accessed from the UI thread.
type Unsafe[T any] struct {
	init  func() T
	done  bool
	value T
}

// NewUnsafe returns an Unsafe lazy that computes its value with init.
func NewUnsafe[T any](init func() T) *Unsafe[T] {
	if init == nil {
		panic("lazy: nil initializer")
	}
	return &Unsafe[T]{init: init}
}

// Value returns the value, computing it on first call.
func (l *Unsafe[T]) Value() T {
	if !l.done {
		l.value = l.init()
		l.done = true
	}
	return l.value
}

// IsInitialized reports whether the value has been computed.
func (l *Unsafe[T]) IsInitialized() bool {
	return l.done
}

func (l *Unsafe[T]) String() string {
	if !l.done {
		return "Unsafe{value=(uninitialized)}"
	}
	return fmt.Sprintf("Unsafe{value=%v}", l.value)
}

// Of returns an already initialized Lazy holding v.
func Of[T any](v T) Lazy[T] {
	return &Unsafe[T]{done: true, value: v}
}

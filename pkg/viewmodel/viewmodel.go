// Package viewmodel provides per-owner view models backed by lifecycle.Store.
//
// Unlike package shared, a view model obtained here belongs to exactly one
// owner. Because lifecycle.Owner.Reconfigure hands its Store to the
// recreated owner, the view model survives reconfiguration and is disposed
// when the owner is destroyed permanently.
package viewmodel

import (
	"reflect"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/lazy"
	"github.com/go-drift/driftx/pkg/lifecycle"
	"github.com/go-drift/driftx/pkg/shared"
)

// Of returns a handle that loads T from the store produced by storeProducer
// on first Value call, creating it with factory when absent. Entries are
// keyed by T's qualified type name.
//
// The handle is NOT thread-safe. It must only be accessed from the UI thread.
func Of[T any](storeProducer func() *lifecycle.Store, factory func() T) *lazy.Unsafe[T] {
	if storeProducer == nil || factory == nil {
		panic(&errors.ContractError{Op: "viewmodel.Of", Reason: "nil store producer or factory"})
	}
	return lazy.NewUnsafe(func() T {
		return Get(storeProducer(), factory)
	})
}

// For is Of bound to an owner's store.
func For[T any](owner *lifecycle.Owner, factory func() T) *lazy.Unsafe[T] {
	return Of(owner.Store, factory)
}

// Get returns the T held by store, creating and storing it with factory
// when absent. It panics with *errors.TypeMismatchError when the store holds
// a value of another type under T's key.
func Get[T any](store *lifecycle.Store, factory func() T) T {
	want := reflect.TypeFor[T]()
	key := shared.TypeName(want)

	if v, ok := store.Get(key); ok {
		typed, ok := v.(T)
		if !ok {
			panic(&errors.TypeMismatchError{
				Key:      key,
				Expected: key,
				Actual:   shared.TypeName(reflect.TypeOf(v)),
			})
		}
		return typed
	}

	v := factory()
	// The key is new, so Put cannot dispose anything.
	_ = store.Put(key, v)
	return v
}

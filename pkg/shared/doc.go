// Package shared provides a cache of view models shared between owners.
//
// Several owners (screens, routes, dialogs) that resolve the same Key get
// the same instance. The cache counts one reference per resolution and
// registers a destroy handler on the resolving owner. When an owner is
// destroyed its reference is dropped:
//
//   - if references remain, the instance stays cached;
//   - if none remain and the destruction is permanent, the instance is
//     evicted and, when it implements lifecycle.Disposable, disposed once;
//   - if none remain and the destruction is transient (Owner.Reconfigure),
//     the instance stays cached so the recreated owner gets it back without
//     running the factory again.
//
// # Usage
//
//	cache := shared.New()
//	owner := lifecycle.New("checkout")
//	vm := shared.Get(cache, owner, nil, func() *CartModel { return NewCartModel() })
//
// A lazily evaluated handle resolves on first access:
//
//	cart := shared.Shared(cache, func() shared.Owner { return owner }, nil, NewCartModel)
//	cart.Value().AddItem(item)
//
// # Threading
//
// The cache is meant to be used from the UI thread. With WithLoop every call
// is checked against the loop goroutine and a call from anywhere else panics
// with *errors.ContractError. Without a loop the cache is guarded by a single
// non-re-entrant mutex: calling back into the cache from a factory panics
// instead of deadlocking.
//
// # Errors
//
// Programmer errors panic: a nil owner, a missing factory on a cold miss, a
// factory returning nil, a cached instance of the wrong type, releasing an
// owner that never attached. Dispose failures are returned wrapped in
// *errors.CleanupError and reported to errors.DefaultHandler; the entry is
// removed from the cache regardless.
package shared

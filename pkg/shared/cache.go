package shared

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/lifecycle"
	"github.com/go-drift/driftx/pkg/mainthread"
)

const tracerName = "github.com/go-drift/driftx/pkg/shared"

// Owner is a lifecycle-bound caller of the cache. OnDestroy must invoke the
// handler once, synchronously, when the owner is destroyed, passing whether
// the destruction is transient. Owners are compared with ==, so
// implementations should be pointer types. *lifecycle.Owner satisfies Owner.
type Owner interface {
	OnDestroy(handler lifecycle.DestroyHandler) (unregister func())
}

// destroyedReporter is implemented by owners that can tell whether they are
// already destroyed.
type destroyedReporter interface {
	IsDestroyed() bool
}

// attachment is one counted reference: one owner, one resolution.
type attachment struct {
	owner      Owner
	unregister func()
	done       bool
}

type entry struct {
	key         Key
	instance    any
	attachments []*attachment
}

func (e *entry) refs() int {
	return len(e.attachments)
}

func (e *entry) remove(att *attachment) {
	for i, a := range e.attachments {
		if a == att {
			e.attachments = append(e.attachments[:i], e.attachments[i+1:]...)
			return
		}
	}
}

// EntryInfo describes one cached instance.
type EntryInfo struct {
	Key      Key
	Instance string
	Refs     int
	Owners   int
}

// Cache maps keys to shared, reference-counted instances.
type Cache struct {
	mu      sync.Mutex
	holder  atomic.Int64
	entries map[Key]*entry
	closed  bool

	loop   *mainthread.Loop
	logger *zap.Logger
	tracer trace.Tracer
	report bool
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]*entry),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		report:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lock enforces thread affinity and rejects re-entrant calls before taking
// the mutex.
func (c *Cache) lock(op string, key Key) {
	if c.loop != nil {
		c.loop.CheckOnLoop(op)
	}
	gid := mainthread.GoID()
	if c.holder.Load() == gid {
		panic(c.violation(op, key, "re-entrant call into the cache (from a factory?)"))
	}
	c.mu.Lock()
	c.holder.Store(gid)
}

func (c *Cache) unlock() {
	c.holder.Store(0)
	c.mu.Unlock()
}

func (c *Cache) violation(op string, key Key, reason string) *errors.ContractError {
	err := &errors.ContractError{Op: op, Reason: reason}
	if key != (Key{}) {
		err.Key = key.String()
	}
	return err
}

// Resolve returns the instance cached under key, creating it with factory
// on a miss. Each call adds one reference held by owner and registers a
// destroy handler that drops it.
func (c *Cache) Resolve(owner Owner, key Key, factory func() any) any {
	return c.resolve("shared.Resolve", owner, key, factory, nil)
}

// Get resolves the instance for T under name. The key is KeyFor[T](name).
// It panics with *errors.TypeMismatchError if the cached instance is not a T.
func Get[T any](c *Cache, owner Owner, name *string, factory func() T) T {
	var f func() any
	if factory != nil {
		f = func() any { return factory() }
	}
	want := reflect.TypeFor[T]()
	return c.resolve("shared.Get", owner, KeyFor[T](name), f, want).(T)
}

func (c *Cache) resolve(op string, owner Owner, key Key, factory func() any, want reflect.Type) any {
	if owner == nil {
		panic(c.violation(op, key, "nil owner"))
	}
	if d, ok := owner.(destroyedReporter); ok && d.IsDestroyed() {
		panic(c.violation(op, key, "owner already destroyed"))
	}

	_, span := c.tracer.Start(context.Background(), "shared.Resolve",
		trace.WithAttributes(attribute.String("driftx.key", key.String())))
	defer span.End()

	c.lock(op, key)
	defer c.unlock()

	if c.closed {
		panic(c.violation(op, key, "cache closed"))
	}

	e, hit := c.entries[key]
	if hit {
		if want != nil && !reflect.TypeOf(e.instance).AssignableTo(want) {
			panic(&errors.TypeMismatchError{
				Key:      key.String(),
				Expected: TypeName(want),
				Actual:   TypeName(reflect.TypeOf(e.instance)),
			})
		}
	} else {
		if factory == nil {
			panic(c.violation(op, key, "no factory for a key that is not cached"))
		}
		instance := factory()
		if isNil(instance) {
			panic(c.violation(op, key, "factory returned nil"))
		}
		e = &entry{key: key, instance: instance}
	}

	// The handler is registered before a new entry is published, so a
	// panicking OnDestroy leaves nothing behind.
	att := &attachment{owner: owner}
	unregister := owner.OnDestroy(func(transient bool) error {
		return c.detach(e, att, transient)
	})
	if unregister == nil {
		unregister = func() {}
	}
	att.unregister = unregister
	e.attachments = append(e.attachments, att)
	if !hit {
		c.entries[key] = e
	}

	span.SetAttributes(
		attribute.Bool("driftx.hit", hit),
		attribute.Int("driftx.refs", e.refs()),
	)
	c.logger.Debug("added",
		zap.Stringer("key", key),
		zap.String("instance", fmt.Sprintf("%T", e.instance)),
		zap.Bool("hit", hit),
		zap.Int("refs", e.refs()),
	)
	return e.instance
}

// detach is the destroy handler registered by resolve.
func (c *Cache) detach(e *entry, att *attachment, transient bool) error {
	const op = "shared.detach"
	released, evicted := c.detachLocked(op, e, att, transient)
	if !released {
		return nil
	}
	return c.finishRelease(op, e, transient, evicted)
}

func (c *Cache) detachLocked(op string, e *entry, att *attachment, transient bool) (released, evicted bool) {
	c.lock(op, e.key)
	defer c.unlock()
	if att.done {
		return false, false
	}
	return true, c.releaseLocked(e, att, transient)
}

// Release drops one reference held by owner under key, as if owner had
// been destroyed with the given transient flag. It panics with
// *errors.ContractError if owner holds no reference under key.
func (c *Cache) Release(owner Owner, key Key, transient bool) error {
	const op = "shared.Release"
	e, att, evicted := c.releaseOwner(op, owner, key, transient)

	// Owner callbacks run without the lock held. The attachment is already
	// done, so a handler firing before unregister is a no-op.
	defer att.unregister()
	return c.finishRelease(op, e, transient, evicted)
}

func (c *Cache) releaseOwner(op string, owner Owner, key Key, transient bool) (*entry, *attachment, bool) {
	c.lock(op, key)
	defer c.unlock()

	e, ok := c.entries[key]
	if ok {
		for _, a := range e.attachments {
			if a.owner == owner {
				return e, a, c.releaseLocked(e, a, transient)
			}
		}
	}
	panic(c.violation(op, key, "owner holds no reference"))
}

// releaseLocked drops att and reports whether the entry was evicted.
func (c *Cache) releaseLocked(e *entry, att *attachment, transient bool) bool {
	att.done = true
	e.remove(att)
	if e.refs() > 0 || transient {
		return false
	}
	if c.entries[e.key] == e {
		delete(c.entries, e.key)
	}
	return true
}

func (c *Cache) finishRelease(op string, e *entry, transient, evicted bool) error {
	_, span := c.tracer.Start(context.Background(), "shared.Release",
		trace.WithAttributes(
			attribute.String("driftx.key", e.key.String()),
			attribute.Bool("driftx.transient", transient),
			attribute.Bool("driftx.evicted", evicted),
		))
	defer span.End()

	c.logger.Debug("released",
		zap.Stringer("key", e.key),
		zap.Bool("transient", transient),
		zap.Bool("evicted", evicted),
	)
	if !evicted {
		return nil
	}
	err := c.dispose(op, e)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// dispose runs the instance's Dispose hook. The entry must already be
// removed from the map.
func (c *Cache) dispose(op string, e *entry) error {
	c.logger.Debug("evicted", zap.Stringer("key", e.key))

	d, ok := e.instance.(lifecycle.Disposable)
	if !ok {
		return nil
	}
	if err := d.Dispose(); err != nil {
		cleanup := &errors.CleanupError{
			Key:      e.key.String(),
			Instance: fmt.Sprintf("%T", e.instance),
			Err:      err,
		}
		c.logger.Error("dispose failed", zap.Stringer("key", e.key), zap.Error(err))
		if c.report {
			errors.Report(&errors.DriftError{
				Op:   op,
				Kind: errors.KindCleanup,
				Key:  e.key.String(),
				Err:  cleanup,
			})
		}
		return cleanup
	}
	return nil
}

// RefCount returns the number of references held under key.
func (c *Cache) RefCount(key Key) int {
	c.lock("shared.RefCount", key)
	defer c.unlock()
	if e, ok := c.entries[key]; ok {
		return e.refs()
	}
	return 0
}

// Contains reports whether an instance is cached under key, including
// instances retained with zero references after a transient destruction.
func (c *Cache) Contains(key Key) bool {
	c.lock("shared.Contains", key)
	defer c.unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached instances.
func (c *Cache) Len() int {
	c.lock("shared.Len", Key{})
	defer c.unlock()
	return len(c.entries)
}

// Snapshot returns one row per cached instance, ordered by key.
func (c *Cache) Snapshot() []EntryInfo {
	c.lock("shared.Snapshot", Key{})
	defer c.unlock()

	rows := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		owners := make(map[Owner]struct{}, len(e.attachments))
		for _, a := range e.attachments {
			owners[a.owner] = struct{}{}
		}
		rows = append(rows, EntryInfo{
			Key:      e.key,
			Instance: fmt.Sprintf("%T", e.instance),
			Refs:     e.refs(),
			Owners:   len(owners),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key.String() < rows[j].Key.String()
	})
	return rows
}

// Trim evicts and disposes instances that are retained with no references,
// which happens when a transiently destroyed owner is never recreated.
func (c *Cache) Trim() error {
	const op = "shared.Trim"
	return c.disposeAll(op, c.takeIdle(op))
}

func (c *Cache) takeIdle(op string) []*entry {
	c.lock(op, Key{})
	defer c.unlock()
	var idle []*entry
	for k, e := range c.entries {
		if e.refs() == 0 {
			idle = append(idle, e)
			delete(c.entries, k)
		}
	}
	return idle
}

// Close evicts and disposes every instance and unregisters all destroy
// handlers. Further use of the cache panics. Calling Close twice is a no-op.
func (c *Cache) Close() error {
	const op = "shared.Close"
	all, detached := c.closeLocked(op)
	defer func() {
		for _, a := range detached {
			a.unregister()
		}
	}()
	return c.disposeAll(op, all)
}

func (c *Cache) closeLocked(op string) ([]*entry, []*attachment) {
	c.lock(op, Key{})
	defer c.unlock()
	if c.closed {
		return nil, nil
	}
	c.closed = true
	all := make([]*entry, 0, len(c.entries))
	var detached []*attachment
	for _, e := range c.entries {
		for _, a := range e.attachments {
			a.done = true
			detached = append(detached, a)
		}
		e.attachments = nil
		all = append(all, e)
	}
	c.entries = make(map[Key]*entry)
	return all, detached
}

func (c *Cache) disposeAll(op string, entries []*entry) error {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key.String() < entries[j].key.String()
	})
	var errs []error
	for _, e := range entries {
		if err := c.dispose(op, e); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

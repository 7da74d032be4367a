// Package mainthread confines work to a single UI-affinity goroutine.
//
// A Loop owns one goroutine (the one that calls Run) and executes posted
// callbacks on it in FIFO order. Components whose state must never be
// touched concurrently, such as the shared view-model cache, check OnLoop
// before mutating and treat any other goroutine as a contract violation.
package mainthread

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-drift/driftx/pkg/errors"
)

var (
	// ErrStopped is returned when work is submitted to a stopped loop.
	ErrStopped = stderrors.New("mainthread: loop stopped")
	// ErrNotRunning is returned by Call when no goroutine is running the loop.
	ErrNotRunning = stderrors.New("mainthread: loop not running")
	// ErrRunning is returned by Run when the loop is already running.
	ErrRunning = stderrors.New("mainthread: loop already running")
)

// DefaultQueueSize is the task buffer used when NewLoop receives size <= 0.
const DefaultQueueSize = 64

// Loop is a single-goroutine task queue.
type Loop struct {
	tasks      chan func()
	stop       chan struct{}
	stopOnce   sync.Once
	finished   chan struct{}
	finishOnce sync.Once
	running    atomic.Bool
	gid        atomic.Int64
}

// NewLoop creates a loop with a task buffer of the given size.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		tasks:    make(chan func(), size),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run binds the loop to the calling goroutine and executes tasks until ctx
// is done or Stop is called. Panics raised by posted tasks are recovered and
// reported; panics raised by Call tasks are re-raised in the caller.
//
// When Run returns the loop is stopped: queued tasks are dropped, pending
// Calls return ErrStopped and the loop cannot be run again.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	l.gid.Store(GoID())
	defer func() {
		l.Stop()
		l.gid.Store(0)
		l.running.Store(false)
		l.finishOnce.Do(func() { close(l.finished) })
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer errors.Recover("mainthread.Loop")
	fn()
}

// Post schedules fn to run on the loop goroutine.
// Returns false if fn is nil or the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-l.stop:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stop:
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to return.
// When already on the loop goroutine fn runs inline.
func (l *Loop) Call(fn func()) error {
	if fn == nil {
		return nil
	}
	if l.OnLoop() {
		fn()
		return nil
	}
	if !l.running.Load() {
		return ErrNotRunning
	}

	done := make(chan any, 1)
	ok := l.Post(func() {
		defer func() {
			done <- recover()
		}()
		fn()
	})
	if !ok {
		return ErrStopped
	}

	var r any
	select {
	case r = <-done:
	case <-l.finished:
		// The task may have finished just before Run returned.
		select {
		case r = <-done:
		default:
			return ErrStopped
		}
	}
	if r != nil {
		panic(r)
	}
	return nil
}

// OnLoop reports whether the calling goroutine is the one running the loop.
func (l *Loop) OnLoop() bool {
	gid := l.gid.Load()
	return gid != 0 && gid == GoID()
}

// Running reports whether a goroutine is currently running the loop.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Stop makes Run return and rejects further work. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// CheckOnLoop panics with a ContractError unless called on the loop goroutine.
func (l *Loop) CheckOnLoop(op string) {
	if !l.OnLoop() {
		panic(&errors.ContractError{
			Op:     op,
			Reason: fmt.Sprintf("must be called on the UI thread (goroutine %d)", l.gid.Load()),
		})
	}
}

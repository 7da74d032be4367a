package mainthread

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Dispatcher schedules callback on the UI thread and reports whether it was
// accepted. Loop.Post is a Dispatcher.
type Dispatcher func(callback func()) bool

var (
	dispatchMu sync.RWMutex
	dispatcher Dispatcher
)

// SetDispatcher installs d as the process-wide UI dispatcher and returns a
// func that restores the previous one. A nil d uninstalls.
func SetDispatcher(d Dispatcher) (restore func()) {
	dispatchMu.Lock()
	prev := dispatcher
	dispatcher = d
	dispatchMu.Unlock()
	return func() {
		dispatchMu.Lock()
		dispatcher = prev
		dispatchMu.Unlock()
	}
}

// Install makes l the process-wide UI dispatcher until restore is called.
func (l *Loop) Install() (restore func()) {
	return SetDispatcher(l.Post)
}

// Dispatch hands callback to the installed dispatcher. It returns false when
// no dispatcher is installed, callback is nil, or the dispatcher rejects it
// (for example because its loop has stopped).
func Dispatch(callback func()) bool {
	dispatchMu.RLock()
	d := dispatcher
	dispatchMu.RUnlock()
	if d == nil || callback == nil {
		return false
	}
	return d(callback)
}

var goroutinePrefix = []byte("goroutine ")

// GoID returns the id of the calling goroutine, parsed from the header line
// of runtime.Stack ("goroutine 18 [running]:"). Returns 0 if parsing fails.
func GoID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

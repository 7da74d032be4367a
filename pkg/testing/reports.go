package testing

import (
	"sync"
	"testing"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/lifecycle"
)

// ReportRecorder is an errors.ErrorHandler that keeps every report.
type ReportRecorder struct {
	mu     sync.Mutex
	errs   []*errors.DriftError
	panics []*errors.PanicError
}

// RecordReports installs a recorder as errors.DefaultHandler until the test
// ends.
func RecordReports(t testing.TB) *ReportRecorder {
	r := &ReportRecorder{}
	old := errors.DefaultHandler
	errors.SetHandler(r)
	t.Cleanup(func() { errors.SetHandler(old) })
	return r
}

// HandleError implements errors.ErrorHandler.
func (r *ReportRecorder) HandleError(err *errors.DriftError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// HandlePanic implements errors.ErrorHandler.
func (r *ReportRecorder) HandlePanic(err *errors.PanicError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, err)
}

// Errors returns the recorded errors.
func (r *ReportRecorder) Errors() []*errors.DriftError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*errors.DriftError, len(r.errs))
	copy(out, r.errs)
	return out
}

// Panics returns the recorded panics.
func (r *ReportRecorder) Panics() []*errors.PanicError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*errors.PanicError, len(r.panics))
	copy(out, r.panics)
	return out
}

// FakeOwner is a bare shared.Owner that fires its destroy handlers on demand.
type FakeOwner struct {
	Name     string
	handlers []lifecycle.DestroyHandler
}

// OnDestroy records handler until Fire is called.
func (o *FakeOwner) OnDestroy(handler lifecycle.DestroyHandler) func() {
	index := len(o.handlers)
	o.handlers = append(o.handlers, handler)
	return func() {
		if index < len(o.handlers) {
			o.handlers[index] = nil
		}
	}
}

// Handlers returns the number of registered, not yet removed handlers.
func (o *FakeOwner) Handlers() int {
	n := 0
	for _, h := range o.handlers {
		if h != nil {
			n++
		}
	}
	return n
}

// Fire calls every registered handler once with transient and forgets them.
// It returns the first handler error.
func (o *FakeOwner) Fire(transient bool) error {
	handlers := o.handlers
	o.handlers = nil
	var first error
	for _, h := range handlers {
		if h == nil {
			continue
		}
		if err := h(transient); err != nil && first == nil {
			first = err
		}
	}
	return first
}

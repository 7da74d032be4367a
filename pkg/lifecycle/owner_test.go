package lifecycle

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/go-drift/driftx/pkg/errors"
)

type discardHandler struct{ errs []*errors.DriftError }

func (h *discardHandler) HandleError(err *errors.DriftError) { h.errs = append(h.errs, err) }
func (h *discardHandler) HandlePanic(*errors.PanicError)     {}

func captureReports(t *testing.T) *discardHandler {
	t.Helper()
	h := &discardHandler{}
	old := errors.DefaultHandler
	errors.SetHandler(h)
	t.Cleanup(func() { errors.SetHandler(old) })
	return h
}

func record(o *Owner) *[]string {
	var events []string
	o.AddObserver(func(_ *Owner, e Event) error {
		events = append(events, e.String())
		return nil
	})
	return &events
}

func TestOwner_WalksStates(t *testing.T) {
	o := New("main")
	events := record(o)

	if o.State() != StateInitialized {
		t.Fatalf("State() = %q, want initialized", o.State())
	}
	if err := o.Resume(); err != nil {
		t.Fatal(err)
	}
	if o.State() != StateResumed {
		t.Errorf("State() = %q, want resumed", o.State())
	}
	if err := o.Destroy(); err != nil {
		t.Fatal(err)
	}

	want := []string{"create", "start", "resume", "pause", "stop", "destroy"}
	if !reflect.DeepEqual(*events, want) {
		t.Errorf("events = %v, want %v", *events, want)
	}
	if !o.IsDestroyed() {
		t.Error("expected destroyed")
	}
}

func TestOwner_DestroyTwiceIsNoop(t *testing.T) {
	o := New("main")
	calls := 0
	o.OnDestroy(func(bool) error {
		calls++
		return nil
	})
	_ = o.Destroy()
	_ = o.Destroy()
	if calls != 1 {
		t.Errorf("destroy handler called %d times, want 1", calls)
	}
}

func TestOwner_DestroyObserversReverseOrder(t *testing.T) {
	o := New("main")
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		o.OnDestroy(func(bool) error {
			order = append(order, i)
			return nil
		})
	}
	_ = o.Destroy()
	if !reflect.DeepEqual(order, []int{2, 1, 0}) {
		t.Errorf("order = %v, want [2 1 0]", order)
	}
}

func TestOwner_TransientFlagReadAtEvent(t *testing.T) {
	o := New("main")
	_ = o.Resume()

	var got []bool
	o.OnDestroy(func(transient bool) error {
		got = append(got, transient)
		return nil
	})
	if o.IsChangingConfigurations() {
		t.Fatal("flag must be false before reconfiguration")
	}

	next, err := o.Reconfigure()
	if err != nil {
		t.Fatal(err)
	}
	if o.IsChangingConfigurations() {
		t.Error("flag must be reset after dispatch")
	}

	next.OnDestroy(func(transient bool) error {
		got = append(got, transient)
		return nil
	})
	_ = next.Destroy()

	if !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("transient flags = %v, want [true false]", got)
	}
}

func TestOwner_ReconfigureKeepsStoreAndState(t *testing.T) {
	o := New("detail")
	_ = o.Start()
	_ = o.Store().Put("vm", "value")

	next, err := o.Reconfigure()
	if err != nil {
		t.Fatal(err)
	}
	if next == o {
		t.Fatal("Reconfigure must return a new owner")
	}
	if next.Name() != "detail" {
		t.Errorf("Name() = %q", next.Name())
	}
	if next.State() != StateStarted {
		t.Errorf("State() = %q, want started", next.State())
	}
	if next.Store() != o.Store() {
		t.Error("store must survive reconfiguration")
	}
	if v, ok := next.Store().Get("vm"); !ok || v != "value" {
		t.Errorf("store entry = %v, %v", v, ok)
	}
	if !o.IsDestroyed() {
		t.Error("old owner must be destroyed")
	}
}

func TestOwner_DestroyClearsStore(t *testing.T) {
	o := New("main")
	d := &disposable{}
	_ = o.Store().Put("vm", d)
	if err := o.Destroy(); err != nil {
		t.Fatal(err)
	}
	if d.calls != 1 {
		t.Errorf("Dispose called %d times, want 1", d.calls)
	}
	if o.Store().Len() != 0 {
		t.Error("store should be empty")
	}
}

func TestOwner_ObserverErrorsJoinedAndReported(t *testing.T) {
	h := captureReports(t)
	o := New("main")
	errA := stderrors.New("a")
	errB := stderrors.New("b")
	o.OnDestroy(func(bool) error { return errA })
	o.OnDestroy(func(bool) error { return errB })

	err := o.Destroy()
	if !stderrors.Is(err, errA) || !stderrors.Is(err, errB) {
		t.Errorf("Destroy() = %v, want both errors", err)
	}
	if len(h.errs) != 2 {
		t.Fatalf("reported %d errors, want 2", len(h.errs))
	}
	if h.errs[0].Kind != errors.KindLifecycle || h.errs[0].Op != "lifecycle.destroy" {
		t.Errorf("unexpected report %+v", h.errs[0])
	}
}

func TestOwner_CleanupErrorsNotReportedTwice(t *testing.T) {
	h := captureReports(t)
	o := New("main")
	cleanup := &errors.CleanupError{Key: "VM:x", Instance: "*vm", Err: stderrors.New("stuck")}
	o.OnDestroy(func(bool) error { return cleanup })

	err := o.Destroy()
	var got *errors.CleanupError
	if !stderrors.As(err, &got) || got != cleanup {
		t.Errorf("Destroy() = %v, want the cleanup error", err)
	}
	if len(h.errs) != 0 {
		t.Errorf("reported %d errors, want 0: %v", len(h.errs), h.errs)
	}
}

func TestOwner_UnregisterObserver(t *testing.T) {
	o := New("main")
	called := false
	remove := o.OnDestroy(func(bool) error {
		called = true
		return nil
	})
	remove()
	_ = o.Destroy()
	if called {
		t.Error("removed handler must not be called")
	}
	remove()
}

func TestOwner_RegisterAfterDestroy(t *testing.T) {
	o := New("main")
	_ = o.Destroy()
	called := false
	o.OnDestroy(func(bool) error {
		called = true
		return nil
	})
	if called {
		t.Error("handler on destroyed owner must not run")
	}
}

func TestOwner_ContractViolations(t *testing.T) {
	tests := map[string]func(o *Owner){
		"resume after destroy":      func(o *Owner) { _ = o.Resume() },
		"reconfigure after destroy": func(o *Owner) { _, _ = o.Reconfigure() },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			o := New("main")
			_ = o.Destroy()
			defer func() {
				if _, ok := recover().(*errors.ContractError); !ok {
					t.Error("expected *errors.ContractError panic")
				}
			}()
			fn(o)
		})
	}
}

func TestEventString(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{EventCreate, "create"},
		{EventStart, "start"},
		{EventResume, "resume"},
		{EventPause, "pause"},
		{EventStop, "stop"},
		{EventDestroy, "destroy"},
		{Event(42), "Event(42)"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("Event(%d).String() = %q, want %q", tt.e, got, tt.want)
		}
	}
}

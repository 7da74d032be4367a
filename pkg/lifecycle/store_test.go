package lifecycle

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/go-drift/driftx/pkg/errors"
)

type disposable struct {
	calls int
	err   error
}

func (d *disposable) Dispose() error {
	d.calls++
	return d.err
}

func TestStore_PutReplacesAndDisposes(t *testing.T) {
	s := NewStore()
	first := &disposable{}
	second := &disposable{}

	if err := s.Put("vm", first); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("vm", first); err != nil {
		t.Fatal(err)
	}
	if first.calls != 0 {
		t.Fatal("re-putting the same instance must not dispose it")
	}
	if err := s.Put("vm", second); err != nil {
		t.Fatal(err)
	}
	if first.calls != 1 {
		t.Errorf("replaced instance disposed %d times, want 1", first.calls)
	}
	if v, _ := s.Get("vm"); v != second {
		t.Error("Get should return the replacement")
	}
}

func TestStore_KeysSorted(t *testing.T) {
	s := NewStore()
	for _, k := range []string{"b", "c", "a"} {
		_ = s.Put(k, k)
	}
	if got := s.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestStore_ClearRemovesAllEvenOnFailure(t *testing.T) {
	h := captureReports(t)
	s := NewStore()
	bad := &disposable{err: stderrors.New("stuck")}
	good := &disposable{}
	_ = s.Put("bad", bad)
	_ = s.Put("good", good)
	_ = s.Put("plain", 7)

	err := s.Clear()

	var cleanup *errors.CleanupError
	if !stderrors.As(err, &cleanup) {
		t.Fatalf("Clear() = %v, want CleanupError", err)
	}
	if cleanup.Key != "bad" || cleanup.Instance != "*lifecycle.disposable" {
		t.Errorf("unexpected cleanup error %+v", cleanup)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if good.calls != 1 || bad.calls != 1 {
		t.Errorf("dispose calls good=%d bad=%d, want 1 each", good.calls, bad.calls)
	}
	if len(h.errs) != 1 || h.errs[0].Kind != errors.KindCleanup {
		t.Errorf("reports = %+v", h.errs)
	}
}

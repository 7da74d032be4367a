package viewmodel

import (
	"testing"

	"github.com/go-drift/driftx/pkg/errors"
	"github.com/go-drift/driftx/pkg/lifecycle"
	drifttest "github.com/go-drift/driftx/pkg/testing"
)

func TestFor_SurvivesReconfigure(t *testing.T) {
	tester := drifttest.NewOwnerTesterWithT(t)
	f := drifttest.NewFactory()

	owner := tester.Open("detail")
	vm := For(owner, f.New)
	if vm.IsInitialized() {
		t.Fatal("handle should be lazy")
	}
	first := vm.Value()

	next := tester.Reconfigure("detail")
	again := For(next, f.New).Value()
	if again != first {
		t.Error("view model should survive reconfiguration")
	}
	if f.Calls() != 1 {
		t.Errorf("factory calls = %d, want 1", f.Calls())
	}
	if first.Disposed != 0 {
		t.Error("transient destroy must not dispose the view model")
	}

	if err := tester.Destroy("detail"); err != nil {
		t.Fatal(err)
	}
	if first.Disposed != 1 {
		t.Errorf("Disposed = %d, want 1", first.Disposed)
	}
}

func TestFor_OwnersAreIsolated(t *testing.T) {
	tester := drifttest.NewOwnerTesterWithT(t)
	f := drifttest.NewFactory()

	a := For(tester.Open("a"), f.New).Value()
	b := For(tester.Open("b"), f.New).Value()
	if a == b {
		t.Error("different owners must get different view models")
	}
}

func TestOf_CustomStoreProducer(t *testing.T) {
	store := lifecycle.NewStore()
	calls := 0
	vm := Of(func() *lifecycle.Store {
		calls++
		return store
	}, func() string { return "state" })

	if calls != 0 {
		t.Fatal("store producer must not run before Value")
	}
	if vm.Value() != "state" || vm.Value() != "state" {
		t.Error("unexpected value")
	}
	if calls != 1 {
		t.Errorf("store producer calls = %d, want 1", calls)
	}
	if got := store.Keys(); len(got) != 1 || got[0] != "string" {
		t.Errorf("Keys() = %v", got)
	}
}

func TestGet_TypeMismatch(t *testing.T) {
	store := lifecycle.NewStore()
	_ = store.Put("*github.com/go-drift/driftx/pkg/testing.Model", 42)

	defer func() {
		if _, ok := recover().(*errors.TypeMismatchError); !ok {
			t.Error("expected *errors.TypeMismatchError panic")
		}
	}()
	Get(store, drifttest.NewFactory().New)
}

func TestOf_NilArgumentsPanic(t *testing.T) {
	defer func() {
		if _, ok := recover().(*errors.ContractError); !ok {
			t.Error("expected *errors.ContractError panic")
		}
	}()
	Of[int](nil, nil)
}

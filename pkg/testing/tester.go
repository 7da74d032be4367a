package testing

import (
	"fmt"
	"sort"
	"testing"

	"github.com/go-drift/driftx/pkg/lifecycle"
)

// OwnerTester opens, reconfigures and destroys named lifecycle owners.
// It is NOT thread-safe; drive it from the test goroutine only.
type OwnerTester struct {
	t      testing.TB
	owners map[string]*lifecycle.Owner
}

// NewOwnerTester creates a tester. Call Cleanup() when done, or use
// NewOwnerTesterWithT() instead.
func NewOwnerTester(t testing.TB) *OwnerTester {
	return &OwnerTester{t: t, owners: make(map[string]*lifecycle.Owner)}
}

// NewOwnerTesterWithT creates a tester that auto-cleans up via t.Cleanup().
// This is the recommended constructor for tests.
func NewOwnerTesterWithT(t testing.TB) *OwnerTester {
	tester := NewOwnerTester(t)
	t.Cleanup(tester.Cleanup)
	return tester
}

// Open creates a resumed owner under name. Opening a name that is still
// open fails the test.
func (ot *OwnerTester) Open(name string) *lifecycle.Owner {
	ot.t.Helper()
	if _, ok := ot.owners[name]; ok {
		ot.t.Fatalf("owner %q already open", name)
	}
	o := lifecycle.New(name)
	if err := o.Resume(); err != nil {
		ot.t.Fatalf("resume %q: %v", name, err)
	}
	ot.owners[name] = o
	return o
}

// Owner returns the current owner under name.
func (ot *OwnerTester) Owner(name string) *lifecycle.Owner {
	ot.t.Helper()
	o, ok := ot.owners[name]
	if !ok {
		ot.t.Fatalf("owner %q not open", name)
	}
	return o
}

// Reconfigure destroys the owner transiently and tracks its replacement.
// Destroy-handler errors fail the test.
func (ot *OwnerTester) Reconfigure(name string) *lifecycle.Owner {
	ot.t.Helper()
	next, err := ot.Owner(name).Reconfigure()
	if err != nil {
		ot.t.Fatalf("reconfigure %q: %v", name, err)
	}
	ot.owners[name] = next
	return next
}

// Destroy destroys the owner permanently and returns the joined errors of
// its destroy handlers.
func (ot *OwnerTester) Destroy(name string) error {
	ot.t.Helper()
	o := ot.Owner(name)
	delete(ot.owners, name)
	return o.Destroy()
}

// Names returns the open owner names in sorted order.
func (ot *OwnerTester) Names() []string {
	names := make([]string, 0, len(ot.owners))
	for n := range ot.owners {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Cleanup destroys every owner still open.
func (ot *OwnerTester) Cleanup() {
	for _, name := range ot.Names() {
		o := ot.owners[name]
		delete(ot.owners, name)
		if err := o.Destroy(); err != nil {
			ot.t.Errorf("cleanup: %v", fmt.Errorf("destroy %q: %w", name, err))
		}
	}
}

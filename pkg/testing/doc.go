// Package testing provides helpers for testing code built on driftx owners
// and the shared view-model cache.
//
// # Quick Start
//
// Create a tester, open owners, and drive them through their lifecycle:
//
//	func TestCheckout(t *testing.T) {
//	    tester := drifttest.NewOwnerTesterWithT(t)
//	    cache := shared.New()
//	    factory := drifttest.NewFactory()
//
//	    list := tester.Open("list")
//	    detail := tester.Open("detail")
//	    a := shared.Get(cache, list, nil, factory.New)
//	    b := shared.Get(cache, detail, nil, factory.New)
//	    // a == b, factory.Calls() == 1
//
//	    detail = tester.Reconfigure("detail") // transient destroy + recreate
//	    tester.Destroy("list")
//	}
//
// Owners still open when the test ends are destroyed permanently by the
// tester's cleanup.
//
// # Reports
//
// RecordReports swaps errors.DefaultHandler for a recorder for the duration
// of a test so reported dispose failures can be asserted on.
package testing

package scenario

import (
	"fmt"
	"io"
)

// Print writes a human-readable trace of rep to w.
func Print(w io.Writer, rep *Report) {
	fmt.Fprintf(w, "scenario: %s\n", rep.Scenario)
	for _, res := range rep.Results {
		fmt.Fprintf(w, "  #%-3d %-12s %-10s", res.Index, res.Step.Op, res.Step.Owner)
		if res.HasKey() {
			fmt.Fprintf(w, " %-20s", res.Key)
		}
		if res.Instance != "" {
			fmt.Fprintf(w, " -> %s", res.Instance)
		}
		if res.HasKey() {
			fmt.Fprintf(w, " refs=%d cached=%t", res.Refs, res.Cached)
		}
		fmt.Fprintf(w, " entries=%d created=%d disposed=%d\n", res.Entries, res.Created, res.Disposed)
		if res.Err != nil {
			fmt.Fprintf(w, "       error: %v\n", res.Err)
		}
		for _, f := range res.Failures {
			fmt.Fprintf(w, "       FAIL: %s\n", f)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "snapshot:")
	if len(rep.Snapshot) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for _, row := range rep.Snapshot {
		fmt.Fprintf(w, "  %-24s %-28s refs=%d owners=%d\n", row.Key, row.Instance, row.Refs, row.Owners)
	}
	if rep.Teardown != nil {
		fmt.Fprintf(w, "teardown: %v\n", rep.Teardown)
	}
}

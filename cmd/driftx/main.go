// Command driftx runs shared view-model cache scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/driftx/cmd/driftx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Gantryctl inspects and cleans up gantry-managed engine resources. Runs
// that were killed mid-teardown, or that ran with pruning disabled, leave
// labeled containers, networks and volumes behind; this tool finds and
// removes them.
//
// Usage:
//
//	gantryctl ls       # list leaked gantry resources
//	gantryctl prune    # force-remove them
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gantryctl: %v\n", err)
		os.Exit(1)
	}
}

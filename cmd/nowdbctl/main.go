// Command nowdbctl is an offline maintenance tool for a NowDB scope
// directory: open/inspect/compact/repair, run against a closed scope
// by an operator rather than by the query path itself.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	// Version is set via -ldflags at release build time.
	Version = "dev"
)

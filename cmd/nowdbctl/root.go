package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nowdbctl",
	Short: "Offline maintenance for a NowDB scope directory",
	Long: `nowdbctl opens, inspects, compacts, and repairs a NowDB scope
directory without going through the query path. It is meant for an
operator working against a scope the query engine currently has
closed, not for concurrent use alongside a running process.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("nowdbctl %s\n", Version))
}

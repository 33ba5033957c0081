package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toschoo/nowdb-go/nowscope"
)

var repairCmd = &cobra.Command{
	Use:   "repair <dir>",
	Short: "Force the scope-level repair pass unconditionally",
	Long: `repair runs the manifest repair pass Open would otherwise
only trigger automatically after a crash: it clears a stray in-flight
manifest write and rewrites the manifest with its dirty flag cleared.
Each store's own catalog repairs itself the same way on its next Open,
so an operator rarely needs this directly, but it's useful after
manually editing a scope directory or recovering it from a backup.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := nowscope.ForceRepair(dir); err != nil {
		return fmt.Errorf("repair %s: %w", dir, err)
	}
	s, err := nowscope.Open(dir, scopeConfig())
	if err != nil {
		return fmt.Errorf("open %s after repair: %w", dir, err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close %s after repair: %w", dir, err)
	}
	fmt.Printf("%s: repaired\n", dir)
	return nil
}

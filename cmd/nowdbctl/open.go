package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toschoo/nowdb-go/nowscope"
	"github.com/toschoo/nowdb-go/nowtext"
)

var openCmd = &cobra.Command{
	Use:   "open <dir>",
	Short: "Open and immediately close a scope, smoke-testing it",
	Long: `open runs the same Open/Close path the query engine would,
surfacing any crash-detection repair or catalog error without leaving
anything else running — useful after a restore or before handing a
scope back to the query engine.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func scopeConfig() nowscope.Config {
	return nowscope.Config{TextAlg: nowtext.AlgXXHash3}
}

func runOpen(cmd *cobra.Command, args []string) error {
	dir := args[0]
	s, err := nowscope.Open(dir, scopeConfig())
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dir, err)
	}
	fmt.Printf("%s: opened and closed cleanly\n", dir)
	return nil
}

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/toschoo/nowdb-go/nowscope"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <dir>",
	Short: "Print a scope's declared types, edge stores, and indexes",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir := args[0]
	s, err := nowscope.Open(dir, scopeConfig())
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer s.Close()

	fmt.Printf("scope: %s\n", dir)

	edges := s.Model().EdgeNames()
	sort.Strings(edges)
	fmt.Printf("edge types (%d):\n", len(edges))
	for _, name := range edges {
		e, err := s.Model().GetEdgeByName(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-24s origin=%d destin=%d recsize=%d\n", name, e.Origin, e.Destin, e.Size)
	}

	vertexStore := s.VertexStore()
	fmt.Printf("vertex store: spares=%d sorted=%d waiting=%d\n",
		vertexStore.SpareCount(), len(vertexStore.SortedFiles()), len(vertexStore.WaitingFiles()))

	for _, name := range edges {
		st, err := s.EdgeStore(name)
		if err != nil {
			continue
		}
		fmt.Printf("edge store %-24s spares=%d sorted=%d waiting=%d\n",
			name, st.SpareCount(), len(st.SortedFiles()), len(st.WaitingFiles()))
	}

	procs := s.Procedures().Names()
	sort.Strings(procs)
	fmt.Printf("procedures (%d): %v\n", len(procs), procs)

	indexes := s.Indexes().Names()
	sort.Strings(indexes)
	fmt.Printf("indexes (%d): %v\n", len(indexes), indexes)

	return nil
}

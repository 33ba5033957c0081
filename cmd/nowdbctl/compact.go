package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toschoo/nowdb-go/nowscope"
	"github.com/toschoo/nowdb-go/nowstore"
	"github.com/toschoo/nowdb-go/record"
)

var compactCmd = &cobra.Command{
	Use:   "compact <dir>",
	Short: "Promote every waiting file in every store to sorted",
	Long: `compact runs each store's sorter pool to completion once,
rewriting every waiting file's record slots in key order and flipping
it to the sorted role. A Store does not run its sorter on its own, so
waiting files stay unsorted until a pass like this one runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompact,
}

func init() {
	compactCmd.Flags().Int("workers", 0, "sorter concurrency override (0 = use the store's configured default)")
	rootCmd.AddCommand(compactCmd)
}

func vertexLess(a, b []byte) bool {
	av := a[record.VertexCol : record.VertexCol+8]
	bv := b[record.VertexCol : record.VertexCol+8]
	if c := bytes.Compare(av, bv); c != 0 {
		return c < 0
	}
	return bytes.Compare(a[record.Prop:record.Prop+8], b[record.Prop:record.Prop+8]) < 0
}

func edgeLess(a, b []byte) bool {
	if c := bytes.Compare(a[record.Origin:record.Origin+8], b[record.Origin:record.Origin+8]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a[record.Destin:record.Destin+8], b[record.Destin:record.Destin+8]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a[record.EdgeCol:record.EdgeCol+8], b[record.EdgeCol:record.EdgeCol+8]) < 0
}

func runCompact(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg := scopeConfig()
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Vertex.SorterWorkers = workers
		cfg.Edge.SorterWorkers = workers
	}
	s, err := nowscope.Open(dir, cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer s.Close()

	ctx := context.Background()

	if err := runSorter(ctx, s.VertexStore(), vertexLess); err != nil {
		return fmt.Errorf("compact vertex store: %w", err)
	}
	for _, name := range s.Model().EdgeNames() {
		st, err := s.EdgeStore(name)
		if err != nil {
			continue
		}
		if err := runSorter(ctx, st, edgeLess); err != nil {
			return fmt.Errorf("compact edge store %s: %w", name, err)
		}
	}
	fmt.Printf("%s: compaction pass complete\n", dir)
	return nil
}

func runSorter(ctx context.Context, st *nowstore.Store, less func(a, b []byte) bool) error {
	sr := nowstore.NewSorter(st, less)
	return sr.Run(ctx)
}

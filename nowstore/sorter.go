// Background sorter: promotes waiting (unsorted) files to sorted
// readers. Bounded concurrency via errgroup, the way cuemby-warren
// fans its reconciliation workers out, rather than one goroutine per
// file.
package nowstore

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/toschoo/nowdb-go/nowfile"
)

// Sorter promotes waiting files into sorted (SORT) ones by rewriting
// them with their record slots ordered, using up to
// Config.SorterWorkers concurrent goroutines per run. It works only
// when Run is called; the Store never starts it on its own.
type Sorter struct {
	store *Store
	less  func(a, b []byte) bool
}

// NewSorter builds a sorter that orders record slots within a file
// using the given byte-slice comparator (typically comparing the
// index key prefix of each slot).
func NewSorter(s *Store, less func(a, b []byte) bool) *Sorter {
	return &Sorter{store: s, less: less}
}

// Run promotes every currently-waiting file to sorted, bounded by
// Config.SorterWorkers concurrent sorts. It returns the first error
// encountered; files not yet processed when an error occurs remain
// waiting and will be retried on the next Run.
func (sr *Sorter) Run(ctx context.Context) error {
	sr.store.mu.Lock()
	batch := sr.store.waiting
	sr.store.waiting = nil
	sr.store.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sr.store.config.SorterWorkers)

	for _, f := range batch {
		f := f
		g.Go(func() error {
			return sr.sortOne(ctx, f)
		})
	}

	err := g.Wait()

	sr.store.mu.Lock()
	for _, f := range batch {
		if f.Ctrl&nowfile.CtrlSort != 0 {
			sr.store.sorted = append(sr.store.sorted, f)
		} else {
			sr.store.waiting = append(sr.store.waiting, f)
		}
	}
	sort.Slice(sr.store.sorted, func(i, j int) bool { return sr.store.sorted[i].ID < sr.store.sorted[j].ID })
	persistErr := sr.store.persistCatalogLocked()
	sr.store.mu.Unlock()

	if err != nil {
		return err
	}
	return persistErr
}

// sortOne reads every record slot out of a waiting file, orders them
// with the sorter's comparator, and rewrites the file's blocks in
// place before flipping its role to SORT. Record slots are fixed
// size, so rewriting in place (rather than repair.go's rewrite-to-
// temp-then-rename) is safe: the file never shrinks.
func (sr *Sorter) sortOne(ctx context.Context, f *nowfile.File) error {
	recSize := f.RecordSize
	slots := int(f.Size) / recSize
	if slots == 0 {
		f.Ctrl = f.Ctrl&^nowfile.CtrlReader | nowfile.CtrlSort
		return nil
	}

	buf := make([]byte, f.Size)
	if _, err := f.ReadAllInto(buf); err != nil {
		return err
	}

	recs := make([][]byte, slots)
	for i := 0; i < slots; i++ {
		recs[i] = buf[i*recSize : (i+1)*recSize]
	}
	sort.Slice(recs, func(i, j int) bool { return sr.less(recs[i], recs[j]) })

	out := make([]byte, 0, len(buf))
	for _, r := range recs {
		out = append(out, r...)
	}

	if err := f.Rewrite(out); err != nil {
		return err
	}
	f.Ctrl = f.Ctrl&^nowfile.CtrlReader | nowfile.CtrlSort
	return nil
}

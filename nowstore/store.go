// Package nowstore implements the Store component of spec §4.S: a
// directory of Files partitioned into writer/waiting/reader-sort/spare
// roles, with catalog persistence and writer-swap-on-full.
//
// Concurrency is a single store-level sync.RWMutex, the Store level of
// the Scope->Store lock ordering of spec §5; there is no per-state
// read/write gating.
package nowstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowfile"
)

// MinSpares is the minimum number of empty writer-shaped files the
// Store keeps on hand to hide allocation latency (spec §3).
const MinSpares = 3

// Config controls a Store's file geometry and background behaviour.
type Config struct {
	Capacity      int64
	BlockSize     int
	RecordSize    int
	Compression   nowfile.Compression
	Grain         nowfile.Grain
	SorterWorkers int // background sorter concurrency, default 1
}

func (c *Config) setDefaults() {
	if c.BlockSize == 0 {
		c.BlockSize = nowfile.BlockSize
	}
	if c.Capacity == 0 {
		c.Capacity = 64 * int64(nowfile.BlockSize)
	}
	if c.SorterWorkers == 0 {
		c.SorterWorkers = 1
	}
}

// Store owns one directory of Files for a single schema (one vertex
// store per scope, one per edge context).
type Store struct {
	Dir    string
	config Config

	mu sync.RWMutex // guards the fields below; store-level rwlock of spec §5

	nextID  uint32
	writer  *nowfile.File
	waiting []*nowfile.File // filled, not yet sorted
	sorted  []*nowfile.File // filled and sorted (role READER+SORT)
	spares  []*nowfile.File

	closed bool
}

// Open reads the catalog, instantiates Files in their recorded roles,
// repositions the writer, tops up spares, and returns a ready Store.
func Open(dir string, cfg Config) (*Store, error) {
	cfg.setDefaults()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nowerr.Wrap("nowstore.Open", dir, err)
	}

	entries, err := readCatalog(dir)
	if err != nil {
		return nil, nowerr.Wrap("nowstore.Open", dir, err)
	}

	s := &Store{Dir: dir, config: cfg}

	for _, e := range entries {
		f := entryToFile(dir, e)
		if f.ID >= s.nextID {
			s.nextID = f.ID + 1
		}
		if err := f.Open(); err != nil {
			return nil, err
		}
		switch {
		case f.Ctrl&nowfile.CtrlWriter != 0:
			if err := f.Map(); err != nil {
				return nil, err
			}
			s.writer = f
		case f.Ctrl&nowfile.CtrlSort != 0:
			s.sorted = append(s.sorted, f)
		case f.Ctrl&nowfile.CtrlSpare != 0:
			s.spares = append(s.spares, f)
		default:
			s.waiting = append(s.waiting, f)
		}
	}

	if s.writer == nil {
		w, err := s.createFile(nowfile.CtrlWriter)
		if err != nil {
			return nil, err
		}
		s.writer = w
	}
	if err := s.fillSpares(); err != nil {
		return nil, err
	}
	if err := s.persistCatalog(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close persists the catalog and releases every File handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Unmap(); err != nil {
		return err
	}
	if err := s.persistCatalogLocked(); err != nil {
		return err
	}

	var firstErr error
	all := append([]*nowfile.File{s.writer}, s.waiting...)
	all = append(all, s.sorted...)
	all = append(all, s.spares...)
	for _, f := range all {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) createFile(ctrl byte) (*nowfile.File, error) {
	id := s.nextID
	s.nextID++
	name := fmt.Sprintf("%08x.dat", id)
	f := nowfile.New(id, filepath.Join(s.Dir, name), s.config.Capacity, s.config.BlockSize,
		s.config.RecordSize, ctrl, s.compForRole(ctrl), s.config.Grain)
	if err := f.Create(); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) compForRole(ctrl byte) nowfile.Compression {
	if ctrl&nowfile.CtrlWriter != 0 || ctrl&nowfile.CtrlSpare != 0 {
		return nowfile.Flat // writers are always uncompressed, spec §3
	}
	return s.config.Compression
}

// newSpareName produces a collision-free filename for a spare created
// by fillSpares, supplemented from
// original_source/src/nowdb/store/store.c's monotonic timestamp+
// counter scheme (SPEC_FULL §D.2).
func (s *Store) newSpareName() string {
	return fmt.Sprintf("spare-%d-%08x.dat", time.Now().UnixNano(), s.nextID)
}

func (s *Store) fillSpares() error {
	for len(s.spares) < MinSpares {
		id := s.nextID
		s.nextID++
		name := s.newSpareName()
		f := nowfile.New(id, filepath.Join(s.Dir, name), s.config.Capacity, s.config.BlockSize,
			s.config.RecordSize, nowfile.CtrlSpare, nowfile.Flat, s.config.Grain)
		if err := f.Create(); err != nil {
			return err
		}
		s.spares = append(s.spares, f)
	}
	return nil
}

// Insert appends one encoded record to the current writer, swapping
// in a fresh writer when full (spec §4.S "Writer swap"). ts is the
// record's timestamp, used to widen the writer's [oldest,newest]
// window.
func (s *Store) Insert(rec []byte, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nowerr.New(nowerr.Invalid, "nowstore.Insert", s.Dir, nil)
	}

	full, err := s.writer.Append(rec, ts)
	if err != nil {
		return err
	}
	if full {
		if err := s.swapWriter(); err != nil {
			return err
		}
	}
	return nil
}

// BulkInsert appends many records without an intervening catalog
// fsync per record, the fast path the (external) CSV loader uses per
// original_source/src/nowdb/scope/loader.c (SPEC_FULL §D.6). The
// catalog is persisted once at the end.
func (s *Store) BulkInsert(records [][]byte, timestamps []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nowerr.New(nowerr.Invalid, "nowstore.BulkInsert", s.Dir, nil)
	}
	for i, rec := range records {
		full, err := s.writer.Append(rec, timestamps[i])
		if err != nil {
			return err
		}
		if full {
			if err := s.swapWriter(); err != nil {
				return err
			}
		}
	}
	return s.persistCatalogLocked()
}

// swapWriter unmaps the full writer, demotes it to waiting (READER,
// not yet SORT), and promotes a spare into its place. Must be called
// with mu held.
func (s *Store) swapWriter() error {
	old := s.writer
	if err := old.Unmap(); err != nil {
		return err
	}
	old.Ctrl = nowfile.CtrlReader
	s.waiting = append(s.waiting, old)

	if len(s.spares) == 0 {
		if err := s.fillSpares(); err != nil {
			return err
		}
	}
	spare := s.spares[0]
	s.spares = s.spares[1:]
	spare.Ctrl = nowfile.CtrlWriter
	spare.Oldest = 0
	spare.Newest = 0
	if err := spare.MapAt(0); err != nil {
		return err
	}
	s.writer = spare

	if len(s.spares) < MinSpares {
		if err := s.fillSpares(); err != nil {
			return err
		}
	}
	return s.persistCatalogLocked()
}

// GetFiles returns every reader+writer File whose timestamp window
// intersects [start,end], snapshotting the role lists under the read
// lock and releasing it before the caller iterates (spec §5 "Readers
// snapshot the file list under the store read lock, then release it
// before iterating").
func (s *Store) GetFiles(start, end int64) []*nowfile.File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*nowfile.File
	for _, f := range s.sorted {
		if f.Intersects(start, end) {
			out = append(out, f)
		}
	}
	for _, f := range s.waiting {
		if f.Intersects(start, end) {
			out = append(out, f)
		}
	}
	if s.writer.Intersects(start, end) {
		out = append(out, s.writer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedFiles and WaitingFiles expose the role split directly for the
// Reader's range-vs-buffer merge (§4.R "Buffer merge": a range reader
// over sorted files paired with a buffer reader over pending ones).
func (s *Store) SortedFiles() []*nowfile.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*nowfile.File(nil), s.sorted...)
}

func (s *Store) WaitingFiles() []*nowfile.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*nowfile.File(nil), s.waiting...)
}

// SpareCount reports the current spare count, for §8 invariant 2
// ("spares >= 1 after any successful insert").
func (s *Store) SpareCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spares)
}

func (s *Store) persistCatalog() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistCatalogLocked()
}

func (s *Store) persistCatalogLocked() error {
	var entries []entry
	order := uint32(0)
	add := func(f *nowfile.File) {
		entries = append(entries, fileToEntry(order, f))
		order++
	}
	add(s.writer)
	for _, f := range s.waiting {
		add(f)
	}
	for _, f := range s.sorted {
		add(f)
	}
	for _, f := range s.spares {
		add(f)
	}
	return writeCatalog(s.Dir, entries)
}

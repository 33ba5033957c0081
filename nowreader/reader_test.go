package nowreader

import (
	"encoding/binary"
	"io"
	"path/filepath"
	"testing"

	"github.com/toschoo/nowdb-go/nowfile"
	"github.com/toschoo/nowdb-go/nowindex"
)

const testRecSize = 16

func keyOf(rec []byte) uint64 { return binary.BigEndian.Uint64(rec[:8]) }

func makeRecord(k, v uint64) []byte {
	rec := make([]byte, testRecSize)
	binary.BigEndian.PutUint64(rec[0:8], k)
	binary.BigEndian.PutUint64(rec[8:16], v)
	return rec
}

func newFlatFile(t *testing.T, id uint32, keys []uint64) *nowfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.dat")
	f := nowfile.New(id, path, int64(8*nowfile.BlockSize), nowfile.BlockSize, testRecSize, nowfile.CtrlWriter, nowfile.Flat, nowfile.GrainSecond)
	if err := f.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, k := range keys {
		if _, err := f.Append(makeRecord(k, uint64(i)), int64(k)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// Flat-file readers only expose whole BlockSize-aligned chunks, so
	// pad the tail with zero slots until one full block is on disk —
	// otherwise the writer's last partial block stays invisible to a
	// Cursor, exactly as it would for a Store still filling this file.
	for f.Size%int64(nowfile.BlockSize) != 0 {
		if _, err := f.Append(make([]byte, testRecSize), 0); err != nil {
			t.Fatalf("Append padding: %v", err)
		}
	}
	if err := f.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	return f
}

func testSpec() nowindex.KeySpec {
	return nowindex.KeySpec{Offsets: []int{0}, Widths: []int{8}}
}

func buildIndex(t *testing.T, f *nowfile.File, keys []uint64) *nowindex.Tree {
	t.Helper()
	tree := nowindex.Create("pk", testSpec(), 4)
	for _, k := range keys {
		key := nowindex.EncodeUint64Field(k)
		pid := EncodePageID(f.ID, 0)
		if err := tree.Insert(key, uint64(pid)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return tree
}

func TestFullscanVisitsAllRecords(t *testing.T) {
	keys := []uint64{1, 2, 3}
	f := newFlatFile(t, 1, keys)
	defer f.Close()

	r := NewFullscan([]*nowfile.File{f})
	if err := r.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := 0
	for {
		if err := r.Move(); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Fatalf("expected one page move, got %d", n)
	}
}

func TestSearchFindsExactKey(t *testing.T) {
	keys := []uint64{10, 20, 30}
	f := newFlatFile(t, 1, keys)
	defer f.Close()

	tree := buildIndex(t, f, keys)
	cache := NewPageCache(FileSet{f.ID: f}, 16)

	r := NewSearch(tree, nowindex.EncodeUint64Field(20), cache)
	if err := r.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Move(); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if r.Page() == nil {
		t.Fatal("expected a page")
	}
	if err := r.Move(); err != io.EOF {
		t.Fatalf("second Move = %v, want EOF", err)
	}
}

func TestSearchRewind(t *testing.T) {
	keys := []uint64{5}
	f := newFlatFile(t, 1, keys)
	defer f.Close()

	tree := buildIndex(t, f, keys)
	cache := NewPageCache(FileSet{f.ID: f}, 16)
	r := NewSearch(tree, nowindex.EncodeUint64Field(5), cache)
	r.Open()
	r.Move()
	if err := r.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if err := r.Move(); err != nil {
		t.Fatalf("Move after rewind: %v", err)
	}
}

func TestFrangeYieldsPagesInOrder(t *testing.T) {
	keys := []uint64{1, 2, 3, 4, 5}
	f := newFlatFile(t, 1, keys)
	defer f.Close()

	tree := buildIndex(t, f, keys)
	cache := NewPageCache(FileSet{f.ID: f}, 16)

	r := NewFrange(tree, nowindex.EncodeUint64Field(2), nowindex.EncodeUint64Field(4), nowindex.Asc, cache)
	r.Open()
	n := 0
	for {
		if err := r.Move(); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
		n++
	}
	if n != 3 {
		t.Fatalf("expected 3 matches, got %d", n)
	}
}

func TestKrangeReconstructsKeyField(t *testing.T) {
	keys := []uint64{7, 8, 9}
	f := newFlatFile(t, 1, keys)
	defer f.Close()

	tree := buildIndex(t, f, keys)
	r := NewKrange(tree, testSpec(), testRecSize, nowindex.EncodeUint64Field(7), nowindex.EncodeUint64Field(9), nowindex.Asc)
	r.Open()
	var got []uint64
	for {
		if err := r.Move(); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
		got = append(got, keyOf(r.Page()))
	}
	if len(got) != 3 || got[0] != 7 || got[2] != 9 {
		t.Fatalf("got %v", got)
	}
}

func TestCrangeCountsMatches(t *testing.T) {
	keys := []uint64{1, 2, 3, 4}
	f := newFlatFile(t, 1, keys)
	defer f.Close()

	tree := buildIndex(t, f, keys)
	r := NewCrange(tree, nowindex.EncodeUint64Field(2), nowindex.EncodeUint64Field(4), nowindex.Asc)
	r.Open()
	for {
		if err := r.Move(); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
	}
	if r.Count() != 3 {
		t.Fatalf("Count = %d, want 3", r.Count())
	}
}

func TestVseqConcatenatesReaders(t *testing.T) {
	k1 := []uint64{1, 2}
	k2 := []uint64{3, 4}
	f1 := newFlatFile(t, 1, k1)
	f2 := newFlatFile(t, 2, k2)
	defer f1.Close()
	defer f2.Close()

	seq := NewVseq([]Reader{NewFullscan([]*nowfile.File{f1}), NewFullscan([]*nowfile.File{f2})})
	if err := seq.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	n := 0
	for {
		if err := seq.Move(); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 page moves across both files, got %d", n)
	}
}

func TestMergeOrdersSortedAndPending(t *testing.T) {
	sortedKeys := []uint64{10, 30, 50}
	pendingKeys := []uint64{20, 40}

	sortedFile := newFlatFile(t, 1, sortedKeys)
	pendingFile := newFlatFile(t, 2, pendingKeys)
	defer sortedFile.Close()
	defer pendingFile.Close()

	tree := buildIndex(t, sortedFile, sortedKeys)
	cache := NewPageCache(FileSet{sortedFile.ID: sortedFile}, 16)
	rangeReader := NewFrange(tree, nowindex.EncodeUint64Field(0), nowindex.EncodeUint64Field(100), nowindex.Asc, cache)

	m, err := NewMerge(rangeReader, testSpec(), []*nowfile.File{pendingFile})
	if err != nil {
		t.Fatalf("NewMerge: %v", err)
	}
	if err := m.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got []uint64
	for {
		if err := m.Move(); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
		got = append(got, keyOf(m.Page()))
	}
	want := []uint64{10, 20, 30, 40, 50}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

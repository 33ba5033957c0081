package nowstore

import (
	"testing"

	"github.com/toschoo/nowdb-go/nowfile"
)

func testConfig(capacityBlocks int) Config {
	return Config{
		Capacity:    int64(capacityBlocks) * nowfile.BlockSize,
		BlockSize:   nowfile.BlockSize,
		RecordSize:  32,
		Compression: nowfile.Zstd,
		Grain:       nowfile.GrainSecond,
	}
}

func TestOpenCreatesWriterAndSpares(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.writer == nil {
		t.Fatal("expected a writer file")
	}
	if s.SpareCount() < MinSpares {
		t.Fatalf("SpareCount = %d, want >= %d", s.SpareCount(), MinSpares)
	}
}

func TestInsertAdvancesWriterSize(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := make([]byte, 32)
	before := s.writer.Size
	if err := s.Insert(rec, 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if s.writer.Size != before+32 {
		t.Fatalf("writer.Size = %d, want %d", s.writer.Size, before+32)
	}
}

// TestWriterSwap exercises spec §8 scenario 6: ceil(cap/recordsize)+1
// inserts must produce a waiting file and a fresh writer, with spares
// replenished to >= MinSpares.
func TestWriterSwap(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	recSize := 32
	capacity := s.writer.Capacity
	n := int(capacity)/recSize + 1

	rec := make([]byte, recSize)
	for i := 0; i < n; i++ {
		if err := s.Insert(rec, int64(i)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	if len(s.waiting) != 1 {
		t.Fatalf("waiting files = %d, want 1", len(s.waiting))
	}
	if s.writer.Size != int64(recSize) {
		t.Fatalf("new writer.Size = %d, want %d", s.writer.Size, recSize)
	}
	if s.SpareCount() < MinSpares {
		t.Fatalf("SpareCount after swap = %d, want >= %d", s.SpareCount(), MinSpares)
	}
}

func TestGetFilesFiltersByTimestamp(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig(4))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := make([]byte, 32)
	s.Insert(rec, 5)
	s.Insert(rec, 15)

	files := s.GetFiles(10_000_000, 20_000_000)
	if len(files) != 1 {
		t.Fatalf("GetFiles(10,20) returned %d files, want 1", len(files))
	}
}

func TestCatalogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := make([]byte, 32)
	s.Insert(rec, 1)
	writerID := s.writer.ID
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir, testConfig(1))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if s2.writer.ID != writerID {
		t.Fatalf("writer ID after reopen = %d, want %d", s2.writer.ID, writerID)
	}
	if s2.writer.Size != 32 {
		t.Fatalf("writer.Size after reopen = %d, want 32", s2.writer.Size)
	}
}

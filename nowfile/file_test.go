package nowfile

import (
	"io"
	"path/filepath"
	"testing"
)

func newTestFile(t *testing.T, comp Compression) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "0001.dat")
	f := New(1, path, 4*BlockSize, BlockSize, 32, CtrlWriter, comp, GrainSecond)
	if err := f.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return f
}

func TestFlatRoundTrip(t *testing.T) {
	f := newTestFile(t, Flat)
	defer f.Close()

	page := make([]byte, BlockSize)
	page[0] = 0xAB
	if err := WriteBlock(f, page, 10, 20, nil); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := f.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}

	c := NewCursor(f, 0, f.Size)
	if err := c.Move(Dawn, Dusk); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if c.Page()[0] != 0xAB {
		t.Fatalf("page[0] = %x, want 0xAB", c.Page()[0])
	}
	if err := c.Move(Dawn, Dusk); err != io.EOF {
		t.Fatalf("second Move = %v, want EOF", err)
	}
}

func TestZstdRoundTripAndPruning(t *testing.T) {
	f := newTestFile(t, Zstd)
	defer f.Close()

	block1 := make([]byte, BlockSize)
	block1[0] = 1
	block2 := make([]byte, BlockSize)
	block2[0] = 2

	if err := WriteBlock(f, block1, 0, 10, nil); err != nil {
		t.Fatalf("WriteBlock 1: %v", err)
	}
	if err := WriteBlock(f, block2, 100, 110, nil); err != nil {
		t.Fatalf("WriteBlock 2: %v", err)
	}
	if err := f.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}

	// Query range only intersects block2: block1 should be skipped
	// without decompression (we can't observe that directly, but we
	// can assert the only page returned is block2's).
	c := NewCursor(f, 0, f.Size)
	if err := c.Move(100_000_000, 110_000_000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if c.Page()[0] != 2 {
		t.Fatalf("page[0] = %d, want 2 (block1 should have been pruned)", c.Page()[0])
	}
	if err := c.Move(100_000_000, 110_000_000); err != io.EOF {
		t.Fatalf("second Move = %v, want EOF", err)
	}
}

func TestZstdFullScanVisitsAllBlocks(t *testing.T) {
	f := newTestFile(t, Zstd)
	defer f.Close()

	for i := 0; i < 3; i++ {
		b := make([]byte, BlockSize)
		b[0] = byte(i + 1)
		if err := WriteBlock(f, b, int64(i*10), int64(i*10+5), nil); err != nil {
			t.Fatalf("WriteBlock %d: %v", i, err)
		}
	}
	f.Unmap()

	c := NewCursor(f, 0, f.Size)
	var seen []byte
	for {
		if err := c.Move(Dawn, Dusk); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Move: %v", err)
		}
		seen = append(seen, c.Page()[0])
	}
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Fatalf("seen = %v, want [1 2 3]", seen)
	}
}

func TestIntersects(t *testing.T) {
	f := newTestFile(t, Flat)
	defer f.Close()
	page := make([]byte, BlockSize)
	WriteBlock(f, page, 100, 200, nil)

	if !f.Intersects(150_000_000, 250_000_000) {
		t.Error("expected overlap")
	}
	if f.Intersects(300_000_000, 400_000_000) {
		t.Error("expected no overlap")
	}
}

package nowfile

import "testing"

func TestGrainNormalize(t *testing.T) {
	cases := []struct {
		g    Grain
		t    int64
		want int64
	}{
		{GrainMicro, 5_000_000, 5_000_000},
		{GrainMilli, 5_000_000, 5_000},
		{GrainSecond, 5_000_000, 5},
		{GrainMinute, 120_000_000, 2},
		{GrainHour, usecPerHour * 3, 3},
		{GrainDay, usecPerDay * 2, 2},
		{GrainSecond, Dawn, Dawn},
		{GrainSecond, Dusk, Dusk},
	}
	for _, c := range cases {
		if got := c.g.Normalize(c.t); got != c.want {
			t.Fatalf("Grain(%d).Normalize(%d) = %d, want %d", c.g, c.t, got, c.want)
		}
	}
}

// TestMoveZstdPrunesByGrain writes one ZSTD block whose header bounds
// are stamped in GrainSecond units, then checks that a query period
// expressed in absolute microseconds is normalized to seconds before
// the disjointness check — a period that only overlaps once converted
// must not be skipped.
func TestMoveZstdPrunesByGrain(t *testing.T) {
	path := t.TempDir() + "/0001.dat"
	f := New(1, path, 4*BlockSize, BlockSize, 32, CtrlWriter, Zstd, GrainSecond)
	if err := f.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	page := make([]byte, BlockSize)
	page[0] = 0xCD
	// Block covers seconds [100,200].
	if err := WriteBlock(f, page, 100, 200, nil); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := f.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}

	// Query period expressed in microseconds: [150_000_000, 160_000_000]
	// normalizes to seconds [150,160], which overlaps [100,200].
	c := NewCursor(f, 0, f.Size)
	if err := c.Move(150_000_000, 160_000_000); err != nil {
		t.Fatalf("Move should not skip an overlapping block: %v", err)
	}
	if c.Page()[0] != 0xCD {
		t.Fatalf("page[0] = %x, want 0xCD", c.Page()[0])
	}
}

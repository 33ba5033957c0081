package nowindex

import (
	"bytes"
	"testing"
)

func u64spec() KeySpec {
	return KeySpec{Offsets: []int{0}, Widths: []int{8}}
}

func TestInsertAndGetIter(t *testing.T) {
	tree := Create("pk", u64spec(), 4)
	k1 := EncodeUint64Field(1)
	if err := tree.Insert(k1, 42); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	it := tree.GetIter(k1)
	if !it.Next() {
		t.Fatal("expected one match")
	}
	if it.Value().PageID != 42 {
		t.Fatalf("PageID = %d, want 42", it.Value().PageID)
	}
	if it.Next() {
		t.Fatal("expected exactly one match")
	}
}

func TestInsertDuplicateIsDupKey(t *testing.T) {
	tree := Create("pk", u64spec(), 4)
	k1 := EncodeUint64Field(1)
	if err := tree.Insert(k1, 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(k1, 2); err == nil {
		t.Fatal("expected DupKey error")
	}
}

func TestDoesExist(t *testing.T) {
	tree := Create("pk", u64spec(), 4)
	k1 := EncodeUint64Field(7)
	if tree.DoesExist(k1) {
		t.Fatal("key should not exist yet")
	}
	tree.Insert(k1, 1)
	if !tree.DoesExist(k1) {
		t.Fatal("key should exist")
	}
}

// TestRangeWithSplits inserts enough keys to force several leaf and
// internal-node splits, then checks that an ascending range scan
// still visits every key in order (spec §8 invariant 4 depends on
// this holding across splits).
func TestRangeWithSplits(t *testing.T) {
	tree := Create("ts", u64spec(), 4)
	n := 200
	for i := 0; i < n; i++ {
		if err := tree.Insert(EncodeUint64Field(uint64(i)), uint64(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	it := tree.Range(EncodeUint64Field(0), EncodeUint64Field(uint64(n-1)), Asc)
	got := 0
	var prev []byte
	for it.Next() {
		if prev != nil && bytes.Compare(prev, it.Key()) >= 0 {
			t.Fatalf("range not ascending at entry %d", got)
		}
		prev = append([]byte(nil), it.Key()...)
		got++
	}
	if got != n {
		t.Fatalf("range visited %d keys, want %d", got, n)
	}
}

func TestRangeDescendingWhenFromAfterTo(t *testing.T) {
	tree := Create("ts", u64spec(), 4)
	for i := 0; i < 10; i++ {
		tree.Insert(EncodeUint64Field(uint64(i)), uint64(i))
	}
	it := tree.Range(EncodeUint64Field(9), EncodeUint64Field(0), Desc)
	var got []uint64
	for it.Next() {
		got = append(got, it.Value().PageID)
	}
	for i := 1; i < len(got); i++ {
		if got[i] >= got[i-1] {
			t.Fatalf("expected descending order, got %v", got)
		}
	}
}

func TestInsertBitAndPresenceBitmap(t *testing.T) {
	tree := Create("sec", u64spec(), 4)
	k := EncodeUint64Field(5)
	tree.InsertBit(k, 1, 0)
	tree.InsertBit(k, 1, 130) // forces an overflow chunk

	it := tree.GetIter(k)
	if !it.Next() {
		t.Fatal("expected a match")
	}
	v := it.Value()
	if !v.HasBit(0) || !v.HasBit(130) {
		t.Fatal("expected bits 0 and 130 set")
	}
	if v.HasBit(1) {
		t.Fatal("bit 1 should not be set")
	}
	slots := v.Slots()
	if len(slots) != 2 || slots[0] != 0 || slots[1] != 130 {
		t.Fatalf("Slots() = %v, want [0 130]", slots)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tree := Create("pk", u64spec(), 4)
	for i := 0; i < 50; i++ {
		tree.Insert(EncodeUint64Field(uint64(i)), uint64(i*10))
	}
	if err := tree.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir, "pk", u64spec(), 4)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := 0; i < 50; i++ {
		it := loaded.GetIter(EncodeUint64Field(uint64(i)))
		if !it.Next() {
			t.Fatalf("missing key %d after reload", i)
		}
		if it.Value().PageID != uint64(i*10) {
			t.Fatalf("PageID for key %d = %d, want %d", i, it.Value().PageID, i*10)
		}
	}
}

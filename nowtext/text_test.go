package nowtext

import "testing"

func TestInsertIsIdempotent(t *testing.T) {
	d, err := Open(t.TempDir(), AlgXXHash3, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	k1, err := d.Insert("hello")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	k2, err := d.Insert("hello")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("Insert not idempotent: %d != %d", k1, k2)
	}
}

func TestGetTextUnknownForMissingKey(t *testing.T) {
	d, err := Open(t.TempDir(), AlgXXHash3, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := d.GetText(12345); got != Unknown {
		t.Fatalf("GetText(missing) = %q, want %q", got, Unknown)
	}
}

func TestGetKeyNotFoundForMissingText(t *testing.T) {
	d, err := Open(t.TempDir(), AlgXXHash3, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := d.GetKey("nope"); err == nil {
		t.Fatal("expected KeyNotFound error")
	}
}

func TestDictSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, AlgXXHash3, 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	k, err := d.Insert("persisted")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	d2, err := Open(dir, AlgXXHash3, 16)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := d2.GetText(k); got != "persisted" {
		t.Fatalf("GetText after reopen = %q, want %q", got, "persisted")
	}
}

func TestEachAlgorithmRoundTrips(t *testing.T) {
	for _, alg := range []Algorithm{AlgXXHash3, AlgFNV1a, AlgBlake2b} {
		d, err := Open(t.TempDir(), alg, 16)
		if err != nil {
			t.Fatalf("Open(%d): %v", alg, err)
		}
		k, err := d.Insert("round-trip")
		if err != nil {
			t.Fatalf("Insert(%d): %v", alg, err)
		}
		if got := d.GetText(k); got != "round-trip" {
			t.Fatalf("alg %d: GetText = %q", alg, got)
		}
	}
}

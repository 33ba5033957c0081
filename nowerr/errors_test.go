package nowerr

import (
	"errors"
	"io"
	"testing"
)

func TestEOFIsStdlib(t *testing.T) {
	if !errors.Is(EOF, io.EOF) {
		t.Fatal("nowerr.EOF must be io.EOF")
	}
}

func TestWrapPreservesKind(t *testing.T) {
	base := New(KeyNotFound, "nowtext.GetKey", "text/cat", nil)
	wrapped := Wrap("nowscope.Open", "scope/root", base)

	if KindOf(wrapped) != KeyNotFound {
		t.Fatalf("KindOf(wrapped) = %v, want KeyNotFound", KindOf(wrapped))
	}
	if !errors.Is(wrapped, Sentinel(KeyNotFound)) {
		t.Fatal("wrapped error should match KeyNotFound sentinel")
	}
}

func TestWrapPlainErrorDefaultsToIO(t *testing.T) {
	wrapped := Wrap("nowfile.Open", "data/0001.dat", errors.New("permission denied"))
	if KindOf(wrapped) != IO {
		t.Fatalf("KindOf(wrapped) = %v, want IO", KindOf(wrapped))
	}
}

func TestWrapEOFPassesThrough(t *testing.T) {
	if Wrap("op", "path", io.EOF) != io.EOF {
		t.Fatal("Wrap must not alter io.EOF")
	}
	if Wrap("op", "path", nil) != nil {
		t.Fatal("Wrap(nil) must return nil")
	}
}

func TestChainOrdersOutermostFirst(t *testing.T) {
	inner := New(IO, "os.Open", "f", errors.New("enoent"))
	outer := New(Catalog, "nowstore.open", "cat", inner)

	got := Chain(outer)
	want := "catalog <- io <- enoent"
	if got != want {
		t.Fatalf("Chain = %q, want %q", got, want)
	}
}

// Package nowerr defines the error kinds shared across NowDB's storage
// and execution core.
//
// Every error that escapes a package is either io.EOF itself (a normal
// termination signal, never wrapped) or an *E carrying a Kind, the
// operation that failed, an optional path, and an optional cause. EOF
// is deliberately kept outside this hierarchy: callers at the Reader
// and Cursor boundary match on io.EOF directly rather than unwrapping
// an error chain, per the propagation policy of the storage core.
package nowerr

import (
	"errors"
	"io"
)

// Kind enumerates the closed set of failure categories the core can
// report. The set mirrors the original engine's error codes so that
// the (external) wire protocol can map a Kind to its two-byte status
// code without a lossy translation.
type Kind int

const (
	Invalid Kind = iota
	NoMem
	IO
	Compression
	Catalog
	BadBlock
	KeyNotFound
	DupKey
	NoSuchIndex
	NotSupported
	Panic
	Loader
	Procedure
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NoMem:
		return "no-memory"
	case IO:
		return "io"
	case Compression:
		return "compression"
	case Catalog:
		return "catalog"
	case BadBlock:
		return "bad-block"
	case KeyNotFound:
		return "key-not-found"
	case DupKey:
		return "duplicate-key"
	case NoSuchIndex:
		return "no-such-index"
	case NotSupported:
		return "not-supported"
	case Panic:
		return "panic"
	case Loader:
		return "loader"
	case Procedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// EOF is the normal reader/cursor termination signal. It is always
// io.EOF so callers can keep using errors.Is(err, io.EOF) without
// importing this package.
var EOF = io.EOF

// E is a chained, kind-tagged error. Op names the failing function in
// "package.Func" form; Path, when non-empty, is the file or catalog
// entry involved; Err is the wrapped cause, possibly another *E.
type E struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *E) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *E) Unwrap() error { return e.Err }

// Is reports whether target shares this error's Kind, so that callers
// can write errors.Is(err, nowerr.KeyNotFound) via a sentinel built
// with New(kind, "", "", nil).
func (e *E) Is(target error) bool {
	var te *E
	if errors.As(target, &te) && te.Err == nil && te.Path == "" && te.Op == "" {
		return e.Kind == te.Kind
	}
	return false
}

// New constructs a chained error of the given kind.
func New(kind Kind, op, path string, cause error) error {
	return &E{Kind: kind, Op: op, Path: path, Err: cause}
}

// Sentinel returns a bare Kind marker suitable for errors.Is comparisons.
func Sentinel(kind Kind) error { return &E{Kind: kind} }

// Wrap attaches Op/Path context to an existing error without losing
// its Kind, if it already carries one; otherwise it is filed as IO,
// the most common origin for unadorned OS errors.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return err
	}
	var e *E
	if errors.As(err, &e) {
		return &E{Kind: e.Kind, Op: op, Path: path, Err: err}
	}
	return &E{Kind: IO, Op: op, Path: path, Err: err}
}

// KindOf extracts the Kind carried by err, or Invalid if err does not
// carry one (including nil, which is never meaningful to call this
// with — callers should check err != nil first).
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return Invalid
}

// Chain formats every Kind in err's cause chain, outermost first, for
// diagnostics; the wire protocol (external) only ever surfaces the
// outermost message.
func Chain(err error) string {
	var out string
	for err != nil {
		var e *E
		if errors.As(err, &e) {
			if out != "" {
				out += " <- "
			}
			out += e.Kind.String()
			err = e.Err
			continue
		}
		if out != "" {
			out += " <- "
		}
		out += err.Error()
		err = errors.Unwrap(err)
	}
	return out
}

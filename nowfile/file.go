// Package nowfile implements the File component of spec §4.F: a
// fixed-capacity, block-granular container that is either mapped for
// appending (a Writer) or block-scanned for reading.
//
// The read-side primitives (line positioning, section reads, shared
// long-lived codecs) follow the teacher package's read.go/compress.go
// idiom directly; what's new here is block-at-a-time iteration with a
// per-block compressed header instead of one JSON line per record.
package nowfile

import (
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/toschoo/nowdb-go/nowerr"
)

// Control bits, packed into File.Ctrl.
const (
	CtrlSpare  = 1 << iota // pre-created, empty, not yet in use
	CtrlWriter             // currently being appended to
	CtrlReader             // filled, not yet sorted ("waiting")
	CtrlSort               // filled and sorted
	CtrlTS                 // carries a meaningful [oldest,newest] window
)

// Compression selects how a File's physical blocks are stored.
type Compression int

const (
	Flat Compression = iota
	Zstd
)

const (
	// BlockSize is the logical page size: 8KiB of record slots.
	BlockSize = 8 * 1024
	// DefaultWindow is the default size of a writer's mapped window.
	DefaultWindow = 4 * 1024 * 1024
)

// Shared zstd encoder/decoder — construction is expensive (internal
// tables, optional dictionaries), so one pair is built once and reused
// across every File, mirroring the teacher's compress.go rationale:
// compression happens on every flush-time block write, decompression
// only when a reader actually needs that block's content.
var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return zstdEnc
}

func decoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}

// File is one fixed-capacity block container in a Store's directory.
type File struct {
	ID         uint32
	Path       string
	Capacity   int64
	Size       int64
	BlockSize  int
	RecordSize int
	Ctrl       byte
	Comp       Compression
	Grain      Grain
	Oldest     int64
	Newest     int64

	fd     *os.File
	mapped []byte // mmap-like window for writer files; nil for readers
	mapOff int64
	window int
}

// New constructs a File handle without touching the filesystem. Use
// Create for a brand-new file or Open for an existing one.
func New(id uint32, path string, capacity int64, blockSize, recordSize int, ctrl byte, comp Compression, grain Grain) *File {
	return &File{
		ID:         id,
		Path:       path,
		Capacity:   capacity,
		BlockSize:  blockSize,
		RecordSize: recordSize,
		Ctrl:       ctrl,
		Comp:       comp,
		Grain:      grain,
		window:     DefaultWindow,
	}
}

// Create preallocates Capacity bytes on disk, zero-filled.
func (f *File) Create() error {
	fd, err := os.OpenFile(f.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nowerr.Wrap("nowfile.Create", f.Path, err)
	}
	buf := make([]byte, f.BlockSize)
	var written int64
	for written < f.Capacity {
		n := int64(len(buf))
		if written+n > f.Capacity {
			n = f.Capacity - written
		}
		if _, err := fd.WriteAt(buf[:n], written); err != nil {
			fd.Close()
			return nowerr.Wrap("nowfile.Create", f.Path, err)
		}
		written += n
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return nowerr.Wrap("nowfile.Create", f.Path, err)
	}
	f.fd = fd
	f.Size = 0
	return nil
}

// Open opens an existing File for reading or appending.
func (f *File) Open() error {
	flags := os.O_RDONLY
	if f.Ctrl&CtrlWriter != 0 {
		flags = os.O_RDWR
	}
	fd, err := os.OpenFile(f.Path, flags, 0644)
	if err != nil {
		return nowerr.Wrap("nowfile.Open", f.Path, err)
	}
	f.fd = fd
	return nil
}

// Close releases the File's handle and any mapped window.
func (f *File) Close() error {
	if err := f.Unmap(); err != nil {
		return err
	}
	if f.fd == nil {
		return nil
	}
	err := f.fd.Close()
	f.fd = nil
	if err != nil {
		return nowerr.Wrap("nowfile.Close", f.Path, err)
	}
	return nil
}

// Map loads a writer window starting at the current Size, so the next
// Append lands immediately after the last record written.
func (f *File) Map() error {
	return f.MapAt(f.Size)
}

// MapAt loads a bufsize-or-less window of the file into memory for
// appending, starting at byte position pos. Reader files are never
// mapped — they are block-scanned via Move instead.
func (f *File) MapAt(pos int64) error {
	if f.fd == nil {
		return nowerr.New(nowerr.Invalid, "nowfile.MapAt", f.Path, nil)
	}
	w := int64(f.window)
	if pos+w > f.Capacity {
		w = f.Capacity - pos
	}
	if w <= 0 {
		return nowerr.New(nowerr.Invalid, "nowfile.MapAt", f.Path, nil)
	}
	buf := make([]byte, w)
	if pos < f.Size {
		if _, err := f.fd.ReadAt(buf[:f.Size-pos], pos); err != nil {
			return nowerr.Wrap("nowfile.MapAt", f.Path, err)
		}
	}
	f.mapped = buf
	f.mapOff = pos
	return nil
}

// Unmap flushes and releases the current writer window.
func (f *File) Unmap() error {
	if f.mapped == nil {
		return nil
	}
	if err := f.flush(); err != nil {
		return err
	}
	f.mapped = nil
	return nil
}

func (f *File) flush() error {
	if f.mapped == nil || f.fd == nil {
		return nil
	}
	n := f.Size - f.mapOff
	if n <= 0 {
		return nil
	}
	if _, err := f.fd.WriteAt(f.mapped[:n], f.mapOff); err != nil {
		return nowerr.Wrap("nowfile.flush", f.Path, err)
	}
	return nil
}

// Append writes one record's bytes to the writer's mapped window and
// advances Size, updating the timestamp window for FLAT writers (per
// spec §4.F "Writes append to a writer file, updating size and, for
// FLAT writers, the timestamp window"). It reports whether the file
// is now full (Size >= Capacity), in which case the Store must swap
// in a fresh writer.
func (f *File) Append(rec []byte, ts int64) (full bool, err error) {
	if f.mapped == nil {
		if e := f.Map(); e != nil {
			return false, e
		}
	}
	local := f.Size - f.mapOff
	if local+int64(len(rec)) > int64(len(f.mapped)) {
		if e := f.Unmap(); e != nil {
			return false, e
		}
		if e := f.MapAt(f.Size); e != nil {
			return false, e
		}
		local = f.Size - f.mapOff
	}
	copy(f.mapped[local:], rec)
	f.Size += int64(len(rec))

	if f.Comp == Flat {
		if f.Ctrl&CtrlTS == 0 || ts < f.Oldest {
			f.Oldest = ts
			f.Ctrl |= CtrlTS
		}
		if ts > f.Newest {
			f.Newest = ts
		}
	}
	return f.Size >= f.Capacity, nil
}

// appendRawBlock writes one uncompressed 8KiB page to the writer's
// tail, updating the file-level timestamp window. FLAT files carry no
// per-block header — pruning for them happens only at file
// granularity via Intersects.
func (f *File) appendRawBlock(page []byte, from, to int64) error {
	if f.mapped == nil {
		if err := f.Map(); err != nil {
			return err
		}
	}
	local := f.Size - f.mapOff
	if local+int64(len(page)) > int64(len(f.mapped)) {
		if err := f.Unmap(); err != nil {
			return err
		}
		if err := f.MapAt(f.Size); err != nil {
			return err
		}
		local = f.Size - f.mapOff
	}
	copy(f.mapped[local:], page)
	f.Size += int64(len(page))
	if f.Ctrl&CtrlTS == 0 || from < f.Oldest {
		f.Oldest = from
		f.Ctrl |= CtrlTS
	}
	if to > f.Newest {
		f.Newest = to
	}
	return nil
}

// Intersects reports whether the file's [Oldest,Newest] window could
// contain any record in [from,to].
func (f *File) Intersects(from, to int64) bool {
	if f.Ctrl&CtrlTS == 0 {
		return true
	}
	return !Disjoint(f.Oldest, f.Newest, f.Grain.Normalize(from), f.Grain.Normalize(to))
}

// ReadAllInto reads the file's current Size bytes into buf, which
// must be at least that large. Used by the Store's background sorter
// to load a waiting file's slots for in-place reordering.
func (f *File) ReadAllInto(buf []byte) (int, error) {
	if int64(len(buf)) < f.Size {
		return 0, nowerr.New(nowerr.Invalid, "nowfile.ReadAllInto", f.Path, nil)
	}
	n, err := f.fd.ReadAt(buf[:f.Size], 0)
	if err != nil {
		return n, nowerr.Wrap("nowfile.ReadAllInto", f.Path, err)
	}
	return n, nil
}

// Rewrite overwrites the file's record-slot region with data,
// in place. Used after sorting a waiting file's slots; data must be
// exactly f.Size bytes so the file's logical length is unchanged.
func (f *File) Rewrite(data []byte) error {
	if int64(len(data)) != f.Size {
		return nowerr.New(nowerr.Invalid, "nowfile.Rewrite", f.Path, nil)
	}
	if _, err := f.fd.WriteAt(data, 0); err != nil {
		return nowerr.Wrap("nowfile.Rewrite", f.Path, err)
	}
	return nil
}

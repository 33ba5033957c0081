// Block iteration: move() and the per-block compressed header of §4.F
// and §6 ("Block header (compressed)").
package nowfile

import (
	"encoding/binary"
	"io"

	"github.com/toschoo/nowdb-go/record"
	"github.com/toschoo/nowdb-go/nowerr"
)

// blockHeaderFixedSize is reserved(4) + compressed_size(4) + from_ts(8) +
// to_ts(8) = 24 bytes, followed by the presence bitmap.
const blockHeaderFixedSize = 24

func blockHeaderSize(recordSize int) int {
	return blockHeaderFixedSize + record.CtrlSize(BlockSize/recordSize)
}

// blockHeader is the decoded per-block prefix for ZSTD files.
type blockHeader struct {
	CompressedSize uint32
	From           int64
	To             int64
	Presence       []byte
}

func decodeBlockHeader(b []byte) blockHeader {
	return blockHeader{
		CompressedSize: binary.LittleEndian.Uint32(b[4:8]),
		From:           int64(binary.LittleEndian.Uint64(b[8:16])),
		To:             int64(binary.LittleEndian.Uint64(b[16:24])),
		Presence:       append([]byte(nil), b[blockHeaderFixedSize:]...),
	}
}

func encodeBlockHeader(h blockHeader, hdrSize int) []byte {
	buf := make([]byte, hdrSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.CompressedSize)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.From))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.To))
	copy(buf[blockHeaderFixedSize:], h.Presence)
	return buf
}

// Cursor walks a File's physical blocks in [start,end) byte range,
// yielding logical 8KiB pages. It is the reader-side counterpart to
// Append: readers never mmap, they block-scan, per spec §4.F.
type Cursor struct {
	f        *File
	pos      int64 // next physical byte to read
	end      int64
	page     [BlockSize]byte
	leftover []byte // trailing bytes of a half-read block carried forward
}

// NewCursor opens a block cursor over the file's [start,end) physical
// byte range. For FLAT files this range is simply BlockSize-aligned;
// for ZSTD files it spans whole [header|payload] units.
func NewCursor(f *File, start, end int64) *Cursor {
	return &Cursor{f: f, pos: start, end: end}
}

// Move advances to the next usable block whose timestamp window
// intersects [qfrom,qto], skipping disjoint ZSTD blocks without
// decompressing them. It returns io.EOF when the range is exhausted.
func (c *Cursor) Move(qfrom, qto int64) error {
	if c.f.Comp == Flat {
		return c.moveFlat()
	}
	return c.moveZstd(qfrom, qto)
}

func (c *Cursor) moveFlat() error {
	if c.pos+int64(BlockSize) > c.end {
		return io.EOF
	}
	n, err := c.f.fd.ReadAt(c.page[:], c.pos)
	if err != nil && err != io.EOF {
		return nowerr.Wrap("nowfile.Move", c.f.Path, err)
	}
	if n < BlockSize {
		clear(c.page[n:])
	}
	c.pos += int64(BlockSize)
	return nil
}

func (c *Cursor) moveZstd(qfrom, qto int64) error {
	hdrSize := blockHeaderSize(c.f.RecordSize)
	qfrom, qto = c.f.Grain.Normalize(qfrom), c.f.Grain.Normalize(qto)
	for {
		if c.pos >= c.end {
			return io.EOF
		}
		hdrBuf := make([]byte, hdrSize)
		n, err := c.f.fd.ReadAt(hdrBuf, c.pos)
		if err != nil && err != io.EOF {
			return nowerr.Wrap("nowfile.Move", c.f.Path, err)
		}
		if n < hdrSize {
			return io.EOF
		}
		h := decodeBlockHeader(hdrBuf)
		blockStart := c.pos
		payloadStart := blockStart + int64(hdrSize)
		nextBlock := payloadStart + int64(h.CompressedSize)

		if Disjoint(h.From, h.To, qfrom, qto) {
			c.pos = nextBlock
			continue
		}

		payload := make([]byte, h.CompressedSize)
		if _, err := c.f.fd.ReadAt(payload, payloadStart); err != nil && err != io.EOF {
			return nowerr.Wrap("nowfile.Move", c.f.Path, err)
		}
		out, err := decoder().DecodeAll(payload, nil)
		if err != nil {
			return nowerr.New(nowerr.Compression, "nowfile.Move", c.f.Path, err)
		}
		if len(out) != BlockSize {
			return nowerr.New(nowerr.BadBlock, "nowfile.Move", c.f.Path, nil)
		}
		copy(c.page[:], out)
		c.pos = nextBlock
		return nil
	}
}

// Page returns the current 8KiB page of record slots, valid after a
// successful Move.
func (c *Cursor) Page() []byte { return c.page[:] }

// ReadBlockAt loads the single block starting at physical byte offset
// off, for random-access readers (Search, Frange, Mrange) that jump
// straight to a page referenced by an index leaf instead of scanning
// sequentially. It returns the decoded 8KiB page, its timestamp
// window, and the offset of the next block — the same triple a page
// LRU needs to cache by (FileID, offset) without re-decompressing on
// a repeat visit.
func ReadBlockAt(f *File, off int64) (page []byte, from, to, next int64, err error) {
	if f.Comp == Flat {
		buf := make([]byte, BlockSize)
		n, rerr := f.fd.ReadAt(buf, off)
		if rerr != nil && rerr != io.EOF {
			return nil, 0, 0, 0, nowerr.Wrap("nowfile.ReadBlockAt", f.Path, rerr)
		}
		if n < BlockSize {
			clear(buf[n:])
		}
		return buf, f.Oldest, f.Newest, off + int64(BlockSize), nil
	}

	hdrSize := blockHeaderSize(f.RecordSize)
	hdrBuf := make([]byte, hdrSize)
	n, rerr := f.fd.ReadAt(hdrBuf, off)
	if rerr != nil && rerr != io.EOF {
		return nil, 0, 0, 0, nowerr.Wrap("nowfile.ReadBlockAt", f.Path, rerr)
	}
	if n < hdrSize {
		return nil, 0, 0, 0, io.EOF
	}
	h := decodeBlockHeader(hdrBuf)
	payloadStart := off + int64(hdrSize)
	nextBlock := payloadStart + int64(h.CompressedSize)

	payload := make([]byte, h.CompressedSize)
	if _, err := f.fd.ReadAt(payload, payloadStart); err != nil && err != io.EOF {
		return nil, 0, 0, 0, nowerr.Wrap("nowfile.ReadBlockAt", f.Path, err)
	}
	out, err := decoder().DecodeAll(payload, nil)
	if err != nil {
		return nil, 0, 0, 0, nowerr.New(nowerr.Compression, "nowfile.ReadBlockAt", f.Path, err)
	}
	if len(out) != BlockSize {
		return nil, 0, 0, 0, nowerr.New(nowerr.BadBlock, "nowfile.ReadBlockAt", f.Path, nil)
	}
	return out, h.From, h.To, nextBlock, nil
}

// WriteBlock compresses one 8KiB page (ZSTD files) and appends
// [header|payload] to the file's tail, recording the page's own
// timestamp window and presence bitmap in the header so future reads
// can prune it without decompressing (§4.F step 2).
func WriteBlock(f *File, page []byte, from, to int64, presence []byte) error {
	if f.Comp == Flat {
		return f.appendRawBlock(page, from, to)
	}
	compressed := encoder().EncodeAll(page, nil)
	h := blockHeader{CompressedSize: uint32(len(compressed)), From: from, To: to, Presence: presence}
	hdrSize := blockHeaderSize(f.RecordSize)
	buf := make([]byte, 0, hdrSize+len(compressed))
	buf = append(buf, encodeBlockHeader(h, hdrSize)...)
	buf = append(buf, compressed...)

	if f.mapped == nil {
		if err := f.Map(); err != nil {
			return err
		}
	}
	local := f.Size - f.mapOff
	if local+int64(len(buf)) > int64(len(f.mapped)) {
		if err := f.Unmap(); err != nil {
			return err
		}
		if err := f.MapAt(f.Size); err != nil {
			return err
		}
		local = f.Size - f.mapOff
	}
	copy(f.mapped[local:], buf)
	f.Size += int64(len(buf))
	if f.Ctrl&CtrlTS == 0 || from < f.Oldest {
		f.Oldest = from
		f.Ctrl |= CtrlTS
	}
	if to > f.Newest {
		f.Newest = to
	}
	return nil
}

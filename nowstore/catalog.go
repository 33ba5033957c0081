// Catalog persistence for a Store: the binary format of spec §4.S,
// written through folio's write-with-backup pattern (new file to
// "cat.bkp", fsync, atomic rename over "cat") generalized from a
// single JSON header to a list of fixed-width file-entry records.
package nowstore

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowfile"
)

var catalogMagic = [4]byte{'N', 'O', 'W', 'C'}

const catalogVersion uint32 = 1

// entry mirrors one Catalog entry of spec §4.S exactly: id, order,
// capacity, size, recordsize, blocksize, ctrl, compression,
// encryption, grain, oldest, newest, filename.
type entry struct {
	ID         uint32
	Order      uint32
	Capacity   uint32
	Size       uint32
	RecordSize uint32
	BlockSize  uint32
	Ctrl       byte
	Comp       uint32
	Encryption uint32
	Grain      int64
	Oldest     int64
	Newest     int64
	Filename   string
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, 0, 4*8+1+8*3+len(e.Filename)+1)
	var tmp [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	putI64 := func(v int64) {
		var t8 [8]byte
		binary.LittleEndian.PutUint64(t8[:], uint64(v))
		buf = append(buf, t8[:]...)
	}
	putU32(e.ID)
	putU32(e.Order)
	putU32(e.Capacity)
	putU32(e.Size)
	putU32(e.RecordSize)
	putU32(e.BlockSize)
	buf = append(buf, e.Ctrl)
	putU32(e.Comp)
	putU32(e.Encryption)
	putI64(e.Grain)
	putI64(e.Oldest)
	putI64(e.Newest)
	buf = append(buf, []byte(e.Filename)...)
	buf = append(buf, 0)
	return buf
}

func decodeEntry(b []byte) (entry, int, error) {
	const fixed = 4*8 + 1 + 8*3
	if len(b) < fixed+1 {
		return entry{}, 0, nowerr.New(nowerr.Catalog, "nowstore.decodeEntry", "", nil)
	}
	var e entry
	off := 0
	readU32 := func() uint32 {
		v := binary.LittleEndian.Uint32(b[off:])
		off += 4
		return v
	}
	readI64 := func() int64 {
		v := int64(binary.LittleEndian.Uint64(b[off:]))
		off += 8
		return v
	}
	e.ID = readU32()
	e.Order = readU32()
	e.Capacity = readU32()
	e.Size = readU32()
	e.RecordSize = readU32()
	e.BlockSize = readU32()
	e.Ctrl = b[off]
	off++
	e.Comp = readU32()
	e.Encryption = readU32()
	e.Grain = readI64()
	e.Oldest = readI64()
	e.Newest = readI64()

	nul := bytes.IndexByte(b[off:], 0)
	if nul < 0 {
		return entry{}, 0, nowerr.New(nowerr.Catalog, "nowstore.decodeEntry", "", nil)
	}
	e.Filename = string(b[off : off+nul])
	off += nul + 1
	return e, off, nil
}

// writeCatalog serializes entries to dir/cat via the write-to-backup-
// then-rename sequence: dir/cat.bkp is written and fsynced first, then
// renamed over dir/cat. If the process dies between those two steps,
// readCatalog's crash check renames cat.bkp back into place (§8
// property 9, "Catalog-with-backup").
func writeCatalog(dir string, entries []entry) error {
	path := filepath.Join(dir, "cat")
	bkp := path + ".bkp"

	buf := make([]byte, 0, 256)
	buf = append(buf, catalogMagic[:]...)
	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], catalogVersion)
	buf = append(buf, ver[:]...)
	for _, e := range entries {
		buf = append(buf, encodeEntry(e)...)
	}

	fd, err := os.OpenFile(bkp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nowerr.Wrap("nowstore.writeCatalog", bkp, err)
	}
	if _, err := fd.Write(buf); err != nil {
		fd.Close()
		return nowerr.Wrap("nowstore.writeCatalog", bkp, err)
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return nowerr.Wrap("nowstore.writeCatalog", bkp, err)
	}
	if err := fd.Close(); err != nil {
		return nowerr.Wrap("nowstore.writeCatalog", bkp, err)
	}
	if err := os.Rename(bkp, path); err != nil {
		return nowerr.Wrap("nowstore.writeCatalog", path, err)
	}
	return nil
}

// readCatalog loads dir/cat, first restoring dir/cat.bkp over it if a
// crash interrupted a previous writeCatalog after the rename-away but
// before the new file finished (the .bkp would be left over from the
// *next* write attempt in that narrow window — the invariant this
// satisfies is: on reopen, an orphaned .bkp always wins, because a
// complete "cat" would already reflect it).
func readCatalog(dir string) ([]entry, error) {
	path := filepath.Join(dir, "cat")
	bkp := path + ".bkp"

	if _, err := os.Stat(bkp); err == nil {
		if err := os.Rename(bkp, path); err != nil {
			return nil, nowerr.Wrap("nowstore.readCatalog", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, nowerr.Wrap("nowstore.readCatalog", path, err)
	}
	if len(data) < 8 || !bytes.Equal(data[:4], catalogMagic[:]) {
		return nil, nowerr.New(nowerr.Catalog, "nowstore.readCatalog", path, nil)
	}
	data = data[8:]

	var entries []entry
	for len(data) > 0 {
		e, n, err := decodeEntry(data)
		if err != nil {
			return nil, nowerr.Wrap("nowstore.readCatalog", path, err)
		}
		entries = append(entries, e)
		data = data[n:]
	}
	return entries, nil
}

func entryToFile(dir string, e entry) *nowfile.File {
	f := nowfile.New(e.ID, filepath.Join(dir, e.Filename), int64(e.Capacity),
		int(e.BlockSize), int(e.RecordSize), e.Ctrl, nowfile.Compression(e.Comp), nowfile.Grain(e.Grain))
	f.Size = int64(e.Size)
	f.Oldest = e.Oldest
	f.Newest = e.Newest
	return f
}

func fileToEntry(order uint32, f *nowfile.File) entry {
	return entry{
		ID:         f.ID,
		Order:      order,
		Capacity:   uint32(f.Capacity),
		Size:       uint32(f.Size),
		RecordSize: uint32(f.RecordSize),
		BlockSize:  uint32(f.BlockSize),
		Ctrl:       f.Ctrl,
		Comp:       uint32(f.Comp),
		Grain:      int64(f.Grain),
		Oldest:     f.Oldest,
		Newest:     f.Newest,
		Filename:   filepath.Base(f.Path),
	}
}

// Persistence for a Tree: a flat sorted snapshot of (key, value)
// pairs, written through the same write-to-backup-then-rename
// sequence used throughout the storage core. The tree itself stays
// in-memory; Save/Load trade a full-tree rewrite for a dramatically
// simpler on-disk format than a paged B+ tree would need, appropriate
// for catalogs of this size (index entries, not the records they
// point to).
package nowindex

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/toschoo/nowdb-go/nowerr"
)

var indexMagic = [4]byte{'N', 'O', 'I', 'X'}

const indexVersion uint32 = 1

func fileName(dir, name string) string {
	return filepath.Join(dir, "idx_"+name)
}

// Save writes the tree's full key/value snapshot to dir.
func (t *Tree) Save(dir string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	path := fileName(dir, t.Name)
	bkp := path + ".bkp"

	var buf bytes.Buffer
	buf.Write(indexMagic[:])
	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], indexVersion)
	buf.Write(ver[:])

	it := &Iterator{pos: -1}
	collectAll(t.root, it)
	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(it.entries)))
	buf.Write(cnt[:])
	for _, e := range it.entries {
		var klen [4]byte
		binary.LittleEndian.PutUint32(klen[:], uint32(len(e.key)))
		buf.Write(klen[:])
		buf.Write(e.key)
		buf.Write(encodeLeafValue(e.value))
	}

	fd, err := os.OpenFile(bkp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nowerr.Wrap("nowindex.Save", bkp, err)
	}
	if _, err := fd.Write(buf.Bytes()); err != nil {
		fd.Close()
		return nowerr.Wrap("nowindex.Save", bkp, err)
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return nowerr.Wrap("nowindex.Save", bkp, err)
	}
	if err := fd.Close(); err != nil {
		return nowerr.Wrap("nowindex.Save", bkp, err)
	}
	return nowerr.Wrap("nowindex.Save", path, os.Rename(bkp, path))
}

// Load rebuilds a tree by bulk-inserting a saved snapshot.
func Load(dir, name string, spec KeySpec, order int) (*Tree, error) {
	path := fileName(dir, name)
	bkp := path + ".bkp"

	if _, err := os.Stat(bkp); err == nil {
		if err := os.Rename(bkp, path); err != nil {
			return nil, nowerr.Wrap("nowindex.Load", path, err)
		}
	}

	t := Create(name, spec, order)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, nowerr.Wrap("nowindex.Load", path, err)
	}
	if len(data) < 8 || !bytes.Equal(data[:4], indexMagic[:]) {
		return nil, nowerr.New(nowerr.Catalog, "nowindex.Load", path, nil)
	}
	data = data[8:]

	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	for i := uint32(0); i < n; i++ {
		klen := binary.LittleEndian.Uint32(data)
		data = data[4:]
		key := append([]byte(nil), data[:klen]...)
		data = data[klen:]
		v, rest, err := decodeLeafValue(data)
		if err != nil {
			return nil, err
		}
		data = rest

		leaf, idx := t.findLeaf(key)
		t.insertAt(leaf, idx, key, v)
	}
	return t, nil
}

func collectAll(n *node, it *Iterator) {
	if n.leaf {
		for i, k := range n.keys {
			it.entries = append(it.entries, entryRef{k, n.values[i]})
		}
		return
	}
	for _, c := range n.children {
		collectAll(c, it)
	}
}

func encodeLeafValue(v LeafValue) []byte {
	buf := make([]byte, 0, 1+8+16+4+len(v.Overflow)*16)
	buf = append(buf, byte(v.Kind))
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], v.PageID)
	buf = append(buf, u64[:]...)
	buf = append(buf, v.Bitmap[:]...)
	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(v.Overflow)))
	buf = append(buf, cnt[:]...)
	for _, o := range v.Overflow {
		buf = append(buf, o[:]...)
	}
	return buf
}

func decodeLeafValue(b []byte) (LeafValue, []byte, error) {
	if len(b) < 1+8+16+4 {
		return LeafValue{}, nil, nowerr.New(nowerr.Catalog, "nowindex.decodeLeafValue", "", nil)
	}
	var v LeafValue
	v.Kind = LeafKind(b[0])
	b = b[1:]
	v.PageID = binary.LittleEndian.Uint64(b)
	b = b[8:]
	copy(v.Bitmap[:], b[:16])
	b = b[16:]
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	for i := uint32(0); i < n; i++ {
		if len(b) < 16 {
			return LeafValue{}, nil, nowerr.New(nowerr.Catalog, "nowindex.decodeLeafValue", "", nil)
		}
		var o [16]byte
		copy(o[:], b[:16])
		v.Overflow = append(v.Overflow, o)
		b = b[16:]
	}
	return v, b, nil
}

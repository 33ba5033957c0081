package nowmodel

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/record"
)

var catalogMagic = [4]byte{'N', 'O', 'M', 'D'}

const catalogVersion uint32 = 1

// catalogState is the whole Model catalog, as persisted in one file —
// vertices, properties, edges and pedges are small in number relative
// to a Scope's data volume, so unlike the Store's per-file catalog
// there is no incremental-append path: every mutation rewrites the
// catalog whole, via the same write-to-backup-then-rename sequence.
type catalogState struct {
	Vertices   []Vertex
	Properties []Property
	Edges      []Edge
	PEdges     []PEdge
}

func encodeVertex(v Vertex) []byte {
	buf := make([]byte, 0, 4+1+1+2+4+4+len(v.Name)+1)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], v.RoleID)
	buf = append(buf, u32[:]...)
	if v.Stamped {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], v.Num)
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint32(u32[:], v.Ctrl)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], v.Size)
	buf = append(buf, u32[:]...)
	buf = append(buf, []byte(v.Name)...)
	buf = append(buf, 0)
	return buf
}

func decodeVertex(b []byte) (Vertex, int, error) {
	if len(b) < 4+1+2+4+4+1 {
		return Vertex{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodeVertex", "", nil)
	}
	var v Vertex
	off := 0
	v.RoleID = binary.LittleEndian.Uint32(b[off:])
	off += 4
	v.Stamped = b[off] != 0
	off++
	v.Num = binary.LittleEndian.Uint16(b[off:])
	off += 2
	v.Ctrl = binary.LittleEndian.Uint32(b[off:])
	off += 4
	v.Size = binary.LittleEndian.Uint32(b[off:])
	off += 4
	nul := bytes.IndexByte(b[off:], 0)
	if nul < 0 {
		return Vertex{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodeVertex", "", nil)
	}
	v.Name = string(b[off : off+nul])
	off += nul + 1
	return v, off, nil
}

func encodeProperty(p Property) []byte {
	buf := make([]byte, 0, 8+4+4+1+1+1+1+4+len(p.Name)+1)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], p.PropID)
	buf = append(buf, u64[:]...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], p.RoleID)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], p.Pos)
	buf = append(buf, u32[:]...)
	buf = append(buf, byte(p.Value))
	buf = append(buf, boolByte(p.PK), boolByte(p.Stamp), boolByte(p.Inc))
	binary.LittleEndian.PutUint32(u32[:], p.Off)
	buf = append(buf, u32[:]...)
	buf = append(buf, []byte(p.Name)...)
	buf = append(buf, 0)
	return buf
}

func decodeProperty(b []byte) (Property, int, error) {
	if len(b) < 8+4+4+1+1+1+1+4+1 {
		return Property{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodeProperty", "", nil)
	}
	var p Property
	off := 0
	p.PropID = binary.LittleEndian.Uint64(b[off:])
	off += 8
	p.RoleID = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Pos = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Value = record.ValueType(b[off])
	off++
	p.PK = b[off] != 0
	off++
	p.Stamp = b[off] != 0
	off++
	p.Inc = b[off] != 0
	off++
	p.Off = binary.LittleEndian.Uint32(b[off:])
	off += 4
	nul := bytes.IndexByte(b[off:], 0)
	if nul < 0 {
		return Property{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodeProperty", "", nil)
	}
	p.Name = string(b[off : off+nul])
	off += nul + 1
	return p, off, nil
}

func encodeEdge(e Edge) []byte {
	buf := make([]byte, 0, 4*3+1*3+2+4+8+len(e.Name)+1)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], e.RoleID)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], e.Origin)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], e.Destin)
	buf = append(buf, u32[:]...)
	buf = append(buf, byte(e.LabelType), byte(e.WeightType), byte(e.Weight2Type))
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], e.Num)
	buf = append(buf, u16[:]...)
	binary.LittleEndian.PutUint32(u32[:], e.Size)
	buf = append(buf, u32[:]...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], e.StampPropID)
	buf = append(buf, u64[:]...)
	buf = append(buf, []byte(e.Name)...)
	buf = append(buf, 0)
	return buf
}

func decodeEdge(b []byte) (Edge, int, error) {
	if len(b) < 4*3+1*3+2+4+8+1 {
		return Edge{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodeEdge", "", nil)
	}
	var e Edge
	off := 0
	e.RoleID = binary.LittleEndian.Uint32(b[off:])
	off += 4
	e.Origin = binary.LittleEndian.Uint32(b[off:])
	off += 4
	e.Destin = binary.LittleEndian.Uint32(b[off:])
	off += 4
	e.LabelType = record.ValueType(b[off])
	off++
	e.WeightType = record.ValueType(b[off])
	off++
	e.Weight2Type = record.ValueType(b[off])
	off++
	e.Num = binary.LittleEndian.Uint16(b[off:])
	off += 2
	e.Size = binary.LittleEndian.Uint32(b[off:])
	off += 4
	e.StampPropID = binary.LittleEndian.Uint64(b[off:])
	off += 8
	nul := bytes.IndexByte(b[off:], 0)
	if nul < 0 {
		return Edge{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodeEdge", "", nil)
	}
	e.Name = string(b[off : off+nul])
	off += nul + 1
	return e, off, nil
}

func encodePEdge(p PEdge) []byte {
	buf := make([]byte, 0, 8+4+4+1+1+1+1+4+len(p.Name)+1)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], p.PropID)
	buf = append(buf, u64[:]...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], p.RoleID)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], p.Pos)
	buf = append(buf, u32[:]...)
	buf = append(buf, byte(p.Value))
	buf = append(buf, boolByte(p.Origin), boolByte(p.Destin), boolByte(p.Stamp))
	binary.LittleEndian.PutUint32(u32[:], p.Off)
	buf = append(buf, u32[:]...)
	buf = append(buf, []byte(p.Name)...)
	buf = append(buf, 0)
	return buf
}

func decodePEdge(b []byte) (PEdge, int, error) {
	if len(b) < 8+4+4+1+1+1+1+4+1 {
		return PEdge{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodePEdge", "", nil)
	}
	var p PEdge
	off := 0
	p.PropID = binary.LittleEndian.Uint64(b[off:])
	off += 8
	p.RoleID = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Pos = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Value = record.ValueType(b[off])
	off++
	p.Origin = b[off] != 0
	off++
	p.Destin = b[off] != 0
	off++
	p.Stamp = b[off] != 0
	off++
	p.Off = binary.LittleEndian.Uint32(b[off:])
	off += 4
	nul := bytes.IndexByte(b[off:], 0)
	if nul < 0 {
		return PEdge{}, 0, nowerr.New(nowerr.Catalog, "nowmodel.decodePEdge", "", nil)
	}
	p.Name = string(b[off : off+nul])
	off += nul + 1
	return p, off, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// writeCatalog serializes the whole model to dir/model via the same
// write-to-backup-then-rename sequence as the Store catalog (spec §8
// property 9).
func writeCatalog(dir string, st catalogState) error {
	path := filepath.Join(dir, "model")
	bkp := path + ".bkp"

	var buf bytes.Buffer
	buf.Write(catalogMagic[:])
	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], catalogVersion)
	buf.Write(ver[:])

	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(st.Vertices)))
	buf.Write(cnt[:])
	for _, v := range st.Vertices {
		buf.Write(encodeVertex(v))
	}
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(st.Properties)))
	buf.Write(cnt[:])
	for _, p := range st.Properties {
		buf.Write(encodeProperty(p))
	}
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(st.Edges)))
	buf.Write(cnt[:])
	for _, e := range st.Edges {
		buf.Write(encodeEdge(e))
	}
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(st.PEdges)))
	buf.Write(cnt[:])
	for _, p := range st.PEdges {
		buf.Write(encodePEdge(p))
	}

	fd, err := os.OpenFile(bkp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nowerr.Wrap("nowmodel.writeCatalog", bkp, err)
	}
	if _, err := fd.Write(buf.Bytes()); err != nil {
		fd.Close()
		return nowerr.Wrap("nowmodel.writeCatalog", bkp, err)
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return nowerr.Wrap("nowmodel.writeCatalog", bkp, err)
	}
	if err := fd.Close(); err != nil {
		return nowerr.Wrap("nowmodel.writeCatalog", bkp, err)
	}
	if err := os.Rename(bkp, path); err != nil {
		return nowerr.Wrap("nowmodel.writeCatalog", path, err)
	}
	return nil
}

// readCatalog loads dir/model, restoring an orphaned dir/model.bkp
// over it first.
func readCatalog(dir string) (catalogState, error) {
	path := filepath.Join(dir, "model")
	bkp := path + ".bkp"

	if _, err := os.Stat(bkp); err == nil {
		if err := os.Rename(bkp, path); err != nil {
			return catalogState{}, nowerr.Wrap("nowmodel.readCatalog", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return catalogState{}, nil
	}
	if err != nil {
		return catalogState{}, nowerr.Wrap("nowmodel.readCatalog", path, err)
	}
	if len(data) < 8 || !bytes.Equal(data[:4], catalogMagic[:]) {
		return catalogState{}, nowerr.New(nowerr.Catalog, "nowmodel.readCatalog", path, nil)
	}
	data = data[8:]

	readCount := func() uint32 {
		n := binary.LittleEndian.Uint32(data)
		data = data[4:]
		return n
	}

	var st catalogState
	n := readCount()
	for i := uint32(0); i < n; i++ {
		v, k, err := decodeVertex(data)
		if err != nil {
			return catalogState{}, err
		}
		st.Vertices = append(st.Vertices, v)
		data = data[k:]
	}
	n = readCount()
	for i := uint32(0); i < n; i++ {
		p, k, err := decodeProperty(data)
		if err != nil {
			return catalogState{}, err
		}
		st.Properties = append(st.Properties, p)
		data = data[k:]
	}
	n = readCount()
	for i := uint32(0); i < n; i++ {
		e, k, err := decodeEdge(data)
		if err != nil {
			return catalogState{}, err
		}
		st.Edges = append(st.Edges, e)
		data = data[k:]
	}
	n = readCount()
	for i := uint32(0); i < n; i++ {
		p, k, err := decodePEdge(data)
		if err != nil {
			return catalogState{}, err
		}
		st.PEdges = append(st.PEdges, p)
		data = data[k:]
	}
	return st, nil
}

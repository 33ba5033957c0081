package nowreader

// PageID identifies one physical block: a file id and its starting
// byte offset within that file. Packing both into a uint64 keeps an
// index leaf's PageID field (spec §4.I) a single scalar; it bounds a
// single file to 4GiB, well beyond nowstore's configured per-file
// capacity in practice.
type PageID uint64

// EncodePageID packs a file id and byte offset into one PageID.
func EncodePageID(fileID uint32, offset int64) PageID {
	return PageID(uint64(fileID)<<32 | uint64(uint32(offset)))
}

// FileID extracts the file id half of a PageID.
func (p PageID) FileID() uint32 { return uint32(p >> 32) }

// Offset extracts the byte-offset half of a PageID.
func (p PageID) Offset() int64 { return int64(uint32(p)) }

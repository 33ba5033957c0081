package nowtext

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/toschoo/nowdb-go/nowerr"
)

// dictLog is the append-only entry log, following the same
// append-each-record-then-fsync idiom the teacher package uses for its
// document log: a crash can only ever lose an unfsynced tail entry,
// never corrupt an earlier one.
const dictLog = "text.log"

// load replays the dictionary's append-only log into memory.
func (d *Dict) load() error {
	path := filepath.Join(d.dir, dictLog)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return nowerr.Wrap("nowtext.load", path, err)
	}
	defer f.Close()

	hdr := make([]byte, 12)
	for {
		if _, err := io.ReadFull(f, hdr); err != nil {
			if err == io.EOF {
				break
			}
			// A short final header means an unfsynced crash tail;
			// treat everything read so far as the recovered state.
			break
		}
		textLen := binary.LittleEndian.Uint32(hdr[0:4])
		key := binary.LittleEndian.Uint64(hdr[4:12])
		buf := make([]byte, textLen)
		if _, err := io.ReadFull(f, buf); err != nil {
			break
		}
		s := string(buf)
		d.byKey[key] = s
		d.byText[s] = key
	}
	return nil
}

// appendEntry durably records one new (key, text) pair.
func (d *Dict) appendEntry(key uint64, s string) error {
	path := filepath.Join(d.dir, dictLog)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nowerr.Wrap("nowtext.appendEntry", path, err)
	}
	defer f.Close()

	hdr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(s)))
	binary.LittleEndian.PutUint64(hdr[4:12], key)
	if _, err := f.Write(hdr); err != nil {
		return nowerr.Wrap("nowtext.appendEntry", path, err)
	}
	if _, err := f.Write([]byte(s)); err != nil {
		return nowerr.Wrap("nowtext.appendEntry", path, err)
	}
	if err := f.Sync(); err != nil {
		return nowerr.Wrap("nowtext.appendEntry", path, err)
	}
	return nil
}

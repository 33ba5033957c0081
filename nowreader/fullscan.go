package nowreader

import (
	"io"

	"github.com/toschoo/nowdb-go/nowfile"
)

// Fullscan walks a file list in order, advancing one block at a time
// and pruning at block (ZSTD) or file (FLAT) granularity against
// [from,to].
type Fullscan struct {
	files  []*nowfile.File
	from   int64
	to     int64
	fi     int
	cursor *nowfile.Cursor
}

// NewFullscan builds a Fullscan over files, in the given order.
func NewFullscan(files []*nowfile.File) *Fullscan {
	return &Fullscan{files: files, to: nowfile.Dusk, from: nowfile.Dawn}
}

func (r *Fullscan) SetPeriod(from, to int64) { r.from, r.to = from, to }

func (r *Fullscan) Open() error {
	r.fi = 0
	return r.openCurrent()
}

func (r *Fullscan) openCurrent() error {
	for r.fi < len(r.files) {
		f := r.files[r.fi]
		if !f.Intersects(r.from, r.to) {
			r.fi++
			continue
		}
		r.cursor = nowfile.NewCursor(f, 0, f.Size)
		return nil
	}
	r.cursor = nil
	return nil
}

func (r *Fullscan) Move() error {
	for {
		if r.cursor == nil {
			return io.EOF
		}
		err := r.cursor.Move(r.from, r.to)
		if err == nil {
			return nil
		}
		if err != io.EOF {
			return err
		}
		r.fi++
		if err := r.openCurrent(); err != nil {
			return err
		}
	}
}

func (r *Fullscan) Page() []byte {
	if r.cursor == nil {
		return nil
	}
	return r.cursor.Page()
}

func (r *Fullscan) Key() []byte { return nil }

func (r *Fullscan) Rewind() error {
	return r.Open()
}

func (r *Fullscan) Close() error { return nil }

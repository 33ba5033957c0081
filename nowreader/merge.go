package nowreader

import (
	"bytes"
	"io"
	"sort"

	"github.com/toschoo/nowdb-go/nowfile"
	"github.com/toschoo/nowdb-go/nowindex"
)

// Merge pairs an indexed range reader over a Store's sorted files with
// a linear buffer reader over its waiting (not-yet-sorted) files,
// serving both through one ordered-by-key sequence. Grounded on the
// teacher's split between a binary-searched sorted section and a
// linearly-scanned unsorted tail, here applied to 8KiB record pages
// instead of JSON lines: the waiting files are scanned once up front
// into an in-memory sort rather than re-scanned per key, since a
// Store's waiting set is small by construction (spec §5 "Store").
type Merge struct {
	sorted Reader
	spec   nowindex.KeySpec
	waitingFiles []*nowfile.File

	pending    []waitingRecord
	pendingPos int

	sortedDone    bool
	sortedHasRec  bool
	sortedRec     []byte
	sortedKey     []byte

	curPending bool
	curRec     []byte
	curKey     []byte
}

type waitingRecord struct {
	key []byte
	rec []byte
}

// NewMerge builds a Merge over a sorted-side range reader and the raw
// content of a Store's waiting files, keyed by spec.
func NewMerge(sorted Reader, spec nowindex.KeySpec, waiting []*nowfile.File) (*Merge, error) {
	m := &Merge{sorted: sorted, spec: spec, waitingFiles: waiting}
	if err := m.loadWaiting(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Merge) loadWaiting() error {
	m.pending = m.pending[:0]
	for _, f := range m.waitingFiles {
		cur := nowfile.NewCursor(f, 0, f.Size)
		for {
			err := cur.Move(nowfile.Dawn, nowfile.Dusk)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			page := cur.Page()
			for off := 0; off+f.RecordSize <= len(page); off += f.RecordSize {
				rec := page[off : off+f.RecordSize]
				if isZeroRecord(rec) {
					continue
				}
				m.pending = append(m.pending, waitingRecord{
					key: m.spec.Build(rec),
					rec: append([]byte(nil), rec...),
				})
			}
		}
	}
	sort.Slice(m.pending, func(i, j int) bool {
		return bytes.Compare(m.pending[i].key, m.pending[j].key) < 0
	})
	return nil
}

func isZeroRecord(rec []byte) bool {
	for _, b := range rec {
		if b != 0 {
			return false
		}
	}
	return true
}

func (m *Merge) SetPeriod(from, to int64) { m.sorted.SetPeriod(from, to) }

func (m *Merge) Open() error {
	m.pendingPos = 0
	m.sortedDone = false
	m.sortedHasRec = false
	return m.sorted.Open()
}

func (m *Merge) fillSorted() {
	if m.sortedHasRec || m.sortedDone {
		return
	}
	if err := m.sorted.Move(); err != nil {
		m.sortedDone = true
		return
	}
	m.sortedRec = m.sorted.Page()
	m.sortedKey = m.sorted.Key()
	m.sortedHasRec = true
}

// Move yields the next record in ascending key order, drawing from
// whichever side currently holds the smaller key.
func (m *Merge) Move() error {
	m.fillSorted()

	havePending := m.pendingPos < len(m.pending)
	haveSorted := m.sortedHasRec

	if !havePending && !haveSorted {
		return io.EOF
	}

	if havePending && (!haveSorted || bytes.Compare(m.pending[m.pendingPos].key, m.sortedKey) <= 0) {
		m.curPending = true
		m.curRec = m.pending[m.pendingPos].rec
		m.curKey = m.pending[m.pendingPos].key
		m.pendingPos++
		return nil
	}

	m.curPending = false
	m.curRec = m.sortedRec
	m.curKey = m.sortedKey
	m.sortedHasRec = false
	return nil
}

func (m *Merge) Page() []byte { return m.curRec }
func (m *Merge) Key() []byte  { return m.curKey }

func (m *Merge) Rewind() error {
	return m.Open()
}

func (m *Merge) Close() error { return m.sorted.Close() }

package nowscope

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/toschoo/nowdb-go/nowerr"
)

const (
	procCatName    = "proc.cat"
	procCatTmpName = "proc.cat.tmp"
)

// ProcedureCatalog is a thin persistent name->bytecode-blob registry,
// the on-disk peer of Model's and Index's write-with-backup catalogs.
// It never executes a procedure — the (external) SQL layer is the
// only consumer of CREATE/DROP PROCEDURE and whatever it stores here.
type ProcedureCatalog struct {
	dir   string
	mu    sync.RWMutex
	procs map[string][]byte
}

type procEntry struct {
	Name string `json:"name"`
	Body []byte `json:"body"`
}

func openProcedureCatalog(dir string) (*ProcedureCatalog, error) {
	pc := &ProcedureCatalog{dir: dir, procs: make(map[string][]byte)}
	b, err := os.ReadFile(filepath.Join(dir, procCatName))
	if err != nil {
		if os.IsNotExist(err) {
			return pc, nil
		}
		return nil, nowerr.Wrap("nowscope.openProcedureCatalog", dir, err)
	}
	var entries []procEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, nowerr.Wrap("nowscope.openProcedureCatalog", dir, err)
	}
	for _, e := range entries {
		pc.procs[e.Name] = e.Body
	}
	return pc, nil
}

func (pc *ProcedureCatalog) persistLocked() error {
	entries := make([]procEntry, 0, len(pc.procs))
	for name, body := range pc.procs {
		entries = append(entries, procEntry{Name: name, Body: body})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nowerr.Wrap("nowscope.ProcedureCatalog.persist", pc.dir, err)
	}
	tmp := filepath.Join(pc.dir, procCatTmpName)
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return nowerr.Wrap("nowscope.ProcedureCatalog.persist", pc.dir, err)
	}
	if f, err := os.Open(tmp); err == nil {
		_ = f.Sync()
		f.Close()
	}
	return os.Rename(tmp, filepath.Join(pc.dir, procCatName))
}

// Create registers name -> body, overwriting any prior definition.
func (pc *ProcedureCatalog) Create(name string, body []byte) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.procs[name] = append([]byte(nil), body...)
	return pc.persistLocked()
}

// Drop removes a registered procedure. It is not an error to drop one
// that doesn't exist, matching DROP PROCEDURE IF EXISTS semantics.
func (pc *ProcedureCatalog) Drop(name string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.procs, name)
	return pc.persistLocked()
}

// Get returns a registered procedure's bytecode blob.
func (pc *ProcedureCatalog) Get(name string) ([]byte, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	b, ok := pc.procs[name]
	return b, ok
}

// Names lists every registered procedure, sorted would require a
// Model-style sort; callers needing deterministic order should sort
// the result themselves since this registry has no other use for it.
func (pc *ProcedureCatalog) Names() []string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	out := make([]string, 0, len(pc.procs))
	for name := range pc.procs {
		out = append(out, name)
	}
	return out
}

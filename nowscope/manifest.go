// Package nowscope implements the Scope of spec §2.E and §5: the
// top-level namespace that opens and closes a vertex Store plus one
// edge Store per declared edge type, holds the Model, Text dictionary
// and Index Manager, and serves as the Catalog the Planner queries
// for available indexes.
//
// Scope-level crash detection follows the teacher package's db.go
// Open/Close dance directly: a stray ".tmp" manifest or a dirty Error
// flag left over from an unclean shutdown forces a repair pass before
// the scope is usable, the same way db.Open stats "<name>.tmp" and
// checks header.Error before admitting queries. nowstore's own
// catalog already self-heals at the file level (write-to-backup-then-
// rename); this layer instead guards the set of indexes a Scope
// believes it owns. Edge stores are not listed here: Open enumerates
// them from the Model.
package nowscope

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/toschoo/nowdb-go/nowerr"
)

const (
	manifestName    = "scope.manifest"
	manifestTmpName = "scope.manifest.tmp"
	manifestMagic   = "NOSC"
	manifestVersion = 1
)

// indexEntry is the persisted shape of one IndexManager-owned index,
// enough to reopen its Tree via nowindex.Load without re-deriving the
// key layout from the Model.
type indexEntry struct {
	Name       string `json:"name"`
	Target     int    `json:"target"`
	TargetName string `json:"target_name"`
	RoleID     uint32 `json:"role_id"`
	Order      int    `json:"order"`
	Offsets    []int  `json:"offsets"`
	Widths     []int  `json:"widths"`
	KeyFields  []keyFieldEntry `json:"key_fields"`
}

type keyFieldEntry struct {
	Target int    `json:"target"`
	RoleID uint32 `json:"role_id"`
	PropID uint64 `json:"prop_id"`
	Offset int    `json:"offset"`
}

// manifest is the Scope's own small catalog: which indexes it has
// built, plus the dirty flag, persisted as a
// single JSON document rather than nowstore's fixed-width binary
// catalog since the Scope's own state is small and rarely written.
type manifest struct {
	Magic   string       `json:"magic"`
	Version int          `json:"version"`
	Error   bool         `json:"error"` // dirty flag; true while a mutation is in flight
	Indexes []indexEntry `json:"indexes"`
}

func manifestPath(dir string) string    { return filepath.Join(dir, manifestName) }
func manifestTmpPath(dir string) string { return filepath.Join(dir, manifestTmpName) }

// needsRepair mirrors the teacher's db.Open check: a leftover ".tmp"
// manifest (a write that never got renamed into place) or a dirty
// Error flag from the last clean read both mean the previous process
// did not shut down cleanly.
func needsRepair(dir string) (bool, error) {
	if _, err := os.Stat(manifestTmpPath(dir)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, nowerr.Wrap("nowscope.needsRepair", dir, err)
	}

	m, err := readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return m.Error, nil
}

// ForceRepair runs the manifest-level repair pass unconditionally,
// for an operator-invoked "repair" command rather than Open's own
// automatic needs-repair check.
func ForceRepair(dir string) error {
	_, err := repairManifest(dir)
	return err
}

// repairManifest clears a stray ".tmp" file and rewrites the manifest
// with Error cleared, the Scope-level analogue of the teacher's
// Repair(): there is no block-level reorganization to redo here since
// nowstore already recovers its own files; the only thing that can be
// inconsistent at this layer is the manifest itself.
func repairManifest(dir string) (*manifest, error) {
	if err := os.Remove(manifestTmpPath(dir)); err != nil && !os.IsNotExist(err) {
		return nil, nowerr.Wrap("nowscope.repairManifest", dir, err)
	}
	m, err := readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			m = &manifest{Magic: manifestMagic, Version: manifestVersion}
		} else {
			return nil, err
		}
	}
	m.Error = false
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

func readManifest(dir string) (*manifest, error) {
	b, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, nowerr.Wrap("nowscope.readManifest", dir, err)
	}
	return &m, nil
}

// writeManifest writes through a ".tmp" file and renames it into
// place, the same write-to-backup-then-rename shape nowstore's
// catalog.go and folio's Repair both use: the rename is the only step
// that can't be half-done, so a crash before it leaves the prior
// manifest (or none) intact and a crash after it leaves the new one
// intact.
func writeManifest(dir string, m *manifest) error {
	m.Magic = manifestMagic
	m.Version = manifestVersion
	b, err := json.Marshal(m)
	if err != nil {
		return nowerr.Wrap("nowscope.writeManifest", dir, err)
	}
	tmp := manifestTmpPath(dir)
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return nowerr.Wrap("nowscope.writeManifest", dir, err)
	}
	if f, err := os.Open(tmp); err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmp, manifestPath(dir)); err != nil {
		return nowerr.Wrap("nowscope.writeManifest", dir, err)
	}
	return nil
}

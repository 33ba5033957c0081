// Crash-marker watch: external tooling (or a crashed sibling process)
// drops a ".repair" marker file into a Store's directory to request
// an out-of-band Repair; the Store watches for it with fsnotify
// rather than polling.
package nowstore

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

const crashMarker = ".repair"

// WatchRepairRequests starts a watcher on the store directory and
// invokes onRequest whenever a crash marker appears. The returned
// closer stops the watch; callers should defer it from Store.Close's
// caller, not from Store.Close itself, since the watcher and the
// Store may outlive each other independently in a supervised process.
func WatchRepairRequests(s *Store, onRequest func()) (stop func() error, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(s.Dir); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == crashMarker && ev.Op&fsnotify.Create != 0 {
					onRequest()
				}
			case <-w.Errors:
				// Dropped errors surface via the next read/write call
				// against the store's files; the watch is best-effort.
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return w.Close()
	}, nil
}

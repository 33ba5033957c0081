// Package nowlog wires zerolog the way a NowDB scope is expected to
// see it: one process-wide sink configured once, and cheap
// per-component sub-loggers carved off it everywhere else.
package nowlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.Mutex
	base zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Configure replaces the process-wide sink. Pretty selects the
// human-readable console writer (development); otherwise raw JSON
// lines are written to w, matching how a long-running scope ships
// logs to a collector.
func Configure(w io.Writer, pretty bool) {
	mu.Lock()
	defer mu.Unlock()
	if pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
		return
	}
	base = zerolog.New(w).With().Timestamp().Logger()
}

// For returns a sub-logger tagged with the calling component, e.g.
// nowlog.For("nowstore").With().Str("name", storeName).Logger().
func For(component string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base.With().Str("component", component).Logger()
}

package nowstore

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks for goroutine leaks across the package's test suite,
// the same concurrency discipline exercised by Store.Insert/Sorter.Run
// racing against each other and against WatchRepairRequests' watch
// goroutine.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

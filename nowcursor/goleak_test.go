package nowcursor

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks for goroutine leaks across the package's test suite.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

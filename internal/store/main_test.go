package store

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures simulated latency and SQL pools leave no goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

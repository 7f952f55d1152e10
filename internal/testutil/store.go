package testutil

import (
	"testing"

	"github.com/tbarrett/upswatch/internal/history"
)

// NewHistoryStore creates an in-memory history store for testing.
// The store is automatically closed when the test completes.
func NewHistoryStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("testutil.NewHistoryStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

package testutil

import (
	"context"
	"testing"
	"time"
)

// ContextWithTimeout creates a context cancelled automatically when the
// test finishes or the timeout expires, whichever comes first.
func ContextWithTimeout(t testing.TB, duration time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	t.Cleanup(cancel)

	return ctx
}

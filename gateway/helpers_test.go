package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cppla/hexfeed/observable"
)

func next[T any](t *testing.T, sub *observable.Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}

// nextMatching reads values until pred accepts one. Live queries may emit
// intermediate snapshots, so tests wait for the state they expect.
func nextMatching[T any](t *testing.T, sub *observable.Subscription[T], pred func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-sub.C():
			require.True(t, ok, "subscription ended: %v", sub.Err())
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching value")
		}
	}
}

func strPtr(s string) *string { return &s }

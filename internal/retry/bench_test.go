package retry

import (
	"context"
	"testing"
	"time"
)

// BenchmarkBackoff_ImmediateSuccess measures overhead when the first
// attempt succeeds (the common case).
func BenchmarkBackoff_ImmediateSuccess(b *testing.B) {
	bo := StartBackoff()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return nil }) //nolint:errcheck
	}
}

// BenchmarkBreaker_ClosedPath measures a store write passing a closed
// breaker.
func BenchmarkBreaker_ClosedPath(b *testing.B) {
	br := NewBreaker(BreakerConfig{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Execute(ok) //nolint:errcheck
	}
}

// BenchmarkBreaker_OpenPath measures rejection while open.
func BenchmarkBreaker_OpenPath(b *testing.B) {
	br := NewBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	br.Execute(fail) //nolint:errcheck

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Execute(ok) //nolint:errcheck
	}
}

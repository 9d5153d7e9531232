package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Wait(t *testing.T) {
	t.Run("allows requests within the burst immediately", func(t *testing.T) {
		limiter := New(Config{RequestsPerSecond: 100, BurstSize: 5})

		start := time.Now()
		for i := 0; i < 5; i++ {
			require.NoError(t, limiter.Wait(context.Background()))
		}
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("honours context cancellation during backoff", func(t *testing.T) {
		limiter := New(DefaultConfig)
		limiter.Backoff(time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := limiter.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("waits out a short backoff window", func(t *testing.T) {
		limiter := New(Config{RequestsPerSecond: 100, BurstSize: 5})
		limiter.Backoff(30 * time.Millisecond)

		start := time.Now()
		require.NoError(t, limiter.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	})
}

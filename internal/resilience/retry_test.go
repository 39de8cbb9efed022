package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts: attempts,
		Backoff:  Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
	}
}

var errLocked = errors.New("database is locked")

func TestRetry_SuccessAfterTransient(t *testing.T) {
	var calls int
	val, err := Retry(context.Background(), fastRetry(3), "store: get study", func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &pgconn.PgError{Code: "40001"}
		}
		return "S-1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "S-1", val)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	n, err := Retry(context.Background(), fastRetry(3), "store: list logs", func(_ context.Context) (int, error) {
		calls++
		return 42, errLocked
	})
	assert.ErrorIs(t, err, errLocked)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastRetry(3), "store: save profile", func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SingleAttempt(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastRetry(1), "store: ping", func(_ context.Context) (bool, error) {
		calls++
		return false, errLocked
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Attempts: 5, Backoff: Backoff{Initial: 50 * time.Millisecond, Max: 100 * time.Millisecond, Multiplier: 2}}

	var calls int
	_, err := Retry(ctx, p, "store: list logs", func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, errLocked
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2))
	assert.Equal(t, 500*time.Millisecond, b.Delay(3))

	b.Jitter = 0.5
	for i := 0; i < 50; i++ {
		d := b.Delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{Backoff: Backoff{Jitter: -1}}.withDefaults()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 200*time.Millisecond, p.Backoff.Initial)
	assert.Equal(t, 2*time.Second, p.Backoff.Max)
	assert.Equal(t, 0.0, p.Backoff.Jitter)
}

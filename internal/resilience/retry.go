package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff is an exponential delay schedule. Jitter is a fraction of the
// computed delay applied in either direction.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Delay returns the wait before retry n, counting from zero.
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(n))
	d = math.Min(d, float64(b.Max))
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// RetryPolicy bounds how often a store call is attempted.
type RetryPolicy struct {
	// Attempts counts the first call. 1 disables retries.
	Attempts int
	Backoff  Backoff
}

// DefaultRetryPolicy returns the policy used for store calls: three
// attempts starting at 200ms and capped at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff: Backoff{
			Initial:    200 * time.Millisecond,
			Max:        2 * time.Second,
			Multiplier: 2,
			Jitter:     0.25,
		},
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff.Initial <= 0 {
		p.Backoff.Initial = def.Backoff.Initial
	}
	if p.Backoff.Max <= 0 {
		p.Backoff.Max = def.Backoff.Max
	}
	if p.Backoff.Multiplier <= 0 {
		p.Backoff.Multiplier = def.Backoff.Multiplier
	}
	p.Backoff.Jitter = math.Max(p.Backoff.Jitter, 0)
	return p
}

// Retry calls fn until it succeeds, returns a non-transient error, ctx ends
// or the policy's attempts run out. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= p.Attempts || ctx.Err() != nil || !IsTransient(err) {
			return zero, err
		}

		zap.L().Warn("retrying store operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !sleep(ctx, p.Backoff.Delay(attempt-1)) {
			return zero, err
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

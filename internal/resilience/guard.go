package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/config"
)

// Guard wraps store calls with retries inside a circuit breaker.
type Guard struct {
	retry   RetryPolicy
	breaker *CircuitBreaker
}

// NewGuard builds a Guard from config values, falling back to defaults for
// unset fields.
func NewGuard(cfg config.ResilienceConfig) *Guard {
	rp := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		rp.Attempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		rp.Backoff.Initial = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		rp.Backoff.Max = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}
	if cfg.Multiplier > 0 {
		rp.Backoff.Multiplier = cfg.Multiplier
	}
	if cfg.JitterFraction >= 0 {
		rp.Backoff.Jitter = cfg.JitterFraction
	}

	cc := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold > 0 {
		cc.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeoutSecs > 0 {
		cc.ResetTimeout = time.Duration(cfg.ResetTimeoutSecs) * time.Second
	}
	cc.OnStateChange = func(from, to CircuitState) {
		zap.L().Warn("store circuit breaker state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	return &Guard{retry: rp, breaker: NewCircuitBreaker(cc)}
}

// Breaker returns the guard's circuit breaker.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// Run executes fn under the guard. See Call.
func (g *Guard) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call executes fn with retries inside the circuit breaker. Transient
// failures that outlast the retries, and calls rejected by an open circuit,
// are reported as apperr Upstream errors; other errors pass through.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	val, err := ExecuteVal(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return Retry(ctx, g.retry, op, fn)
	})
	if err == nil {
		return val, nil
	}
	if errors.Is(err, ErrCircuitOpen) || IsTransient(err) {
		return val, apperr.Upstream(op, err)
	}
	return val, err
}

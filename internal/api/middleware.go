package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const ctxSubject contextKey = "subject"

// RequestLogger logs each request with zap.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// RequireBearer checks an HS256 bearer token signed with secret. An empty
// secret disables the check.
func RequireBearer(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if issuer != "" {
			opts = append(opts, jwt.WithIssuer(issuer))
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeStatus(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}, opts...)
			if err != nil || !token.Valid {
				writeStatus(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			}
			sub, _ := claims.GetSubject()
			ctx := context.WithValue(r.Context(), ctxSubject, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectOf returns the authenticated token subject, if any.
func subjectOf(r *http.Request) string {
	if v, ok := r.Context().Value(ctxSubject).(string); ok {
		return v
	}
	return ""
}

// SubmitLimiter throttles weekly log submissions per coordinator. Limiters
// idle long enough to have refilled their whole burst are dropped, so the
// map only holds keys that are still being throttled.
type SubmitLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	limiters  map[string]*keyLimiter
	now       func() time.Time
}

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewSubmitLimiter allows perMinute submissions per coordinator with the
// given burst. A non-positive rate disables throttling.
func NewSubmitLimiter(perMinute float64, burst int) *SubmitLimiter {
	if burst <= 0 {
		burst = 1
	}
	l := &SubmitLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*keyLimiter),
		now:      time.Now,
	}
	if l.limit > 0 {
		l.idle = time.Duration(float64(burst) / float64(l.limit) * float64(time.Second))
	}
	return l
}

// Allow reports whether a submission for key may proceed now.
func (l *SubmitLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	kl, ok := l.limiters[key]
	if !ok {
		kl = &keyLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = kl
	}
	kl.seen = now
	return kl.lim.AllowN(now, 1)
}

// sweep drops limiters unused for at least the refill period. Callers hold mu.
func (l *SubmitLimiter) sweep(now time.Time) {
	for key, kl := range l.limiters {
		if now.Sub(kl.seen) >= l.idle {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// Middleware rejects requests over the limit with 429. The key is the
// named URL parameter.
func (l *SubmitLimiter) Middleware(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(chi.URLParam(r, param)) {
				w.Header().Set("Retry-After", "60")
				writeStatus(w, http.StatusTooManyRequests, "rate_limited", "too many submissions, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

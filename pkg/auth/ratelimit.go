package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateDecision is the outcome of a rate limit check.
type RateDecision struct {
	Allowed bool

	// RetryAfter is how long the caller should wait when not allowed.
	RetryAfter time.Duration
}

// RateLimiter decides whether a caller may run a handler of the given limit
// type. Errors are treated as allowed by the gate.
type RateLimiter interface {
	Check(ctx context.Context, r *http.Request, limitType, callerID string) (RateDecision, error)
}

// Limit configures one limit type.
type Limit struct {
	// RequestsPerMinute is the sustained rate. Zero disables the limit.
	RequestsPerMinute int

	// Burst is the bucket size. Zero means RequestsPerMinute.
	Burst int
}

func (l Limit) burst() int {
	if l.Burst > 0 {
		return l.Burst
	}
	return l.RequestsPerMinute
}

// DefaultIdleTimeout is how long an unused bucket is kept.
const DefaultIdleTimeout = 10 * time.Minute

// InProcessLimiter keeps a token bucket per caller and limit type in
// memory. Each replica limits independently.
type InProcessLimiter struct {
	limits   map[string]Limit
	fallback Limit
	idle     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInProcessLimiter creates a limiter. Limit types missing from limits
// use fallback.
func NewInProcessLimiter(limits map[string]Limit, fallback Limit) *InProcessLimiter {
	return &InProcessLimiter{
		limits:   limits,
		fallback: fallback,
		idle:     DefaultIdleTimeout,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// Check takes one token from the caller's bucket.
func (l *InProcessLimiter) Check(_ context.Context, _ *http.Request, limitType, callerID string) (RateDecision, error) {
	limit, ok := l.limits[limitType]
	if !ok {
		limit = l.fallback
	}
	if limit.RequestsPerMinute <= 0 {
		return RateDecision{Allowed: true}, nil
	}

	now := l.now()
	lim := l.bucketFor(limitType+":"+callerID, limit, now)

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return RateDecision{Allowed: false, RetryAfter: time.Minute}, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return RateDecision{Allowed: false, RetryAfter: delay}, nil
	}
	return RateDecision{Allowed: true}, nil
}

func (l *InProcessLimiter) bucketFor(key string, limit Limit, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	lim := rate.NewLimiter(rate.Limit(float64(limit.RequestsPerMinute)/60.0), limit.burst())
	l.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	l.evictLocked(now)
	return lim
}

// evictLocked drops buckets idle for longer than the idle timeout.
func (l *InProcessLimiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *InProcessLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Package redislimit provides a Redis-backed auth.RateLimiter so that
// replicas share one budget per caller. It counts requests in fixed
// one-minute windows with INCR and EXPIRE issued in a single MULTI block.
package redislimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/debug"
)

// Window is the counting window.
const Window = time.Minute

// DefaultPrefix namespaces the counter keys.
const DefaultPrefix = "vetora:ratelimit"

// Limiter is a fixed-window rate limiter over Redis. Burst settings do not
// apply; a window admits RequestsPerMinute calls.
type Limiter struct {
	client   redis.UniversalClient
	limits   map[string]auth.Limit
	fallback auth.Limit
	prefix   string
	now      func() time.Time
}

// Ensure Limiter implements auth.RateLimiter at compile time.
var _ auth.RateLimiter = (*Limiter)(nil)

// New creates a limiter. Limit types missing from limits use fallback.
func New(client redis.UniversalClient, limits map[string]auth.Limit, fallback auth.Limit) *Limiter {
	return &Limiter{
		client:   client,
		limits:   limits,
		fallback: fallback,
		prefix:   DefaultPrefix,
		now:      time.Now,
	}
}

// WithPrefix returns the limiter with a different key prefix.
func (l *Limiter) WithPrefix(prefix string) *Limiter {
	l.prefix = prefix
	return l
}

// Check counts the call in the current window.
func (l *Limiter) Check(ctx context.Context, _ *http.Request, limitType, callerID string) (auth.RateDecision, error) {
	limit, ok := l.limits[limitType]
	if !ok {
		limit = l.fallback
	}
	if limit.RequestsPerMinute <= 0 {
		return auth.RateDecision{Allowed: true}, nil
	}

	now := l.now()
	windowStart := now.Truncate(Window)
	key := l.key(limitType, callerID, windowStart)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, Window+time.Second)
		return nil
	})
	if err != nil {
		return auth.RateDecision{}, fmt.Errorf("counting request: %w", err)
	}

	count := incr.Val()
	debug.Log("ratelimit", "window count", "key", key, "count", count, "limit", limit.RequestsPerMinute)

	if count > int64(limit.RequestsPerMinute) {
		return auth.RateDecision{
			Allowed:    false,
			RetryAfter: windowStart.Add(Window).Sub(now),
		}, nil
	}
	return auth.RateDecision{Allowed: true}, nil
}

func (l *Limiter) key(limitType, callerID string, windowStart time.Time) string {
	return l.prefix + ":" + limitType + ":" + callerID + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

// Package ratelimit provides per-client admission control for the API.
//
// Two independent strategies exist because the endpoints want different
// shapes: ingest wants "no more than one point per interval" while the read
// endpoints want "N requests per window" with bursts allowed.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds all admission state. State is process-local and resets on
// restart; entries are independent per key so no global lock is needed.
type Limiter struct {
	now func() time.Time

	// scope|ip -> time.Time of the last admitted request
	last sync.Map
	// scope|ip -> *rate.Limiter
	buckets sync.Map
}

func New() *Limiter {
	return &Limiter{now: time.Now}
}

// NewWithClock injects a clock for tests.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{now: now}
}

// IntervalOk admits at most one request per minInterval for (scope, clientIP).
// A rejected request does not update state, so a client hammering the endpoint
// does not push its own admission window further out.
//
// The load-then-store is intentionally not atomic: two requests racing through
// the same tiny window may both be admitted. An occasional extra admission is
// cheaper than a lock on the ingest hot path.
func (l *Limiter) IntervalOk(scope, clientIP string, minInterval time.Duration) bool {
	if clientIP == "" {
		// Abuse cannot be attributed to an anonymous identity.
		return false
	}
	key := scope + "|" + clientIP
	now := l.now()
	if v, ok := l.last.Load(key); ok {
		if now.Sub(v.(time.Time)) < minInterval {
			return false
		}
	}
	l.last.Store(key, now)
	return true
}

// TokenOk admits up to capacity requests per window for (scope, clientIP),
// with tokens replenished uniformly over the window. The bucket is created
// lazily on first use.
func (l *Limiter) TokenOk(scope, clientIP string, capacity int, window time.Duration) bool {
	if clientIP == "" {
		return false
	}
	if capacity <= 0 {
		return false
	}
	key := scope + "|" + clientIP
	v, ok := l.buckets.Load(key)
	if !ok {
		limit := rate.Every(window / time.Duration(capacity))
		v, _ = l.buckets.LoadOrStore(key, rate.NewLimiter(limit, capacity))
	}
	return v.(*rate.Limiter).AllowN(l.now(), 1)
}

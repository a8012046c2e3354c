// Package ratelimit implements the per-user throttle consulted by the
// dispatcher before any external lookup. It keeps one token bucket per user
// with opportunistic garbage collection of idle buckets, plus an optional
// global bucket shared by all users to protect downstream sources.
//
// The limiter is process-local by design: a single-instance deployment needs
// no cross-process coordination, and the persistent store never sees denied
// requests.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the typed outcome of TryAcquire. A denied decision carries the
// wait until the next token becomes available; callers surface it verbatim
// as retry-after.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// visitor holds a single user's bucket and the last time it was seen, so
// idle buckets can be evicted.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-user token-bucket rate limiter with an optional global
// secondary bucket. Buckets are created on demand in an internal map guarded
// by a mutex; idle buckets are evicted after a TTL via opportunistic cleanup
// during lookups to keep memory bounded.
//
// This type is safe for concurrent use.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[int64]*visitor
	ttl      time.Duration
	cleanupN uint64

	global *rate.Limiter // nil when no global cap is configured
}

// New constructs a Limiter replenishing rps tokens per second per user with
// the given burst (coerced to >= 1). A globalRPS > 0 adds the cross-user
// secondary bucket with globalBurst capacity.
func New(rps float64, burst int, globalRPS float64, globalBurst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[int64]*visitor),
		ttl:      10 * time.Minute, // evict idle buckets after TTL
	}
	if globalRPS > 0 {
		if globalBurst <= 0 {
			globalBurst = 1
		}
		l.global = rate.NewLimiter(rate.Limit(globalRPS), globalBurst)
	}
	return l
}

// TryAcquire consumes one token for userID when available. The per-user
// bucket is checked first, and its reservation is canceled when the shared
// global cap then denies, so a denial on either bucket leaves both intact:
// one throttled user cannot drain the global bucket, and a saturated global
// cap does not burn per-user tokens. A denial consumes nothing downstream:
// no cache slot, no store write, only the retry-after estimate leaves this
// package.
func (l *Limiter) TryAcquire(userID int64) Decision {
	userRes, d, ok := reserveNow(l.bucket(userID))
	if !ok {
		return Decision{Allowed: false, RetryAfter: d}
	}
	if l.global != nil {
		if _, d, ok := reserveNow(l.global); !ok {
			userRes.Cancel()
			return Decision{Allowed: false, RetryAfter: d}
		}
	}
	return Decision{Allowed: true}
}

// reserveNow consumes a token when one is immediately available, returning
// the reservation so the caller may still give it back. Otherwise it cancels
// (returning the token) and reports the wait.
func reserveNow(lim *rate.Limiter) (res *rate.Reservation, retryAfter time.Duration, ok bool) {
	r := lim.Reserve()
	if !r.OK() {
		return nil, rate.InfDuration, false
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		// Round up so callers never retry a moment too early.
		return nil, d + time.Millisecond - (d % time.Millisecond), false
	}
	return r, 0, true
}

// bucket returns (and refreshes) the limiter for userID, creating it if
// absent. It also performs opportunistic GC of idle buckets after ~5000
// lookups, before touching the requested entry so an old bucket can be
// evicted even when it is the one being fetched.
func (l *Limiter) bucket(userID int64) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	l.cleanupN++
	if l.cleanupN >= 5000 {
		for id, vv := range l.visitors {
			if now.Sub(vv.lastSeen) >= l.ttl {
				delete(l.visitors, id)
			}
		}
		l.cleanupN = 0
	}

	if v, ok := l.visitors[userID]; ok {
		v.lastSeen = now
		lim := v.limiter
		l.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors[userID] = &visitor{limiter: lim, lastSeen: now}
	l.mu.Unlock()
	return lim
}

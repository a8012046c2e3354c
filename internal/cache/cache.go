// Package cache implements the deduplication/cache layer between the
// dispatcher and the persistent store. Cached results live in the
// cache_entries table (the store stays the source of truth); this layer adds
// TTL policy, negative-result caching, and the at-most-one-in-flight
// guarantee for external lookups.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/lookup"
	"github.com/datatrace/osint-backend/internal/repo"
)

// Result is a cached or freshly fetched lookup outcome. Negative results
// ("no information found") are first-class: they carry no payload and expire
// on their own, shorter TTL.
type Result struct {
	Payload  string
	Negative bool
}

// FetchFunc performs the actual external lookup on a cache miss. It returns
// the payload, lookup.ErrNotFound for an authoritative miss, or a transient
// error (which is never cached).
type FetchFunc func(ctx context.Context) (string, error)

// Cache coordinates persisted cache entries and in-flight deduplication.
// One instance owns the policy for both TTLs and the fetch timeout.
//
// Concurrency: safe for concurrent use. Fetch guarantees that for any key at
// most one FetchFunc runs at a time; concurrent callers for the same key
// block on the single outstanding call and share its result.
type Cache struct {
	db *gorm.DB

	successTTL  time.Duration
	negativeTTL time.Duration
	// fetchTimeout bounds a detached lookup; it replaces the caller's
	// deadline so an abandoned request still completes and populates
	// the cache for later requesters.
	fetchTimeout time.Duration

	group singleflight.Group
}

// New constructs a Cache over the given store handle. Non-positive TTLs get
// conservative defaults (success 1h, negative 5m); a non-positive fetch
// timeout defaults to 20s.
func New(db *gorm.DB, successTTL, negativeTTL, fetchTimeout time.Duration) *Cache {
	if successTTL <= 0 {
		successTTL = time.Hour
	}
	if negativeTTL <= 0 {
		negativeTTL = 5 * time.Minute
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 20 * time.Second
	}
	return &Cache{
		db:           db,
		successTTL:   successTTL,
		negativeTTL:  negativeTTL,
		fetchTimeout: fetchTimeout,
	}
}

// Lookup returns the cached result for key, or ok=false when the key is
// absent or expired. Expired entries are misses, never stale hits.
func (c *Cache) Lookup(ctx context.Context, key string) (*Result, bool, error) {
	e, err := repo.GetCacheEntry(ctx, c.db, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &Result{Payload: e.Payload, Negative: e.Negative}, true, nil
}

// Store persists a result for (qtype, query), superseding any existing entry
// under the same key. The TTL is chosen by polarity: successes live long,
// negatives expire quickly so transient gaps at the source heal themselves.
func (c *Cache) Store(ctx context.Context, qtype, query string, res Result) error {
	ttl := c.successTTL
	if res.Negative {
		ttl = c.negativeTTL
	}
	now := time.Now().UTC()
	e := &domain.CacheEntry{
		Key:       lookup.Key(qtype, query),
		Type:      qtype,
		Query:     query,
		Payload:   res.Payload,
		Negative:  res.Negative,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return repo.RunInWriteTx(ctx, c.db, func(tx *gorm.DB) error {
		return repo.UpsertCacheEntry(ctx, tx, e)
	})
}

// Invalidate removes the entry for key. Invalidating an absent key is a
// no-op, so the operation is idempotent.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return repo.RunInWriteTx(ctx, c.db, func(tx *gorm.DB) error {
		return repo.DeleteCacheEntry(ctx, tx, key)
	})
}

// RunJanitor blocks, deleting expired cache rows every interval until ctx is
// canceled. Reads already treat expired rows as misses (see Lookup), so the
// janitor affects no visible behavior; it only keeps cache_entries from
// growing without bound.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeExpiredCacheEntries(ctx, c.db, time.Now().UTC())
			if err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("expired cache entries purged")
			}
		}
	}
}

// Fetch returns the result for (qtype, query), consulting the cache first
// and collapsing concurrent misses into a single FetchFunc call per key.
//
// Semantics:
//   - cache hit: returned immediately, fn never runs.
//   - miss: exactly one caller runs fn; the rest wait and share its result.
//     The winning call re-checks the cache inside the critical section, so a
//     result stored between the outer miss and the flight start is reused.
//   - fn runs on a context detached from the caller (bounded by the fetch
//     timeout): transport cancellation does not abort the lookup, and its
//     result still lands in the cache.
//   - lookup.ErrNotFound is converted into a stored negative result, not an
//     error. Transient errors propagate and cache nothing.
func (c *Cache) Fetch(ctx context.Context, qtype, query string, fn FetchFunc) (*Result, error) {
	key := lookup.Key(qtype, query)

	if res, ok, err := c.Lookup(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Detach from the caller before anything else: once the flight owns
		// this key, later requesters depend on it finishing.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		if res, ok, err := c.Lookup(fctx, key); err != nil {
			return nil, err
		} else if ok {
			return res, nil
		}

		payload, err := fn(fctx)
		var res Result
		switch {
		case errors.Is(err, lookup.ErrNotFound):
			res = Result{Negative: true}
		case err != nil:
			return nil, err
		default:
			res = Result{Payload: payload}
		}
		if serr := c.Store(fctx, qtype, query, res); serr != nil {
			return nil, serr
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

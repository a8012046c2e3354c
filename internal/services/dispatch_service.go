// Package services – DispatchService
//
// This file implements DispatchService, the component that carries a lookup
// request through its full lifecycle: input validation, account guards,
// cache consultation, rate limiting, the external source call, persistence,
// and cache population. It owns no request state of its own; it composes the
// cache layer, the rate limiter, and the lookup provider, and it is the only
// component that calls the external source.
//
// Observability: public methods are OpenTelemetry-instrumented, and dispatch
// outcomes feed Prometheus counters partitioned by query type and outcome.
package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/datatrace/osint-backend/internal/cache"
	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/lookup"
	"github.com/datatrace/osint-backend/internal/ratelimit"
	"github.com/datatrace/osint-backend/internal/repo"
)

// Outcome kinds. Every dispatch terminates in exactly one of these; the
// transport layer switches over Kind exhaustively.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailed  = "failed"
)

// Denial and failure reasons carried in Outcome.Reason.
const (
	ReasonBanned      = "banned"
	ReasonBlacklisted = "blacklisted"
	ReasonProtected   = "protected"
	ReasonRateLimited = "rate_limited"
	ReasonDailyQuota  = "daily_quota_exceeded"
	ReasonLookup      = "lookup_failed"
)

var (
	// dispatchTotal counts terminal dispatch outcomes by type and kind.
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_dispatch_total",
			Help: "Total number of dispatched lookup requests by outcome.",
		},
		[]string{"type", "outcome"},
	)

	// cacheLookups counts cache consultations by result (hit/miss).
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_cache_lookups_total",
			Help: "Cache lookups performed by the dispatcher.",
		},
		[]string{"result"},
	)

	// sourceCalls counts actual external source invocations by type.
	sourceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_source_calls_total",
			Help: "External source lookups issued (after dedup).",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, cacheLookups, sourceCalls)
}

// Outcome is the tagged result of a dispatch. Exactly one kind applies:
//
//   - Success: Payload (or Negative for an authoritative "no data") is set;
//     CacheHit tells whether an external call was avoided.
//   - Denied: Reason identifies the guard; RetryAfter is positive for
//     rate/quota denials.
//   - Failed: the external source failed after bounded retries; Reason is
//     ReasonLookup.
type Outcome struct {
	Kind       string
	Payload    string
	Negative   bool
	CacheHit   bool
	Reason     string
	RetryAfter time.Duration
	RecordID   string
}

// DispatchService orchestrates lookup requests. All fields are required
// unless noted; the zero value is not usable.
type DispatchService struct {
	DB       *gorm.DB
	Cache    *cache.Cache
	Limiter  *ratelimit.Limiter
	Provider lookup.Provider

	// DailyFreeLimit caps dispatched lookups per user per UTC day.
	// Zero disables the quota.
	DailyFreeLimit int

	// MaxLookupAttempts bounds retries against a transiently failing
	// source. Values < 1 are treated as 1 (no retry).
	MaxLookupAttempts int

	// halted latches once the store reports corruption; cached reads are
	// still served but no new writes are accepted.
	halted atomic.Bool
}

// WritesHalted reports whether the corruption latch has tripped.
func (s *DispatchService) WritesHalted() bool { return s.halted.Load() }

// noteStoreErr trips the corruption latch when err indicates a malformed
// database file. Reported loudly exactly once.
func (s *DispatchService) noteStoreErr(err error) {
	if repo.IsCorrupt(err) && s.halted.CompareAndSwap(false, true) {
		log.Error().Err(err).Msg("store corruption detected; halting writes")
	}
}

// Dispatch carries one lookup request to a terminal outcome.
//
// Flow: validate → guards (ban, blacklist, protected) → cache check →
// rate check → daily quota → external lookup (deduplicated per key,
// bounded retry) → persist audit record → populate cache → respond.
//
// Denied and Failed terminals are returned in the Outcome; the error return
// is reserved for invalid input (ErrInvalidQuery, ErrUserNotFound), the
// corruption latch (ErrWritesHalted), and unexpected store failures.
func (s *DispatchService) Dispatch(ctx context.Context, userID int64, qtype, rawQuery string) (*Outcome, error) {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("query.type", qtype),
		),
	)
	defer span.End()

	query, ok := lookup.Normalize(qtype, rawQuery)
	if !ok || !s.Provider.Supports(qtype) {
		return nil, ErrInvalidQuery
	}

	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		s.noteStoreErr(err)
		return nil, err
	}
	if u.Banned {
		return s.finish(qtype, &Outcome{Kind: OutcomeDenied, Reason: ReasonBanned}), nil
	}

	if denied, reason, err := s.guarded(ctx, qtype, query); err != nil {
		return nil, err
	} else if denied {
		return s.finish(qtype, &Outcome{Kind: OutcomeDenied, Reason: reason}), nil
	}

	// Cache check precedes rate limiting: hits consume no quota.
	key := lookup.Key(qtype, query)
	if res, hit, err := s.Cache.Lookup(ctx, key); err != nil {
		s.noteStoreErr(err)
		return nil, err
	} else if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		recID := s.audit(ctx, userID, qtype, query, res)
		return s.finish(qtype, &Outcome{
			Kind:     OutcomeSuccess,
			Payload:  res.Payload,
			Negative: res.Negative,
			CacheHit: true,
			RecordID: recID,
		}), nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	if d := s.Limiter.TryAcquire(userID); !d.Allowed {
		return s.finish(qtype, &Outcome{
			Kind:       OutcomeDenied,
			Reason:     ReasonRateLimited,
			RetryAfter: d.RetryAfter,
		}), nil
	}

	if s.DailyFreeLimit > 0 {
		now := time.Now().UTC()
		u, err = repo.EnsureDailyWindow(ctx, s.DB, userID, now.Format("2006-01-02"))
		if err != nil {
			s.noteStoreErr(err)
			return nil, err
		}
		if u.DailySearchCount >= s.DailyFreeLimit {
			return s.finish(qtype, &Outcome{
				Kind:       OutcomeDenied,
				Reason:     ReasonDailyQuota,
				RetryAfter: untilNextUTCDay(now),
			}), nil
		}
	}

	// A miss requires store writes; refuse early once the latch tripped.
	if s.halted.Load() {
		return nil, ErrWritesHalted
	}

	var rec *domain.QueryRecord
	err = repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		var terr error
		rec, terr = repo.CreateQueryRecord(ctx, tx, userID, qtype, query)
		return terr
	})
	if err != nil {
		s.noteStoreErr(err)
		return nil, err
	}

	res, err := s.Cache.Fetch(ctx, qtype, query, func(fctx context.Context) (string, error) {
		sourceCalls.WithLabelValues(qtype).Inc()
		return s.lookupWithRetry(fctx, qtype, query)
	})
	if err != nil {
		s.noteStoreErr(err)
		s.finalize(ctx, rec.ID, domain.QueryStatusFailed, "")
		// Store contention while persisting the fetched result is a store
		// problem, not a source failure; surface it as such.
		if repo.IsBusy(err) {
			return nil, err
		}
		return s.finish(qtype, &Outcome{
			Kind:     OutcomeFailed,
			Reason:   ReasonLookup,
			RecordID: rec.ID,
		}), nil
	}

	err = repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		if terr := repo.FinalizeQueryRecord(ctx, tx, rec.ID, domain.QueryStatusSuccess, res.Payload); terr != nil {
			return terr
		}
		if terr := repo.IncrementSearchCounters(ctx, tx, userID); terr != nil {
			return terr
		}
		return repo.TouchLastActive(ctx, tx, userID)
	})
	if err != nil {
		s.noteStoreErr(err)
		return nil, err
	}

	return s.finish(qtype, &Outcome{
		Kind:     OutcomeSuccess,
		Payload:  res.Payload,
		Negative: res.Negative,
		RecordID: rec.ID,
	}), nil
}

// guarded checks the blacklist (all types) and the protected-number opt-out
// (phone lookups) for the normalized query.
func (s *DispatchService) guarded(ctx context.Context, qtype, query string) (denied bool, reason string, err error) {
	if listed, err := repo.IsBlacklisted(ctx, s.DB, query); err != nil {
		s.noteStoreErr(err)
		return false, "", err
	} else if listed {
		return true, ReasonBlacklisted, nil
	}
	if qtype == lookup.TypePhone {
		if prot, err := repo.IsProtectedNumber(ctx, s.DB, query); err != nil {
			s.noteStoreErr(err)
			return false, "", err
		} else if prot {
			return true, ReasonProtected, nil
		}
	}
	return false, "", nil
}

// lookupWithRetry calls the provider, retrying transient failures with
// exponential backoff up to MaxLookupAttempts total attempts. Authoritative
// misses and unknown types are never retried.
func (s *DispatchService) lookupWithRetry(ctx context.Context, qtype, query string) (string, error) {
	attempts := s.MaxLookupAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	var payload string
	op := func() error {
		var err error
		payload, err = s.Provider.Lookup(ctx, qtype, query)
		if err == nil {
			return nil
		}
		if errors.Is(err, lookup.ErrUnavailable) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
	return payload, err
}

// audit best-effort records a cache-hit dispatch. Hits must not fail on a
// busy store, so errors are logged and swallowed; the latch still trips on
// corruption.
func (s *DispatchService) audit(ctx context.Context, userID int64, qtype, query string, res *cache.Result) string {
	if s.halted.Load() {
		return ""
	}
	var id string
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		rec, terr := repo.CreateQueryRecord(ctx, tx, userID, qtype, query)
		if terr != nil {
			return terr
		}
		id = rec.ID
		if terr = repo.FinalizeQueryRecord(ctx, tx, rec.ID, domain.QueryStatusSuccess, res.Payload); terr != nil {
			return terr
		}
		return repo.TouchLastActive(ctx, tx, userID)
	})
	if err != nil {
		s.noteStoreErr(err)
		log.Warn().Err(err).Int64("user_id", userID).Msg("cache-hit audit write failed")
		return ""
	}
	return id
}

// finalize best-effort closes the audit record for failed dispatches.
func (s *DispatchService) finalize(ctx context.Context, recID, status, result string) {
	err := repo.RunInWriteTx(ctx, s.DB, func(tx *gorm.DB) error {
		return repo.FinalizeQueryRecord(ctx, tx, recID, status, result)
	})
	if err != nil {
		s.noteStoreErr(err)
		log.Warn().Err(err).Str("record_id", recID).Msg("finalize audit record failed")
	}
}

// finish records the outcome metric and returns o unchanged.
func (s *DispatchService) finish(qtype string, o *Outcome) *Outcome {
	dispatchTotal.WithLabelValues(qtype, o.Kind).Inc()
	return o
}

// untilNextUTCDay returns the wait until the daily window resets.
func untilNextUTCDay(now time.Time) time.Duration {
	next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vitae/internal/claims/cache"
	"vitae/internal/claims/metrics"
	claims "vitae/internal/claims/models"
	"vitae/internal/policy"
	"vitae/internal/storage"
	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
)

// Queries serves registry reads. Reads require no authentication, run
// against store snapshots, and never report a missing record as an error:
// unregistered fingerprints come back as the absent-record sentinel.
//
// Visibility is deliberately not filtered here. The flag is stored and
// returned, but every query answers over the full registry; consumers
// choose what to display.
type Queries struct {
	store   storage.Store
	cache   cache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type QueryOption func(*Queries)

func WithQueryCache(c cache.Cache) QueryOption {
	return func(q *Queries) {
		q.cache = c
	}
}

func WithQueryLogger(logger *slog.Logger) QueryOption {
	return func(q *Queries) {
		q.logger = logger
	}
}

func WithQueryMetrics(m *metrics.Metrics) QueryOption {
	return func(q *Queries) {
		q.metrics = m
	}
}

func WithQueryTracer(tracer trace.Tracer) QueryOption {
	return func(q *Queries) {
		q.tracer = tracer
	}
}

func NewQueries(store storage.Store, opts ...QueryOption) (*Queries, error) {
	if store == nil {
		return nil, fmt.Errorf("claims store is required")
	}

	q := &Queries{store: store}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.tracer == nil {
		q.tracer = otel.Tracer("vitae/claims")
	}
	return q, nil
}

// FullDetails returns the record registered under fp, or the absent-record
// sentinel when there is none.
func (q *Queries) FullDetails(ctx context.Context, fp id.Fingerprint) (claims.Claim, error) {
	ctx, span := q.tracer.Start(ctx, "claims.FullDetails")
	defer span.End()

	key := cache.DetailKey(fp)
	var cached claims.Claim
	if q.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	var claim claims.Claim
	err := q.store.View(ctx, func(_ context.Context, tx storage.ReadTx) error {
		c, ok, err := tx.Claim(fp)
		if err != nil {
			return err
		}
		if !ok {
			c = claims.Absent()
		}
		claim = c
		return nil
	})
	if err != nil {
		return claims.Claim{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}

	q.cacheSet(ctx, key, claim)
	return claim, nil
}

// Endorsers returns the accounts backing the claim, claimant first. An
// unregistered fingerprint has no endorsers.
func (q *Queries) Endorsers(ctx context.Context, fp id.Fingerprint) ([]id.AccountID, error) {
	claim, err := q.FullDetails(ctx, fp)
	if err != nil {
		return nil, err
	}
	return claim.Endorsers, nil
}

// Resume assembles the account's claims grouped by category in the fixed
// category order, each group in submission order. Index entries whose
// record cannot be loaded surface as the absent-record sentinel so the
// resume keeps its shape.
func (q *Queries) Resume(ctx context.Context, account id.AccountID) ([]claims.Claim, error) {
	ctx, span := q.tracer.Start(ctx, "claims.Resume")
	defer span.End()

	key := cache.ResumeKey(account)
	var cached []claims.Claim
	if q.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	var resume []claims.Claim
	err := q.store.View(ctx, func(_ context.Context, tx storage.ReadTx) error {
		for _, category := range claims.Categories() {
			fps, err := tx.AccountClaims(account, category)
			if err != nil {
				return err
			}
			for _, fp := range fps {
				claim, ok, err := tx.Claim(fp)
				if err != nil {
					return err
				}
				if !ok {
					claim = claims.Absent()
				}
				resume = append(resume, claim)
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assemble resume")
	}

	q.cacheSet(ctx, key, resume)
	return resume, nil
}

// MatchingClaims scans the global ledger for claims whose content contains
// the query text, in submission order. Content and query both decode as
// UTF-8 before comparison, so undecodable content only ever matches the
// empty query. The scan is linear over the whole ledger and is served
// uncached.
func (q *Queries) MatchingClaims(ctx context.Context, query []byte) ([]claims.Claim, error) {
	ctx, span := q.tracer.Start(ctx, "claims.MatchingClaims")
	defer span.End()

	queryText := claims.DecodeText(query)

	var matches []claims.Claim
	err := q.store.View(ctx, func(_ context.Context, tx storage.ReadTx) error {
		ledger, err := tx.LedgerClaims()
		if err != nil {
			return err
		}
		for _, claim := range ledger {
			if claim.Matches(queryText) {
				matches = append(matches, claim)
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search ledger")
	}

	if q.metrics != nil {
		q.metrics.IncSearches()
	}
	return matches, nil
}

// AccountActivity tallies the account's submissions per category.
func (q *Queries) AccountActivity(ctx context.Context, account id.AccountID) (claims.AccountActivity, error) {
	ctx, span := q.tracer.Start(ctx, "claims.AccountActivity")
	defer span.End()

	var activity claims.AccountActivity
	err := q.store.View(ctx, func(_ context.Context, tx storage.ReadTx) error {
		for _, category := range claims.Categories() {
			count, err := tx.AccountClaimCount(account, category)
			if err != nil {
				return err
			}
			activity.Set(category, count)
		}
		return nil
	})
	if err != nil {
		return claims.AccountActivity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to tally account activity")
	}
	return activity, nil
}

func (q *Queries) cacheGet(ctx context.Context, key string, out any) bool {
	if q.cache == nil {
		return false
	}
	raw, ok := q.cache.Get(ctx, key)
	if ok {
		if err := json.Unmarshal(raw, out); err != nil {
			q.logger.WarnContext(ctx, "cache entry undecodable", "key", key, "error", err)
			ok = false
		}
	}
	if q.metrics != nil {
		q.metrics.ObserveCache(ok)
	}
	return ok
}

func (q *Queries) cacheSet(ctx context.Context, key string, value any) {
	if q.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		q.logger.WarnContext(ctx, "cache entry unencodable", "key", key, "error", err)
		return
	}
	if err := q.cache.Set(ctx, key, raw, policy.ClaimCacheTTL); err != nil {
		q.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

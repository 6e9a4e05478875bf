// Package service orchestrates claim submission, endorsement and visibility.
//
// All mutating operations run under a single writer lock and a store
// transaction, preserving the registry's call-serial semantics: one mutating
// call completes, commits, and emits its events before the next begins.
// Reads (see Queries) run against store snapshots and never take the lock.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vitae/internal/claims/cache"
	"vitae/internal/claims/metrics"
	claims "vitae/internal/claims/models"
	"vitae/internal/events"
	"vitae/internal/storage"
	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
	"vitae/pkg/platform/sentinel"
	"vitae/pkg/requestcontext"
)

// RewardHook is consulted at the end of every accepted submission, inside
// the submission's transaction. A non-nil returned event is emitted by the
// service after commit.
type RewardHook interface {
	AfterClaim(ctx context.Context, tx storage.Tx, claimant id.AccountID) (*events.Event, error)
}

// Service owns all registry mutations.
type Service struct {
	// mu serializes mutating calls so commits and their events form one
	// total order.
	mu sync.Mutex

	store     storage.Store
	rewards   RewardHook
	publisher *events.Publisher
	cache     cache.Cache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store storage.Store, rewards RewardHook, publisher *events.Publisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("claims store is required")
	}
	if rewards == nil {
		return nil, fmt.Errorf("reward hook is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}

	svc := &Service{
		store:     store,
		rewards:   rewards,
		publisher: publisher,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer("vitae/claims")
	}
	return svc, nil
}

// Submit registers a claim in one of the derived-fingerprint categories.
// The fingerprint binds caller and content, so one account resubmitting the
// same text dedups while two accounts with identical text both succeed.
func (s *Service) Submit(ctx context.Context, category claims.Category, content, link []byte) (claims.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "claims.Submit",
		trace.WithAttributes(attribute.String("category", category.String())))
	defer span.End()

	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return claims.Claim{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !category.Derived() {
		return claims.Claim{}, dErrors.Newf(dErrors.CodeInvalidInput, "category %s does not derive its fingerprint", category)
	}

	fp := id.DeriveFingerprint(caller, content)
	return s.submit(ctx, claims.New(category, caller, content, link, fp))
}

// SubmitIntellectualProperty registers an intellectual-property claim under
// a caller-supplied fingerprint, expected (not verified) to be a hash of
// the underlying work.
func (s *Service) SubmitIntellectualProperty(ctx context.Context, content, link []byte, fp id.Fingerprint) (claims.Claim, error) {
	ctx, span := s.tracer.Start(ctx, "claims.SubmitIntellectualProperty")
	defer span.End()

	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return claims.Claim{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if fp.IsZero() {
		return claims.Claim{}, dErrors.New(dErrors.CodeInvalidInput, "fingerprint is required")
	}

	return s.submit(ctx, claims.New(claims.CategoryIntellectualProperty, caller, content, link, fp))
}

// submit is the shared submission flow: capacity check, dedup insert,
// ledger and index appends, reward hook, then events after commit.
func (s *Service) submit(ctx context.Context, claim claims.Claim) (claims.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rewardEvent *events.Event
	err := s.store.Update(ctx, func(txCtx context.Context, tx storage.Tx) error {
		count, err := tx.AccountClaimCount(claim.Claimant, claim.Category)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read account index")
		}
		if count >= claims.MaxAccountClaims {
			return dErrors.Newf(dErrors.CodeDataTooLarge, "account holds the maximum of %d %s claims", claims.MaxAccountClaims, claim.Category)
		}

		if err := tx.InsertClaim(claim); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return dErrors.New(dErrors.CodeDuplicateClaim, "claim already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store claim")
		}
		if err := tx.AppendLedger(claim.Fingerprint); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to extend ledger")
		}
		if err := tx.AppendAccountClaim(claim.Claimant, claim.Category, claim.Fingerprint); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to extend account index")
		}

		rewardEvent, err = s.rewards.AfterClaim(txCtx, tx, claim.Claimant)
		return err
	})
	if err != nil {
		return claims.Claim{}, err
	}

	s.publisher.Emit(ctx, events.ClaimMade(ctx, claim))
	if rewardEvent != nil {
		s.publisher.Emit(ctx, *rewardEvent)
	}

	s.invalidate(ctx, cache.DetailKey(claim.Fingerprint), cache.ResumeKey(claim.Claimant))
	if s.metrics != nil {
		s.metrics.IncSubmitted(claim.Category.String())
	}
	s.logger.InfoContext(ctx, "claim registered",
		"category", claim.Category.String(),
		"fingerprint", claim.Fingerprint,
		"claimant", claim.Claimant,
	)
	return claim, nil
}

// Endorse records the caller as a backer of the claim. At endorser capacity
// the endorsement is acknowledged with an event but not recorded; recorded
// reports which of the two happened.
func (s *Service) Endorse(ctx context.Context, fp id.Fingerprint) (recorded bool, err error) {
	ctx, span := s.tracer.Start(ctx, "claims.Endorse")
	defer span.End()

	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return false, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var claimant id.AccountID
	err = s.store.Update(ctx, func(_ context.Context, tx storage.Tx) error {
		claim, ok, err := tx.Claim(fp)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
		}
		if !ok {
			return dErrors.New(dErrors.CodeNonexistentClaim, "no claim with this fingerprint")
		}

		recorded, err = claim.Endorse(caller)
		if err != nil {
			return err
		}
		if recorded {
			if err := tx.UpdateClaim(claim); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store endorsement")
			}
		}
		claimant = claim.Claimant
		return nil
	})
	if err != nil {
		return false, err
	}

	// The event is emitted whether or not the endorsement was recorded;
	// at capacity the acknowledgment is all that remains of the call.
	s.publisher.Emit(ctx, events.ClaimEndorsed(ctx, claimant, fp, caller))

	if recorded {
		s.invalidate(ctx, cache.DetailKey(fp), cache.ResumeKey(claimant))
	}
	if s.metrics != nil {
		s.metrics.IncEndorsement(recorded)
	}
	s.logger.InfoContext(ctx, "claim endorsed",
		"fingerprint", fp,
		"endorser", caller,
		"recorded", recorded,
	)
	return recorded, nil
}

// SetVisibility shows or hides a claim. Only the claimant may toggle it,
// and no event is emitted for visibility changes.
func (s *Service) SetVisibility(ctx context.Context, fp id.Fingerprint, visible bool) error {
	ctx, span := s.tracer.Start(ctx, "claims.SetVisibility",
		trace.WithAttributes(attribute.Bool("visible", visible)))
	defer span.End()

	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Update(ctx, func(_ context.Context, tx storage.Tx) error {
		claim, ok, err := tx.Claim(fp)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
		}
		// An unregistered fingerprint has no owner, so the caller cannot
		// be it.
		if !ok || !claim.OwnedBy(caller) {
			return dErrors.New(dErrors.CodeCallerNotOwner, "caller does not own this claim")
		}

		claim.SetVisibility(visible)
		if err := tx.UpdateClaim(claim); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store visibility")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, cache.DetailKey(fp), cache.ResumeKey(caller))
	s.logger.InfoContext(ctx, "claim visibility set",
		"fingerprint", fp,
		"visible", visible,
	)
	return nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed", "key", key, "error", err)
		}
	}
}

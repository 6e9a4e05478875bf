// Package storage persists the registry: claim records keyed by
// fingerprint, per-(account, category) ordered indices, the global
// append-only ledger, and the reward program settings.
//
// The store is interface-driven to keep domain logic testable and to allow
// swapping the in-memory, embedded LevelDB, and Postgres implementations
// without rewiring business code. All mutation happens inside Update, which
// runs the callback against a transaction with read-your-writes semantics
// and applies everything or nothing. The registry serializes writers above
// this layer, so implementations optimize for correctness, not write
// concurrency.
package storage

import (
	"context"

	claims "vitae/internal/claims/models"
	reward "vitae/internal/reward/models"
	id "vitae/pkg/domain"
)

// Store is the transactional registry store.
type Store interface {
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error
	// Update runs fn against a transaction and commits iff fn returns nil.
	// The context passed to fn may carry the underlying transaction so
	// collaborating stores (the bank) can enlist; use it for every call
	// made inside fn.
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
	Close() error
}

// ReadTx reads registry state. Implementations return sentinel errors from
// pkg/platform/sentinel; services translate them into domain errors.
type ReadTx interface {
	// Claim loads one record. ok is false when the fingerprint was never
	// registered; callers decide whether that maps to a sentinel record
	// or an error.
	Claim(fp id.Fingerprint) (c claims.Claim, ok bool, err error)
	// AccountClaims lists the fingerprints one account registered in one
	// category, in submission order.
	AccountClaims(account id.AccountID, category claims.Category) ([]id.Fingerprint, error)
	// AccountClaimCount is AccountClaims without materializing the list.
	AccountClaimCount(account id.AccountID, category claims.Category) (int, error)
	// LedgerClaims returns every record in global submission order. The
	// ledger is the substrate for linear keyword scans; it grows without
	// bound by design.
	LedgerClaims() ([]claims.Claim, error)
	// RewardSettings loads the singleton reward program state. A store
	// that has never seen a PutRewardSettings returns the zero value.
	RewardSettings() (reward.Settings, error)
}

// Tx extends ReadTx with mutations. Reads observe earlier writes in the
// same transaction.
type Tx interface {
	ReadTx
	// InsertClaim registers a new record.
	// Errors: sentinel.ErrAlreadyExists when the fingerprint is taken.
	InsertClaim(c claims.Claim) error
	// UpdateClaim replaces an existing record (endorsements, visibility).
	// Errors: sentinel.ErrNotFound when the fingerprint is unknown.
	UpdateClaim(c claims.Claim) error
	// AppendAccountClaim extends an account's per-category index. The
	// capacity cap is enforced by the service before any write.
	AppendAccountClaim(account id.AccountID, category claims.Category, fp id.Fingerprint) error
	// AppendLedger extends the global ledger.
	AppendLedger(fp id.Fingerprint) error
	// PutRewardSettings replaces the singleton reward program state.
	PutRewardSettings(s reward.Settings) error
}

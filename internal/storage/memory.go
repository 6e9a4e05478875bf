package storage

import (
	"context"
	"slices"
	"sync"

	claims "vitae/internal/claims/models"
	reward "vitae/internal/reward/models"
	id "vitae/pkg/domain"
	"vitae/pkg/platform/sentinel"
)

// Memory keeps the whole registry in process. It intentionally favors
// clarity over performance: Update stages every write and applies the batch
// only when the callback succeeds, which is the same all-or-nothing
// contract the durable backends provide.
type Memory struct {
	mu     sync.RWMutex
	claims map[id.Fingerprint]claims.Claim
	index  map[indexKey][]id.Fingerprint
	ledger []id.Fingerprint
	reward reward.Settings
}

type indexKey struct {
	account  id.AccountID
	category claims.Category
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		claims: make(map[id.Fingerprint]claims.Claim),
		index:  make(map[indexKey][]id.Fingerprint),
	}
}

func (m *Memory) View(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(ctx, &memReadTx{store: m})
}

func (m *Memory) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		memReadTx:    memReadTx{store: m},
		stagedClaims: make(map[id.Fingerprint]claims.Claim),
		stagedIndex:  make(map[indexKey][]id.Fingerprint),
	}
	tx.memReadTx.staged = tx

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

func (m *Memory) Health(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// memReadTx reads base state, consulting the staged overlay first when it
// belongs to an Update.
type memReadTx struct {
	store  *Memory
	staged *memTx
}

func (r *memReadTx) Claim(fp id.Fingerprint) (claims.Claim, bool, error) {
	if r.staged != nil {
		if c, ok := r.staged.stagedClaims[fp]; ok {
			return cloneClaim(c), true, nil
		}
	}
	c, ok := r.store.claims[fp]
	if !ok {
		return claims.Claim{}, false, nil
	}
	return cloneClaim(c), true, nil
}

func (r *memReadTx) AccountClaims(account id.AccountID, category claims.Category) ([]id.Fingerprint, error) {
	key := indexKey{account: account, category: category}
	out := slices.Clone(r.store.index[key])
	if r.staged != nil {
		out = append(out, r.staged.stagedIndex[key]...)
	}
	return out, nil
}

func (r *memReadTx) AccountClaimCount(account id.AccountID, category claims.Category) (int, error) {
	key := indexKey{account: account, category: category}
	count := len(r.store.index[key])
	if r.staged != nil {
		count += len(r.staged.stagedIndex[key])
	}
	return count, nil
}

func (r *memReadTx) LedgerClaims() ([]claims.Claim, error) {
	size := len(r.store.ledger)
	if r.staged != nil {
		size += len(r.staged.stagedLedger)
	}
	out := make([]claims.Claim, 0, size)
	appendRecord := func(fp id.Fingerprint) error {
		c, ok, err := r.Claim(fp)
		if err != nil {
			return err
		}
		if !ok {
			// A ledger entry without a record means a broken batch.
			return sentinel.ErrInvalidState
		}
		out = append(out, c)
		return nil
	}
	for _, fp := range r.store.ledger {
		if err := appendRecord(fp); err != nil {
			return nil, err
		}
	}
	if r.staged != nil {
		for _, fp := range r.staged.stagedLedger {
			if err := appendRecord(fp); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *memReadTx) RewardSettings() (reward.Settings, error) {
	if r.staged != nil && r.staged.stagedReward != nil {
		return *r.staged.stagedReward, nil
	}
	return r.store.reward, nil
}

// memTx stages writes until apply.
type memTx struct {
	memReadTx
	stagedClaims map[id.Fingerprint]claims.Claim
	stagedIndex  map[indexKey][]id.Fingerprint
	stagedLedger []id.Fingerprint
	stagedReward *reward.Settings
}

func (t *memTx) InsertClaim(c claims.Claim) error {
	if _, ok := t.stagedClaims[c.Fingerprint]; ok {
		return sentinel.ErrAlreadyExists
	}
	if _, ok := t.store.claims[c.Fingerprint]; ok {
		return sentinel.ErrAlreadyExists
	}
	t.stagedClaims[c.Fingerprint] = cloneClaim(c)
	return nil
}

func (t *memTx) UpdateClaim(c claims.Claim) error {
	_, staged := t.stagedClaims[c.Fingerprint]
	_, exists := t.store.claims[c.Fingerprint]
	if !staged && !exists {
		return sentinel.ErrNotFound
	}
	t.stagedClaims[c.Fingerprint] = cloneClaim(c)
	return nil
}

func (t *memTx) AppendAccountClaim(account id.AccountID, category claims.Category, fp id.Fingerprint) error {
	key := indexKey{account: account, category: category}
	t.stagedIndex[key] = append(t.stagedIndex[key], fp)
	return nil
}

func (t *memTx) AppendLedger(fp id.Fingerprint) error {
	t.stagedLedger = append(t.stagedLedger, fp)
	return nil
}

func (t *memTx) PutRewardSettings(s reward.Settings) error {
	t.stagedReward = &s
	return nil
}

func (t *memTx) apply() {
	for fp, c := range t.stagedClaims {
		t.store.claims[fp] = c
	}
	for key, fps := range t.stagedIndex {
		t.store.index[key] = append(t.store.index[key], fps...)
	}
	t.store.ledger = append(t.store.ledger, t.stagedLedger...)
	if t.stagedReward != nil {
		t.store.reward = *t.stagedReward
	}
}

// cloneClaim detaches slice fields so callers can mutate their copy without
// reaching into stored state.
func cloneClaim(c claims.Claim) claims.Claim {
	c.Content = slices.Clone(c.Content)
	c.Link = slices.Clone(c.Link)
	c.Endorsers = slices.Clone(c.Endorsers)
	return c
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"

	claims "vitae/internal/claims/models"
	reward "vitae/internal/reward/models"
	id "vitae/pkg/domain"
	"vitae/pkg/platform/sentinel"
	pftx "vitae/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the durable backend. Update wraps the callback in one SQL
// transaction and publishes it through pkg/platform/tx so the bank store
// can enlist; a payout and the claim that triggered it commit or roll back
// together.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the idempotent DDL. Deployments that manage schema
// out-of-band can skip it.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply registry schema: %w", err)
	}
	return nil
}

func (p *Postgres) View(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &pgTx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit read tx: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	// Expose the transaction so collaborating stores join it.
	txCtx := pftx.WithTx(ctx, sqlTx)

	if err := fn(txCtx, &pgTx{ctx: txCtx, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *Postgres) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// pgTx runs every statement on one *sql.Tx. SQL transactions already give
// read-your-writes, so no overlay is needed here.
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Claim(fp id.Fingerprint) (claims.Claim, bool, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT category, claimant, content, link, endorser_count, visible, endorsers
		FROM claims
		WHERE fingerprint = $1`, fp[:])

	c, err := scanClaim(row, fp)
	if errors.Is(err, sql.ErrNoRows) {
		return claims.Claim{}, false, nil
	}
	if err != nil {
		return claims.Claim{}, false, err
	}
	return c, true, nil
}

func (t *pgTx) AccountClaims(account id.AccountID, category claims.Category) ([]id.Fingerprint, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT fingerprint
		FROM account_claims
		WHERE account = $1 AND category = $2
		ORDER BY position`, account.String(), int16(category))
	if err != nil {
		return nil, fmt.Errorf("query account claims: %w", err)
	}
	defer rows.Close()

	var out []id.Fingerprint
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan account claim: %w", err)
		}
		fp, err := fingerprintFromValue(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

func (t *pgTx) AccountClaimCount(account id.AccountID, category claims.Category) (int, error) {
	var count int
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT COUNT(*)
		FROM account_claims
		WHERE account = $1 AND category = $2`, account.String(), int16(category)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count account claims: %w", err)
	}
	return count, nil
}

func (t *pgTx) LedgerClaims() ([]claims.Claim, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT c.fingerprint, c.category, c.claimant, c.content, c.link,
		       c.endorser_count, c.visible, c.endorsers
		FROM ledger l
		JOIN claims c ON c.fingerprint = l.fingerprint
		ORDER BY l.position`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []claims.Claim
	for rows.Next() {
		var (
			rawFP        []byte
			category     int16
			claimant     string
			content      []byte
			link         []byte
			count        int64
			visible      bool
			rawEndorsers []byte
		)
		if err := rows.Scan(&rawFP, &category, &claimant, &content, &link, &count, &visible, &rawEndorsers); err != nil {
			return nil, fmt.Errorf("scan ledger claim: %w", err)
		}
		fp, err := fingerprintFromValue(rawFP)
		if err != nil {
			return nil, err
		}
		c, err := assembleClaim(fp, category, claimant, content, link, count, visible, rawEndorsers)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) RewardSettings() (reward.Settings, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT root, root_set, enabled, interval_claims, amount, balance, total_paid, claim_counter
		FROM reward_settings
		WHERE singleton`)

	var (
		root                                          string
		rootSet, enabled                              bool
		interval, amount, balance, totalPaid, counter int64
	)
	err := row.Scan(&root, &rootSet, &enabled, &interval, &amount, &balance, &totalPaid, &counter)
	if errors.Is(err, sql.ErrNoRows) {
		return reward.Settings{}, nil
	}
	if err != nil {
		return reward.Settings{}, fmt.Errorf("scan reward settings: %w", err)
	}

	var rootID id.AccountID
	if err := rootID.UnmarshalText([]byte(root)); err != nil {
		return reward.Settings{}, fmt.Errorf("decode reward root: %w", err)
	}
	return reward.Settings{
		Root:         rootID,
		RootSet:      rootSet,
		Enabled:      enabled,
		Interval:     uint64(interval),
		Amount:       uint64(amount),
		Balance:      uint64(balance),
		TotalPaid:    uint64(totalPaid),
		ClaimCounter: uint64(counter),
	}, nil
}

func (t *pgTx) InsertClaim(c claims.Claim) error {
	endorsers, err := json.Marshal(c.Endorsers)
	if err != nil {
		return fmt.Errorf("encode endorsers: %w", err)
	}
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO claims (fingerprint, category, claimant, content, link, endorser_count, visible, endorsers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fingerprint) DO NOTHING`,
		c.Fingerprint[:], int16(c.Category), c.Claimant.String(), c.Content, c.Link,
		int64(c.EndorserCount), c.Visible, endorsers)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert claim result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (t *pgTx) UpdateClaim(c claims.Claim) error {
	endorsers, err := json.Marshal(c.Endorsers)
	if err != nil {
		return fmt.Errorf("encode endorsers: %w", err)
	}
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE claims
		SET endorser_count = $2, visible = $3, endorsers = $4
		WHERE fingerprint = $1`,
		c.Fingerprint[:], int64(c.EndorserCount), c.Visible, endorsers)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendAccountClaim(account id.AccountID, category claims.Category, fp id.Fingerprint) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO account_claims (account, category, position, fingerprint)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3
		FROM account_claims
		WHERE account = $1 AND category = $2`,
		account.String(), int16(category), fp[:])
	if err != nil {
		return fmt.Errorf("append account claim: %w", err)
	}
	return nil
}

func (t *pgTx) AppendLedger(fp id.Fingerprint) error {
	if _, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO ledger (fingerprint) VALUES ($1)`, fp[:]); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

func (t *pgTx) PutRewardSettings(s reward.Settings) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO reward_settings (singleton, root, root_set, enabled, interval_claims, amount, balance, total_paid, claim_counter)
		VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (singleton) DO UPDATE SET
			root = EXCLUDED.root,
			root_set = EXCLUDED.root_set,
			enabled = EXCLUDED.enabled,
			interval_claims = EXCLUDED.interval_claims,
			amount = EXCLUDED.amount,
			balance = EXCLUDED.balance,
			total_paid = EXCLUDED.total_paid,
			claim_counter = EXCLUDED.claim_counter`,
		s.Root.String(), s.RootSet, s.Enabled, int64(s.Interval), int64(s.Amount),
		int64(s.Balance), int64(s.TotalPaid), int64(s.ClaimCounter))
	if err != nil {
		return fmt.Errorf("put reward settings: %w", err)
	}
	return nil
}

// scanClaim reads one claims row whose fingerprint is already known.
func scanClaim(row *sql.Row, fp id.Fingerprint) (claims.Claim, error) {
	var (
		category     int16
		claimant     string
		content      []byte
		link         []byte
		count        int64
		visible      bool
		rawEndorsers []byte
	)
	if err := row.Scan(&category, &claimant, &content, &link, &count, &visible, &rawEndorsers); err != nil {
		return claims.Claim{}, err
	}
	return assembleClaim(fp, category, claimant, content, link, count, visible, rawEndorsers)
}

func assembleClaim(fp id.Fingerprint, category int16, claimant string, content, link []byte,
	count int64, visible bool, rawEndorsers []byte) (claims.Claim, error) {

	var claimantID id.AccountID
	if err := claimantID.UnmarshalText([]byte(claimant)); err != nil {
		return claims.Claim{}, fmt.Errorf("decode claimant: %w", err)
	}
	var endorsers []id.AccountID
	if err := json.Unmarshal(rawEndorsers, &endorsers); err != nil {
		return claims.Claim{}, fmt.Errorf("decode endorsers: %w", err)
	}
	return claims.Claim{
		Category:      claims.Category(category),
		Claimant:      claimantID,
		Content:       content,
		Fingerprint:   fp,
		EndorserCount: uint64(count),
		Link:          link,
		Visible:       visible,
		Endorsers:     endorsers,
	}, nil
}

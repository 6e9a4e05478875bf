package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "vitae/pkg/domain"
	"vitae/pkg/platform/sentinel"
	txcontext "vitae/pkg/platform/tx"
)

// Postgres is a bank backed by the bank_accounts table.
//
// When the context carries a transaction (set by the registry store's
// Update), all statements run inside it, so a payout commits or rolls back
// together with the claim that triggered it.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (b *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return b.db
}

func (b *Postgres) Balance(ctx context.Context, account id.AccountID) (uint64, error) {
	const query = `SELECT balance FROM bank_accounts WHERE account = $1`

	var balance int64
	err := b.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(account)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return uint64(balance), nil
}

func (b *Postgres) Transfer(ctx context.Context, from, to id.AccountID, amount uint64) error {
	if amount == 0 {
		return nil
	}

	execer := b.execer(ctx)

	// The guarded debit is the funds check: zero rows means the source
	// account is missing or short.
	const debit = `
		UPDATE bank_accounts
		SET balance = balance - $2
		WHERE account = $1 AND balance >= $2
	`
	res, err := execer.ExecContext(ctx, debit, uuid.UUID(from), int64(amount))
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInsufficientFunds
	}

	const credit = `
		INSERT INTO bank_accounts (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account)
		DO UPDATE SET balance = bank_accounts.balance + EXCLUDED.balance
	`
	if _, err := execer.ExecContext(ctx, credit, uuid.UUID(to), int64(amount)); err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

// Credit adds funds to an account outside any transfer, for seeding
// development environments.
func (b *Postgres) Credit(ctx context.Context, account id.AccountID, amount uint64) error {
	const query = `
		INSERT INTO bank_accounts (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account)
		DO UPDATE SET balance = bank_accounts.balance + EXCLUDED.balance
	`
	if _, err := b.execer(ctx).ExecContext(ctx, query, uuid.UUID(account), int64(amount)); err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	return nil
}

// Package bank abstracts the funds ledger the reward controller draws on.
//
// The registry never mints money; it only moves it between accounts it can
// see. Implementations must make Transfer atomic with any surrounding
// registry transaction so a failed payout aborts the whole submission.
package bank

//go:generate mockgen -source=bank.go -destination=mocks/mocks.go -package=mocks Bank

import (
	"context"

	id "vitae/pkg/domain"
)

// Bank moves funds between accounts.
type Bank interface {
	// Balance reports the funds held by an account. Unknown accounts hold
	// zero.
	Balance(ctx context.Context, account id.AccountID) (uint64, error)

	// Transfer moves amount from one account to another. It returns
	// sentinel.ErrInsufficientFunds when the source cannot cover the
	// amount.
	Transfer(ctx context.Context, from, to id.AccountID, amount uint64) error
}

// Package models defines the reward program state. One Settings record
// exists per deployment; it is read and rewritten inside the same
// transaction as the claim that may trigger a payout.
package models

import (
	id "vitae/pkg/domain"
)

// PayoutReserve is the minimum balance the treasury always retains, in base
// currency units. The payout guard requires treasury funds to exceed the
// reward amount plus this reserve, and shutdown refunds down to it, never
// below.
const PayoutReserve uint64 = 10

// Settings is the reward program configuration and running state.
type Settings struct {
	// Root administers the program. Unset until the first SetRoot call.
	Root id.AccountID `json:"root"`
	// RootSet distinguishes "no root yet" from a root that happens to be
	// the zero account (which SetRoot never produces, but storage should
	// not rely on that).
	RootSet bool `json:"root_set"`
	// Enabled gates payouts entirely.
	Enabled bool `json:"enabled"`
	// Interval pays on every Interval-th accepted claim. Zero disables
	// triggering without disabling the program.
	Interval uint64 `json:"interval"`
	// Amount is the payout per triggered claim, in base units.
	Amount uint64 `json:"amount"`
	// Balance is the program's earmarked funds, in base units. It moves
	// only via Fund, payouts, and Shutdown refunds.
	Balance uint64 `json:"balance"`
	// TotalPaid accumulates every payout ever made.
	TotalPaid uint64 `json:"total_paid"`
	// ClaimCounter counts accepted claims since genesis, whether or not
	// the program was enabled when they landed.
	ClaimCounter uint64 `json:"claim_counter"`
}

// IsRoot reports whether the account is the program root. Always false
// before the first SetRoot.
func (s Settings) IsRoot(account id.AccountID) bool {
	return s.RootSet && s.Root == account
}

// Redacted returns the zeroed view served to non-root callers. Asking for
// settings is not an error for them; they just see nothing.
func (s Settings) Redacted() Settings {
	return Settings{}
}

// ShouldPay reports whether the payout trigger fires for the current
// counter value given the treasury's disposable funds. The caller has
// already incremented ClaimCounter for the claim being processed.
func (s Settings) ShouldPay(treasuryFunds uint64) bool {
	if !s.Enabled || s.Interval == 0 {
		return false
	}
	if s.Balance <= s.Amount {
		return false
	}
	if treasuryFunds <= s.Amount+PayoutReserve {
		return false
	}
	return s.ClaimCounter%s.Interval == 0
}

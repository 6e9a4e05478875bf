// Package service implements the reward program: a root-administered pool
// that pays a fixed amount to the submitter of every N-th accepted claim.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"vitae/internal/events"
	"vitae/internal/reward/bank"
	"vitae/internal/reward/metrics"
	reward "vitae/internal/reward/models"
	"vitae/internal/storage"
	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
	"vitae/pkg/requestcontext"
)

// Service owns the reward configuration and the payout trigger.
//
// Administrative operations (SetRoot, Configure, Fund, Shutdown, Settings)
// run their own store transactions. AfterClaim runs inside the claim
// submission's transaction, so a failed payout aborts the submission that
// triggered it.
type Service struct {
	store    storage.Store
	bank     bank.Bank
	treasury id.AccountID
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

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

func New(store storage.Store, funds bank.Bank, treasury id.AccountID, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("reward store is required")
	}
	if funds == nil {
		return nil, fmt.Errorf("reward bank is required")
	}
	if treasury.IsZero() {
		return nil, fmt.Errorf("treasury account is required")
	}

	svc := &Service{
		store:    store,
		bank:     funds,
		treasury: treasury,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// SetRoot claims or rotates the administrative account. The first successful
// call may come from anyone; afterwards only the current root can rotate.
func (s *Service) SetRoot(ctx context.Context, candidate id.AccountID) error {
	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if candidate.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "root account is required")
	}

	return s.store.Update(ctx, func(_ context.Context, tx storage.Tx) error {
		settings, err := tx.RewardSettings()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reward settings")
		}

		if settings.RootSet && !settings.IsRoot(caller) {
			return dErrors.New(dErrors.CodePermissionDenied, "only the current root can rotate root")
		}

		settings.Root = candidate
		settings.RootSet = true
		if err := tx.PutRewardSettings(settings); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reward settings")
		}

		s.logger.InfoContext(ctx, "reward root set", "root", candidate)
		return nil
	})
}

// Configure sets the trigger parameters. Root only. An interval of zero
// leaves the program configured but never triggering.
func (s *Service) Configure(ctx context.Context, enabled bool, interval, amount uint64) error {
	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	return s.store.Update(ctx, func(_ context.Context, tx storage.Tx) error {
		settings, err := tx.RewardSettings()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reward settings")
		}
		if !settings.IsRoot(caller) {
			return dErrors.New(dErrors.CodePermissionDenied, "reward configuration is root-only")
		}

		settings.Enabled = enabled
		settings.Interval = interval
		settings.Amount = amount
		if err := tx.PutRewardSettings(settings); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reward settings")
		}

		s.logger.InfoContext(ctx, "reward program configured",
			"enabled", enabled,
			"interval", interval,
			"amount", amount,
		)
		return nil
	})
}

// Fund moves amount from the root's account into the treasury and credits
// the payout balance. Root only.
func (s *Service) Fund(ctx context.Context, amount uint64) error {
	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be greater than zero")
	}

	return s.store.Update(ctx, func(txCtx context.Context, tx storage.Tx) error {
		settings, err := tx.RewardSettings()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reward settings")
		}
		if !settings.IsRoot(caller) {
			return dErrors.New(dErrors.CodePermissionDenied, "reward funding is root-only")
		}

		if err := s.bank.Transfer(txCtx, caller, s.treasury, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodePayoutFailed, "funding transfer failed")
		}

		settings.Balance += amount
		if err := tx.PutRewardSettings(settings); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reward settings")
		}

		s.logger.InfoContext(ctx, "reward program funded",
			"amount", amount,
			"balance", settings.Balance,
		)
		return nil
	})
}

// Shutdown disables the program and refunds the balance above the payout
// reserve to the root. Root only. With nothing to disburse the call fails
// with ZeroBalance and changes nothing, the disable included.
func (s *Service) Shutdown(ctx context.Context) error {
	caller := requestcontext.Account(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	return s.store.Update(ctx, func(txCtx context.Context, tx storage.Tx) error {
		settings, err := tx.RewardSettings()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reward settings")
		}
		if !settings.IsRoot(caller) {
			return dErrors.New(dErrors.CodePermissionDenied, "reward shutdown is root-only")
		}

		if settings.Balance <= reward.PayoutReserve {
			return dErrors.New(dErrors.CodeZeroBalance, "no disbursable funds")
		}

		refund := settings.Balance - reward.PayoutReserve
		if err := s.bank.Transfer(txCtx, s.treasury, settings.Root, refund); err != nil {
			return dErrors.Wrap(err, dErrors.CodePayoutFailed, "refund transfer failed")
		}

		settings.Enabled = false
		settings.Balance -= refund
		if err := tx.PutRewardSettings(settings); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reward settings")
		}

		if s.metrics != nil {
			s.metrics.IncShutdownRefunds()
		}
		s.logger.InfoContext(ctx, "reward program shut down", "refund", refund)
		return nil
	})
}

// Settings returns the live configuration to the root and a zeroed value to
// everyone else. Concealment is not an error.
func (s *Service) Settings(ctx context.Context) (reward.Settings, error) {
	caller := requestcontext.Account(ctx)

	var settings reward.Settings
	err := s.store.View(ctx, func(_ context.Context, tx storage.ReadTx) error {
		loaded, err := tx.RewardSettings()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reward settings")
		}
		settings = loaded
		return nil
	})
	if err != nil {
		return reward.Settings{}, err
	}

	if !settings.IsRoot(caller) {
		return settings.Redacted(), nil
	}
	return settings, nil
}

// AfterClaim is the post-submission hook. It must be called inside the
// submission's transaction, with the transaction-scoped context, after all
// claim mutations have been staged.
//
// The claim counter advances for every accepted submission. When the
// trigger fires, the payout is transferred immediately; a transfer failure
// returns PayoutFailed, which rolls back the entire submission. On a
// successful payout the returned event is non-nil and the caller emits it
// after commit.
func (s *Service) AfterClaim(ctx context.Context, tx storage.Tx, claimant id.AccountID) (*events.Event, error) {
	settings, err := tx.RewardSettings()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reward settings")
	}

	settings.ClaimCounter++

	var funds uint64
	if settings.Enabled {
		funds, err = s.bank.Balance(ctx, s.treasury)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read treasury funds")
		}
	}

	var event *events.Event
	if settings.ShouldPay(funds) {
		if err := s.bank.Transfer(ctx, s.treasury, claimant, settings.Amount); err != nil {
			if s.metrics != nil {
				s.metrics.IncPayoutFailures()
			}
			return nil, dErrors.Wrap(err, dErrors.CodePayoutFailed, "reward transfer failed")
		}

		settings.Balance -= settings.Amount
		settings.TotalPaid += settings.Amount

		paid := events.RewardPaid(ctx, claimant, settings.Amount)
		event = &paid

		if s.metrics != nil {
			s.metrics.ObservePayout(settings.Amount)
		}
		s.logger.InfoContext(ctx, "reward paid",
			"claimant", claimant,
			"amount", settings.Amount,
			"claim_counter", settings.ClaimCounter,
		)
	}

	if err := tx.PutRewardSettings(settings); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reward settings")
	}
	return event, nil
}

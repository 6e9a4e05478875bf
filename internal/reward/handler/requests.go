package handler

import (
	dErrors "vitae/pkg/domain-errors"
)

// SetRootRequest names the account that will administer the reward program.
type SetRootRequest struct {
	Account string `json:"account"`
}

func (r *SetRootRequest) Validate() error {
	if r.Account == "" {
		return dErrors.New(dErrors.CodeValidation, "account is required")
	}
	return nil
}

// ConfigureRequest carries the payout trigger parameters. Every combination
// is legal: disabled programs and zero intervals are how the root pauses
// payouts without forgetting the configuration.
type ConfigureRequest struct {
	Enabled  bool   `json:"enabled"`
	Interval uint64 `json:"interval"`
	Amount   uint64 `json:"amount"`
}

func (r *ConfigureRequest) Validate() error {
	return nil
}

// FundRequest moves funds from the root's account into the program.
// The zero-amount check lives in the service, which owns the funding rules.
type FundRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *FundRequest) Validate() error {
	return nil
}

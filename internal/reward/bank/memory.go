package bank

import (
	"context"
	"sync"

	id "vitae/pkg/domain"
	"vitae/pkg/platform/sentinel"
)

// Memory is an in-process bank for development and tests.
type Memory struct {
	mu       sync.Mutex
	balances map[id.AccountID]uint64
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[id.AccountID]uint64)}
}

// Credit adds funds to an account. Used to seed fixtures and development
// environments.
func (b *Memory) Credit(account id.AccountID, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
}

func (b *Memory) Balance(_ context.Context, account id.AccountID) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account], nil
}

func (b *Memory) Transfer(_ context.Context, from, to id.AccountID, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from] < amount {
		return sentinel.ErrInsufficientFunds
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitae/internal/reward/bank"
	id "vitae/pkg/domain"
	"vitae/pkg/platform/sentinel"
)

func TestMemory_UnknownAccountHoldsZero(t *testing.T) {
	b := bank.NewMemory()

	balance, err := b.Balance(context.Background(), id.NewAccountID())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestMemory_TransferMovesFunds(t *testing.T) {
	ctx := context.Background()
	b := bank.NewMemory()
	from := id.NewAccountID()
	to := id.NewAccountID()
	b.Credit(from, 100)

	require.NoError(t, b.Transfer(ctx, from, to, 40))

	fromBalance, err := b.Balance(ctx, from)
	require.NoError(t, err)
	toBalance, err := b.Balance(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), fromBalance)
	assert.Equal(t, uint64(40), toBalance)
}

func TestMemory_TransferRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	b := bank.NewMemory()
	from := id.NewAccountID()
	to := id.NewAccountID()
	b.Credit(from, 10)

	err := b.Transfer(ctx, from, to, 11)
	require.ErrorIs(t, err, sentinel.ErrInsufficientFunds)

	// Nothing moved.
	fromBalance, _ := b.Balance(ctx, from)
	toBalance, _ := b.Balance(ctx, to)
	assert.Equal(t, uint64(10), fromBalance)
	assert.Equal(t, uint64(0), toBalance)
}

func TestMemory_TransferExactBalanceDrainsAccount(t *testing.T) {
	ctx := context.Background()
	b := bank.NewMemory()
	from := id.NewAccountID()
	to := id.NewAccountID()
	b.Credit(from, 25)

	require.NoError(t, b.Transfer(ctx, from, to, 25))

	fromBalance, _ := b.Balance(ctx, from)
	assert.Equal(t, uint64(0), fromBalance)
}

func TestMemory_ZeroAmountTransferIsNoop(t *testing.T) {
	ctx := context.Background()
	b := bank.NewMemory()
	from := id.NewAccountID()

	// No funds anywhere; a zero transfer still succeeds.
	require.NoError(t, b.Transfer(ctx, from, id.NewAccountID(), 0))
}

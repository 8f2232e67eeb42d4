package escrow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greentrace/lifecycle-engine/internal/fees"
	"greentrace/lifecycle-engine/internal/lifecycle"
)

const holder = lifecycle.Actor("0xholder")

func TestCollectAndRelease(t *testing.T) {
	tr := NewMemTreasury()
	ctx := context.Background()
	tr.Deposit(holder, fees.NewAmountFromUnits(10))

	require.NoError(t, tr.Collect(ctx, holder, fees.NewAmountFromUnits(4)))
	assert.Equal(t, fees.NewAmountFromUnits(6).String(), tr.Balance(holder).String())
	assert.Equal(t, fees.NewAmountFromUnits(4).String(), tr.Escrowed().String())

	require.NoError(t, tr.Release(ctx, holder, fees.NewAmountFromUnits(4)))
	assert.Equal(t, fees.NewAmountFromUnits(10).String(), tr.Balance(holder).String())
	assert.True(t, tr.Escrowed().IsZero())
}

func TestCollectInsufficientBalance(t *testing.T) {
	tr := NewMemTreasury()
	ctx := context.Background()
	tr.Deposit(holder, fees.NewAmountFromUnits(1))

	err := tr.Collect(ctx, holder, fees.NewAmountFromUnits(2))
	require.Error(t, err)
	// Nothing moved.
	assert.Equal(t, fees.NewAmountFromUnits(1).String(), tr.Balance(holder).String())
	assert.True(t, tr.Escrowed().IsZero())
}

func TestReleaseCannotExceedEscrow(t *testing.T) {
	tr := NewMemTreasury()
	ctx := context.Background()
	tr.Deposit(holder, fees.NewAmountFromUnits(5))
	require.NoError(t, tr.Collect(ctx, holder, fees.NewAmountFromUnits(3)))

	err := tr.Release(ctx, holder, fees.NewAmountFromUnits(4))
	require.Error(t, err)
	assert.Equal(t, fees.NewAmountFromUnits(3).String(), tr.Escrowed().String())
}

func TestDisburseCreditsNewTokens(t *testing.T) {
	tr := NewMemTreasury()

	require.NoError(t, tr.Disburse(context.Background(), holder, fees.NewAmountFromUnits(76)))
	assert.Equal(t, fees.NewAmountFromUnits(76).String(), tr.Balance(holder).String())
	assert.True(t, tr.Escrowed().IsZero())
}

func TestBalanceUnknownActor(t *testing.T) {
	tr := NewMemTreasury()
	assert.True(t, tr.Balance("0xnobody").IsZero())
}

package venue

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

func plausibleQuote(in, out int64) *types.Quote {
	return &types.Quote{
		Venue:     "pancake",
		Kind:      types.VenueRouter,
		AmountIn:  big.NewInt(in),
		AmountOut: big.NewInt(out),
	}
}

func TestPlausibleBounds(t *testing.T) {
	assert.True(t, Plausible(plausibleQuote(1_000_000, 1_010_000), 1000))
	assert.True(t, Plausible(plausibleQuote(1_000_000, 999_000_000), 1000))
	assert.True(t, Plausible(plausibleQuote(999_000_000, 1_000_000), 1000))

	// Exactly on the bound is still plausible.
	assert.True(t, Plausible(plausibleQuote(1, 1000), 1000))
	assert.True(t, Plausible(plausibleQuote(1000, 1), 1000))

	// A thousand-fold-plus move is a broken pool or a decimals mixup.
	assert.False(t, Plausible(plausibleQuote(1, 1001), 1000))
	assert.False(t, Plausible(plausibleQuote(1001, 1), 1000))
}

func TestPlausibleRejectsDegenerateQuotes(t *testing.T) {
	assert.False(t, Plausible(nil, 1000))
	assert.False(t, Plausible(&types.Quote{}, 1000))
	assert.False(t, Plausible(plausibleQuote(0, 1_000_000), 1000))
	assert.False(t, Plausible(plausibleQuote(1_000_000, 0), 1000))
	assert.False(t, Plausible(plausibleQuote(-1, 1), 1000))
}

func TestPacerEnforcesInterval(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))

	// First call is free, the next two each wait out the interval.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerNoWaitAfterIdlePeriod(t *testing.T) {
	p := NewPacer(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx))
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestPacerRespectsCancellation(t *testing.T) {
	p := NewPacer(time.Hour)

	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

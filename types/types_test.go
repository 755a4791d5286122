package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairReverse(t *testing.T) {
	p := Pair{
		Base:  Asset{Symbol: "WBNB", Decimals: 18},
		Quote: Asset{Symbol: "USDT", Decimals: 18},
	}
	assert.Equal(t, "WBNB/USDT", p.String())
	assert.Equal(t, "USDT/WBNB", p.Reverse().String())
	assert.Equal(t, p, p.Reverse().Reverse())
}

func TestQuotePrice(t *testing.T) {
	q := &Quote{AmountIn: big.NewInt(2_000_000), AmountOut: big.NewInt(1_000_000)}
	assert.Equal(t, big.NewInt(50_000_000), q.Price()) // 0.5 scaled by 1e8

	zero := &Quote{AmountIn: new(big.Int), AmountOut: big.NewInt(1)}
	assert.Zero(t, zero.Price().Sign())
}

func TestTierExecutable(t *testing.T) {
	assert.False(t, TierNone.Executable())
	assert.False(t, TierQueued.Executable())
	assert.True(t, TierImmediate.Executable())
	assert.True(t, TierAggressive.Executable())
}

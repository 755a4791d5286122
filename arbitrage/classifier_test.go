package arbitrage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
	"github.com/FabianBoni/Flashloab-arbitrage/venue"
)

// thresholds 0.1% / 0.5% / 1.5%
func testThresholds(t *testing.T) *config.Thresholds {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Thresholds.QueuedBps = 10
	cfg.Thresholds.ImmediateBps = 50
	cfg.Thresholds.AggressiveBps = 150
	require.NoError(t, cfg.Normalize())
	return &cfg.Thresholds
}

// marketVenues builds two venues where buying on pancake and selling on
// biswap yields 1.0 -> 1.01 -> 1.03 before fees.
func marketVenues(pair types.Pair) (*fakeVenue, *fakeVenue) {
	pancake := &fakeVenue{name: "pancake", kind: types.VenueRouter, rates: map[string]int64{
		pair.String():           1_010_000,
		pair.Reverse().String(): 960_000,
	}}
	biswap := &fakeVenue{name: "biswap", kind: types.VenueRouter, rates: map[string]int64{
		pair.String():           990_000,
		pair.Reverse().String(): 1_019_802, // 1.01 in -> 1.03 out
	}}
	return pancake, biswap
}

// tierRecorder collects every tier the classifier reports.
type tierRecorder struct {
	tiers []types.Tier
}

func (r *tierRecorder) OpportunityFound(tier types.Tier) { r.tiers = append(r.tiers, tier) }

func newTestClassifier(t *testing.T, venues []venue.Venue) (*Classifier, *Aggregator) {
	t.Helper()
	agg, err := NewAggregator(venues, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, err)
	calc := NewCalculator(feeModel(20, 10, 10)) // 50 bps total
	return NewClassifier(calc, testThresholds(t), nil, zaptest.NewLogger(t)), agg
}

func TestClassifyFindsBestRoundTrip(t *testing.T) {
	pair := testPair()
	pancake, biswap := marketVenues(pair)
	cl, agg := newTestClassifier(t, []venue.Venue{pancake, biswap})

	amountIn := big.NewInt(1_000_000)
	quotes := agg.Aggregate(context.Background(), pair, amountIn)
	require.Len(t, quotes, 2)

	opp := cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom)
	require.NotNil(t, opp)

	assert.Equal(t, "pancake", opp.Buy.Venue)
	assert.Equal(t, "biswap", opp.Sell.Venue)
	assert.NotEqual(t, opp.Buy.Venue, opp.Sell.Venue)

	// 2.5% net lands at least in the immediate tier under 0.1/0.5/1.5%.
	assert.Equal(t, int64(250), opp.NetProfitBps)
	assert.True(t, opp.Tier.Executable())
	assert.Equal(t, types.TierAggressive, opp.Tier)

	// Chaining: sell leg quoted against the buy leg's realized output.
	assert.Equal(t, opp.Buy.AmountOut, opp.Sell.AmountIn)
}

func TestClassifyNeedsTwoQuotes(t *testing.T) {
	pair := testPair()
	pancake, _ := marketVenues(pair)
	cl, agg := newTestClassifier(t, []venue.Venue{pancake})

	quotes := agg.Aggregate(context.Background(), pair, big.NewInt(1_000_000))
	assert.Len(t, quotes, 1)
	assert.Nil(t, cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom))

	assert.Nil(t, cl.Classify(context.Background(), pair, nil, agg.QuoteFrom))
}

func TestClassifyIsIdempotent(t *testing.T) {
	pair := testPair()
	pancake, biswap := marketVenues(pair)
	cl, agg := newTestClassifier(t, []venue.Venue{pancake, biswap})

	quotes := agg.Aggregate(context.Background(), pair, big.NewInt(1_000_000))

	first := cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom)
	second := cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Buy.Venue, second.Buy.Venue)
	assert.Equal(t, first.Sell.Venue, second.Sell.Venue)
	assert.Equal(t, first.NetProfit, second.NetProfit)
	assert.Equal(t, first.Tier, second.Tier)
}

func TestClassifyNeverSelfArbitrages(t *testing.T) {
	pair := testPair()
	pancake, _ := marketVenues(pair)
	cl, agg := newTestClassifier(t, []venue.Venue{pancake})

	// Two quotes from the same venue must never pair with each other.
	q1, err := agg.QuoteFrom(context.Background(), "pancake", pair, big.NewInt(1_000_000))
	require.NoError(t, err)
	q2 := *q1
	quotes := []*types.Quote{q1, &q2}

	assert.Nil(t, cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom))
}

func TestClassifyDiscardsSubThreshold(t *testing.T) {
	pair := testPair()
	// Spread of 8 bps gross, below even the queued cut after fees.
	a := &fakeVenue{name: "pancake", kind: types.VenueRouter, rates: map[string]int64{
		pair.String():           1_000_400,
		pair.Reverse().String(): 999_000,
	}}
	b := &fakeVenue{name: "biswap", kind: types.VenueRouter, rates: map[string]int64{
		pair.String():           1_000_000,
		pair.Reverse().String(): 1_000_400,
	}}
	cl, agg := newTestClassifier(t, []venue.Venue{a, b})

	quotes := agg.Aggregate(context.Background(), pair, big.NewInt(1_000_000))
	require.Len(t, quotes, 2)

	assert.Nil(t, cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom))
}

func TestClassifyReportsDiscardsToObserver(t *testing.T) {
	pair := testPair()
	// Best round trip nets roughly 5 bps after 50 bps fees, under the
	// 10 bps queued cut.
	a := &fakeVenue{name: "pancake", kind: types.VenueRouter, rates: map[string]int64{
		pair.String():           1_002_000,
		pair.Reverse().String(): 998_000,
	}}
	b := &fakeVenue{name: "biswap", kind: types.VenueRouter, rates: map[string]int64{
		pair.String():           1_000_000,
		pair.Reverse().String(): 1_003_500,
	}}

	agg, err := NewAggregator([]venue.Venue{a, b}, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, err)
	rec := &tierRecorder{}
	cl := NewClassifier(NewCalculator(feeModel(20, 10, 10)), testThresholds(t), rec, zaptest.NewLogger(t))

	quotes := agg.Aggregate(context.Background(), pair, big.NewInt(1_000_000))
	require.Len(t, quotes, 2)

	// Discarded, but still visible to the observer under TierNone.
	assert.Nil(t, cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom))
	assert.Equal(t, []types.Tier{types.TierNone}, rec.tiers)
}

func TestClassifyReportsFoundTierToObserver(t *testing.T) {
	pair := testPair()
	pancake, biswap := marketVenues(pair)

	agg, err := NewAggregator([]venue.Venue{pancake, biswap}, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, err)
	rec := &tierRecorder{}
	cl := NewClassifier(NewCalculator(feeModel(20, 10, 10)), testThresholds(t), rec, zaptest.NewLogger(t))

	quotes := agg.Aggregate(context.Background(), pair, big.NewInt(1_000_000))
	opp := cl.Classify(context.Background(), pair, quotes, agg.QuoteFrom)
	require.NotNil(t, opp)
	assert.Equal(t, []types.Tier{opp.Tier}, rec.tiers)
}

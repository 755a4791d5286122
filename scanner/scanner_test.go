package scanner

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/FabianBoni/Flashloab-arbitrage/arbitrage"
	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/executor"
	"github.com/FabianBoni/Flashloab-arbitrage/flashloan"
	"github.com/FabianBoni/Flashloab-arbitrage/notify"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
	"github.com/FabianBoni/Flashloab-arbitrage/venue"
)

type stubVenue struct {
	name  string
	rates map[string]int64 // amountOut per 1_000_000 in
}

func (v *stubVenue) Name() string          { return v.name }
func (v *stubVenue) Kind() types.VenueKind { return types.VenueRouter }

func (v *stubVenue) Quote(_ context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error) {
	rate, ok := v.rates[pair.String()]
	if !ok {
		return nil, venue.ErrUnavailable
	}
	out := new(big.Int).Mul(amountIn, big.NewInt(rate))
	out.Div(out, big.NewInt(1_000_000))
	return &types.Quote{
		Venue:     v.name,
		Kind:      types.VenueRouter,
		Pair:      pair,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: out,
		Bid:       new(big.Int),
		Ask:       new(big.Int),
		Timestamp: time.Now(),
	}, nil
}

func scannerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Assets = map[string]config.AssetConfig{
		"WBNB": {Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18},
		"USDT": {Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
	}
	cfg.Pairs = []config.PairConfig{{Base: "WBNB", Quote: "USDT"}}
	require.NoError(t, cfg.Normalize())
	return cfg
}

// scanFlash fills the chain-write capability with instantly successful
// receipts so scans can complete an execution.
type scanFlash struct {
	execCalls int
}

func (f *scanFlash) Execute(context.Context, flashloan.Params) (*flashloan.Receipt, error) {
	f.execCalls++
	return &flashloan.Receipt{TxHash: common.HexToHash("0xbeef"), Status: 1, GasUsed: 210_000}, nil
}

func (f *scanFlash) Swap(context.Context, common.Address, *big.Int, common.Address, []common.Address, uint64) (*flashloan.Receipt, error) {
	return &flashloan.Receipt{TxHash: common.HexToHash("0xbeef"), Status: 1, GasUsed: 180_000}, nil
}

// newTestScanner wires a full pipeline over stub venues. With a nil flash
// capability, qualifying opportunities fail with the no-strategy kind, which
// is enough to observe the scan cycle end to end.
func newTestScanner(t *testing.T, cfg *config.Config, venues []venue.Venue, flash executor.FlashExecutor) *Scanner {
	t.Helper()
	logger := zaptest.NewLogger(t)
	stats := NewStats()

	agg, err := arbitrage.NewAggregator(venues, cfg.QuoteCacheTTL, logger)
	require.NoError(t, err)
	calc := arbitrage.NewCalculator(&cfg.Fees)
	classifier := arbitrage.NewClassifier(calc, &cfg.Thresholds, stats, logger)
	routers := map[string]common.Address{
		"pancake": common.HexToAddress("0x10"),
		"biswap":  common.HexToAddress("0x11"),
	}
	dispatcher := executor.NewDispatcher(flash, nil, nil, notify.Nop{}, routers, cfg.GasLimit, cfg.Cooldown, logger)

	return New(cfg, agg, classifier, dispatcher, notify.Nop{}, stats, logger)
}

func TestScanCycleExecutesQualifyingOpportunity(t *testing.T) {
	cfg := scannerConfig(t)
	pair := cfg.ResolvePairs()[0]

	// Buying on pancake and selling on biswap nets roughly 2.1% after the
	// default fee load, well past the aggressive threshold.
	venues := []venue.Venue{
		&stubVenue{name: "pancake", rates: map[string]int64{
			pair.String():           1_010_000,
			pair.Reverse().String(): 960_000,
		}},
		&stubVenue{name: "biswap", rates: map[string]int64{
			pair.String():           990_000,
			pair.Reverse().String(): 1_019_802,
		}},
	}
	sc := newTestScanner(t, cfg, venues, nil)

	sc.Scan(context.Background())

	sum := sc.Stats().Snapshot()
	assert.Equal(t, 1.0, sum.Scans)
	assert.Equal(t, 1.0, sum.Pairs)
	assert.Equal(t, 1.0, sum.Opportunities[types.TierAggressive.String()])
	assert.Equal(t, 1.0, sum.ExecutionsAttempted)
	assert.Equal(t, 1.0, sum.Failures[string(types.ErrorNoStrategy)])
}

func TestScanCycleThrottlesSecondOpportunity(t *testing.T) {
	cfg := scannerConfig(t)
	pair := cfg.ResolvePairs()[0]

	venues := []venue.Venue{
		&stubVenue{name: "pancake", rates: map[string]int64{
			pair.String():           1_010_000,
			pair.Reverse().String(): 960_000,
		}},
		&stubVenue{name: "biswap", rates: map[string]int64{
			pair.String():           990_000,
			pair.Reverse().String(): 1_019_802,
		}},
	}
	flash := &scanFlash{}
	sc := newTestScanner(t, cfg, venues, flash)

	sc.Scan(context.Background())
	sc.Scan(context.Background())

	sum := sc.Stats().Snapshot()
	assert.Equal(t, 2.0, sum.Scans)
	assert.Equal(t, 1.0, sum.ExecutionsAttempted)
	assert.Equal(t, 1.0, sum.ExecutionsSucceeded)
	assert.Equal(t, 1.0, sum.ExecutionsThrottled)
	assert.Equal(t, 1, flash.execCalls)
}

func TestScanCycleInfeasibleExecutionDoesNotThrottle(t *testing.T) {
	cfg := scannerConfig(t)
	pair := cfg.ResolvePairs()[0]

	venues := []venue.Venue{
		&stubVenue{name: "pancake", rates: map[string]int64{
			pair.String():           1_010_000,
			pair.Reverse().String(): 960_000,
		}},
		&stubVenue{name: "biswap", rates: map[string]int64{
			pair.String():           990_000,
			pair.Reverse().String(): 1_019_802,
		}},
	}
	sc := newTestScanner(t, cfg, venues, nil)

	sc.Scan(context.Background())
	sc.Scan(context.Background())

	// Without a strategy nothing ever ran, so the second cycle fails the
	// same way instead of hitting the cooldown.
	sum := sc.Stats().Snapshot()
	assert.Equal(t, 2.0, sum.ExecutionsAttempted)
	assert.Equal(t, 2.0, sum.Failures[string(types.ErrorNoStrategy)])
	assert.Zero(t, sum.ExecutionsThrottled)
}

func TestScanCycleSkipsPairWithoutTwoPrices(t *testing.T) {
	cfg := scannerConfig(t)
	pair := cfg.ResolvePairs()[0]

	venues := []venue.Venue{
		&stubVenue{name: "pancake", rates: map[string]int64{pair.String(): 1_010_000}},
		&stubVenue{name: "biswap"}, // always unavailable
	}
	sc := newTestScanner(t, cfg, venues, nil)

	sc.Scan(context.Background())

	sum := sc.Stats().Snapshot()
	assert.Equal(t, 1.0, sum.Scans)
	assert.Equal(t, 1.0, sum.Pairs)
	assert.Empty(t, sum.Opportunities)
	assert.Zero(t, sum.ExecutionsAttempted)
}

func TestScanCycleIgnoresSubThresholdSpread(t *testing.T) {
	cfg := scannerConfig(t)
	pair := cfg.ResolvePairs()[0]

	// Round trip nets less than the queued threshold after fees.
	venues := []venue.Venue{
		&stubVenue{name: "pancake", rates: map[string]int64{
			pair.String():           1_001_000,
			pair.Reverse().String(): 999_000,
		}},
		&stubVenue{name: "biswap", rates: map[string]int64{
			pair.String():           1_000_000,
			pair.Reverse().String(): 1_001_000,
		}},
	}
	sc := newTestScanner(t, cfg, venues, nil)

	sc.Scan(context.Background())

	sum := sc.Stats().Snapshot()
	assert.Equal(t, 1.0, sum.Scans)
	assert.Empty(t, sum.Opportunities)
	assert.Zero(t, sum.ExecutionsAttempted)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := scannerConfig(t)
	cfg.ScanInterval = 10 * time.Millisecond
	pair := cfg.ResolvePairs()[0]

	venues := []venue.Venue{
		&stubVenue{name: "pancake", rates: map[string]int64{pair.String(): 1_000_000}},
		&stubVenue{name: "biswap", rates: map[string]int64{pair.String(): 1_000_000}},
	}
	sc := newTestScanner(t, cfg, venues, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, sc.Stats().Snapshot().Scans, 1.0)
}

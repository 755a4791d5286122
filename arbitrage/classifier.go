package arbitrage

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// QuoteFunc re-quotes a named venue for the chained second leg of a round
// trip. The aggregator's QuoteFrom satisfies it.
type QuoteFunc func(ctx context.Context, venueName string, pair types.Pair, amountIn *big.Int) (*types.Quote, error)

// Observer receives every classification outcome by tier, sub-threshold
// discards included (reported as TierNone). The scanner's stats satisfy it.
type Observer interface {
	OpportunityFound(tier types.Tier)
}

// Classifier scans all venue combinations for a pair, retains the single best
// round trip and assigns it an execution tier with a trade size. Candidates
// below the lowest threshold are discarded, never returned.
type Classifier struct {
	calc       *Calculator
	thresholds *config.Thresholds
	observer   Observer
	logger     *zap.Logger
}

// NewClassifier creates a classifier over the given calculator and tier
// thresholds. observer may be nil.
func NewClassifier(calc *Calculator, thresholds *config.Thresholds, observer Observer, logger *zap.Logger) *Classifier {
	return &Classifier{
		calc:       calc,
		thresholds: thresholds,
		observer:   observer,
		logger:     logger,
	}
}

func (cl *Classifier) observe(tier types.Tier) {
	if cl.observer != nil {
		cl.observer.OpportunityFound(tier)
	}
}

// Classify evaluates every ordered venue combination (both directions of each
// unordered pair) and returns the best opportunity, or nil when fewer than
// two usable quotes exist or nothing clears the lowest threshold. The sell
// leg is re-quoted against the buy leg's realized output before evaluation.
func (cl *Classifier) Classify(ctx context.Context, pair types.Pair, quotes []*types.Quote, requote QuoteFunc) *types.Opportunity {
	if len(quotes) < 2 {
		return nil
	}

	var best *types.Opportunity
	reverse := pair.Reverse()

	for i, buy := range quotes {
		for j, sellVenueQuote := range quotes {
			if i == j || buy.Venue == sellVenueQuote.Venue {
				continue
			}

			sell, err := requote(ctx, sellVenueQuote.Venue, reverse, buy.AmountOut)
			if err != nil {
				continue
			}

			eval, err := cl.calc.Evaluate(buy, sell)
			if err != nil {
				cl.logger.Debug("round trip rejected",
					zap.String("pair", pair.String()),
					zap.String("buy_venue", buy.Venue),
					zap.String("sell_venue", sell.Venue),
					zap.Error(err))
				continue
			}
			if eval.NetProfit.Sign() <= 0 {
				continue
			}

			if best == nil || eval.NetProfitBps > best.NetProfitBps {
				best = &types.Opportunity{
					Pair:         pair,
					Buy:          *buy,
					Sell:         *sell,
					AmountIn:     new(big.Int).Set(buy.AmountIn),
					GrossProfit:  eval.GrossProfit,
					NetProfit:    eval.NetProfit,
					NetProfitBps: eval.NetProfitBps,
				}
			}
		}
	}

	if best == nil {
		return nil
	}

	tier, size := cl.thresholds.Classify(best.NetProfitBps)
	if tier == types.TierNone {
		cl.observe(types.TierNone)
		cl.logger.Debug("opportunity below minimum threshold",
			zap.String("pair", pair.String()),
			zap.Int64("net_profit_bps", best.NetProfitBps))
		return nil
	}
	best.Tier = tier
	best.TradeAmount = size
	cl.observe(tier)

	cl.logger.Info("opportunity found",
		zap.String("pair", pair.String()),
		zap.String("buy_venue", best.Buy.Venue),
		zap.String("sell_venue", best.Sell.Venue),
		zap.Int64("net_profit_bps", best.NetProfitBps),
		zap.String("tier", tier.String()))

	return best
}

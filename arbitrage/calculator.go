package arbitrage

import (
	"errors"
	"math/big"

	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// bpsDenominator is the basis-point scale used for all fee rates.
const bpsDenominator = 10_000

var (
	// ErrSameVenue rejects a round trip that buys and sells on one venue.
	ErrSameVenue = errors.New("buy and sell venue are identical")

	// ErrUnchainedQuote rejects a sell leg that was not quoted against the
	// buy leg's realized output. Comparing two independent top-level quotes
	// overstates profit.
	ErrUnchainedQuote = errors.New("sell leg not quoted against buy leg output")

	// ErrPairMismatch rejects legs that do not form a round trip back into
	// the original asset.
	ErrPairMismatch = errors.New("legs do not form a round trip")
)

// Evaluation is the fee-adjusted result of one round trip.
type Evaluation struct {
	GrossProfit  *big.Int
	TotalFees    *big.Int
	NetProfit    *big.Int
	NetProfitBps int64
}

// Calculator computes round-trip profit in fixed-point integer arithmetic on
// the smallest asset unit.
type Calculator struct {
	fees *config.FeeModel
}

// NewCalculator creates a calculator over the configured fee model.
func NewCalculator(fees *config.FeeModel) *Calculator {
	return &Calculator{fees: fees}
}

// Evaluate computes the net profit of buying on one venue and selling back on
// another. The sell quote's input amount must equal the buy quote's output
// amount exactly; anything else is rejected.
func (c *Calculator) Evaluate(buy, sell *types.Quote) (*Evaluation, error) {
	if buy.Venue == sell.Venue {
		return nil, ErrSameVenue
	}
	if sell.Pair.Base.Symbol != buy.Pair.Quote.Symbol || sell.Pair.Quote.Symbol != buy.Pair.Base.Symbol {
		return nil, ErrPairMismatch
	}
	if buy.AmountOut == nil || sell.AmountIn == nil || sell.AmountIn.Cmp(buy.AmountOut) != 0 {
		return nil, ErrUnchainedQuote
	}

	amountIn := buy.AmountIn
	finalAmount := sell.AmountOut

	gross := new(big.Int).Sub(finalAmount, amountIn)
	fees := c.TotalFees(amountIn)

	// netProfit = finalAmount - (amountIn + totalFees)
	net := new(big.Int).Sub(finalAmount, new(big.Int).Add(amountIn, fees))

	var netBps int64
	if net.Sign() > 0 && amountIn.Sign() > 0 {
		bps := new(big.Int).Mul(net, big.NewInt(bpsDenominator))
		netBps = bps.Div(bps, amountIn).Int64()
	}

	return &Evaluation{
		GrossProfit:  gross,
		TotalFees:    fees,
		NetProfit:    net,
		NetProfitBps: netBps,
	}, nil
}

// TotalFees returns the full fee load for a round trip of amountIn: flash
// loan fee, one swap fee per leg, the slippage buffer and the flat gas cost
// estimate. The result is never negative.
func (c *Calculator) TotalFees(amountIn *big.Int) *big.Int {
	rateBps := c.fees.FlashLoanFeeBps + 2*c.fees.SwapFeeBps + c.fees.SlippageBufferBps

	fees := new(big.Int).Mul(amountIn, big.NewInt(rateBps))
	fees.Div(fees, big.NewInt(bpsDenominator))
	fees.Add(fees, c.fees.GasCost())
	if fees.Sign() < 0 {
		return new(big.Int)
	}
	return fees
}

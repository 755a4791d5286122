package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceScale is the fixed-point scale used for prices (amountOut per amountIn).
var PriceScale = big.NewInt(1e8)

// VenueKind distinguishes on-chain router contracts from exchange REST APIs.
type VenueKind int

const (
	VenueRouter VenueKind = iota
	VenueExchange
)

func (k VenueKind) String() string {
	switch k {
	case VenueRouter:
		return "router"
	case VenueExchange:
		return "exchange"
	default:
		return "unknown"
	}
}

// Asset identifies a tradable token on both venue classes.
type Asset struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
}

// Pair is a directed trading pair: spend Base, receive Quote.
type Pair struct {
	Base  Asset `json:"base"`
	Quote Asset `json:"quote"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Base.Symbol, p.Quote.Symbol)
}

// Reverse returns the pair for the opposite direction.
func (p Pair) Reverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// Quote is a single venue's price for swapping Pair.Base into Pair.Quote
// at a given input amount. Amounts are in the asset's smallest unit.
type Quote struct {
	Venue     string
	Kind      VenueKind
	Pair      Pair
	AmountIn  *big.Int
	AmountOut *big.Int
	Bid       *big.Int // scaled by PriceScale, zero for router venues
	Ask       *big.Int // scaled by PriceScale, zero for router venues
	Timestamp time.Time
}

// Price returns amountOut/amountIn scaled by PriceScale.
func (q *Quote) Price() *big.Int {
	if q.AmountIn == nil || q.AmountIn.Sign() <= 0 || q.AmountOut == nil {
		return new(big.Int)
	}
	p := new(big.Int).Mul(q.AmountOut, PriceScale)
	return p.Div(p, q.AmountIn)
}

// Tier is the execution bracket assigned to an opportunity.
type Tier int

const (
	TierNone Tier = iota
	TierQueued
	TierImmediate
	TierAggressive
)

func (t Tier) String() string {
	switch t {
	case TierQueued:
		return "queued"
	case TierImmediate:
		return "immediate"
	case TierAggressive:
		return "aggressive"
	default:
		return "none"
	}
}

// Executable reports whether the tier qualifies for live execution.
func (t Tier) Executable() bool {
	return t >= TierImmediate
}

// Opportunity is a candidate round trip between two quotes for the same pair.
// The sell quote is always obtained against the buy leg's realized output.
type Opportunity struct {
	Pair         Pair
	Buy          Quote
	Sell         Quote
	AmountIn     *big.Int
	GrossProfit  *big.Int
	NetProfit    *big.Int
	NetProfitBps int64
	Tier         Tier
	TradeAmount  *big.Int
}

// BuyPrice returns the scaled price of the buy leg.
func (o *Opportunity) BuyPrice() *big.Int { return o.Buy.Price() }

// SellPrice returns the scaled price of the sell leg.
func (o *Opportunity) SellPrice() *big.Int { return o.Sell.Price() }

// ErrorKind classifies execution failures.
type ErrorKind string

const (
	ErrorNone                ErrorKind = ""
	ErrorVenueUnavailable    ErrorKind = "venue_unavailable"
	ErrorImplausiblePrice    ErrorKind = "implausible_price"
	ErrorInsufficientBalance ErrorKind = "insufficient_balance"
	ErrorExecutionReverted   ErrorKind = "execution_reverted"
	ErrorConfirmationTimeout ErrorKind = "confirmation_timeout"
	ErrorPartialFill         ErrorKind = "partial_fill"
	ErrorNoStrategy          ErrorKind = "no_strategy"
)

// ExecutionResult is the terminal outcome of attempting to realize an
// opportunity. A fresh scan produces a new Opportunity if the condition
// persists; results are never retried.
type ExecutionResult struct {
	Opportunity    *Opportunity
	Success        bool
	RealizedProfit *big.Int // nil until confirmed on-chain or filled
	TxHash         string
	OrderIDs       []string
	GasUsed        uint64
	Error          ErrorKind
}

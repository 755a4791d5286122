package executor

import "github.com/FabianBoni/Flashloab-arbitrage/types"

// Pairing is the closed set of buy/sell venue-type combinations, each with
// its own execution strategy.
type Pairing int

const (
	OnChainOnChain Pairing = iota
	OnChainExchange
	ExchangeOnChain
	ExchangeExchange
)

func (p Pairing) String() string {
	switch p {
	case OnChainOnChain:
		return "onchain-onchain"
	case OnChainExchange:
		return "onchain-exchange"
	case ExchangeOnChain:
		return "exchange-onchain"
	case ExchangeExchange:
		return "exchange-exchange"
	default:
		return "unknown"
	}
}

// PairingOf derives the pairing from the buy and sell venue kinds.
func PairingOf(buy, sell types.VenueKind) Pairing {
	switch {
	case buy == types.VenueRouter && sell == types.VenueRouter:
		return OnChainOnChain
	case buy == types.VenueRouter && sell == types.VenueExchange:
		return OnChainExchange
	case buy == types.VenueExchange && sell == types.VenueRouter:
		return ExchangeOnChain
	default:
		return ExchangeExchange
	}
}

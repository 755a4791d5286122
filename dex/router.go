package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
	"github.com/FabianBoni/Flashloab-arbitrage/venue"
)

// Router contract ABI (UniswapV2-compatible)
const routerABIJson = `[{
	"constant": true,
	"inputs": [
		{"name": "amountIn", "type": "uint256"},
		{"name": "path", "type": "address[]"}
	],
	"name": "getAmountsOut",
	"outputs": [{"name": "amounts", "type": "uint256[]"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// Router is a venue backed by a UniswapV2-style router contract. Quotes are
// read via getAmountsOut; reads are paced by a per-venue minimum interval.
type Router struct {
	name      string
	address   common.Address
	contract  *bind.BoundContract
	client    *ethclient.Client
	pacer     *venue.Pacer
	maxRatio  int64
	timeout   time.Duration
	routerABI abi.ABI
	logger    *zap.Logger
}

// NewRouter creates a router venue for the given contract address.
func NewRouter(name string, address common.Address, client *ethclient.Client, readInterval, timeout time.Duration, maxRatio int64, logger *zap.Logger) (*Router, error) {
	parsedABI, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	contract := bind.NewBoundContract(address, parsedABI, client, client, client)

	return &Router{
		name:      name,
		address:   address,
		contract:  contract,
		client:    client,
		pacer:     venue.NewPacer(readInterval),
		maxRatio:  maxRatio,
		timeout:   timeout,
		routerABI: parsedABI,
		logger:    logger.With(zap.String("venue", name)),
	}, nil
}

// Name returns the venue identifier.
func (r *Router) Name() string { return r.name }

// Kind reports the venue class.
func (r *Router) Kind() types.VenueKind { return types.VenueRouter }

// Address returns the router contract address used for execution.
func (r *Router) Address() common.Address { return r.address }

// ReadInterval returns the pacing applied to this router's chain reads.
func (r *Router) ReadInterval() time.Duration { return r.pacer.Interval() }

// Quote reads getAmountsOut for the direct path base -> quote. Any transport
// error, malformed response or implausible price yields venue.ErrUnavailable.
func (r *Router) Quote(ctx context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, venue.ErrUnavailable
	}
	if err := r.pacer.Wait(ctx); err != nil {
		return nil, venue.ErrUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	path := []common.Address{pair.Base.Address, pair.Quote.Address}
	var out []interface{}
	err := r.contract.Call(&bind.CallOpts{Context: callCtx}, &out, "getAmountsOut", amountIn, path)
	if err != nil {
		r.logger.Debug("getAmountsOut failed",
			zap.String("pair", pair.String()),
			zap.Error(err))
		return nil, venue.ErrUnavailable
	}

	if len(out) == 0 {
		return nil, venue.ErrUnavailable
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		r.logger.Debug("malformed getAmountsOut response", zap.String("pair", pair.String()))
		return nil, venue.ErrUnavailable
	}

	q := &types.Quote{
		Venue:     r.name,
		Kind:      types.VenueRouter,
		Pair:      pair,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amounts[len(amounts)-1],
		Bid:       new(big.Int),
		Ask:       new(big.Int),
		Timestamp: time.Now(),
	}
	if !venue.Plausible(q, r.maxRatio) {
		r.logger.Debug("implausible router price",
			zap.String("pair", pair.String()),
			zap.String("amount_out", q.AmountOut.String()))
		return nil, venue.ErrUnavailable
	}
	return q, nil
}

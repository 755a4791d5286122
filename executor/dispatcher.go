package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/cex"
	"github.com/FabianBoni/Flashloab-arbitrage/flashloan"
	"github.com/FabianBoni/Flashloab-arbitrage/notify"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// State is the dispatcher's position in its execution cycle.
type State int

const (
	Idle State = iota
	Evaluating
	Executing
	Cooling
)

func (s State) String() string {
	switch s {
	case Evaluating:
		return "evaluating"
	case Executing:
		return "executing"
	case Cooling:
		return "cooling"
	default:
		return "idle"
	}
}

// DispatchStatus reports what the dispatcher did with an opportunity.
type DispatchStatus int

const (
	StatusSkipped   DispatchStatus = iota // tier below immediate, log/notify only
	StatusThrottled                       // cooldown not elapsed, dropped
	StatusExecuted                        // strategy invoked, see ExecutionResult
)

// FlashExecutor is the chain-write capability.
type FlashExecutor interface {
	Execute(ctx context.Context, p flashloan.Params) (*flashloan.Receipt, error)
	Swap(ctx context.Context, asset common.Address, amount *big.Int, router common.Address, path []common.Address, gasLimit uint64) (*flashloan.Receipt, error)
}

// ExchangeTrader is the exchange-write capability.
type ExchangeTrader interface {
	MarketSwap(ctx context.Context, venueName string, pair types.Pair, amountIn *big.Int) (*cex.OrderResult, error)
	Balance(ctx context.Context, venueName string, asset types.Asset) (*big.Int, error)
}

// GasOracle prices a transaction at the current network gas price.
type GasOracle interface {
	EstimateCost(gasLimit uint64) *big.Int
}

// Dispatcher enforces the execution cooldown, selects a strategy by venue
// pairing and invokes the matching external capability. All mutable state is
// held on the instance so tests can run independent dispatchers.
type Dispatcher struct {
	flash     FlashExecutor
	trader    ExchangeTrader
	notifier  notify.Notifier
	gasOracle GasOracle
	routers   map[string]common.Address
	gasLimit  uint64
	cooldown  time.Duration

	mu            sync.Mutex
	state         State
	lastExecution time.Time

	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. flash may be nil when no router venues
// are configured, trader may be nil when no exchanges are, gasOracle may be
// nil when no chain connection exists.
func NewDispatcher(flash FlashExecutor, trader ExchangeTrader, gasOracle GasOracle, notifier notify.Notifier, routers map[string]common.Address, gasLimit uint64, cooldown time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		flash:     flash,
		trader:    trader,
		notifier:  notifier,
		gasOracle: gasOracle,
		routers:   routers,
		gasLimit:  gasLimit,
		cooldown:  cooldown,
		state:     Idle,
		logger:    logger,
	}
}

// State returns the dispatcher's current state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dispatch runs the state machine for one opportunity. Throttled and
// sub-immediate opportunities are dropped, not queued; the next scan cycle
// re-evaluates fresh prices. The last-execution timestamp advances on every
// strategy invocation regardless of outcome, but an infeasible dispatch
// (no strategy for the pairing, failed balance preflight) never armed a
// strategy and leaves the cooldown untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, DispatchStatus) {
	d.mu.Lock()
	d.state = Evaluating

	if !opp.Tier.Executable() {
		d.state = Idle
		d.mu.Unlock()
		d.logger.Info("opportunity queued for monitoring only",
			zap.String("pair", opp.Pair.String()),
			zap.String("tier", opp.Tier.String()),
			zap.Int64("net_profit_bps", opp.NetProfitBps))
		d.notifier.Notify(ctx, notify.EventOpportunity,
			fmt.Sprintf("Monitoring %s: %s -> %s, %d bps (below execution tier)",
				opp.Pair, opp.Buy.Venue, opp.Sell.Venue, opp.NetProfitBps))
		return nil, StatusSkipped
	}

	if elapsed := time.Since(d.lastExecution); elapsed < d.cooldown {
		d.state = Idle
		d.mu.Unlock()
		d.logger.Info("execution throttled",
			zap.String("pair", opp.Pair.String()),
			zap.Duration("remaining", d.cooldown-elapsed))
		d.notifier.Notify(ctx, notify.EventThrottled,
			fmt.Sprintf("Throttled %s: cooldown active, opportunity dropped", opp.Pair))
		return nil, StatusThrottled
	}

	d.state = Executing
	d.mu.Unlock()

	result, invoked := d.execute(ctx, opp)

	d.mu.Lock()
	if invoked {
		d.lastExecution = time.Now()
		d.state = Cooling
	} else {
		d.state = Idle
	}
	d.mu.Unlock()

	d.report(ctx, result)

	if invoked {
		d.mu.Lock()
		d.state = Idle
		d.mu.Unlock()
	}

	return result, StatusExecuted
}

// execute selects and runs the strategy for the opportunity's venue pairing.
// The boolean reports whether a strategy actually moved (or attempted to
// move) funds; preflight rejections return false.
func (d *Dispatcher) execute(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, bool) {
	pairing := PairingOf(opp.Buy.Kind, opp.Sell.Kind)

	fields := []zap.Field{
		zap.String("pair", opp.Pair.String()),
		zap.String("pairing", pairing.String()),
		zap.String("tier", opp.Tier.String()),
		zap.String("trade_amount", opp.TradeAmount.String()),
	}
	if d.gasOracle != nil && pairing != ExchangeExchange {
		fields = append(fields, zap.String("estimated_gas_cost", d.gasOracle.EstimateCost(d.gasLimit).String()))
	}
	d.logger.Info("executing opportunity", fields...)

	switch pairing {
	case OnChainOnChain:
		return d.executeFlashLoan(ctx, opp)
	case OnChainExchange:
		return d.executeChainThenExchange(ctx, opp)
	case ExchangeOnChain:
		return d.executeExchangeThenChain(ctx, opp)
	case ExchangeExchange:
		return d.executeExchangePair(ctx, opp)
	default:
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}
}

// chainFailureKind classifies a chain-write error: a mined revert, an
// unconfirmed submission whose outcome is unknown, or a transport failure
// before submission.
func chainFailureKind(err error) types.ErrorKind {
	switch {
	case errors.Is(err, flashloan.ErrReverted):
		return types.ErrorExecutionReverted
	case errors.Is(err, flashloan.ErrConfirmation):
		return types.ErrorConfirmationTimeout
	default:
		return types.ErrorVenueUnavailable
	}
}

// executeFlashLoan realizes an on-chain/on-chain round trip in one atomic
// flash-loan-backed transaction. If it reverts, no funds move.
func (d *Dispatcher) executeFlashLoan(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, bool) {
	if d.flash == nil {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}

	buyRouter, ok := d.routers[opp.Buy.Venue]
	if !ok {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}
	sellRouter, ok := d.routers[opp.Sell.Venue]
	if !ok {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}

	receipt, err := d.flash.Execute(ctx, flashloan.Params{
		Asset:      opp.Pair.Base.Address,
		Amount:     opp.TradeAmount,
		BuyRouter:  buyRouter,
		SellRouter: sellRouter,
		Path:       []common.Address{opp.Pair.Base.Address, opp.Pair.Quote.Address},
		GasLimit:   d.gasLimit,
	})
	if err != nil {
		result := &types.ExecutionResult{Opportunity: opp, Error: chainFailureKind(err)}
		if receipt != nil {
			result.TxHash = receipt.TxHash.Hex()
			result.GasUsed = receipt.GasUsed
		}
		if !errors.Is(err, flashloan.ErrReverted) {
			d.logger.Error("flash loan execution failed", zap.Error(err))
		}
		return result, true
	}

	return &types.ExecutionResult{
		Opportunity: opp,
		Success:     true,
		TxHash:      receipt.TxHash.Hex(),
		GasUsed:     receipt.GasUsed,
	}, true
}

// executeChainThenExchange buys on a router and sells the realized output on
// an exchange. The exchange leg needs a pre-funded balance; funds are never
// moved between venues automatically.
func (d *Dispatcher) executeChainThenExchange(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, bool) {
	if d.flash == nil || d.trader == nil {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}
	buyRouter, ok := d.routers[opp.Buy.Venue]
	if !ok {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}

	expectedOut := scaleOutput(opp, opp.TradeAmount)
	if res := d.requireBalance(ctx, opp, opp.Sell.Venue, opp.Pair.Quote, expectedOut); res != nil {
		return res, false
	}

	receipt, err := d.flash.Swap(ctx, opp.Pair.Base.Address, opp.TradeAmount, buyRouter,
		[]common.Address{opp.Pair.Base.Address, opp.Pair.Quote.Address}, d.gasLimit)
	if err != nil {
		result := &types.ExecutionResult{Opportunity: opp, Error: chainFailureKind(err)}
		if receipt != nil {
			result.TxHash = receipt.TxHash.Hex()
			result.GasUsed = receipt.GasUsed
		}
		return result, true
	}

	// The realized router output is not observable from the receipt alone;
	// the quoted rate is the best available estimate for the second leg.
	order, err := d.trader.MarketSwap(ctx, opp.Sell.Venue, opp.Pair.Reverse(), expectedOut)
	if err != nil {
		d.logger.Error("exchange leg failed after confirmed chain leg",
			zap.String("pair", opp.Pair.String()),
			zap.Error(err))
		return &types.ExecutionResult{
			Opportunity: opp,
			TxHash:      receipt.TxHash.Hex(),
			GasUsed:     receipt.GasUsed,
			Error:       types.ErrorPartialFill,
		}, true
	}

	return &types.ExecutionResult{
		Opportunity:    opp,
		Success:        true,
		RealizedProfit: new(big.Int).Sub(order.AmountOut, opp.TradeAmount),
		TxHash:         receipt.TxHash.Hex(),
		GasUsed:        receipt.GasUsed,
		OrderIDs:       []string{order.OrderID},
	}, true
}

// executeExchangeThenChain buys on an exchange and sells the realized fill
// back through a router swap.
func (d *Dispatcher) executeExchangeThenChain(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, bool) {
	if d.flash == nil || d.trader == nil {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}
	sellRouter, ok := d.routers[opp.Sell.Venue]
	if !ok {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}

	if res := d.requireBalance(ctx, opp, opp.Buy.Venue, opp.Pair.Base, opp.TradeAmount); res != nil {
		return res, false
	}

	order, err := d.trader.MarketSwap(ctx, opp.Buy.Venue, opp.Pair, opp.TradeAmount)
	if err != nil {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorVenueUnavailable}, true
	}

	receipt, err := d.flash.Swap(ctx, opp.Pair.Quote.Address, order.AmountOut, sellRouter,
		[]common.Address{opp.Pair.Quote.Address, opp.Pair.Base.Address}, d.gasLimit)
	if err != nil {
		d.logger.Error("chain leg failed after filled exchange leg",
			zap.String("pair", opp.Pair.String()),
			zap.String("order_id", order.OrderID),
			zap.Error(err))
		result := &types.ExecutionResult{
			Opportunity: opp,
			OrderIDs:    []string{order.OrderID},
			Error:       types.ErrorPartialFill,
		}
		if receipt != nil {
			result.TxHash = receipt.TxHash.Hex()
			result.GasUsed = receipt.GasUsed
		}
		return result, true
	}

	return &types.ExecutionResult{
		Opportunity: opp,
		Success:     true,
		TxHash:      receipt.TxHash.Hex(),
		GasUsed:     receipt.GasUsed,
		OrderIDs:    []string{order.OrderID},
	}, true
}

// executeExchangePair places the buy order, then sells the *realized*
// quantity on the second exchange. A sell-leg failure after a filled buy leg
// is a terminal partial fill requiring operator reconciliation; the buy leg
// is never reversed automatically.
func (d *Dispatcher) executeExchangePair(ctx context.Context, opp *types.Opportunity) (*types.ExecutionResult, bool) {
	if d.trader == nil {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorNoStrategy}, false
	}

	if res := d.requireBalance(ctx, opp, opp.Buy.Venue, opp.Pair.Base, opp.TradeAmount); res != nil {
		return res, false
	}

	buyOrder, err := d.trader.MarketSwap(ctx, opp.Buy.Venue, opp.Pair, opp.TradeAmount)
	if err != nil {
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorVenueUnavailable}, true
	}

	sellOrder, err := d.trader.MarketSwap(ctx, opp.Sell.Venue, opp.Pair.Reverse(), buyOrder.AmountOut)
	if err != nil {
		d.logger.Error("sell leg failed after filled buy leg",
			zap.String("pair", opp.Pair.String()),
			zap.String("buy_order_id", buyOrder.OrderID),
			zap.Error(err))
		return &types.ExecutionResult{
			Opportunity: opp,
			OrderIDs:    []string{buyOrder.OrderID},
			Error:       types.ErrorPartialFill,
		}, true
	}

	return &types.ExecutionResult{
		Opportunity:    opp,
		Success:        true,
		RealizedProfit: new(big.Int).Sub(sellOrder.AmountOut, opp.TradeAmount),
		OrderIDs:       []string{buyOrder.OrderID, sellOrder.OrderID},
	}, true
}

// requireBalance verifies the pre-funded balance on an exchange leg. A query
// failure or a short balance yields an infeasibility result instead of a
// partial trade.
func (d *Dispatcher) requireBalance(ctx context.Context, opp *types.Opportunity, venueName string, asset types.Asset, required *big.Int) *types.ExecutionResult {
	balance, err := d.trader.Balance(ctx, venueName, asset)
	if err != nil {
		d.logger.Warn("balance query failed",
			zap.String("venue", venueName),
			zap.String("asset", asset.Symbol),
			zap.Error(err))
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorVenueUnavailable}
	}
	if balance.Cmp(required) < 0 {
		d.logger.Warn("insufficient exchange balance",
			zap.String("venue", venueName),
			zap.String("asset", asset.Symbol),
			zap.String("required", required.String()),
			zap.String("available", balance.String()))
		return &types.ExecutionResult{Opportunity: opp, Error: types.ErrorInsufficientBalance}
	}
	return nil
}

// scaleOutput projects the buy quote's rate onto the tier trade amount.
func scaleOutput(opp *types.Opportunity, amount *big.Int) *big.Int {
	if opp.Buy.AmountIn.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, opp.Buy.AmountOut)
	return out.Div(out, opp.Buy.AmountIn)
}

func (d *Dispatcher) report(ctx context.Context, result *types.ExecutionResult) {
	opp := result.Opportunity
	switch {
	case result.Success:
		d.notifier.Notify(ctx, notify.EventExecution,
			fmt.Sprintf("Executed %s: %s -> %s, tier %s, tx %s orders %v",
				opp.Pair, opp.Buy.Venue, opp.Sell.Venue, opp.Tier, result.TxHash, result.OrderIDs))
	case result.Error == types.ErrorPartialFill:
		d.notifier.Notify(ctx, notify.EventPartialFill,
			fmt.Sprintf("PARTIAL FILL on %s: first leg filled, second leg failed. Manual reconciliation required. tx=%s orders=%v",
				opp.Pair, result.TxHash, result.OrderIDs))
	default:
		d.notifier.Notify(ctx, notify.EventFailure,
			fmt.Sprintf("Execution failed on %s: %s", opp.Pair, result.Error))
	}
}

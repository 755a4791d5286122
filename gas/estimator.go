package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Estimator tracks current gas prices and sizes arbitrage transactions.
type Estimator struct {
	client       *ethclient.Client
	logger       *zap.Logger
	gasPrice     *big.Int
	mu           sync.RWMutex
	updateTicker *time.Ticker
	done         chan struct{}
}

// NewEstimator creates a gas estimator that refreshes once per block-ish
// interval until Stop is called.
func NewEstimator(client *ethclient.Client, logger *zap.Logger) *Estimator {
	e := &Estimator{
		client:       client,
		logger:       logger,
		gasPrice:     big.NewInt(0),
		updateTicker: time.NewTicker(3 * time.Second),
		done:         make(chan struct{}),
	}
	go e.updateLoop()
	return e
}

// Stop halts the refresh loop.
func (e *Estimator) Stop() {
	e.updateTicker.Stop()
	close(e.done)
}

func (e *Estimator) updateLoop() {
	for {
		select {
		case <-e.done:
			return
		case <-e.updateTicker.C:
			if err := e.update(); err != nil {
				e.logger.Debug("failed to update gas price", zap.Error(err))
			}
		}
	}
}

func (e *Estimator) update() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	price, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	e.mu.Lock()
	e.gasPrice = price
	e.mu.Unlock()
	return nil
}

// EstimateCost estimates the native-token cost of a transaction with the
// given gas limit at the current gas price.
func (e *Estimator) EstimateCost(gasLimit uint64) *big.Int {
	e.mu.RLock()
	price := new(big.Int).Set(e.gasPrice)
	e.mu.RUnlock()

	return price.Mul(price, new(big.Int).SetUint64(gasLimit))
}

// ArbitrageGasLimit sizes a flash-loan round trip: base transaction cost
// plus one swap per hop.
func ArbitrageGasLimit(numHops int) uint64 {
	baseCost := uint64(21000)
	// storage reads, token transfers and swap execution per hop
	costPerHop := uint64(152000)
	// flash loan borrow/repay overhead
	loanOverhead := uint64(90000)

	return baseCost + loanOverhead + costPerHop*uint64(numHops)
}

package flashloan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrReverted is returned when the flash-loan transaction was mined but
// reverted. Atomicity means no funds moved.
var ErrReverted = errors.New("flash loan transaction reverted")

// ErrConfirmation is returned when the confirmation wait failed or timed
// out. The transaction was submitted; its outcome is unknown.
var ErrConfirmation = errors.New("transaction confirmation failed")

// Arbitrage executor contract ABI
const executorABIJson = `[{
	"inputs": [
		{"internalType": "address", "name": "asset", "type": "address"},
		{"internalType": "uint256", "name": "amount", "type": "uint256"},
		{"internalType": "address", "name": "buyRouter", "type": "address"},
		{"internalType": "address", "name": "sellRouter", "type": "address"},
		{"internalType": "address[]", "name": "path", "type": "address[]"}
	],
	"name": "executeArbitrage",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}, {
	"inputs": [
		{"internalType": "address", "name": "asset", "type": "address"},
		{"internalType": "uint256", "name": "amount", "type": "uint256"},
		{"internalType": "address", "name": "router", "type": "address"},
		{"internalType": "address[]", "name": "path", "type": "address[]"}
	],
	"name": "executeSwap",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// Params describes one flash-loan-backed round trip: borrow the asset, swap
// on the buy router, swap back on the sell router, repay plus fee, all within
// a single transaction.
type Params struct {
	Asset      common.Address
	Amount     *big.Int
	BuyRouter  common.Address
	SellRouter common.Address
	Path       []common.Address
	GasLimit   uint64
}

// Receipt summarizes a confirmed execution.
type Receipt struct {
	TxHash  common.Hash
	Status  uint64
	GasUsed uint64
}

// Executor submits flash-loan arbitrage transactions to the deployed executor
// contract and blocks until confirmation or timeout.
type Executor struct {
	client         *ethclient.Client
	contract       *bind.BoundContract
	address        common.Address
	auth           *bind.TransactOpts
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// NewExecutor creates an executor bound to the deployed arbitrage contract.
func NewExecutor(client *ethclient.Client, contractAddr common.Address, privateKeyHex string, chainID uint64, confirmTimeout time.Duration, logger *zap.Logger) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("ethclient cannot be nil")
	}
	parsedABI, err := abi.JSON(strings.NewReader(executorABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor ABI: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	contract := bind.NewBoundContract(contractAddr, parsedABI, client, client, client)

	return &Executor{
		client:         client,
		contract:       contract,
		address:        contractAddr,
		auth:           auth,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}, nil
}

// Execute submits the arbitrage transaction and waits for it to be mined.
// Execution is fire-and-wait-for-confirmation: a timeout is a failure, never
// a success.
func (e *Executor) Execute(ctx context.Context, p Params) (*Receipt, error) {
	opts := *e.auth
	opts.Context = ctx
	opts.GasLimit = p.GasLimit

	tx, err := e.contract.Transact(&opts, "executeArbitrage", p.Asset, p.Amount, p.BuyRouter, p.SellRouter, p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to submit flash loan transaction: %w", err)
	}

	e.logger.Info("flash loan transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("asset", p.Asset.Hex()),
		zap.String("amount", p.Amount.String()))

	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, e.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfirmation, err)
	}

	r := &Receipt{
		TxHash:  tx.Hash(),
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return r, ErrReverted
	}
	return r, nil
}

// Swap submits a direct router swap through the executor contract, spending
// its pre-funded on-chain inventory. Used for the on-chain leg of mixed
// venue pairings, where no flash loan can cover a one-way trade.
func (e *Executor) Swap(ctx context.Context, asset common.Address, amount *big.Int, router common.Address, path []common.Address, gasLimit uint64) (*Receipt, error) {
	opts := *e.auth
	opts.Context = ctx
	opts.GasLimit = gasLimit

	tx, err := e.contract.Transact(&opts, "executeSwap", asset, amount, router, path)
	if err != nil {
		return nil, fmt.Errorf("failed to submit swap transaction: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, e.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfirmation, err)
	}

	r := &Receipt{
		TxHash:  tx.Hash(),
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return r, ErrReverted
	}
	return r, nil
}

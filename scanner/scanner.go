package scanner

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/arbitrage"
	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/executor"
	"github.com/FabianBoni/Flashloab-arbitrage/notify"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// Scanner drives the scan loop: once per cycle it aggregates quotes for every
// configured pair, classifies the best round trip and hands qualifying
// opportunities to the dispatcher. Pairs are processed sequentially; venue
// fan-out within a pair is concurrent.
type Scanner struct {
	cfg        *config.Config
	agg        *arbitrage.Aggregator
	classifier *arbitrage.Classifier
	dispatcher *executor.Dispatcher
	notifier   notify.Notifier
	stats      *Stats
	pairs      []types.Pair
	probe      *big.Int
	logger     *zap.Logger
}

// New creates a scanner over the given pipeline components.
func New(cfg *config.Config, agg *arbitrage.Aggregator, classifier *arbitrage.Classifier, dispatcher *executor.Dispatcher, notifier notify.Notifier, stats *Stats, logger *zap.Logger) *Scanner {
	return &Scanner{
		cfg:        cfg,
		agg:        agg,
		classifier: classifier,
		dispatcher: dispatcher,
		notifier:   notifier,
		stats:      stats,
		pairs:      cfg.ResolvePairs(),
		probe:      cfg.Thresholds.BaseAmount(),
		logger:     logger,
	}
}

// Stats returns the scanner's counters.
func (s *Scanner) Stats() *Stats { return s.stats }

// Run executes scan cycles until the context is cancelled. Unexpected loop
// failures restart the loop with backoff up to the configured bound;
// successfully initialized connections stay intact across restarts.
func (s *Scanner) Run(ctx context.Context) error {
	restarts := 0
	for {
		err := s.loop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		restarts++
		if restarts > s.cfg.MaxRestarts {
			return fmt.Errorf("scan loop failed after %d restarts: %w", restarts-1, err)
		}
		s.logger.Error("scan loop failed, restarting",
			zap.Int("restart", restarts),
			zap.Int("max_restarts", s.cfg.MaxRestarts),
			zap.Error(err))
		s.notifier.Notify(ctx, notify.EventFailure,
			fmt.Sprintf("Scan loop restarting (%d/%d): %v", restarts, s.cfg.MaxRestarts, err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RestartBackoff):
		}
	}
}

func (s *Scanner) loop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan loop panic: %v", r)
		}
	}()

	scanTicker := time.NewTicker(s.cfg.ScanInterval)
	defer scanTicker.Stop()
	reportTicker := time.NewTicker(s.cfg.StatsReportInterval)
	defer reportTicker.Stop()

	s.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-scanTicker.C:
			s.Scan(ctx)
		case <-reportTicker.C:
			s.ReportStats(ctx)
		}
	}
}

// Scan runs one full cycle over all configured pairs. A slow or unavailable
// pair delays the remaining ones but never aborts the cycle.
func (s *Scanner) Scan(ctx context.Context) {
	start := time.Now()

	for _, pair := range s.pairs {
		if ctx.Err() != nil {
			return
		}
		s.scanPair(ctx, pair)
	}

	s.stats.ScanCompleted()
	s.logger.Debug("scan cycle completed",
		zap.Int("pairs", len(s.pairs)),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Scanner) scanPair(ctx context.Context, pair types.Pair) {
	s.stats.PairScanned()

	quotes := s.agg.Aggregate(ctx, pair, s.probe)
	if len(quotes) < 2 {
		s.logger.Debug("not enough venue prices",
			zap.String("pair", pair.String()),
			zap.Int("quotes", len(quotes)))
		return
	}

	// Tier counting happens inside the classifier, which also sees the
	// sub-threshold discards this call never returns.
	opp := s.classifier.Classify(ctx, pair, quotes, s.agg.QuoteFrom)
	if opp == nil {
		return
	}

	result, status := s.dispatcher.Dispatch(ctx, opp)
	switch status {
	case executor.StatusThrottled:
		s.stats.ExecutionThrottled()
	case executor.StatusExecuted:
		s.stats.ExecutionAttempted()
		if result.GasUsed > 0 {
			s.stats.GasUsed(result.GasUsed)
		}
		if result.Success {
			profit := 0.0
			if result.RealizedProfit != nil {
				profit, _ = new(big.Float).SetInt(result.RealizedProfit).Float64()
			}
			s.stats.ExecutionSucceeded(profit)
		} else {
			s.stats.ExecutionFailed(result.Error)
		}
	}
}

// ReportStats pushes a counter summary through the notification channel.
func (s *Scanner) ReportStats(ctx context.Context) {
	sum := s.stats.Snapshot()
	s.logger.Info("scan statistics", zap.String("summary", sum.String()))
	s.notifier.Notify(ctx, notify.EventStats, sum.String())
}

// ResetStats zeroes the counters on operator command.
func (s *Scanner) ResetStats() {
	s.stats.Reset()
	s.logger.Info("statistics reset")
}

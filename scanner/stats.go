package scanner

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// Stats holds the process-wide scan counters. Best-effort observability, not
// a ledger: counters advance additively each cycle and reset only on explicit
// operator command.
type Stats struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	scansCompleted      prometheus.Counter
	pairsScanned        prometheus.Counter
	opportunities       *prometheus.CounterVec
	executionsAttempted prometheus.Counter
	executionsSucceeded prometheus.Counter
	executionsThrottled prometheus.Counter
	failures            *prometheus.CounterVec
	realizedProfit      prometheus.Counter
	gasSpent            prometheus.Counter
}

// NewStats creates a stats set on its own registry so independent scanner
// instances never collide.
func NewStats() *Stats {
	s := &Stats{}
	s.init()
	return s
}

func (s *Stats) init() {
	s.registry = prometheus.NewRegistry()

	s.scansCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "scans_completed_total",
		Help:      "Number of completed scan cycles",
	})
	s.pairsScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "pairs_scanned_total",
		Help:      "Number of pair scans performed",
	})
	s.opportunities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "opportunities_found_total",
		Help:      "Opportunities found by execution tier",
	}, []string{"tier"})
	s.executionsAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "executions_attempted_total",
		Help:      "Execution strategy invocations",
	})
	s.executionsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "executions_succeeded_total",
		Help:      "Successful executions",
	})
	s.executionsThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "executions_throttled_total",
		Help:      "Qualifying opportunities dropped by the cooldown",
	})
	s.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "execution_failures_total",
		Help:      "Failed executions by error kind",
	}, []string{"kind"})
	s.realizedProfit = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "realized_profit_units_total",
		Help:      "Cumulative confirmed profit in smallest asset units",
	})
	s.gasSpent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbitrage",
		Name:      "gas_spent_total",
		Help:      "Cumulative gas used by submitted transactions",
	})

	s.registry.MustRegister(
		s.scansCompleted, s.pairsScanned, s.opportunities,
		s.executionsAttempted, s.executionsSucceeded, s.executionsThrottled,
		s.failures, s.realizedProfit, s.gasSpent,
	)
}

// Gather implements prometheus.Gatherer against the current registry, so a
// served /metrics endpoint keeps reporting live counters across Reset.
func (s *Stats) Gather() ([]*dto.MetricFamily, error) {
	s.mu.Lock()
	r := s.registry
	s.mu.Unlock()
	return r.Gather()
}

// ScanCompleted records a finished scan cycle.
func (s *Stats) ScanCompleted() { s.scansCompleted.Inc() }

// PairScanned records one pair scan.
func (s *Stats) PairScanned() { s.pairsScanned.Inc() }

// OpportunityFound records an opportunity by tier.
func (s *Stats) OpportunityFound(tier types.Tier) {
	s.opportunities.WithLabelValues(tier.String()).Inc()
}

// ExecutionAttempted records one strategy invocation.
func (s *Stats) ExecutionAttempted() { s.executionsAttempted.Inc() }

// ExecutionSucceeded records a successful execution and its realized profit
// when known.
func (s *Stats) ExecutionSucceeded(realizedProfit float64) {
	s.executionsSucceeded.Inc()
	if realizedProfit > 0 {
		s.realizedProfit.Add(realizedProfit)
	}
}

// ExecutionThrottled records a cooldown drop.
func (s *Stats) ExecutionThrottled() { s.executionsThrottled.Inc() }

// ExecutionFailed records a failed execution by error kind.
func (s *Stats) ExecutionFailed(kind types.ErrorKind) {
	s.failures.WithLabelValues(string(kind)).Inc()
}

// GasUsed records gas consumed by a submitted transaction.
func (s *Stats) GasUsed(gas uint64) { s.gasSpent.Add(float64(gas)) }

// Summary is a point-in-time snapshot of the counters.
type Summary struct {
	Scans               float64
	Pairs               float64
	Opportunities       map[string]float64
	ExecutionsAttempted float64
	ExecutionsSucceeded float64
	ExecutionsThrottled float64
	Failures            map[string]float64
	RealizedProfit      float64
	GasSpent            float64
}

func (sum Summary) String() string {
	return fmt.Sprintf(
		"scans=%.0f pairs=%.0f opportunities=%v attempted=%.0f succeeded=%.0f throttled=%.0f failures=%v realized_profit=%.0f gas=%.0f",
		sum.Scans, sum.Pairs, sum.Opportunities,
		sum.ExecutionsAttempted, sum.ExecutionsSucceeded, sum.ExecutionsThrottled,
		sum.Failures, sum.RealizedProfit, sum.GasSpent,
	)
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Snapshot reads the current counter values.
func (s *Stats) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Scans:               counterValue(s.scansCompleted),
		Pairs:               counterValue(s.pairsScanned),
		Opportunities:       map[string]float64{},
		ExecutionsAttempted: counterValue(s.executionsAttempted),
		ExecutionsSucceeded: counterValue(s.executionsSucceeded),
		ExecutionsThrottled: counterValue(s.executionsThrottled),
		Failures:            map[string]float64{},
		RealizedProfit:      counterValue(s.realizedProfit),
		GasSpent:            counterValue(s.gasSpent),
	}

	for _, tier := range []types.Tier{types.TierNone, types.TierQueued, types.TierImmediate, types.TierAggressive} {
		if v := counterValue(s.opportunities.WithLabelValues(tier.String())); v > 0 {
			sum.Opportunities[tier.String()] = v
		}
	}
	for _, kind := range []types.ErrorKind{
		types.ErrorVenueUnavailable, types.ErrorInsufficientBalance,
		types.ErrorExecutionReverted, types.ErrorConfirmationTimeout,
		types.ErrorPartialFill, types.ErrorNoStrategy,
	} {
		if v := counterValue(s.failures.WithLabelValues(string(kind))); v > 0 {
			sum.Failures[string(kind)] = v
		}
	}
	return sum
}

// Reset zeroes every counter. Operator command only.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
}

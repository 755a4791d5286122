package venue

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// ErrUnavailable is returned for any transport error, malformed response or
// implausible price. Callers treat it as "venue has no current price" and
// continue with the remaining venues.
var ErrUnavailable = errors.New("venue unavailable")

// Venue is a single price source: an on-chain router contract or an
// exchange REST API.
type Venue interface {
	// Name returns the venue identifier used in opportunities and results.
	Name() string

	// Kind reports whether this is a router or an exchange venue.
	Kind() types.VenueKind

	// Quote returns the venue's output amount for swapping amountIn of
	// pair.Base into pair.Quote. Returns ErrUnavailable on any failure.
	Quote(ctx context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error)
}

// Pacer enforces a minimum interval between requests to one venue. It is the
// only mutable state a venue client shares across scan cycles.
type Pacer struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

// NewPacer creates a pacer with the given minimum inter-request interval.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Interval returns the minimum inter-request interval.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the minimum interval since the previous request has
// elapsed, then records the new request time. It returns early if the
// context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	wait := p.interval - time.Since(p.last)
	if wait < 0 {
		wait = 0
	}
	p.last = time.Now().Add(wait)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Plausible reports whether a quote's implied price amountOut/amountIn lies
// within [1/maxRatio, maxRatio]. Quotes outside the bound are discarded
// rather than propagated.
func Plausible(q *types.Quote, maxRatio int64) bool {
	if q == nil || q.AmountIn == nil || q.AmountOut == nil {
		return false
	}
	if q.AmountIn.Sign() <= 0 || q.AmountOut.Sign() <= 0 {
		return false
	}
	ratio := big.NewInt(maxRatio)

	// amountOut <= amountIn * maxRatio
	upper := new(big.Int).Mul(q.AmountIn, ratio)
	if q.AmountOut.Cmp(upper) > 0 {
		return false
	}
	// amountOut * maxRatio >= amountIn
	lower := new(big.Int).Mul(q.AmountOut, ratio)
	return lower.Cmp(q.AmountIn) >= 0
}

package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
	"github.com/FabianBoni/Flashloab-arbitrage/venue"
)

// Aggregator fans a quote request out to every configured venue and collects
// the usable responses. Quotes are cached for a short interval so the chained
// second-leg re-quote does not hit the venue twice within one cycle.
type Aggregator struct {
	venues map[string]venue.Venue
	order  []string
	cache  *lru.Cache
	ttl    time.Duration
	logger *zap.Logger
	mu     sync.Mutex
}

type cachedQuote struct {
	quote *types.Quote
	at    time.Time
}

// NewAggregator creates an aggregator over the given venues.
func NewAggregator(venues []venue.Venue, ttl time.Duration, logger *zap.Logger) (*Aggregator, error) {
	cache, err := lru.New(256)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote cache: %w", err)
	}
	byName := make(map[string]venue.Venue, len(venues))
	order := make([]string, 0, len(venues))
	for _, v := range venues {
		byName[v.Name()] = v
		order = append(order, v.Name())
	}
	return &Aggregator{
		venues: byName,
		order:  order,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func cacheKey(venueName string, pair types.Pair, amountIn *big.Int) uint64 {
	return xxhash.Sum64String(venueName + "|" + pair.String() + "|" + amountIn.String())
}

// Aggregate issues one quote per venue for the pair and returns every quote
// that passed the venue's own plausibility checks. Venue failures are
// excluded silently; the caller decides whether enough prices remain.
func (a *Aggregator) Aggregate(ctx context.Context, pair types.Pair, amountIn *big.Int) []*types.Quote {
	var (
		mu     sync.Mutex
		quotes []*types.Quote
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range a.order {
		name := name
		g.Go(func() error {
			q, err := a.QuoteFrom(gctx, name, pair, amountIn)
			if err != nil {
				return nil // unavailable venues are just skipped
			}
			mu.Lock()
			quotes = append(quotes, q)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

// QuoteFrom quotes a single named venue, serving from the short-lived cache
// when a fresh identical quote exists. This is also the re-quote path for the
// chained second leg of a round trip.
func (a *Aggregator) QuoteFrom(ctx context.Context, venueName string, pair types.Pair, amountIn *big.Int) (*types.Quote, error) {
	v, ok := a.venues[venueName]
	if !ok {
		return nil, fmt.Errorf("unknown venue %q", venueName)
	}

	key := cacheKey(venueName, pair, amountIn)
	if entry, ok := a.cache.Get(key); ok {
		cached := entry.(*cachedQuote)
		if time.Since(cached.at) < a.ttl {
			return cached.quote, nil
		}
		a.cache.Remove(key)
	}

	q, err := v.Quote(ctx, pair, amountIn)
	if err != nil {
		a.logger.Debug("venue unavailable",
			zap.String("venue", venueName),
			zap.String("pair", pair.String()),
			zap.Error(err))
		return nil, venue.ErrUnavailable
	}

	a.cache.Add(key, &cachedQuote{quote: q, at: time.Now()})
	return q, nil
}

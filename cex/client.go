package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/types"
	"github.com/FabianBoni/Flashloab-arbitrage/venue"
)

// symbolAliases maps wrapped on-chain tokens to their exchange listings.
var symbolAliases = map[string]string{
	"WBNB": "BNB",
	"BTCB": "BTC",
	"WETH": "ETH",
}

func exchangeSymbol(a types.Asset) string {
	if alias, ok := symbolAliases[a.Symbol]; ok {
		return alias
	}
	return a.Symbol
}

// Client is a venue backed by a Binance-compatible exchange REST API.
// Requests are budgeted with a token-bucket limiter keyed by the configured
// requests-per-second rate.
type Client struct {
	name      string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	maxRatio  int64
	apiKey    string
	apiSecret string
	logger    *zap.Logger
}

// NewClient creates an exchange venue from its configuration. API credentials
// are read from the environment variables named in the config; they are only
// required for trading, not for quotes.
func NewClient(ec config.ExchangeConfig, timeout time.Duration, maxRatio int64, logger *zap.Logger) *Client {
	burst := ec.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		name:      ec.Name,
		baseURL:   ec.BaseURL,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(ec.RequestsPerSecond), burst),
		maxRatio:  maxRatio,
		apiKey:    os.Getenv(ec.APIKeyEnv),
		apiSecret: os.Getenv(ec.APISecretEnv),
		logger:    logger.With(zap.String("venue", ec.Name)),
	}
}

// FromConfig builds one Client per configured exchange entry.
func FromConfig(cfg *config.Config, logger *zap.Logger) []*Client {
	clients := make([]*Client, 0, len(cfg.Exchanges))
	for _, ec := range cfg.Exchanges {
		clients = append(clients, NewClient(ec, cfg.NetworkTimeout, cfg.MaxPriceRatio, logger))
	}
	return clients
}

// Name returns the venue identifier.
func (c *Client) Name() string { return c.name }

// Kind reports the venue class.
func (c *Client) Kind() types.VenueKind { return types.VenueExchange }

type bookTicker struct {
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

func (c *Client) ticker(ctx context.Context, symbol string) (*bookTicker, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker %s: unexpected status %d", symbol, resp.StatusCode)
	}
	var t bookTicker
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	if t.BidPrice == "" || t.AskPrice == "" {
		return nil, fmt.Errorf("ticker %s: empty book", symbol)
	}
	return &t, nil
}

// Quote converts the pair's book ticker into a swap-style quote: selling the
// base asset fills at the bid, buying it (inverted listing) fills at the ask.
// Any failure is reported as venue.ErrUnavailable.
func (c *Client) Quote(ctx context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, venue.ErrUnavailable
	}

	base, quote := exchangeSymbol(pair.Base), exchangeSymbol(pair.Quote)

	var (
		amountOut *big.Int
		bid, ask  *big.Int
	)
	if t, err := c.ticker(ctx, base+quote); err == nil {
		bid, err = ParsePrice(t.BidPrice)
		if err != nil {
			c.logger.Debug("malformed ticker", zap.String("pair", pair.String()), zap.Error(err))
			return nil, venue.ErrUnavailable
		}
		if ask, err = ParsePrice(t.AskPrice); err != nil {
			return nil, venue.ErrUnavailable
		}
		amountOut = convertAtPrice(amountIn, bid, pair.Base.Decimals, pair.Quote.Decimals, false)
	} else if t, err := c.ticker(ctx, quote+base); err == nil {
		// Inverted listing: pair.Quote is the listed base asset, so the
		// swap buys it at the ask.
		if bid, err = ParsePrice(t.BidPrice); err != nil {
			return nil, venue.ErrUnavailable
		}
		if ask, err = ParsePrice(t.AskPrice); err != nil {
			return nil, venue.ErrUnavailable
		}
		if ask.Sign() <= 0 {
			return nil, venue.ErrUnavailable
		}
		amountOut = convertAtPrice(amountIn, ask, pair.Base.Decimals, pair.Quote.Decimals, true)
	} else {
		c.logger.Debug("no ticker for pair", zap.String("pair", pair.String()), zap.Error(err))
		return nil, venue.ErrUnavailable
	}

	q := &types.Quote{
		Venue:     c.name,
		Kind:      types.VenueExchange,
		Pair:      pair,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amountOut,
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now(),
	}
	if !venue.Plausible(q, c.maxRatio) {
		c.logger.Debug("implausible exchange price",
			zap.String("pair", pair.String()),
			zap.String("amount_out", q.AmountOut.String()))
		return nil, venue.ErrUnavailable
	}
	return q, nil
}

// convertAtPrice applies a PriceScale-scaled price to a smallest-unit amount,
// adjusting for the decimal difference between the two assets. When invert is
// set the price is applied as a divisor (buying the listed asset).
func convertAtPrice(amountIn, price *big.Int, baseDec, quoteDec uint8, invert bool) *big.Int {
	baseScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(baseDec)), nil)
	quoteScale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(quoteDec)), nil)

	if invert {
		num := new(big.Int).Mul(amountIn, types.PriceScale)
		num.Mul(num, quoteScale)
		den := new(big.Int).Mul(price, baseScale)
		if den.Sign() == 0 {
			return new(big.Int)
		}
		return num.Div(num, den)
	}

	num := new(big.Int).Mul(amountIn, price)
	num.Mul(num, quoteScale)
	den := new(big.Int).Mul(types.PriceScale, baseScale)
	return num.Div(num, den)
}

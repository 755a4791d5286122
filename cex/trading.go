package cex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/types"
)

// OrderResult is the realized outcome of a market order, expressed as a swap:
// AmountOut is the quantity of pair.Quote actually received.
type OrderResult struct {
	OrderID   string
	AmountOut *big.Int
}

type orderResponse struct {
	OrderID             int64  `json:"orderId"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
}

// MarketSwap places a market order that swaps amountIn of pair.Base into
// pair.Quote. A direct listing is sold at market; an inverted listing is
// bought with amountIn as the quote quantity. The returned AmountOut is the
// exchange-reported fill, never the intended quantity.
func (c *Client) MarketSwap(ctx context.Context, pair types.Pair, amountIn *big.Int) (*OrderResult, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, fmt.Errorf("%s: trading credentials not configured", c.name)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	base, quote := exchangeSymbol(pair.Base), exchangeSymbol(pair.Quote)

	params := url.Values{}
	params.Set("type", "MARKET")
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	// Direct listing: sell base. Inverted listing: buy the listed asset,
	// spending amountIn as quote quantity.
	directSymbol := base + quote
	params.Set("symbol", directSymbol)
	params.Set("side", "SELL")
	params.Set("quantity", AmountToDecimal(amountIn, pair.Base.Decimals))
	resp, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		inverted := url.Values{}
		inverted.Set("type", "MARKET")
		inverted.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		inverted.Set("symbol", quote+base)
		inverted.Set("side", "BUY")
		inverted.Set("quoteOrderQty", AmountToDecimal(amountIn, pair.Base.Decimals))
		resp, err = c.signedRequest(ctx, http.MethodPost, "/api/v3/order", inverted)
		if err != nil {
			return nil, fmt.Errorf("%s: market order failed: %w", c.name, err)
		}
		var or orderResponse
		if err := json.Unmarshal(resp, &or); err != nil {
			return nil, fmt.Errorf("%s: malformed order response: %w", c.name, err)
		}
		out, err := DecimalToAmount(or.ExecutedQty, pair.Quote.Decimals)
		if err != nil {
			return nil, fmt.Errorf("%s: malformed fill quantity: %w", c.name, err)
		}
		return &OrderResult{OrderID: strconv.FormatInt(or.OrderID, 10), AmountOut: out}, nil
	}

	var or orderResponse
	if err := json.Unmarshal(resp, &or); err != nil {
		return nil, fmt.Errorf("%s: malformed order response: %w", c.name, err)
	}
	out, err := DecimalToAmount(or.CummulativeQuoteQty, pair.Quote.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed fill quantity: %w", c.name, err)
	}
	c.logger.Info("market order filled",
		zap.String("symbol", directSymbol),
		zap.String("order_id", strconv.FormatInt(or.OrderID, 10)),
		zap.String("amount_out", out.String()))
	return &OrderResult{OrderID: strconv.FormatInt(or.OrderID, 10), AmountOut: out}, nil
}

type accountResponse struct {
	Balances []struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

// Balance returns the free balance of an asset on this exchange, in the
// asset's smallest unit.
func (c *Client) Balance(ctx context.Context, asset types.Asset) (*big.Int, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, fmt.Errorf("%s: trading credentials not configured", c.name)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	resp, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", params)
	if err != nil {
		return nil, fmt.Errorf("%s: account query failed: %w", c.name, err)
	}

	var acct accountResponse
	if err := json.Unmarshal(resp, &acct); err != nil {
		return nil, fmt.Errorf("%s: malformed account response: %w", c.name, err)
	}
	want := exchangeSymbol(asset)
	for _, b := range acct.Balances {
		if strings.EqualFold(b.Asset, want) {
			return DecimalToAmount(b.Free, asset.Decimals)
		}
	}
	return new(big.Int), nil
}

func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Registry dispatches trading calls to the exchange client named in an
// opportunity's venue.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry indexes the given clients by venue name.
func NewRegistry(clients []*Client) *Registry {
	m := make(map[string]*Client, len(clients))
	for _, c := range clients {
		m[c.name] = c
	}
	return &Registry{clients: m}
}

// MarketSwap routes a market order to the named exchange.
func (r *Registry) MarketSwap(ctx context.Context, venueName string, pair types.Pair, amountIn *big.Int) (*OrderResult, error) {
	c, ok := r.clients[venueName]
	if !ok {
		return nil, fmt.Errorf("unknown exchange venue %q", venueName)
	}
	return c.MarketSwap(ctx, pair, amountIn)
}

// Balance routes a balance query to the named exchange.
func (r *Registry) Balance(ctx context.Context, venueName string, asset types.Asset) (*big.Int, error) {
	c, ok := r.clients[venueName]
	if !ok {
		return nil, fmt.Errorf("unknown exchange venue %q", venueName)
	}
	return c.Balance(ctx, asset)
}

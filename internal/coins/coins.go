package coins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/cache"
)

// Fetcher is the slice of api.Session the coin service needs.
type Fetcher interface {
	AuthFetch(ctx context.Context, path string, opts api.RequestOptions, anonymous bool, out any) error
}

// Client wraps the coin lookup, market and market-data proxy endpoints.
// Every call is anonymous: these endpoints are public.
type Client struct {
	api   Fetcher
	cache *cache.Cache // optional
	log   zerolog.Logger
}

// NewClient creates a coin client. c may be nil to disable caching.
func NewClient(f Fetcher, c *cache.Cache, log zerolog.Logger) *Client {
	return &Client{
		api:   f,
		cache: c,
		log:   log.With().Str("component", "coins").Logger(),
	}
}

// --- API Types ---

type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketChart is the provider's historical series; each point is
// [unix millis, value].
type MarketChart struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps,omitempty"`
	TotalVolumes [][2]float64 `json:"total_volumes,omitempty"`
}

// Market is one row of the provider's coins/markets listing.
type Market struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Image        string   `json:"image"`
	CurrentPrice *float64 `json:"current_price"`
	MarketCap    *float64 `json:"market_cap"`
	Ch1h         *float64 `json:"price_change_percentage_1h_in_currency"`
	Ch24h        *float64 `json:"price_change_percentage_24h_in_currency"`
	Ch7d         *float64 `json:"price_change_percentage_7d_in_currency"`
}

// Fallback is served when every live source came back empty.
var Fallback = []Coin{
	{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
	{ID: "ethereum", Symbol: "eth", Name: "Ethereum"},
	{ID: "tether", Symbol: "usdt", Name: "Tether"},
	{ID: "binancecoin", Symbol: "bnb", Name: "BNB"},
	{ID: "usd-coin", Symbol: "usdc", Name: "USDC"},
	{ID: "ripple", Symbol: "xrp", Name: "XRP"},
	{ID: "cardano", Symbol: "ada", Name: "Cardano"},
	{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin"},
	{ID: "solana", Symbol: "sol", Name: "Solana"},
	{ID: "tron", Symbol: "trx", Name: "TRON"},
}

const (
	DefaultPageSize = 25
	DefaultTopLimit = 50
	DefaultDays     = 30
	DefaultCurrency = "usd"
)

// --- API Methods ---

// ListCoins returns the first page of known coins. Errors yield an empty list.
func (c *Client) ListCoins(ctx context.Context, pageSize int) []Coin {
	return c.SearchCoins(ctx, "", pageSize)
}

// SearchCoins looks coins up by name or symbol. Errors yield an empty list.
func (c *Client) SearchCoins(ctx context.Context, query string, pageSize int) []Coin {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	params.Set("page_size", strconv.Itoa(pageSize))

	var result struct {
		Results []Coin `json:"results"`
	}
	if err := c.api.AuthFetch(ctx, "/coins/", api.RequestOptions{Query: params}, true, &result); err != nil {
		c.log.Debug().Err(err).Str("search", query).Msg("coin search failed")
		return []Coin{}
	}
	if result.Results == nil {
		return []Coin{}
	}
	return result.Results
}

// MarketTopCoins returns the top coins by market cap. Errors yield an empty list.
func (c *Client) MarketTopCoins(ctx context.Context, limit int) []Coin {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var result struct {
		Data []Coin `json:"data"`
	}
	if err := c.api.AuthFetch(ctx, "/markets/", api.RequestOptions{Query: params}, true, &result); err != nil {
		c.log.Debug().Err(err).Msg("market top coins failed")
		return []Coin{}
	}
	out := make([]Coin, 0, len(result.Data))
	for _, m := range result.Data {
		out = append(out, Coin{ID: m.ID, Symbol: m.Symbol, Name: m.Name})
	}
	return out
}

// Suggestions feeds coin pickers: search (or list) first, then the market
// top list, then the static fallback.
func (c *Client) Suggestions(ctx context.Context, query string) []Coin {
	var primary []Coin
	if query != "" {
		primary = c.SearchCoins(ctx, query, DefaultPageSize)
	} else {
		primary = c.ListCoins(ctx, DefaultPageSize)
	}
	if len(primary) > 0 {
		return primary
	}
	if secondary := c.MarketTopCoins(ctx, DefaultTopLimit); len(secondary) > 0 {
		return secondary
	}
	out := make([]Coin, len(Fallback))
	copy(out, Fallback)
	return out
}

// Proxy calls the server-side market-data proxy for endpoint and decodes its
// "data" field into out.
func (c *Client) Proxy(ctx context.Context, endpoint string, params url.Values, out any) error {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("endpoint", endpoint)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.api.AuthFetch(ctx, "/coingecko_proxy/", api.RequestOptions{Query: q}, true, &envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("proxy %s returned no data", endpoint)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding proxy %s: %w", endpoint, err)
	}
	return nil
}

// MarketChart returns the historical series for coinID, or nil when it
// could not be fetched and nothing is cached.
func (c *Client) MarketChart(ctx context.Context, coinID, vsCurrency string, days int) *MarketChart {
	if vsCurrency == "" {
		vsCurrency = DefaultCurrency
	}
	if days <= 0 {
		days = DefaultDays
	}
	key := fmt.Sprintf("%s:%s:%d", coinID, vsCurrency, days)

	var chart MarketChart
	if c.cachedFresh("market_chart", key, &chart) {
		return &chart
	}

	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("days", strconv.Itoa(days))
	if err := c.Proxy(ctx, "coins/"+coinID+"/market_chart", params, &chart); err != nil {
		if c.cachedStale("market_chart", key, &chart) {
			c.log.Warn().Err(err).Str("coin", coinID).Msg("market chart failed, using stale cache")
			return &chart
		}
		c.log.Debug().Err(err).Str("coin", coinID).Msg("market chart failed")
		return nil
	}
	c.store("market_chart", key, chart, cache.TTLMarketChart)
	return &chart
}

// MarketsByIDs returns live market rows for the given coin ids, ordered by
// market cap, with 1h/24h/7d price changes.
func (c *Client) MarketsByIDs(ctx context.Context, ids []string, vsCurrency string) ([]Market, error) {
	if len(ids) == 0 {
		return []Market{}, nil
	}
	if vsCurrency == "" {
		vsCurrency = DefaultCurrency
	}
	vsCurrency = strings.ToLower(vsCurrency)
	key := vsCurrency + ":" + strings.Join(ids, ",")

	var rows []Market
	if c.cachedFresh("markets", key, &rows) {
		return rows, nil
	}

	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("ids", strings.Join(ids, ","))
	params.Set("order", "market_cap_desc")
	params.Set("price_change_percentage", "1h,24h,7d")
	params.Set("sparkline", "false")
	if err := c.Proxy(ctx, "coins/markets", params, &rows); err != nil {
		if c.cachedStale("markets", key, &rows) {
			c.log.Warn().Err(err).Msg("markets failed, using stale cache")
			return rows, nil
		}
		return nil, fmt.Errorf("fetching markets: %w", err)
	}
	c.store("markets", key, rows, cache.TTLMarkets)
	return rows, nil
}

func (c *Client) cachedFresh(table, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	data, err := c.cache.GetIfFresh(table, key)
	if err != nil || data == nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Client) cachedStale(table, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	data, err := c.cache.Get(table, key)
	if err != nil || data == nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Client) store(table, key string, v any, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(table, key, v, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Msg("cache store failed")
	}
}

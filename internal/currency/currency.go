// Package currency normalises currency codes, converts amounts between
// fiat currencies through the USDC stable coin, and formats money for
// display.
package currency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sdibella/coinfolio/internal/cache"
)

const (
	Default = "USD"

	// StableCoinID is the pivot: 1 USDC is taken as 1 USD.
	StableCoinID = "usd-coin"

	// Places is the scale converted amounts are rounded to.
	Places = 10
)

var ErrInvalidAmount = errors.New("unable to convert amount to decimal")

// Normalise trims and upper-cases code, defaulting to USD.
func Normalise(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Default
	}
	return code
}

// ParseAmount parses a decimal amount from user or API input.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// PriceSource queries the market-data proxy; *coins.Client satisfies it.
type PriceSource interface {
	Proxy(ctx context.Context, endpoint string, params url.Values, out any) error
}

// Converter converts amounts using USDC rates. Rates are memoised for the
// converter's lifetime and, when a cache is set, persisted for an hour.
type Converter struct {
	prices PriceSource
	cache  *cache.Cache
	log    zerolog.Logger

	mu    sync.Mutex
	rates map[string]decimal.Decimal
}

// NewConverter creates a converter. c may be nil.
func NewConverter(prices PriceSource, c *cache.Cache, log zerolog.Logger) *Converter {
	return &Converter{
		prices: prices,
		cache:  c,
		log:    log.With().Str("component", "currency").Logger(),
		rates:  make(map[string]decimal.Decimal),
	}
}

// Rate returns the price of 1 USDC in ccy. USD is always 1. ok is false
// when the rate could not be determined.
func (c *Converter) Rate(ctx context.Context, ccy string) (decimal.Decimal, bool) {
	ccy = Normalise(ccy)
	if ccy == Default {
		return decimal.NewFromInt(1), true
	}

	c.mu.Lock()
	rate, ok := c.rates[ccy]
	c.mu.Unlock()
	if ok {
		return rate, true
	}

	rate, ok = c.cachedRate(ccy)
	if !ok {
		rate, ok = c.fetchRate(ctx, ccy)
		if !ok {
			return decimal.Zero, false
		}
		if c.cache != nil {
			if err := c.cache.Store("currency_rates", ccy, rate, cache.TTLCurrencyRate); err != nil {
				c.log.Warn().Err(err).Str("currency", ccy).Msg("caching rate failed")
			}
		}
	}

	c.mu.Lock()
	c.rates[ccy] = rate
	c.mu.Unlock()
	return rate, true
}

func (c *Converter) cachedRate(ccy string) (decimal.Decimal, bool) {
	if c.cache == nil {
		return decimal.Zero, false
	}
	data, err := c.cache.GetIfFresh("currency_rates", ccy)
	if err != nil || data == nil {
		return decimal.Zero, false
	}
	var rate decimal.Decimal
	if err := rate.UnmarshalJSON(data); err != nil {
		return decimal.Zero, false
	}
	return rate, true
}

func (c *Converter) fetchRate(ctx context.Context, ccy string) (decimal.Decimal, bool) {
	vs := strings.ToLower(ccy)
	params := url.Values{}
	params.Set("ids", StableCoinID)
	params.Set("vs_currencies", vs)

	var prices map[string]map[string]decimal.Decimal
	if err := c.prices.Proxy(ctx, "simple/price", params, &prices); err != nil {
		c.log.Debug().Err(err).Str("currency", ccy).Msg("rate lookup failed")
		return decimal.Zero, false
	}
	rate, ok := prices[StableCoinID][vs]
	return rate, ok
}

// Convert converts amount from src to dst through USDC, rounded half-up to
// Places decimals. When either rate is missing or not positive the amount
// is returned unchanged.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, src, dst string) decimal.Decimal {
	src, dst = Normalise(src), Normalise(dst)
	if src == dst {
		return amount
	}

	srcRate, ok := c.Rate(ctx, src)
	if !ok || !srcRate.IsPositive() {
		return amount
	}
	dstRate, ok := c.Rate(ctx, dst)
	if !ok || !dstRate.IsPositive() {
		return amount
	}

	return amount.Div(srcRate).Mul(dstRate).Round(Places)
}

var symbols = map[string]string{
	"USD": "$",
	"AUD": "A$",
	"CAD": "C$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Symbol returns the display prefix for ccy.
func Symbol(ccy string) string {
	ccy = Normalise(ccy)
	if s, ok := symbols[ccy]; ok {
		return s
	}
	return ccy
}

// FormatMoney renders v as "$ 1,234.56".
func FormatMoney(v float64, ccy string) string {
	return Symbol(ccy) + " " + FormatNumber(v)
}

// FormatNumber renders v with thousands separators and two decimals.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "—"
	}
	return humanize.FormatFloat("#,###.##", v)
}

// FormatAbbrev renders large values with T/B/M suffixes ("$ 1.20B"),
// "—" when v is nil.
func FormatAbbrev(v *float64, ccy string) string {
	if v == nil {
		return "—"
	}
	abs := math.Abs(*v)
	switch {
	case abs >= 1e12:
		return FormatMoney(*v/1e12, ccy) + "T"
	case abs >= 1e9:
		return FormatMoney(*v/1e9, ccy) + "B"
	case abs >= 1e6:
		return FormatMoney(*v/1e6, ccy) + "M"
	}
	return FormatMoney(*v, ccy)
}

// FormatDecimal renders an optional decimal as money, "-" when nil.
func FormatDecimal(d *decimal.Decimal, ccy string) string {
	if d == nil {
		return "-"
	}
	f, _ := d.Float64()
	return FormatMoney(f, ccy)
}

package currency

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/coinfolio/internal/cache"
)

type fakePrices struct {
	rates map[string]string // lower-case currency -> rate JSON number
	calls int
	err   error
}

func (f *fakePrices) Proxy(ctx context.Context, endpoint string, params url.Values, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if endpoint != "simple/price" || params.Get("ids") != StableCoinID {
		return errors.New("unexpected request")
	}
	vs := params.Get("vs_currencies")
	body := `{"usd-coin":{}}`
	if r, ok := f.rates[vs]; ok {
		body = `{"usd-coin":{"` + vs + `":` + r + `}}`
	}
	return json.Unmarshal([]byte(body), out)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalise(t *testing.T) {
	assert.Equal(t, "EUR", Normalise("  eur "))
	assert.Equal(t, "USD", Normalise(""))
	assert.Equal(t, "USD", Normalise("   "))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 12.5 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec("12.5")))

	_, err = ParseAmount("twelve")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRate_Memoised(t *testing.T) {
	prices := &fakePrices{rates: map[string]string{"eur": "0.91"}}
	conv := NewConverter(prices, nil, zerolog.Nop())
	ctx := context.Background()

	rate, ok := conv.Rate(ctx, "eur")
	require.True(t, ok)
	assert.True(t, rate.Equal(dec("0.91")))

	again, ok := conv.Rate(ctx, "EUR")
	require.True(t, ok)
	assert.True(t, again.Equal(rate))
	assert.Equal(t, 1, prices.calls)
}

func TestRate_USDIsOne(t *testing.T) {
	prices := &fakePrices{}
	conv := NewConverter(prices, nil, zerolog.Nop())

	rate, ok := conv.Rate(context.Background(), "usd")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, prices.calls)
}

func TestRate_PersistedInCache(t *testing.T) {
	c, err := cache.Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	first := NewConverter(&fakePrices{rates: map[string]string{"gbp": "0.79"}}, c, zerolog.Nop())
	_, ok := first.Rate(ctx, "GBP")
	require.True(t, ok)

	offline := &fakePrices{err: errors.New("offline")}
	second := NewConverter(offline, c, zerolog.Nop())
	rate, ok := second.Rate(ctx, "GBP")
	require.True(t, ok)
	assert.True(t, rate.Equal(dec("0.79")))
	assert.Equal(t, 0, offline.calls)
}

func TestConvert(t *testing.T) {
	prices := &fakePrices{rates: map[string]string{"cad": "2", "aud": "4", "jpy": "0", "eur": "3"}}
	conv := NewConverter(prices, nil, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   string
		src, dst string
		want     string
	}{
		{"via pivot", "10", "CAD", "AUD", "20"},
		{"same currency", "15", "eur", " EUR ", "15"},
		{"missing rate", "15", "CAD", "CHF", "15"},
		{"zero rate", "15", "CAD", "JPY", "15"},
		{"rounds half up", "1", "EUR", "USD", "0.3333333333"},
		{"from usd", "2.5", "", "EUR", "7.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := conv.Convert(ctx, dec(tt.amount), tt.src, tt.dst)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestConvert_RoundsToPlaces(t *testing.T) {
	prices := &fakePrices{rates: map[string]string{"eur": "3"}}
	conv := NewConverter(prices, nil, zerolog.Nop())

	got := conv.Convert(context.Background(), dec("2"), "EUR", "USD")
	assert.Equal(t, "0.6666666667", got.String())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$ 1,234.56", FormatMoney(1234.56, "usd"))
	assert.Equal(t, "€ 0.50", FormatMoney(0.5, "EUR"))
	assert.Equal(t, "CHF 10.00", FormatMoney(10, "CHF"))
	assert.Equal(t, "$ -1,000.00", FormatMoney(-1000, ""))
}

func TestFormatAbbrev(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	assert.Equal(t, "—", FormatAbbrev(nil, "USD"))
	assert.Equal(t, "$ 1.20T", FormatAbbrev(v(1.2e12), "USD"))
	assert.Equal(t, "$ 3.50B", FormatAbbrev(v(3.5e9), "USD"))
	assert.Equal(t, "$ 7.00M", FormatAbbrev(v(7e6), "USD"))
	assert.Equal(t, "$ 999,999.00", FormatAbbrev(v(999999), "USD"))
}

func TestFormatDecimal(t *testing.T) {
	d := dec("1500")
	assert.Equal(t, "$ 1,500.00", FormatDecimal(&d, "USD"))
	assert.Equal(t, "-", FormatDecimal(nil, "USD"))
}

package coins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/cache"
)

func newTestClient(t *testing.T, h http.HandlerFunc, c *cache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	sess, err := api.NewSession(srv.URL+"/api", api.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return NewClient(sess, c, zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchCoins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/coins/", r.URL.Path)
		assert.Equal(t, "sol", r.URL.Query().Get("search"))
		assert.Equal(t, "25", r.URL.Query().Get("page_size"))
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{"results": []Coin{{ID: "solana", Symbol: "sol", Name: "Solana"}}})
	}, nil)

	got := client.SearchCoins(context.Background(), "sol", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "solana", got[0].ID)
}

func TestListCoins_ErrorYieldsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	got := client.ListCoins(context.Background(), 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMarketTopCoins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/markets/", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		writeJSON(w, map[string]any{"data": []map[string]any{
			{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 1},
		}})
	}, nil)

	got := client.MarketTopCoins(context.Background(), 0)
	assert.Equal(t, []Coin{{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}}, got)
}

func TestSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		coins   []Coin
		markets []Coin
		want    string
	}{
		{"search hits", []Coin{{ID: "pepe"}}, []Coin{{ID: "bitcoin"}}, "pepe"},
		{"falls back to markets", nil, []Coin{{ID: "ethereum"}}, "ethereum"},
		{"falls back to static list", nil, nil, "bitcoin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/coins/":
					writeJSON(w, map[string]any{"results": tt.coins})
				case "/api/markets/":
					writeJSON(w, map[string]any{"data": tt.markets})
				}
			}, nil)

			got := client.Suggestions(context.Background(), "pe")
			require.NotEmpty(t, got)
			assert.Equal(t, tt.want, got[0].ID)
		})
	}
}

func TestSuggestions_FallbackIsCopy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	got := client.Suggestions(context.Background(), "")
	require.Len(t, got, len(Fallback))
	got[0].ID = "mutated"
	assert.Equal(t, "bitcoin", Fallback[0].ID)
}

func TestMarketChart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/coingecko_proxy/", r.URL.Path)
		assert.Equal(t, "coins/bitcoin/market_chart", q.Get("endpoint"))
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "30", q.Get("days"))
		writeJSON(w, map[string]any{"data": map[string]any{
			"prices": [][2]float64{{1000, 50000}, {2000, 51000}},
		}})
	}, nil)

	chart := client.MarketChart(context.Background(), "bitcoin", "", 0)
	require.NotNil(t, chart)
	assert.Equal(t, [][2]float64{{1000, 50000}, {2000, 51000}}, chart.Prices)
}

func TestMarketChart_NullData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": nil})
	}, nil)

	assert.Nil(t, client.MarketChart(context.Background(), "bitcoin", "usd", 7))
}

func TestMarketChart_CachedAndStaleFallback(t *testing.T) {
	c, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var calls atomic.Int32
	var fail atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"data": map[string]any{"prices": [][2]float64{{1, 2}}}})
	}, c)

	ctx := context.Background()
	require.NotNil(t, client.MarketChart(ctx, "bitcoin", "usd", 30))
	require.NotNil(t, client.MarketChart(ctx, "bitcoin", "usd", 30))
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")

	// Expire the entry and break the upstream.
	require.NoError(t, c.Store("market_chart", "bitcoin:usd:30", MarketChart{Prices: [][2]float64{{9, 9}}}, -1))
	fail.Store(true)

	chart := client.MarketChart(ctx, "bitcoin", "usd", 30)
	require.NotNil(t, chart)
	assert.Equal(t, [][2]float64{{9, 9}}, chart.Prices)
}

func TestMarketsByIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "coins/markets", q.Get("endpoint"))
		assert.Equal(t, "eur", q.Get("vs_currency"))
		assert.Equal(t, "bitcoin,ethereum", q.Get("ids"))
		assert.Equal(t, "market_cap_desc", q.Get("order"))
		assert.Equal(t, "1h,24h,7d", q.Get("price_change_percentage"))
		assert.Equal(t, "false", q.Get("sparkline"))
		writeJSON(w, map[string]any{"data": []map[string]any{
			{"id": "bitcoin", "current_price": 50000, "price_change_percentage_24h_in_currency": 1.5},
			{"id": "ethereum", "current_price": 3000, "price_change_percentage_24h_in_currency": nil},
		}})
	}, nil)

	rows, err := client.MarketsByIDs(context.Background(), []string{"bitcoin", "ethereum"}, "EUR")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Ch24h)
	assert.InDelta(t, 1.5, *rows[0].Ch24h, 1e-9)
	assert.Nil(t, rows[1].Ch24h)
}

func TestMarketsByIDs_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)

	rows, err := client.MarketsByIDs(context.Background(), nil, "usd")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarketsByIDs_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	_, err := client.MarketsByIDs(context.Background(), []string{"bitcoin"}, "usd")
	assert.Error(t, err)
}

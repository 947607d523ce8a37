package simulations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/errmsg"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
	})
	mux.HandleFunc("/", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess, err := api.NewSession(srv.URL, api.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	sess.SetAccessToken("acc")
	return NewClient(sess, zerolog.Nop())
}

func TestList_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":"s1","name":"A"},{"id":"s2","name":"B"}]`, 2},
		{"paginated", `{"count":1,"results":[{"id":"s1","name":"A"}]}`, 1},
		{"no results", `{"count":0}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/simulations/", r.URL.Path)
				assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.body))
			})

			sims, err := client.List(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, sims)
			assert.Len(t, sims, tt.want)
		})
	}
}

func TestGet_DecodesDecimals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/simulations/s1/", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id":"s1","name":"Alpha","start_date":"2026-01-01","end_date":null,"status":"ACTIVE",
			"invested":"1000.50","units":null,"current_value":1200,
			"positions":[
				{"id":"p1","type":"BUY","coin":{"id":"bitcoin","symbol":"btc"},"quantity":"2","price":"100"},
				{"id":"p2","type":"SELL","coin_id":"bitcoin","quantity":"0.5","price":"110"}
			]
		}`))
	})

	sim, err := client.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, sim.Status)
	assert.Equal(t, "-", sim.EndLabel())
	require.NotNil(t, sim.Invested)
	assert.True(t, sim.Invested.Equal(decimal.RequireFromString("1000.50")))
	assert.Nil(t, sim.Units)
	require.NotNil(t, sim.CurrentValue)
	assert.True(t, sim.CurrentValue.Equal(decimal.NewFromInt(1200)))

	require.Len(t, sim.Positions, 2)
	assert.Equal(t, "bitcoin", sim.Positions[0].AggregationID())
	assert.Equal(t, "btc", sim.Positions[0].Label())
	assert.Equal(t, "bitcoin", sim.Positions[1].AggregationID())
	assert.Equal(t, "-", sim.Positions[1].Label())
	assert.True(t, sim.Positions[1].SignedQuantity().Equal(decimal.RequireFromString("-0.5")))
}

func TestAggregationID(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want string
	}{
		{"nested id wins", Position{Coin: &CoinRef{ID: "eth", Symbol: "ETH"}, CoinID: "x"}, "eth"},
		{"coin_id next", Position{Coin: &CoinRef{Symbol: "ETH"}, CoinID: "ethereum"}, "ethereum"},
		{"symbol last", Position{Coin: &CoinRef{Symbol: "ETH"}}, "ETH"},
		{"nothing", Position{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pos.AggregationID())
		})
	}
}

func TestCreate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "tok", r.Header.Get("X-CSRFToken"))
		var req CreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, CreateRequest{Name: "Alpha", Description: "", StartDate: "2026-01-01"}, req)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"s9","name":"Alpha","status":"ACTIVE"}`))
	})

	sim, err := client.Create(context.Background(), CreateRequest{Name: "Alpha", StartDate: "2026-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "s9", sim.ID)
}

func TestCreate_SerializerErrorIsFriendly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":{"non_field_errors":["Internal serializer error"],"name":["simulation with this name already exists."]}}`))
	})

	_, err := client.Create(context.Background(), CreateRequest{Name: "Alpha", StartDate: "2026-01-01"})
	require.Error(t, err)
	assert.Equal(t, "simulation with this name already exists.", errmsg.Friendly(err))
}

func TestDeleteAndTransactions(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/simulations/s1/transactions/":
			var req map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "bitcoin", req["coin_id"])
			assert.Equal(t, "BUY", req["type"])
			assert.Equal(t, "1.5", req["quantity"])
			assert.NotContains(t, req, "price")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","type":"BUY","coin_id":"bitcoin","quantity":"1.5","price":"100"}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	ctx := context.Background()
	pos, err := client.AddPosition(ctx, "s1", PositionRequest{CoinID: "bitcoin", Type: Buy, Quantity: decimal.RequireFromString("1.5")})
	require.NoError(t, err)
	assert.Equal(t, "p1", pos.ID)

	require.NoError(t, client.DeleteTransaction(ctx, "p1"))
	require.NoError(t, client.Delete(ctx, "s1"))

	assert.Equal(t, []string{
		"POST /api/simulations/s1/transactions/",
		"DELETE /api/transactions/p1/",
		"DELETE /api/simulations/s1/",
	}, paths)
}

func TestAddPosition_Validates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	ctx := context.Background()
	_, err := client.AddPosition(ctx, "s1", PositionRequest{CoinID: "bitcoin", Type: "HOLD", Quantity: decimal.NewFromInt(1)})
	assert.Error(t, err)
	_, err = client.AddPosition(ctx, "s1", PositionRequest{CoinID: "bitcoin", Type: Sell, Quantity: decimal.Zero})
	assert.Error(t, err)
}

func TestPositions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/simulations/s1/positions/", r.URL.Path)
		_, _ = w.Write([]byte(`{"positions":[{"id":"p1","type":"BUY","quantity":"1","price":"2"}]}`))
	})

	got, err := client.Positions(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Buy, got[0].Type)
}

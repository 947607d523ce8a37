// Package simulations wraps the paper-trading simulation endpoints.
package simulations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sdibella/coinfolio/internal/api"
)

// Fetcher is the slice of api.Session the simulation service needs.
type Fetcher interface {
	AuthFetch(ctx context.Context, path string, opts api.RequestOptions, anonymous bool, out any) error
}

type Client struct {
	api Fetcher
	log zerolog.Logger
}

func NewClient(f Fetcher, log zerolog.Logger) *Client {
	return &Client{api: f, log: log.With().Str("component", "simulations").Logger()}
}

// --- API Types ---

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusEnded    Status = "ENDED"
	StatusArchived Status = "ARCHIVED"
)

type PositionType string

const (
	Buy  PositionType = "BUY"
	Sell PositionType = "SELL"
)

// CoinRef is the nested coin on a position. Either field may be empty.
type CoinRef struct {
	ID     string `json:"id,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Name   string `json:"name,omitempty"`
}

type Position struct {
	ID       string          `json:"id"`
	Type     PositionType    `json:"type"`
	Coin     *CoinRef        `json:"coin,omitempty"`
	CoinID   string          `json:"coin_id,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Time     string          `json:"time,omitempty"`
}

// AggregationID is the id a position is summed under: the nested coin id,
// then coin_id, then the nested symbol. "" means the position is skipped.
func (p Position) AggregationID() string {
	if p.Coin != nil && p.Coin.ID != "" {
		return p.Coin.ID
	}
	if p.CoinID != "" {
		return p.CoinID
	}
	if p.Coin != nil {
		return p.Coin.Symbol
	}
	return ""
}

// Label is the coin shown in position tables.
func (p Position) Label() string {
	if p.Coin != nil {
		if p.Coin.Symbol != "" {
			return p.Coin.Symbol
		}
		if p.Coin.ID != "" {
			return p.Coin.ID
		}
	}
	return "-"
}

// SignedQuantity is the quantity with SELL counted negative.
func (p Position) SignedQuantity() decimal.Decimal {
	if p.Type == Sell {
		return p.Quantity.Neg()
	}
	return p.Quantity
}

type Simulation struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	StartDate    string           `json:"start_date"`
	EndDate      *string          `json:"end_date"`
	Status       Status           `json:"status"`
	Invested     *decimal.Decimal `json:"invested"`
	Units        *decimal.Decimal `json:"units"`
	CurrentValue *decimal.Decimal `json:"current_value"`
	Positions    []Position       `json:"positions,omitempty"`
}

// EndLabel renders the end date, "-" while open.
func (s Simulation) EndLabel() string {
	if s.EndDate == nil || *s.EndDate == "" {
		return "-"
	}
	return *s.EndDate
}

type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
}

// PositionRequest records a BUY or SELL inside a simulation. A nil Price
// lets the server price the trade at the current market.
type PositionRequest struct {
	CoinID   string           `json:"coin_id"`
	Type     PositionType     `json:"type"`
	Quantity decimal.Decimal  `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// --- API Methods ---

// List returns the caller's simulations. The server answers either with a
// bare array or a paginated {"results": [...]} envelope.
func (c *Client) List(ctx context.Context) ([]Simulation, error) {
	var raw json.RawMessage
	if err := c.api.AuthFetch(ctx, "/simulations/", api.RequestOptions{}, false, &raw); err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	return decodeList(raw)
}

func decodeList(raw json.RawMessage) ([]Simulation, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []Simulation{}, nil
	}
	if trimmed[0] == '[' {
		var items []Simulation
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding simulations: %w", err)
		}
		return items, nil
	}
	var page struct {
		Results []Simulation `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decoding simulations: %w", err)
	}
	if page.Results == nil {
		return []Simulation{}, nil
	}
	return page.Results, nil
}

// Get returns one simulation with its positions.
func (c *Client) Get(ctx context.Context, id string) (Simulation, error) {
	var sim Simulation
	if err := c.api.AuthFetch(ctx, "/simulations/"+url.PathEscape(id)+"/", api.RequestOptions{}, false, &sim); err != nil {
		return Simulation{}, fmt.Errorf("getting simulation %s: %w", id, err)
	}
	return sim, nil
}

// Create makes a new simulation. Repeated calls create repeated simulations.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Simulation, error) {
	var sim Simulation
	if err := c.api.AuthFetch(ctx, "/simulations/", api.RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	}, false, &sim); err != nil {
		return Simulation{}, fmt.Errorf("creating simulation: %w", err)
	}
	c.log.Info().Str("id", sim.ID).Str("name", sim.Name).Msg("simulation created")
	return sim, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.api.AuthFetch(ctx, "/simulations/"+url.PathEscape(id)+"/", api.RequestOptions{
		Method: http.MethodDelete,
	}, false, nil); err != nil {
		return fmt.Errorf("deleting simulation %s: %w", id, err)
	}
	c.log.Info().Str("id", id).Msg("simulation deleted")
	return nil
}

// Positions lists the simulation's positions.
func (c *Client) Positions(ctx context.Context, id string) ([]Position, error) {
	var raw json.RawMessage
	if err := c.api.AuthFetch(ctx, "/simulations/"+url.PathEscape(id)+"/positions/", api.RequestOptions{}, false, &raw); err != nil {
		return nil, fmt.Errorf("listing positions for %s: %w", id, err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []Position{}, nil
	}
	if trimmed[0] == '[' {
		var items []Position
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding positions: %w", err)
		}
		return items, nil
	}
	var page struct {
		Results   []Position `json:"results"`
		Positions []Position `json:"positions"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decoding positions: %w", err)
	}
	if page.Results != nil {
		return page.Results, nil
	}
	if page.Positions != nil {
		return page.Positions, nil
	}
	return []Position{}, nil
}

// AddPosition records a transaction inside the simulation.
func (c *Client) AddPosition(ctx context.Context, simID string, req PositionRequest) (Position, error) {
	if req.Type != Buy && req.Type != Sell {
		return Position{}, fmt.Errorf("invalid position type %q", req.Type)
	}
	if !req.Quantity.IsPositive() {
		return Position{}, fmt.Errorf("quantity must be positive, got %s", req.Quantity)
	}
	var pos Position
	if err := c.api.AuthFetch(ctx, "/simulations/"+url.PathEscape(simID)+"/transactions/", api.RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	}, false, &pos); err != nil {
		return Position{}, fmt.Errorf("adding position to %s: %w", simID, err)
	}
	c.log.Info().Str("simulation", simID).Str("coin", req.CoinID).Str("type", string(req.Type)).
		Str("qty", req.Quantity.String()).Msg("position added")
	return pos, nil
}

// DeleteTransaction removes one position.
func (c *Client) DeleteTransaction(ctx context.Context, txID string) error {
	if err := c.api.AuthFetch(ctx, "/transactions/"+url.PathEscape(txID)+"/", api.RequestOptions{
		Method: http.MethodDelete,
	}, false, nil); err != nil {
		return fmt.Errorf("deleting transaction %s: %w", txID, err)
	}
	c.log.Info().Str("id", txID).Msg("transaction deleted")
	return nil
}

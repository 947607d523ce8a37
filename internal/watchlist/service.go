// Package watchlist covers the user's watched coins: the REST wrapper, the
// filter/sort/paginate table behind the watchlist page, the change bus that
// keeps views in sync and the poller that refreshes live market rows.
package watchlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/coins"
)

// Fetcher is the slice of api.Session the watchlist service needs.
type Fetcher interface {
	AuthFetch(ctx context.Context, path string, opts api.RequestOptions, anonymous bool, out any) error
}

// Entry is one watched coin. The coin is identified by CoinID, or by the
// nested coin's id when the server sent only that.
type Entry struct {
	ID     string      `json:"id"`
	CoinID string      `json:"coin_id,omitempty"`
	Coin   *coins.Coin `json:"coin,omitempty"`
}

// WatchedID returns the coin id being watched, "" if none is known.
func (e Entry) WatchedID() string {
	if e.CoinID != "" {
		return e.CoinID
	}
	if e.Coin != nil {
		return e.Coin.ID
	}
	return ""
}

// WatchedIDs maps entries to their coin ids, dropping unknown ones.
func WatchedIDs(entries []Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if id := e.WatchedID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type Client struct {
	api Fetcher
	log zerolog.Logger
}

func NewClient(f Fetcher, log zerolog.Logger) *Client {
	return &Client{api: f, log: log.With().Str("component", "watchlist").Logger()}
}

// List returns the caller's watchlist (bare array or {"results": [...]}).
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	var raw json.RawMessage
	if err := c.api.AuthFetch(ctx, "/watchlist/", api.RequestOptions{}, false, &raw); err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []Entry{}, nil
	}
	if raw[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decoding watchlist: %w", err)
		}
		return entries, nil
	}
	var page struct {
		Results []Entry `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decoding watchlist: %w", err)
	}
	if page.Results == nil {
		return []Entry{}, nil
	}
	return page.Results, nil
}

// Add watches coinID.
func (c *Client) Add(ctx context.Context, coinID string) (Entry, error) {
	var e Entry
	if err := c.api.AuthFetch(ctx, "/watchlist/", api.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"coin_id": coinID},
	}, false, &e); err != nil {
		return Entry{}, fmt.Errorf("adding %s to watchlist: %w", coinID, err)
	}
	c.log.Info().Str("coin", coinID).Msg("watching")
	return e, nil
}

// Remove deletes the watch entry with the given entry id.
func (c *Client) Remove(ctx context.Context, entryID string) error {
	if err := c.api.AuthFetch(ctx, "/watchlist/"+url.PathEscape(entryID)+"/", api.RequestOptions{
		Method: http.MethodDelete,
	}, false, nil); err != nil {
		return fmt.Errorf("removing watch entry %s: %w", entryID, err)
	}
	c.log.Info().Str("entry", entryID).Msg("unwatched")
	return nil
}

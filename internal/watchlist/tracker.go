package watchlist

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sdibella/coinfolio/internal/coins"
	"github.com/sdibella/coinfolio/internal/errmsg"
)

// EntryStore is the REST side of the watchlist.
type EntryStore interface {
	List(ctx context.Context) ([]Entry, error)
	Remove(ctx context.Context, entryID string) error
}

// MarketSource returns live market rows for coin ids.
type MarketSource interface {
	MarketsByIDs(ctx context.Context, ids []string, vsCurrency string) ([]coins.Market, error)
}

// State is a snapshot of what the watchlist page shows.
type State struct {
	Entries []Entry
	Rows    []coins.Market
	Err     string
	Loading bool
}

// Tracker holds the watchlist page state: the watch entries and the market
// rows for them. It is safe for concurrent use.
type Tracker struct {
	store    EntryStore
	markets  MarketSource
	bus      *Bus
	currency string
	log      zerolog.Logger

	mu      sync.RWMutex
	entries []Entry
	rows    []coins.Market
	err     string
	loading bool
}

// NewTracker creates a tracker quoting rows in currency (e.g. "USD").
// bus may be nil when no other view listens.
func NewTracker(store EntryStore, markets MarketSource, bus *Bus, currency string, log zerolog.Logger) *Tracker {
	if currency == "" {
		currency = "USD"
	}
	return &Tracker{
		store:    store,
		markets:  markets,
		bus:      bus,
		currency: currency,
		log:      log.With().Str("component", "watchlist").Logger(),
	}
}

// RefreshEntries reloads the watch entries. Failures are transient and
// leave the previous entries in place.
func (t *Tracker) RefreshEntries(ctx context.Context) {
	entries, err := t.store.List(ctx)
	if err != nil {
		t.log.Debug().Err(err).Msg("watchlist refresh failed")
		return
	}
	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
}

// FetchRows fetches market rows for the current entries without applying
// them. Callers that may have been cancelled meanwhile check before ApplyRows.
func (t *Tracker) FetchRows(ctx context.Context) ([]coins.Market, error) {
	t.mu.Lock()
	ids := WatchedIDs(t.entries)
	if len(ids) > 0 {
		t.loading = true
		t.err = ""
	}
	t.mu.Unlock()

	if len(ids) == 0 {
		return []coins.Market{}, nil
	}
	return t.markets.MarketsByIDs(ctx, ids, strings.ToLower(t.currency))
}

// ApplyRows stores the outcome of FetchRows.
func (t *Tracker) ApplyRows(rows []coins.Market, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = false
	if err != nil {
		msg := errmsg.Friendly(err)
		if msg == "" || msg == errmsg.RequestFailed {
			msg = "Failed to load watchlist"
		}
		t.err = msg
		return
	}
	t.rows = rows
}

// Load refreshes entries then rows.
func (t *Tracker) Load(ctx context.Context) {
	t.RefreshEntries(ctx)
	t.ApplyRows(t.FetchRows(ctx))
}

// Remove unwatches coinID. Unknown ids are ignored. On success the entry
// and its row are dropped locally and a "removed" change is announced.
func (t *Tracker) Remove(ctx context.Context, coinID string) error {
	t.mu.RLock()
	var entry *Entry
	for i := range t.entries {
		if t.entries[i].WatchedID() == coinID {
			e := t.entries[i]
			entry = &e
			break
		}
	}
	t.mu.RUnlock()
	if entry == nil {
		return nil
	}

	if err := t.store.Remove(ctx, entry.ID); err != nil {
		t.mu.Lock()
		t.err = errmsg.Friendly(err)
		if t.err == errmsg.RequestFailed {
			t.err = "Failed to update watchlist"
		}
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	kept := t.entries[:0:0]
	for _, e := range t.entries {
		if e.WatchedID() != coinID {
			kept = append(kept, e)
		}
	}
	t.entries = kept
	rows := t.rows[:0:0]
	for _, r := range t.rows {
		if r.ID != coinID {
			rows = append(rows, r)
		}
	}
	t.rows = rows
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Notify(Change{Type: "removed", CoinID: coinID, Source: SourceWatchlist})
	}
	return nil
}

// Follow reloads the tracker whenever another view changes the watchlist.
// Changes this tracker announced itself are ignored. The returned function
// stops following.
func (t *Tracker) Follow(ctx context.Context) func() {
	if t.bus == nil {
		return func() {}
	}
	return t.bus.Subscribe(func(c Change) {
		if c.Source == SourceWatchlist {
			return
		}
		t.log.Debug().Str("type", c.Type).Str("coin", c.CoinID).Str("source", c.Source).Msg("watchlist changed elsewhere")
		t.Load(ctx)
	})
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return State{
		Entries: append([]Entry(nil), t.entries...),
		Rows:    append([]coins.Market(nil), t.rows...),
		Err:     t.err,
		Loading: t.loading,
	}
}

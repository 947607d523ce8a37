package dashboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/coinfolio/internal/journal"
)

const sampleJournal = `{"type":"session","time":"2026-03-01T09:00:00Z","action":"login","email":"ada@example.com"}
{"type":"simulation","time":"2026-03-01T09:01:00Z","action":"created","simulation_id":"s1","name":"Alpha"}
{"type":"position","time":"2026-03-01T09:02:00Z","action":"added","simulation_id":"s1","transaction_id":"p1","coin_id":"bitcoin","side":"BUY"}
{"type":"position","time":"2026-03-01T09:03:00Z","action":"added","simulation_id":"s1","transaction_id":"p2","coin_id":"bitcoin","side":"SELL"}
{"type":"simulation","time":"2026-03-02T10:00:00Z","action":"created","simulation_id":"s2","name":"Beta"}
{"type":"simulation","time":"2026-03-03T10:00:00Z","action":"deleted","simulation_id":"s2"}
{"type":"watchlist","time":"2026-03-04T08:00:00Z","action":"added","coin_id":"solana"}
{"type":"watchlist","time":"2026-03-04T08:05:00Z","action":"removed","coin_id":"solana","source":"watchlist"}
`

func TestAnalyzer_Summary(t *testing.T) {
	events, err := journal.Parse(strings.NewReader(sampleJournal))
	require.NoError(t, err)

	a := NewAnalyzer()
	a.ProcessEvents(events)
	s := a.Summary()

	assert.Equal(t, 1, s.Logins)
	assert.Equal(t, 2, s.SimulationsCreated)
	assert.Equal(t, 1, s.SimulationsDeleted)
	assert.Equal(t, 2, s.PositionsAdded)
	assert.Equal(t, 1, s.WatchlistAdded)
	assert.Equal(t, 1, s.WatchlistRemoved)
	assert.Equal(t, "2026-03-04T08:05:00Z", s.LastActivity)

	require.Len(t, s.Recent, 8)
	assert.Equal(t, ActivityRow{Time: "2026-03-04T08:05:00Z", Kind: "watchlist", Action: "removed", Subject: "solana"}, s.Recent[0])
	assert.Equal(t, "login", s.Recent[7].Action)
}

func TestAnalyzer_Simulations(t *testing.T) {
	events, err := journal.Parse(strings.NewReader(sampleJournal))
	require.NoError(t, err)

	a := NewAnalyzer()
	a.ProcessEvents(events)

	sims := a.Simulations()
	require.Len(t, sims, 1, "deleted simulations are hidden")
	assert.Equal(t, SimulationActivity{ID: "s1", Name: "Alpha", Created: "2026-03-01T09:01:00Z", Buys: 1, Sells: 1}, sims[0])
}

func TestAnalyzer_RecentIsCapped(t *testing.T) {
	var events []journal.Event
	for i := 0; i < recentLimit+5; i++ {
		events = append(events, journal.Event{
			Type:      journal.TypeWatchlist,
			Watchlist: &journal.Watchlist{Action: "added", CoinID: "bitcoin", Time: "2026-03-01T00:00:00Z"},
		})
	}
	a := NewAnalyzer()
	a.ProcessEvents(events)
	assert.Len(t, a.Summary().Recent, recentLimit)
	assert.Equal(t, recentLimit+5, a.Summary().WatchlistAdded)
}

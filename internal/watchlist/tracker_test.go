package watchlist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/coins"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []Entry
	removed []string
	listErr error
	rmErr   error
}

func (s *fakeStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]Entry(nil), s.entries...), nil
}

func (s *fakeStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rmErr != nil {
		return s.rmErr
	}
	s.removed = append(s.removed, id)
	return nil
}

type fakeMarkets struct {
	mu    sync.Mutex
	calls int
	ids   []string
	vs    string
	err   error
	gate  chan struct{}
}

func (m *fakeMarkets) MarketsByIDs(ctx context.Context, ids []string, vs string) ([]coins.Market, error) {
	m.mu.Lock()
	m.calls++
	m.ids = ids
	m.vs = vs
	gate, err := m.gate, m.err
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	out := make([]coins.Market, len(ids))
	for i, id := range ids {
		out[i] = coins.Market{ID: id, Name: id}
	}
	return out, nil
}

func (m *fakeMarkets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestEntryWatchedID(t *testing.T) {
	assert.Equal(t, "btc", Entry{CoinID: "btc", Coin: &coins.Coin{ID: "x"}}.WatchedID())
	assert.Equal(t, "eth", Entry{Coin: &coins.Coin{ID: "eth"}}.WatchedID())
	assert.Equal(t, "", Entry{}.WatchedID())
	assert.Equal(t, []string{"btc", "eth"}, WatchedIDs([]Entry{{CoinID: "btc"}, {}, {Coin: &coins.Coin{ID: "eth"}}}))
}

func TestTracker_Load(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}, {ID: "w2", Coin: &coins.Coin{ID: "ethereum"}}}}
	markets := &fakeMarkets{}
	tr := NewTracker(store, markets, nil, "EUR", zerolog.Nop())

	tr.Load(context.Background())

	st := tr.Snapshot()
	assert.Len(t, st.Entries, 2)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, ids(st.Rows))
	assert.Equal(t, "eur", markets.vs)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
}

func TestTracker_NoEntriesSkipsMarkets(t *testing.T) {
	markets := &fakeMarkets{}
	tr := NewTracker(&fakeStore{}, markets, nil, "", zerolog.Nop())

	tr.Load(context.Background())

	assert.Equal(t, 0, markets.count())
	assert.Empty(t, tr.Snapshot().Rows)
}

func TestTracker_MarketError(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}}}
	tr := NewTracker(store, &fakeMarkets{err: errors.New("upstream down")}, nil, "USD", zerolog.Nop())

	tr.Load(context.Background())

	assert.Equal(t, "upstream down", tr.Snapshot().Err)
}

func TestTracker_ListErrorKeepsEntries(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}}}
	tr := NewTracker(store, &fakeMarkets{}, nil, "USD", zerolog.Nop())
	tr.RefreshEntries(context.Background())

	store.mu.Lock()
	store.listErr = errors.New("flaky")
	store.mu.Unlock()
	tr.RefreshEntries(context.Background())

	assert.Len(t, tr.Snapshot().Entries, 1)
}

func TestTracker_Remove(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}, {ID: "w2", CoinID: "ethereum"}}}
	bus := &Bus{}
	var got []Change
	bus.Subscribe(func(c Change) { got = append(got, c) })

	tr := NewTracker(store, &fakeMarkets{}, bus, "USD", zerolog.Nop())
	tr.Load(context.Background())

	require.NoError(t, tr.Remove(context.Background(), "bitcoin"))

	assert.Equal(t, []string{"w1"}, store.removed, "entry id, not coin id, is deleted")
	st := tr.Snapshot()
	assert.Equal(t, []string{"ethereum"}, WatchedIDs(st.Entries))
	assert.Equal(t, []string{"ethereum"}, ids(st.Rows))
	assert.Equal(t, []Change{{Type: "removed", CoinID: "bitcoin", Source: SourceWatchlist}}, got)
}

func TestTracker_RemoveUnknownIsNoop(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}}}
	tr := NewTracker(store, &fakeMarkets{}, nil, "USD", zerolog.Nop())
	tr.Load(context.Background())

	require.NoError(t, tr.Remove(context.Background(), "dogecoin"))
	assert.Empty(t, store.removed)
}

func TestTracker_RemoveFailure(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}}, rmErr: &api.APIError{Status: 500, Message: "boom"}}
	tr := NewTracker(store, &fakeMarkets{}, nil, "USD", zerolog.Nop())
	tr.Load(context.Background())

	assert.Error(t, tr.Remove(context.Background(), "bitcoin"))
	st := tr.Snapshot()
	assert.Len(t, st.Entries, 1)
	assert.Equal(t, "boom", st.Err)
}

func TestTracker_FollowIgnoresOwnChanges(t *testing.T) {
	store := &fakeStore{}
	markets := &fakeMarkets{}
	bus := &Bus{}
	tr := NewTracker(store, markets, bus, "USD", zerolog.Nop())
	stop := tr.Follow(context.Background())
	defer stop()

	bus.Notify(Change{Type: "removed", CoinID: "x", Source: SourceWatchlist})
	assert.Empty(t, tr.Snapshot().Entries)

	store.mu.Lock()
	store.entries = []Entry{{ID: "w1", CoinID: "solana"}}
	store.mu.Unlock()
	bus.Notify(Change{Type: "added", CoinID: "solana", Source: "dashboard"})

	assert.Equal(t, []string{"solana"}, WatchedIDs(tr.Snapshot().Entries))
	assert.Equal(t, 1, markets.count())
}

func TestBus_Unsubscribe(t *testing.T) {
	var bus Bus
	n := 0
	unsub := bus.Subscribe(func(Change) { n++ })
	bus.Notify(Change{})
	unsub()
	bus.Notify(Change{})
	assert.Equal(t, 1, n)
}

func TestPoller_DropsResultsAfterStop(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}}}
	markets := &fakeMarkets{}
	tr := NewTracker(store, markets, nil, "USD", zerolog.Nop())

	p := NewPoller(tr, "@every 1h", zerolog.Nop())
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, []string{"bitcoin"}, ids(tr.Snapshot().Rows), "initial load on start")

	// A tick in flight when Stop lands must not overwrite state.
	gate := make(chan struct{})
	markets.mu.Lock()
	markets.gate = gate
	markets.mu.Unlock()
	store.mu.Lock()
	store.entries = []Entry{{ID: "w2", CoinID: "ethereum"}}
	store.mu.Unlock()
	tr.RefreshEntries(context.Background())

	done := make(chan struct{})
	go func() {
		p.tick(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return markets.count() == 2 }, time.Second, 5*time.Millisecond)

	p.Stop()
	close(gate)
	<-done

	assert.Equal(t, []string{"bitcoin"}, ids(tr.Snapshot().Rows))
}

func TestPoller_StopRacesStart(t *testing.T) {
	store := &fakeStore{entries: []Entry{{ID: "w1", CoinID: "bitcoin"}}}
	tr := NewTracker(store, &fakeMarkets{}, nil, "USD", zerolog.Nop())
	p := NewPoller(tr, "@every 1h", zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Start(context.Background()))
	}()
	go func() {
		defer wg.Done()
		p.Stop()
	}()
	wg.Wait()

	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.NotNil(t, p.cancel)
	assert.True(t, p.stopped.Load())
}

func TestPoller_BadSchedule(t *testing.T) {
	tr := NewTracker(&fakeStore{}, &fakeMarkets{}, nil, "USD", zerolog.Nop())
	p := NewPoller(tr, "not a schedule", zerolog.Nop())
	assert.Error(t, p.Start(context.Background()))
}

func TestClient_ListAndRemove(t *testing.T) {
	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
	})
	mux.HandleFunc("/api/watchlist/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"results":[{"id":"w1","coin":{"id":"bitcoin","symbol":"btc","name":"Bitcoin"}}]}`))
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"id":"w2","coin_id":"solana"}`))
		case http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := api.NewSession(srv.URL, api.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	sess.SetAccessToken("acc")
	client := NewClient(sess, zerolog.Nop())

	ctx := context.Background()
	entries, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bitcoin", entries[0].WatchedID())

	e, err := client.Add(ctx, "solana")
	require.NoError(t, err)
	assert.Equal(t, "solana", e.WatchedID())

	require.NoError(t, client.Remove(ctx, "w1"))
	assert.Equal(t, "/api/watchlist/w1/", deleted)
}

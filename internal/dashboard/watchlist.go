package dashboard

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sdibella/coinfolio/internal/coins"
	"github.com/sdibella/coinfolio/internal/currency"
	"github.com/sdibella/coinfolio/internal/errmsg"
	"github.com/sdibella/coinfolio/internal/journal"
	"github.com/sdibella/coinfolio/internal/toast"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

const sourceDashboard = "dashboard"

var sortColumns = []struct {
	key   watchlist.SortKey
	label string
}{
	{watchlist.SortMarketCap, "Market cap"},
	{watchlist.SortPrice, "Price"},
	{watchlist.SortChange, "24h"},
}

func parseView(q url.Values) watchlist.View {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	return watchlist.View{
		Query: strings.TrimSpace(q.Get("q")),
		Key:   watchlist.ParseSortKey(q.Get("sort")),
		Dir:   watchlist.ParseSortDir(q.Get("dir")),
		Page:  page,
	}
}

func viewHref(v watchlist.View) string {
	q := url.Values{}
	if v.Query != "" {
		q.Set("q", v.Query)
	}
	q.Set("sort", string(v.Key))
	q.Set("dir", string(v.Dir))
	q.Set("page", strconv.Itoa(v.Page))
	return "/watchlist?" + q.Encode()
}

// sortLinks toggles the direction of the active column and resets the
// others to descending.
func sortLinks(v watchlist.View) []SortLink {
	links := make([]SortLink, 0, len(sortColumns))
	for _, col := range sortColumns {
		next := watchlist.View{Query: v.Query, Key: col.key, Dir: watchlist.Desc, Page: 1}
		active := v.Key == col.key
		if active && v.Dir == watchlist.Desc {
			next.Dir = watchlist.Asc
		}
		links = append(links, SortLink{Label: col.label, Href: viewHref(next), Active: active, Dir: v.Dir})
	}
	return links
}

func watchRow(m coins.Market, ccy string) WatchRow {
	price := "—"
	if m.CurrentPrice != nil {
		price = currency.FormatMoney(*m.CurrentPrice, ccy)
	}
	return WatchRow{
		CoinID:    m.ID,
		Name:      m.Name,
		Symbol:    strings.ToUpper(m.Symbol),
		Image:     m.Image,
		Price:     price,
		MarketCap: currency.FormatAbbrev(m.MarketCap, ccy),
		Change1h:  watchlist.FormatChange(m.Ch1h),
		Change24h: watchlist.FormatChange(m.Ch24h),
		Change7d:  watchlist.FormatChange(m.Ch7d),
		Trend:     watchlist.TrendClass(m.Ch24h),
	}
}

func (s *Server) watchlistView(v watchlist.View) (WatchlistView, string) {
	state := s.tracker.Snapshot()
	page := watchlist.Apply(state.Rows, v)
	v.Page = page.Page

	out := WatchlistView{View: v, Page: page, Sorts: sortLinks(v)}
	for _, m := range page.Rows {
		out.Rows = append(out.Rows, watchRow(m, s.app.Config.Currency))
	}
	if page.Page > 1 {
		prev := v
		prev.Page--
		out.Prev = viewHref(prev)
	}
	if page.Page < page.TotalPages {
		next := v
		next.Page++
		out.Next = viewHref(next)
	}
	return out, state.Err
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	if st := s.tracker.Snapshot(); len(st.Entries) == 0 || r.URL.Query().Get("refresh") != "" {
		s.tracker.Load(r.Context())
	}
	if s.sessionEnded(w, r, nil) {
		return
	}
	view, errMsg := s.watchlistView(parseView(r.URL.Query()))
	s.render(w, http.StatusOK, "watchlist.html", "Watchlist", errMsg, view)
}

func (s *Server) handleWatchAdd(w http.ResponseWriter, r *http.Request) {
	coinID := strings.TrimSpace(r.FormValue("coin_id"))
	if coinID == "" {
		view, _ := s.watchlistView(parseView(nil))
		s.render(w, http.StatusUnprocessableEntity, "watchlist.html", "Watchlist", "Choose a coin to watch", view)
		return
	}

	if _, err := s.app.Watchlist.Add(r.Context(), coinID); err != nil {
		if s.sessionEnded(w, r, err) {
			return
		}
		view, _ := s.watchlistView(parseView(nil))
		s.render(w, http.StatusUnprocessableEntity, "watchlist.html", "Watchlist", errmsg.Friendly(err), view)
		return
	}

	s.app.Record(journal.NewWatchlist("added", coinID, sourceDashboard))
	// The tracker follows the bus and reloads on this change.
	s.app.Bus.Notify(watchlist.Change{Type: "added", CoinID: coinID, Source: sourceDashboard})
	s.app.Toasts.Show("Added "+coinID+" to watchlist", toast.Success, toast.DefaultDuration)
	http.Redirect(w, r, "/watchlist", http.StatusSeeOther)
}

func (s *Server) handleWatchRemove(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinID")
	back := parseView(r.URL.Query())

	if err := s.tracker.Remove(r.Context(), coinID); err != nil {
		if s.sessionEnded(w, r, err) {
			return
		}
		view, errMsg := s.watchlistView(back)
		s.render(w, http.StatusUnprocessableEntity, "watchlist.html", "Watchlist", errMsg, view)
		return
	}

	s.app.Record(journal.NewWatchlist("removed", coinID, watchlist.SourceWatchlist))
	s.app.Toasts.Show("Removed "+coinID+" from watchlist", toast.Info, toast.DefaultDuration)
	http.Redirect(w, r, viewHref(back), http.StatusSeeOther)
}

package dashboard

import (
	"sort"

	"github.com/sdibella/coinfolio/internal/journal"
)

const recentLimit = 20

// Analyzer aggregates journal events into the home page activity view.
type Analyzer struct {
	sims  map[string]*simAggregator
	order []string

	logins     int
	watchAdded int
	watchGone  int

	recent []ActivityRow
	last   string
}

// simAggregator accumulates journaled activity for a single simulation.
type simAggregator struct {
	id      string
	name    string
	created string
	buys    int
	sells   int
	deleted bool
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{sims: make(map[string]*simAggregator)}
}

// ProcessEvents folds events, oldest first, into the aggregates.
func (a *Analyzer) ProcessEvents(events []journal.Event) {
	for _, e := range events {
		switch {
		case e.Session != nil:
			a.processSession(*e.Session)
		case e.Simulation != nil:
			a.processSimulation(*e.Simulation)
		case e.Position != nil:
			a.processPosition(*e.Position)
		case e.Watchlist != nil:
			a.processWatchlist(*e.Watchlist)
		}
	}
}

func (a *Analyzer) processSession(s journal.Session) {
	if s.Action == "login" {
		a.logins++
	}
	a.note(s.Time, journal.TypeSession, s.Action, s.Email)
}

func (a *Analyzer) processSimulation(s journal.Simulation) {
	agg := a.sim(s.SimulationID)
	switch s.Action {
	case "created":
		agg.created = s.Time
		if s.Name != "" {
			agg.name = s.Name
		}
	case "deleted":
		agg.deleted = true
	}
	subject := s.Name
	if subject == "" {
		subject = s.SimulationID
	}
	a.note(s.Time, journal.TypeSimulation, s.Action, subject)
}

func (a *Analyzer) processPosition(p journal.Position) {
	if p.Action == "added" && p.SimulationID != "" {
		agg := a.sim(p.SimulationID)
		if p.Side == "SELL" {
			agg.sells++
		} else {
			agg.buys++
		}
	}
	subject := p.CoinID
	if subject == "" {
		subject = p.TransactionID
	}
	a.note(p.Time, journal.TypePosition, p.Action, subject)
}

func (a *Analyzer) processWatchlist(w journal.Watchlist) {
	switch w.Action {
	case "added":
		a.watchAdded++
	case "removed":
		a.watchGone++
	}
	a.note(w.Time, journal.TypeWatchlist, w.Action, w.CoinID)
}

func (a *Analyzer) sim(id string) *simAggregator {
	agg, ok := a.sims[id]
	if !ok {
		agg = &simAggregator{id: id}
		a.sims[id] = agg
		a.order = append(a.order, id)
	}
	return agg
}

func (a *Analyzer) note(t, kind, action, subject string) {
	a.recent = append(a.recent, ActivityRow{Time: t, Kind: kind, Action: action, Subject: subject})
	if t > a.last {
		a.last = t
	}
}

// Summary returns totals plus the most recent rows, newest first.
func (a *Analyzer) Summary() ActivitySummary {
	s := ActivitySummary{
		Logins:           a.logins,
		WatchlistAdded:   a.watchAdded,
		WatchlistRemoved: a.watchGone,
		LastActivity:     a.last,
	}

	for _, id := range a.order {
		agg := a.sims[id]
		if agg.created != "" {
			s.SimulationsCreated++
		}
		if agg.deleted {
			s.SimulationsDeleted++
		}
		s.PositionsAdded += agg.buys + agg.sells
	}

	rows := make([]ActivityRow, len(a.recent))
	copy(rows, a.recent)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time > rows[j].Time
	})
	if len(rows) > recentLimit {
		rows = rows[:recentLimit]
	}
	s.Recent = rows
	return s
}

// Simulations returns per-simulation activity for simulations that still
// exist, in first-seen order.
func (a *Analyzer) Simulations() []SimulationActivity {
	out := make([]SimulationActivity, 0, len(a.order))
	for _, id := range a.order {
		agg := a.sims[id]
		if agg.deleted {
			continue
		}
		out = append(out, SimulationActivity{
			ID:      agg.id,
			Name:    agg.name,
			Created: agg.created,
			Buys:    agg.buys,
			Sells:   agg.sells,
		})
	}
	return out
}

package dashboard

import (
	"github.com/sdibella/coinfolio/internal/accounts"
	"github.com/sdibella/coinfolio/internal/coins"
	"github.com/sdibella/coinfolio/internal/portfolio"
	"github.com/sdibella/coinfolio/internal/signup"
	"github.com/sdibella/coinfolio/internal/simulations"
	"github.com/sdibella/coinfolio/internal/toast"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

// View models handed to the templates

// Page wraps every rendered template.
type Page struct {
	Title         string
	Authenticated bool
	Currency      string
	Toasts        []toast.Toast
	Error         string
	Data          any
}

type ActivitySummary struct {
	Logins             int
	SimulationsCreated int
	SimulationsDeleted int
	PositionsAdded     int
	WatchlistAdded     int
	WatchlistRemoved   int
	LastActivity       string
	Recent             []ActivityRow
}

type ActivityRow struct {
	Time    string
	Kind    string // journal event type
	Action  string
	Subject string
}

type SimulationActivity struct {
	ID      string
	Name    string
	Created string
	Buys    int
	Sells   int
}

type IndexView struct {
	Profile     *accounts.Profile
	Activity    ActivitySummary
	Simulations []SimulationActivity
}

type SignupView struct {
	Email       string
	DisplayName string
	Checks      []signup.Check
	Touched     bool
}

type LoginView struct {
	Email string
}

type WatchRow struct {
	CoinID    string
	Name      string
	Symbol    string
	Image     string
	Price     string
	MarketCap string
	Change1h  string
	Change24h string
	Change7d  string
	Trend     string // css class for the 24h change
}

type SortLink struct {
	Label  string
	Href   string
	Active bool
	Dir    watchlist.SortDir
}

type WatchlistView struct {
	View  watchlist.View
	Page  watchlist.Page
	Rows  []WatchRow
	Sorts []SortLink
	Prev  string // "" on the first page
	Next  string // "" on the last page
}

type PositionView struct {
	ID       string
	Type     simulations.PositionType
	Coin     string
	Quantity string
	Price    string
	Time     string
}

type SimulationDetail struct {
	Simulation simulations.Simulation
	Positions  []PositionView
	Invested   string
	Current    string
	ProfitLoss string
	Percent    string
	Trend      string
	Path       string
	Latest     string
	Width      int
	Height     int
}

type SimulationsView struct {
	Simulations []simulations.Simulation
	SelectedID  string
	Selected    *SimulationDetail
	Coins       []coins.Coin
	Today       string
}

// SeriesResponse is the JSON body of GET /api/series/{id}.
type SeriesResponse struct {
	Points []portfolio.Point `json:"points"`
	Path   string            `json:"path"`
	Last   float64           `json:"last"`
}

package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sdibella/coinfolio/internal/api"
	"github.com/sdibella/coinfolio/internal/currency"
	"github.com/sdibella/coinfolio/internal/errmsg"
	"github.com/sdibella/coinfolio/internal/journal"
	"github.com/sdibella/coinfolio/internal/portfolio"
	"github.com/sdibella/coinfolio/internal/simulations"
	"github.com/sdibella/coinfolio/internal/toast"
)

const (
	MsgSimulationCreated = "Simulation created successfully"
	MsgSimulationDeleted = "Simulation deleted"
	MsgPositionAdded     = "Position added"
	MsgPositionDeleted   = "Transaction deleted"
)

// serverCurrency is the currency the API reports amounts in.
const serverCurrency = "USD"

// loadSimulation fetches a simulation and makes sure its positions are
// populated.
func (s *Server) loadSimulation(ctx context.Context, id string) (simulations.Simulation, error) {
	sim, err := s.app.Simulations.Get(ctx, id)
	if err != nil {
		return sim, err
	}
	if len(sim.Positions) == 0 {
		positions, err := s.app.Simulations.Positions(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("simulation", id).Msg("loading positions")
		} else {
			sim.Positions = positions
		}
	}
	return sim, nil
}

func (s *Server) money(ctx context.Context, d *decimal.Decimal) string {
	if d == nil {
		return currency.FormatDecimal(nil, s.app.Config.Currency)
	}
	v := s.app.Currency.Convert(ctx, *d, serverCurrency, s.app.Config.Currency)
	return currency.FormatDecimal(&v, s.app.Config.Currency)
}

func (s *Server) detail(ctx context.Context, sim simulations.Simulation) *SimulationDetail {
	d := &SimulationDetail{
		Simulation: sim,
		Invested:   s.money(ctx, sim.Invested),
		Current:    s.money(ctx, sim.CurrentValue),
		Width:      portfolio.SparklineWidth,
		Height:     portfolio.SparklineHeight,
	}

	for _, p := range sim.Positions {
		price := p.Price
		d.Positions = append(d.Positions, PositionView{
			ID:       p.ID,
			Type:     p.Type,
			Coin:     strings.ToUpper(p.Label()),
			Quantity: p.Quantity.String(),
			Price:    s.money(ctx, &price),
			Time:     p.Time,
		})
	}

	invested, current := decimal.Zero, decimal.Zero
	if sim.Invested != nil {
		invested = *sim.Invested
	}
	if sim.CurrentValue != nil {
		current = *sim.CurrentValue
	}
	pl, pct := portfolio.ProfitLoss(invested, current)
	d.ProfitLoss = s.money(ctx, &pl)
	d.Percent = pct
	switch pl.Sign() {
	case 1:
		d.Trend = "text-success"
	case -1:
		d.Trend = "text-error"
	}

	points, err := portfolio.Series(ctx, s.app.Coins, sim, s.app.Config.Currency, s.now())
	if err != nil {
		s.log.Warn().Err(err).Str("simulation", sim.ID).Msg("building value series")
		return d
	}
	path, last := portfolio.Sparkline(points, portfolio.SparklineWidth, portfolio.SparklineHeight)
	d.Path = path
	if path != "" {
		d.Latest = currency.FormatMoney(last, s.app.Config.Currency)
	}
	return d
}

// simulationsView lists simulations and details selectedID, or the first
// simulation when selectedID is "".
func (s *Server) simulationsView(ctx context.Context, selectedID string) (SimulationsView, error) {
	view := SimulationsView{
		Today: s.now().Format("2006-01-02"),
		Coins: s.app.Coins.Suggestions(ctx, ""),
	}

	sims, err := s.app.Simulations.List(ctx)
	if err != nil {
		return view, err
	}
	view.Simulations = sims

	if selectedID == "" && len(sims) > 0 {
		selectedID = sims[0].ID
	}
	if selectedID == "" {
		return view, nil
	}
	view.SelectedID = selectedID

	sim, err := s.loadSimulation(ctx, selectedID)
	if err != nil {
		return view, err
	}
	view.Selected = s.detail(ctx, sim)
	return view, nil
}

func (s *Server) renderSimulations(w http.ResponseWriter, r *http.Request, status int, selectedID, errMsg string) {
	view, err := s.simulationsView(r.Context(), selectedID)
	if s.sessionEnded(w, r, err) {
		return
	}
	if err != nil && errMsg == "" {
		errMsg = errmsg.Friendly(err)
	}
	s.render(w, status, "simulations.html", "Simulations", errMsg, view)
}

func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	s.renderSimulations(w, r, http.StatusOK, "", "")
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	s.renderSimulations(w, r, http.StatusOK, chi.URLParam(r, "id"), "")
}

func (s *Server) handleSimulationCreate(w http.ResponseWriter, r *http.Request) {
	req := simulations.CreateRequest{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		StartDate:   strings.TrimSpace(r.FormValue("start_date")),
	}
	if req.StartDate == "" {
		req.StartDate = s.now().Format("2006-01-02")
	}

	sim, err := s.app.Simulations.Create(r.Context(), req)
	if s.sessionEnded(w, r, err) {
		return
	}
	if err != nil {
		s.renderSimulations(w, r, http.StatusUnprocessableEntity, "", errmsg.Friendly(err))
		return
	}

	s.app.Record(journal.NewSimulation("created", sim.ID, sim.Name, sim.StartDate))
	s.app.Toasts.Show(MsgSimulationCreated, toast.Success, toast.DefaultDuration)
	http.Redirect(w, r, "/simulations/"+sim.ID, http.StatusSeeOther)
}

func (s *Server) handleSimulationDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.app.Simulations.Delete(r.Context(), id); err != nil {
		if s.sessionEnded(w, r, err) {
			return
		}
		s.renderSimulations(w, r, http.StatusUnprocessableEntity, id, errmsg.Friendly(err))
		return
	}

	s.app.Record(journal.NewSimulation("deleted", id, "", ""))
	s.app.Toasts.Show(MsgSimulationDeleted, toast.Info, toast.DefaultDuration)
	http.Redirect(w, r, "/simulations", http.StatusSeeOther)
}

func (s *Server) handlePositionAdd(w http.ResponseWriter, r *http.Request) {
	simID := chi.URLParam(r, "id")

	qty, err := currency.ParseAmount(r.FormValue("quantity"))
	if err != nil {
		s.renderSimulations(w, r, http.StatusUnprocessableEntity, simID, "Quantity must be a number")
		return
	}
	req := simulations.PositionRequest{
		CoinID:   strings.TrimSpace(r.FormValue("coin_id")),
		Type:     simulations.PositionType(strings.ToUpper(r.FormValue("type"))),
		Quantity: qty,
	}
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := currency.ParseAmount(raw)
		if err != nil {
			s.renderSimulations(w, r, http.StatusUnprocessableEntity, simID, "Price must be a number")
			return
		}
		req.Price = &price
	}

	pos, err := s.app.Simulations.AddPosition(r.Context(), simID, req)
	if s.sessionEnded(w, r, err) {
		return
	}
	if err != nil {
		s.renderSimulations(w, r, http.StatusUnprocessableEntity, simID, errmsg.Friendly(err))
		return
	}

	price := ""
	if req.Price != nil {
		price = req.Price.String()
	}
	s.app.Record(journal.NewPosition("added", simID, pos.ID, req.CoinID, string(req.Type), req.Quantity.String(), price))
	s.app.Toasts.Show(MsgPositionAdded, toast.Success, toast.DefaultDuration)
	http.Redirect(w, r, "/simulations/"+simID, http.StatusSeeOther)
}

func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")
	simID := strings.TrimSpace(r.FormValue("simulation_id"))

	if err := s.app.Simulations.DeleteTransaction(r.Context(), txID); err != nil {
		if s.sessionEnded(w, r, err) {
			return
		}
		s.renderSimulations(w, r, http.StatusUnprocessableEntity, simID, errmsg.Friendly(err))
		return
	}

	s.app.Record(journal.NewPosition("deleted", simID, txID, "", "", "", ""))
	s.app.Toasts.Show(MsgPositionDeleted, toast.Info, toast.DefaultDuration)
	if simID == "" {
		http.Redirect(w, r, "/simulations", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/simulations/"+simID, http.StatusSeeOther)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	sim, err := s.loadSimulation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, api.ErrSessionExpired) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": errmsg.Friendly(err)})
		return
	}
	points, err := portfolio.Series(r.Context(), s.app.Coins, sim, s.app.Config.Currency, s.now())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	path, last := portfolio.Sparkline(points, portfolio.SparklineWidth, portfolio.SparklineHeight)
	writeJSON(w, http.StatusOK, SeriesResponse{Points: points, Path: path, Last: last})
}

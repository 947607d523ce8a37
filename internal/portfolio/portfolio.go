// Package portfolio rebuilds a simulation's value over time from its
// positions and per-coin market charts.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sdibella/coinfolio/internal/coins"
	"github.com/sdibella/coinfolio/internal/simulations"
)

const (
	MinWindowDays = 7
	MaxWindowDays = 90

	SparklineWidth  = 520
	SparklineHeight = 140
)

// ChartSource returns a coin's market chart, nil when unavailable.
type ChartSource interface {
	MarketChart(ctx context.Context, coinID, vsCurrency string, days int) *coins.MarketChart
}

// Point is one value sample: T is unix millis.
type Point struct {
	T float64 `json:"t"`
	V float64 `json:"v"`
}

// Holding is the net quantity held of one coin.
type Holding struct {
	CoinID   string
	Quantity decimal.Decimal
}

// NetHoldings sums signed quantities per coin, in first-seen order, and
// keeps only coins with a positive net. Positions without a coin are skipped.
func NetHoldings(positions []simulations.Position) []Holding {
	var order []string
	totals := make(map[string]decimal.Decimal)
	for _, p := range positions {
		id := p.AggregationID()
		if id == "" {
			continue
		}
		if _, seen := totals[id]; !seen {
			order = append(order, id)
		}
		totals[id] = totals[id].Add(p.SignedQuantity())
	}

	out := make([]Holding, 0, len(order))
	for _, id := range order {
		if q := totals[id]; q.IsPositive() {
			out = append(out, Holding{CoinID: id, Quantity: q})
		}
	}
	return out
}

// WindowDays is the chart window for a simulation started at start:
// whole days elapsed rounded up, clamped to [7, 90].
func WindowDays(start, now time.Time) int {
	days := int(math.Ceil(now.Sub(start).Hours() / 24))
	if days < MinWindowDays {
		return MinWindowDays
	}
	if days > MaxWindowDays {
		return MaxWindowDays
	}
	return days
}

// ParseStartDate reads a simulation start date ("2006-01-02", or RFC 3339)
// as UTC.
func ParseStartDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing start date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Combine sums price*quantity per index. The first chart supplies the
// timestamps; the other charts are read at the same index with no
// realignment, and a missing point contributes zero.
func Combine(charts []*coins.MarketChart, holdings []Holding) []Point {
	if len(charts) == 0 || charts[0] == nil {
		return []Point{}
	}
	qty := make([]float64, len(holdings))
	for i, h := range holdings {
		qty[i], _ = h.Quantity.Float64()
	}

	base := charts[0].Prices
	out := make([]Point, 0, len(base))
	for i := range base {
		v := 0.0
		for j, c := range charts {
			if c == nil || j >= len(qty) || i >= len(c.Prices) {
				continue
			}
			v += c.Prices[i][1] * qty[j]
		}
		out = append(out, Point{T: base[i][0], V: v})
	}
	return out
}

// Series fetches a chart per held coin and combines them. No positive
// holdings yields an empty series.
func Series(ctx context.Context, src ChartSource, sim simulations.Simulation, vsCurrency string, now time.Time) ([]Point, error) {
	holdings := NetHoldings(sim.Positions)
	if len(holdings) == 0 {
		return []Point{}, nil
	}

	start, err := ParseStartDate(sim.StartDate)
	if err != nil {
		return nil, err
	}
	days := WindowDays(start, now)
	if vsCurrency == "" {
		vsCurrency = coins.DefaultCurrency
	}
	vsCurrency = strings.ToLower(vsCurrency)

	charts := make([]*coins.MarketChart, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			charts[i] = src.MarketChart(gctx, h.CoinID, vsCurrency, days)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Combine(charts, holdings), nil
}

// ProfitLoss returns current-invested and the percentage as "12.34%", or
// "--" when nothing was invested.
func ProfitLoss(invested, current decimal.Decimal) (decimal.Decimal, string) {
	pl := current.Sub(invested)
	if !invested.IsPositive() {
		return pl, "--"
	}
	pct := pl.Div(invested).Mul(decimal.NewFromInt(100))
	return pl, pct.StringFixed(2) + "%"
}

// Sparkline renders points as SVG path data scaled into w x h with a one
// pixel inset, and returns the latest value. Empty input yields "".
func Sparkline(points []Point, w, h float64) (string, float64) {
	if len(points) == 0 {
		return "", 0
	}
	minX, maxX := points[0].T, points[0].T
	minY, maxY := points[0].V, points[0].V
	for _, p := range points[1:] {
		minX, maxX = math.Min(minX, p.T), math.Max(maxX, p.T)
		minY, maxY = math.Min(minY, p.V), math.Max(maxY, p.V)
	}
	spanX := maxX - minX
	if spanX == 0 {
		spanX = 1
	}
	spanY := maxY - minY
	if spanY == 0 {
		spanY = 1
	}

	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteByte('L')
		} else {
			b.WriteByte('M')
		}
		px := (p.T-minX)/spanX*(w-2) + 1
		py := h - ((p.V-minY)/spanY*(h-2) + 1)
		fmt.Fprintf(&b, "%s,%s", trimFloat(px), trimFloat(py))
	}
	return b.String(), points[len(points)-1].V
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.3f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

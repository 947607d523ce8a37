package watchlist

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sdibella/coinfolio/internal/coins"
)

// PageSize is the number of rows per watchlist page.
const PageSize = 10

type SortKey string

const (
	SortMarketCap SortKey = "market_cap"
	SortPrice     SortKey = "price"
	SortChange    SortKey = "change" // 24h
)

type SortDir string

const (
	Desc SortDir = "desc"
	Asc  SortDir = "asc"
)

// ParseSortKey maps form input to a key, defaulting to market cap.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortPrice, SortChange:
		return SortKey(s)
	}
	return SortMarketCap
}

// ParseSortDir maps form input to a direction, defaulting to descending.
func ParseSortDir(s string) SortDir {
	if SortDir(s) == Asc {
		return Asc
	}
	return Desc
}

// View is the table state chosen by the user.
type View struct {
	Query string
	Key   SortKey
	Dir   SortDir
	Page  int
}

// Page is one rendered slice of the table.
type Page struct {
	Rows       []coins.Market
	Page       int
	TotalPages int
	Total      int // rows after filtering
}

// Filter keeps rows whose name or symbol contains q, case-insensitively.
// A blank q keeps every row.
func Filter(rows []coins.Market, q string) []coins.Market {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	out := make([]coins.Market, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.Symbol), q) {
			out = append(out, r)
		}
	}
	return out
}

func sortValue(r coins.Market, key SortKey) float64 {
	switch key {
	case SortPrice:
		return valueOr(r.CurrentPrice, 0)
	case SortChange:
		return valueOr(r.Ch24h, math.Inf(-1))
	default:
		return valueOr(r.MarketCap, 0)
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Sort returns a sorted copy of rows. Missing prices and market caps sort
// as zero, a missing 24h change sorts below every value. Ties keep their
// input order.
func Sort(rows []coins.Market, key SortKey, dir SortDir) []coins.Market {
	out := make([]coins.Market, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortValue(out[i], key), sortValue(out[j], key)
		if dir == Asc {
			return a < b
		}
		return a > b
	})
	return out
}

// TotalPages is ceil(n / PageSize), at least 1.
func TotalPages(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PageSize - 1) / PageSize
}

// Paginate returns the rows of page (1-based), clamped into range.
func Paginate(rows []coins.Market, page int) Page {
	total := TotalPages(len(rows))
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}
	return Page{Rows: rows[start:end], Page: page, TotalPages: total, Total: len(rows)}
}

// Apply runs filter, sort and paginate in that order.
func Apply(rows []coins.Market, v View) Page {
	if v.Key == "" {
		v.Key = SortMarketCap
	}
	if v.Dir == "" {
		v.Dir = Desc
	}
	return Paginate(Sort(Filter(rows, v.Query), v.Key, v.Dir), v.Page)
}

// FormatChange renders a percentage change as "+1.23%", "—" when unknown.
func FormatChange(v *float64) string {
	if v == nil {
		return "—"
	}
	sign := ""
	if *v >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, *v)
}

// TrendClass is the CSS class for a change value.
func TrendClass(v *float64) string {
	switch {
	case v == nil:
		return ""
	case *v >= 0:
		return "text-success"
	default:
		return "text-error"
	}
}

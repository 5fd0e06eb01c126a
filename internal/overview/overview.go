// Package overview aggregates a user's trades into dashboard statistics.
package overview

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

// Range selects the time window of an overview.
type Range string

const (
	Range7D  Range = "7d"
	Range30D Range = "30d"
	RangeMTD Range = "month"
	RangeYTD Range = "ytd"
	RangeAll Range = "all"
)

const (
	blankKey  = "-"
	topSymbol = 5
)

var hundred = decimal.NewFromInt(100)

// ParseRange maps s onto a Range. Unknown values yield Range30D.
func ParseRange(s string) Range {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case Range7D, Range30D, RangeMTD, RangeYTD, RangeAll:
		return r
	default:
		return Range30D
	}
}

// Start returns the inclusive lower bound for r, or the zero time for all.
func (r Range) Start(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	switch r {
	case Range7D:
		return local.AddDate(0, 0, -7)
	case RangeMTD:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	case RangeYTD:
		return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
	case RangeAll:
		return time.Time{}
	default:
		return local.AddDate(0, 0, -30)
	}
}

// KPIs are the headline numbers of an overview.
type KPIs struct {
	TotalPL     float64 `json:"totalPL"`
	WinRate     float64 `json:"winRate"`
	TradesCount int     `json:"tradesCount"`
	AvgPL       float64 `json:"avgPL"`
}

// Point is one sample of a time series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Row is one line of a per-symbol or per-timeframe breakdown.
type Row struct {
	Key     string  `json:"key"`
	Trades  int     `json:"trades"`
	WinRate float64 `json:"winRate"`
	TotalPL float64 `json:"totalPL"`
}

// Overview is the full dashboard payload.
type Overview struct {
	Range           Range   `json:"range"`
	KPIs            KPIs    `json:"kpis"`
	EquityCurve     []Point `json:"equityCurve"`
	ProfitByDay     []Point `json:"profitByDay"`
	InstrumentTable []Row   `json:"instrumentTable"`
	TimeframeTable  []Row   `json:"timeframeTable"`
}

type agg struct {
	trades, closed, wins int
	pl                   decimal.Decimal
}

func (a *agg) add(t trade.Trade) {
	a.trades++
	if !t.IsClosed() {
		return
	}
	a.closed++
	a.pl = a.pl.Add(t.ProfitLoss.Decimal)
	if t.IsWin() {
		a.wins++
	}
}

// Compute aggregates trades created at or after r.Start(now, loc).
func Compute(r Range, trades []trade.Trade, now time.Time, loc *time.Location) Overview {
	if loc == nil {
		loc = time.UTC
	}
	start := r.Start(now, loc)

	var inRange, closed []trade.Trade
	for _, t := range trades {
		if !start.IsZero() && t.CreatedAt.Before(start) {
			continue
		}
		inRange = append(inRange, t)
		if t.IsClosed() {
			closed = append(closed, t)
		}
	}

	out := Overview{
		Range:           r,
		EquityCurve:     []Point{},
		ProfitByDay:     []Point{},
		InstrumentTable: []Row{},
		TimeframeTable:  []Row{},
	}

	total := decimal.Zero
	wins := 0
	for _, t := range closed {
		total = total.Add(t.ProfitLoss.Decimal)
		if t.IsWin() {
			wins++
		}
	}
	out.KPIs.TradesCount = len(inRange)
	out.KPIs.TotalPL = round(total, 2)
	if n := len(closed); n > 0 {
		out.KPIs.WinRate = percent(wins, n)
		out.KPIs.AvgPL = round(total.Div(decimal.NewFromInt(int64(n))), 2)
	}

	sort.SliceStable(closed, func(i, j int) bool {
		if closed[i].CreatedAt.Equal(closed[j].CreatedAt) {
			return closed[i].ID < closed[j].ID
		}
		return closed[i].CreatedAt.Before(closed[j].CreatedAt)
	})
	cum := decimal.Zero
	byDay := map[string]decimal.Decimal{}
	for _, t := range closed {
		cum = cum.Add(t.ProfitLoss.Decimal)
		out.EquityCurve = append(out.EquityCurve, Point{
			Date:  t.CreatedAt.UTC().Format(time.RFC3339Nano),
			Value: round(cum, 2),
		})
		day := t.CreatedAt.In(loc).Format(time.DateOnly)
		byDay[day] = byDay[day].Add(t.ProfitLoss.Decimal)
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		out.ProfitByDay = append(out.ProfitByDay, Point{Date: d, Value: round(byDay[d], 2)})
	}

	bySymbol := map[string]*agg{}
	byTimeframe := map[string]*agg{}
	for _, t := range inRange {
		bucket(bySymbol, t.Symbol).add(t)
		bucket(byTimeframe, t.Timeframe).add(t)
	}
	out.InstrumentTable = rows(bySymbol)
	if len(out.InstrumentTable) > topSymbol {
		out.InstrumentTable = out.InstrumentTable[:topSymbol]
	}
	out.TimeframeTable = rows(byTimeframe)

	return out
}

func bucket(m map[string]*agg, key string) *agg {
	key = strings.TrimSpace(key)
	if key == "" {
		key = blankKey
	}
	a, ok := m[key]
	if !ok {
		a = &agg{pl: decimal.Zero}
		m[key] = a
	}
	return a
}

// rows sorts by total P/L descending, then key ascending.
func rows(m map[string]*agg) []Row {
	type keyed struct {
		key string
		a   *agg
	}
	list := make([]keyed, 0, len(m))
	for k, a := range m {
		list = append(list, keyed{k, a})
	}
	sort.Slice(list, func(i, j int) bool {
		pi, pj := list[i].a.pl.Round(2), list[j].a.pl.Round(2)
		if c := pi.Cmp(pj); c != 0 {
			return c > 0
		}
		return list[i].key < list[j].key
	})

	out := make([]Row, 0, len(list))
	for _, k := range list {
		row := Row{Key: k.key, Trades: k.a.trades, TotalPL: round(k.a.pl, 2)}
		if k.a.closed > 0 {
			row.WinRate = percent(k.a.wins, k.a.closed)
		}
		out = append(out, row)
	}
	return out
}

func percent(part, whole int) float64 {
	return round(decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))), 1)
}

func round(d decimal.Decimal, places int32) float64 {
	return d.Round(places).InexactFloat64()
}

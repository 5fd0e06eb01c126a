// Package calendar lays out trades on day, week and month grids.
//
// Weeks start on Monday. Days are stepped by calendar date in the configured
// location, so daylight-saving transitions never skip or repeat a cell.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

// View is the calendar granularity.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// ChipsPerCell is the number of trades shown in a month cell.
const ChipsPerCell = 3

// ErrInvalidAnchor is returned for anchors that are neither RFC 3339 nor
// YYYY-MM-DD.
var ErrInvalidAnchor = errors.New("invalid calendar anchor")

// ParseView maps s onto a View. Unknown values yield ViewMonth.
func ParseView(s string) View {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewDay, ViewWeek, ViewMonth:
		return v
	default:
		return ViewMonth
	}
}

// ParseAnchor parses an RFC 3339 timestamp or a YYYY-MM-DD date, the latter
// as local midnight in loc. An empty string yields now.
func ParseAnchor(s string, now time.Time, loc *time.Location) (time.Time, error) {
	loc = orUTC(loc)
	s = strings.TrimSpace(s)
	if s == "" {
		return now.In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidAnchor, s)
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(orUTC(loc))
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's local day.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(orUTC(loc))
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfWeek returns Monday midnight of t's week.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// EndOfWeek returns the last millisecond of the Sunday ending t's week.
func EndOfWeek(t time.Time, loc *time.Location) time.Time {
	return EndOfDay(StartOfWeek(t, loc).AddDate(0, 0, 6), loc)
}

// MonthGrid returns the Monday on or before the first of anchor's month and
// the end of the Sunday on or after its last day.
func MonthGrid(anchor time.Time, loc *time.Location) (start, end time.Time) {
	a := anchor.In(orUTC(loc))
	first := time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, a.Location())
	last := first.AddDate(0, 1, -1)
	return StartOfWeek(first, loc), EndOfWeek(last, loc)
}

// Window returns the inclusive bounds of view around anchor.
func Window(view View, anchor time.Time, loc *time.Location) (start, end time.Time) {
	switch view {
	case ViewDay:
		return StartOfDay(anchor, loc), EndOfDay(anchor, loc)
	case ViewWeek:
		return StartOfWeek(anchor, loc), EndOfWeek(anchor, loc)
	default:
		return MonthGrid(anchor, loc)
	}
}

// Chip is the compact projection of a trade shown on the calendar.
type Chip struct {
	ID         string   `json:"id"`
	CreatedAt  string   `json:"createdAt"`
	Symbol     string   `json:"symbol"`
	Position   *string  `json:"position"`
	ProfitLoss *float64 `json:"profitLoss"`
	Timeframe  *string  `json:"timeframe"`
}

// ChipOf projects t.
func ChipOf(t trade.Trade) Chip {
	return Chip{
		ID:         t.ID,
		CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		Symbol:     t.Symbol,
		Position:   optional(t.Position),
		ProfitLoss: t.ProfitLossFloat(),
		Timeframe:  optional(t.Timeframe),
	}
}

// Range is the payload of a day, week or month range query.
type Range struct {
	View   View   `json:"view"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Anchor string `json:"anchor"`
	Trades []Chip `json:"trades"`
}

// RangeView returns the trades inside view's window, oldest first.
func RangeView(view View, anchor time.Time, trades []trade.Trade, loc *time.Location) Range {
	start, end := Window(view, anchor, loc)
	out := Range{
		View:   view,
		Start:  formatTime(start),
		End:    formatTime(end),
		Anchor: formatTime(anchor),
		Trades: []Chip{},
	}
	for _, t := range within(trades, start, end) {
		out.Trades = append(out.Trades, ChipOf(t))
	}
	return out
}

// Cell is one day of the month grid.
type Cell struct {
	Date    string `json:"date"`
	InMonth bool   `json:"inMonth"`
	Chips   []Chip `json:"chips"`
	More    int    `json:"more"`
}

// MonthView is the payload of a month grid query.
type MonthView struct {
	Anchor    string `json:"anchor"`
	GridStart string `json:"gridStart"`
	GridEnd   string `json:"gridEnd"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	Cells     []Cell `json:"cells"`
}

// Month builds the grid for anchor's month. Month is 1-12.
func Month(anchor time.Time, trades []trade.Trade, loc *time.Location) MonthView {
	loc = orUTC(loc)
	a := anchor.In(loc)
	start, end := MonthGrid(a, loc)

	byDay := map[string][]trade.Trade{}
	for _, t := range within(trades, start, end) {
		key := t.CreatedAt.In(loc).Format(time.DateOnly)
		byDay[key] = append(byDay[key], t)
	}

	out := MonthView{
		Anchor:    formatTime(a),
		GridStart: formatTime(start),
		GridEnd:   formatTime(end),
		Month:     int(a.Month()),
		Year:      a.Year(),
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		dayTrades := byDay[key]
		cell := Cell{
			Date:    key,
			InMonth: day.Month() == a.Month(),
			Chips:   []Chip{},
		}
		for i, t := range dayTrades {
			if i == ChipsPerCell {
				cell.More = len(dayTrades) - ChipsPerCell
				break
			}
			cell.Chips = append(cell.Chips, ChipOf(t))
		}
		out.Cells = append(out.Cells, cell)
	}
	return out
}

// within returns the trades in [start, end], oldest first.
func within(trades []trade.Trade, start, end time.Time) []trade.Trade {
	var out []trade.Trade
	for _, t := range trades {
		if t.CreatedAt.Before(start) || t.CreatedAt.After(end) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

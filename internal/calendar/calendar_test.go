package calendar

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

func at(y int, m time.Month, d, h int, loc *time.Location) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, loc)
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestParseView(t *testing.T) {
	assert.Equal(t, ViewDay, ParseView("day"))
	assert.Equal(t, ViewWeek, ParseView("WEEK"))
	assert.Equal(t, ViewMonth, ParseView(""))
	assert.Equal(t, ViewMonth, ParseView("year"))
}

func TestParseAnchor(t *testing.T) {
	loc := newYork(t)
	now := at(2025, 3, 14, 12, time.UTC)

	got, err := ParseAnchor("", now, loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))

	got, err = ParseAnchor("2025-03-09", now, loc)
	require.NoError(t, err)
	assert.Equal(t, at(2025, 3, 9, 0, loc), got)

	got, err = ParseAnchor("2025-03-09T10:00:00Z", now, loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(at(2025, 3, 9, 10, time.UTC)))

	_, err = ParseAnchor("next tuesday", now, loc)
	assert.ErrorIs(t, err, ErrInvalidAnchor)
}

func TestWindow(t *testing.T) {
	anchor := at(2025, 3, 13, 15, time.UTC) // a Thursday

	start, end := Window(ViewDay, anchor, time.UTC)
	assert.Equal(t, at(2025, 3, 13, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 13, 23, 59, 59, 999_000_000, time.UTC), end)

	start, end = Window(ViewWeek, anchor, time.UTC)
	assert.Equal(t, at(2025, 3, 10, 0, time.UTC), start)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, time.Date(2025, 3, 16, 23, 59, 59, 999_000_000, time.UTC), end)

	start, end = Window(ViewMonth, anchor, time.UTC)
	assert.Equal(t, at(2025, 2, 24, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 6, 23, 59, 59, 999_000_000, time.UTC), end)
}

func TestStartOfWeek_Sunday(t *testing.T) {
	sunday := at(2025, 3, 16, 22, time.UTC)
	assert.Equal(t, at(2025, 3, 10, 0, time.UTC), StartOfWeek(sunday, time.UTC))
}

func TestMonth_CellCounts(t *testing.T) {
	tests := []struct {
		anchor time.Time
		cells  int
	}{
		{at(2021, 2, 10, 0, time.UTC), 28},
		{at(2025, 3, 1, 0, time.UTC), 42},
		{at(2025, 4, 15, 0, time.UTC), 35},
	}
	for _, tt := range tests {
		t.Run(tt.anchor.Format("2006-01"), func(t *testing.T) {
			mv := Month(tt.anchor, nil, time.UTC)
			assert.Len(t, mv.Cells, tt.cells)
			assert.Zero(t, len(mv.Cells)%7)
			assert.Equal(t, int(tt.anchor.Month()), mv.Month)
			assert.Equal(t, tt.anchor.Year(), mv.Year)
		})
	}
}

func TestMonth_DaylightSavingKeepsOneCellPerDay(t *testing.T) {
	loc := newYork(t)

	for _, month := range []time.Month{time.March, time.November} {
		mv := Month(at(2025, month, 15, 12, loc), nil, loc)

		seen := map[string]bool{}
		for _, c := range mv.Cells {
			assert.False(t, seen[c.Date], "duplicate cell %s", c.Date)
			seen[c.Date] = true
		}
		assert.Zero(t, len(mv.Cells)%7)
	}

	mv := Month(at(2025, time.March, 15, 12, loc), nil, loc)
	require.Len(t, mv.Cells, 42)
	assert.Equal(t, "2025-03-09", mv.Cells[13].Date)
	assert.Equal(t, "2025-03-10", mv.Cells[14].Date)
}

func TestMonth_ChipsAndMore(t *testing.T) {
	var trades []trade.Trade
	for i := 0; i < 5; i++ {
		trades = append(trades, trade.Trade{
			ID:        fmt.Sprintf("t%d", i),
			Symbol:    "EURUSD",
			Position:  "buy",
			Timeframe: "H1",
			CreatedAt: at(2025, 3, 12, 9+i, time.UTC),
		})
	}
	trades = append(trades,
		trade.Trade{
			ID:         "early",
			Symbol:     "XAUUSD",
			ProfitLoss: decimal.NewNullDecimal(decimal.RequireFromString("-3.5")),
			CreatedAt:  at(2025, 3, 12, 1, time.UTC),
		},
		trade.Trade{ID: "spill", Symbol: "X", CreatedAt: at(2025, 2, 25, 10, time.UTC)},
		trade.Trade{ID: "outside", Symbol: "X", CreatedAt: at(2025, 5, 1, 10, time.UTC)},
	)

	mv := Month(at(2025, 3, 1, 0, time.UTC), trades, time.UTC)

	var cell Cell
	for _, c := range mv.Cells {
		if c.Date == "2025-03-12" {
			cell = c
		}
	}
	require.Len(t, cell.Chips, ChipsPerCell)
	assert.Equal(t, 3, cell.More)
	assert.True(t, cell.InMonth)
	assert.Equal(t, "early", cell.Chips[0].ID, "chips are ordered by time")
	require.NotNil(t, cell.Chips[0].ProfitLoss)
	assert.Equal(t, -3.5, *cell.Chips[0].ProfitLoss)
	assert.Nil(t, cell.Chips[0].Position)
	require.NotNil(t, cell.Chips[1].Timeframe)
	assert.Equal(t, "H1", *cell.Chips[1].Timeframe)

	assert.Equal(t, "2025-02-25", mv.Cells[1].Date)
	assert.False(t, mv.Cells[1].InMonth)
	require.Len(t, mv.Cells[1].Chips, 1, "grid days outside the month still show trades")

	total := 0
	for _, c := range mv.Cells {
		total += len(c.Chips) + c.More
	}
	assert.Equal(t, 7, total)
}

func TestRangeView(t *testing.T) {
	trades := []trade.Trade{
		{ID: "b", Symbol: "X", CreatedAt: at(2025, 3, 13, 20, time.UTC)},
		{ID: "a", Symbol: "X", CreatedAt: at(2025, 3, 13, 8, time.UTC)},
		{ID: "next", Symbol: "X", CreatedAt: at(2025, 3, 14, 0, time.UTC)},
	}

	rv := RangeView(ViewDay, at(2025, 3, 13, 12, time.UTC), trades, time.UTC)

	assert.Equal(t, ViewDay, rv.View)
	assert.Equal(t, "2025-03-13T00:00:00Z", rv.Start)
	assert.Equal(t, "2025-03-13T23:59:59.999Z", rv.End)
	require.Len(t, rv.Trades, 2)
	assert.Equal(t, "a", rv.Trades[0].ID)
	assert.Equal(t, "b", rv.Trades[1].ID)

	empty := RangeView(ViewWeek, at(2020, 1, 1, 0, time.UTC), trades, time.UTC)
	assert.NotNil(t, empty.Trades)
	assert.Empty(t, empty.Trades)
}

// Package trade defines the journal's trade record and the rules for turning
// a submitted form into one.
package trade

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the normalized side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ParseDirection maps the many spellings of a side onto a Direction.
// buy, long and bullish are long; sell, short and bearish are short.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "bullish":
		return DirectionLong, true
	case "short", "sell", "bearish":
		return DirectionShort, true
	default:
		return "", false
	}
}

// Position returns the order side for the direction (buy or sell).
func (d Direction) Position() string {
	if d == DirectionShort {
		return "sell"
	}
	return "buy"
}

// Bias returns the market bias for the direction (bullish or bearish).
func (d Direction) Bias() string {
	if d == DirectionShort {
		return "bearish"
	}
	return "bullish"
}

// Trade is one journal entry. Empty strings and invalid NullDecimals are
// unset values.
type Trade struct {
	ID                string              `json:"id"`
	UserID            string              `json:"user_id"`
	Symbol            string              `json:"symbol"`
	Timeframe         string              `json:"timeframe,omitempty"`
	Position          string              `json:"position,omitempty"`
	PositionSizes     []decimal.Decimal   `json:"position_sizes"`
	TotalPositionSize decimal.NullDecimal `json:"total_position_size"`
	EntryPrices       []decimal.Decimal   `json:"entry_prices"`
	StopLoss          decimal.NullDecimal `json:"stop_loss"`
	TakeProfit        []decimal.Decimal   `json:"take_profit"`
	TradeDirection    string              `json:"trade_direction,omitempty"`
	AdditionalNotes   string              `json:"additional_notes,omitempty"`
	Observation       string              `json:"observation,omitempty"`
	ProfitLoss        decimal.NullDecimal `json:"profit_loss"`
	Pips              *int                `json:"pips"`
	ScreenshotURL     string              `json:"screenshot_url,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// NewID returns a fresh trade identifier.
func NewID() string {
	return uuid.NewString()
}

// IsClosed reports whether the trade has a realized P/L.
func (t Trade) IsClosed() bool {
	return t.ProfitLoss.Valid
}

// IsWin reports whether the trade closed with a positive P/L.
func (t Trade) IsWin() bool {
	return t.ProfitLoss.Valid && t.ProfitLoss.Decimal.IsPositive()
}

// Direction derives the side from Position, then TradeDirection.
func (t Trade) Direction() (Direction, bool) {
	if d, ok := ParseDirection(t.Position); ok {
		return d, true
	}
	return ParseDirection(t.TradeDirection)
}

// ProfitLossFloat returns the P/L as a float for presentation, or nil when open.
func (t Trade) ProfitLossFloat() *float64 {
	if !t.ProfitLoss.Valid {
		return nil
	}
	f := t.ProfitLoss.Decimal.InexactFloat64()
	return &f
}

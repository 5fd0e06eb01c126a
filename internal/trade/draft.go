package trade

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("invalid trade")

// Pips are stored as a 32-bit integer column.
var (
	minPips = decimal.NewFromInt(math.MinInt32)
	maxPips = decimal.NewFromInt(math.MaxInt32)
)

// ValidationError names the field that failed normalization.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// LooseDecimal decodes from a JSON number, a numeric string, or null.
// Blank strings and null are unset.
type LooseDecimal struct {
	Raw string
	Set bool
}

// DecimalOf wraps d as a set LooseDecimal.
func DecimalOf(d decimal.Decimal) LooseDecimal {
	return LooseDecimal{Raw: d.String(), Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LooseDecimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = LooseDecimal{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	*l = LooseDecimal{Raw: s, Set: s != ""}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l LooseDecimal) MarshalJSON() ([]byte, error) {
	if !l.Set {
		return []byte("null"), nil
	}
	return json.Marshal(l.Raw)
}

// Decimal parses the value. Unset values yield an invalid NullDecimal.
func (l LooseDecimal) Decimal() (decimal.NullDecimal, error) {
	if !l.Set {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(l.Raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// Draft is a submitted trade form before normalization.
type Draft struct {
	Symbol            string         `json:"symbol"`
	Timeframe         string         `json:"timeframe"`
	Position          string         `json:"position"`
	PositionSizes     []LooseDecimal `json:"position_sizes"`
	TotalPositionSize LooseDecimal   `json:"total_position_size"`
	EntryPrices       []LooseDecimal `json:"entry_prices"`
	StopLoss          LooseDecimal   `json:"stop_loss"`
	TakeProfit        []LooseDecimal `json:"take_profit"`
	TradeDirection    string         `json:"trade_direction"`
	AdditionalNotes   string         `json:"additional_notes"`
	Observation       string         `json:"observation"`
	ProfitLoss        LooseDecimal   `json:"profit_loss"`
	Pips              LooseDecimal   `json:"pips"`
	ScreenshotURL     string         `json:"screenshot_url"`
	CreatedAt         *time.Time     `json:"created_at,omitempty"`
}

// Normalize validates the draft and builds a Trade owned by userID.
// Blank scalars become unset, list entries that are blank or not numeric
// are dropped, and CreatedAt defaults to now.
func (d Draft) Normalize(userID string, now time.Time) (*Trade, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "required"}
	}

	symbol := strings.ToUpper(strings.TrimSpace(d.Symbol))
	if symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "required"}
	}

	t := &Trade{
		UserID:          userID,
		Symbol:          symbol,
		Timeframe:       strings.TrimSpace(d.Timeframe),
		Position:        strings.ToLower(strings.TrimSpace(d.Position)),
		PositionSizes:   decimalList(d.PositionSizes),
		EntryPrices:     decimalList(d.EntryPrices),
		TakeProfit:      decimalList(d.TakeProfit),
		TradeDirection:  strings.ToLower(strings.TrimSpace(d.TradeDirection)),
		AdditionalNotes: strings.TrimSpace(d.AdditionalNotes),
		Observation:     strings.TrimSpace(d.Observation),
		ScreenshotURL:   strings.TrimSpace(d.ScreenshotURL),
		CreatedAt:       now.UTC(),
	}
	if d.CreatedAt != nil && !d.CreatedAt.IsZero() {
		t.CreatedAt = d.CreatedAt.UTC()
	}

	var err error
	if t.TotalPositionSize, err = scalar("total_position_size", d.TotalPositionSize); err != nil {
		return nil, err
	}
	if t.StopLoss, err = scalar("stop_loss", d.StopLoss); err != nil {
		return nil, err
	}
	if t.ProfitLoss, err = scalar("profit_loss", d.ProfitLoss); err != nil {
		return nil, err
	}

	pips, err := scalar("pips", d.Pips)
	if err != nil {
		return nil, err
	}
	if pips.Valid {
		if !pips.Decimal.IsInteger() {
			return nil, &ValidationError{Field: "pips", Reason: "must be a whole number"}
		}
		if pips.Decimal.LessThan(minPips) || pips.Decimal.GreaterThan(maxPips) {
			return nil, &ValidationError{Field: "pips", Reason: "out of range"}
		}
		n := int(pips.Decimal.IntPart())
		t.Pips = &n
	}

	return t, nil
}

func scalar(field string, v LooseDecimal) (decimal.NullDecimal, error) {
	d, err := v.Decimal()
	if err != nil {
		return decimal.NullDecimal{}, &ValidationError{Field: field, Reason: fmt.Sprintf("not a number: %q", v.Raw)}
	}
	return d, nil
}

func decimalList(in []LooseDecimal) []decimal.Decimal {
	var out []decimal.Decimal
	for _, v := range in {
		d, err := v.Decimal()
		if err != nil || !d.Valid {
			continue
		}
		out = append(out, d.Decimal)
	}
	return out
}

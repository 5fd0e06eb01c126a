package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

// rawTrade holds the model's reply before the polymorphic fields are
// resolved. Older prompts used direction/entry/stop/targets/lots.
type rawTrade struct {
	Symbol            json.RawMessage `json:"symbol"`
	Timeframe         json.RawMessage `json:"timeframe"`
	Position          json.RawMessage `json:"position"`
	PositionSizes     json.RawMessage `json:"position_sizes"`
	TotalPositionSize json.RawMessage `json:"total_position_size"`
	EntryPrices       json.RawMessage `json:"entry_prices"`
	StopLoss          json.RawMessage `json:"stop_loss"`
	TakeProfit        json.RawMessage `json:"take_profit"`
	TradeDirection    json.RawMessage `json:"trade_direction"`
	AdditionalNotes   json.RawMessage `json:"additional_notes"`
	Observation       json.RawMessage `json:"observation"`

	Direction json.RawMessage `json:"direction"`
	Entry     json.RawMessage `json:"entry"`
	Stop      json.RawMessage `json:"stop"`
	Targets   json.RawMessage `json:"targets"`
	Lots      json.RawMessage `json:"lots"`
}

// Normalize parses a model reply into an ExtractedTrade. The reply may be
// wrapped in a markdown code fence.
func Normalize(raw []byte) (*ExtractedTrade, error) {
	body := stripFence(raw)
	if len(body) == 0 {
		return nil, ErrEmptyResponse
	}

	var r rawTrade
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("parse model reply: %w", err)
	}

	out := &ExtractedTrade{
		Symbol:    strings.ToUpper(strings.TrimSpace(stringOf(r.Symbol))),
		Timeframe: strings.TrimSpace(stringOf(r.Timeframe)),
		Targets:   []decimal.Decimal{},
	}

	for _, candidate := range []json.RawMessage{r.Direction, r.TradeDirection, r.Position} {
		if s := stringOf(candidate); s != "" {
			if d, ok := trade.ParseDirection(s); ok {
				out.Direction = d
			}
			break
		}
	}

	if d, ok := numberOf(r.Entry); ok {
		out.Entry = decimal.NewNullDecimal(d)
	}
	if list := listOf(r.EntryPrices); len(list) > 0 {
		out.EntryList = list
		if !out.Entry.Valid {
			out.Entry = decimal.NewNullDecimal(list[0])
		}
	}

	if d, ok := numberOf(r.Stop); ok {
		out.Stop = decimal.NewNullDecimal(d)
	} else if d, ok := looseNumberOf(r.StopLoss); ok {
		out.Stop = decimal.NewNullDecimal(d)
	}

	switch {
	case isArray(r.Targets):
		out.Targets = append(out.Targets, listOf(r.Targets)...)
	case isArray(r.TakeProfit):
		out.Targets = append(out.Targets, listOf(r.TakeProfit)...)
	default:
		if d, ok := looseNumberOf(r.TakeProfit); ok {
			out.Targets = append(out.Targets, d)
		}
	}

	if d, ok := numberOf(r.Lots); ok {
		out.Lots = decimal.NewNullDecimal(d)
	} else if d, ok := looseNumberOf(r.TotalPositionSize); ok {
		out.Lots = decimal.NewNullDecimal(d)
	}
	if sizes := listOf(r.PositionSizes); len(sizes) > 0 {
		out.PositionSizes = sizes
		if !out.Lots.Valid {
			out.Lots = decimal.NewNullDecimal(decimal.Sum(sizes[0], sizes[1:]...))
		}
	}

	out.AdditionalNotes = strings.TrimSpace(stringOf(r.AdditionalNotes))
	out.Observation = strings.TrimSpace(stringOf(r.Observation))

	return out, nil
}

func stripFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if nl := bytes.IndexByte(body, '\n'); nl != -1 {
		// Drop the info string, e.g. ```json.
		if info := bytes.TrimSpace(body[:nl]); len(info) == 0 || bytes.IndexAny(info, "{[") == -1 {
			body = body[nl+1:]
		}
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func stringOf(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// numberOf accepts JSON numbers only.
func numberOf(raw json.RawMessage) (decimal.Decimal, bool) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || !(t[0] == '-' || (t[0] >= '0' && t[0] <= '9')) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(string(t))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// looseNumberOf accepts JSON numbers and numeric strings.
func looseNumberOf(raw json.RawMessage) (decimal.Decimal, bool) {
	if d, ok := numberOf(raw); ok {
		return d, true
	}
	s := strings.TrimSpace(stringOf(raw))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func listOf(raw json.RawMessage) []decimal.Decimal {
	if !isArray(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []decimal.Decimal
	for _, item := range items {
		if d, ok := looseNumberOf(item); ok {
			out = append(out, d)
		}
	}
	return out
}

package extraction

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("empty response from model")

// Extractor turns a screenshot into trade fields.
type Extractor interface {
	// Extract returns nil, nil when extraction is unavailable.
	Extract(ctx context.Context, imageURL string) (*ExtractedTrade, error)

	// Available reports whether a model is configured.
	Available() bool
}

// ExtractedTrade is the normalized reading of one screenshot.
type ExtractedTrade struct {
	Symbol          string              `json:"symbol,omitempty"`
	Direction       trade.Direction     `json:"direction,omitempty"`
	Entry           decimal.NullDecimal `json:"entry"`
	EntryList       []decimal.Decimal   `json:"entry_list,omitempty"`
	Stop            decimal.NullDecimal `json:"stop"`
	Targets         []decimal.Decimal   `json:"targets"`
	Lots            decimal.NullDecimal `json:"lots"`
	Timeframe       string              `json:"timeframe,omitempty"`
	AdditionalNotes string              `json:"additional_notes,omitempty"`
	Observation     string              `json:"observation,omitempty"`
	PositionSizes   []decimal.Decimal   `json:"position_sizes,omitempty"`
}

// Draft maps the extraction onto an editable trade form.
func (e *ExtractedTrade) Draft() trade.Draft {
	if e == nil {
		return trade.Draft{}
	}

	d := trade.Draft{
		Symbol:          e.Symbol,
		Timeframe:       e.Timeframe,
		AdditionalNotes: e.AdditionalNotes,
		Observation:     e.Observation,
		PositionSizes:   looseList(e.PositionSizes),
		TakeProfit:      looseList(e.Targets),
	}
	if e.Direction != "" {
		d.Position = e.Direction.Position()
		d.TradeDirection = e.Direction.Bias()
	}

	entries := e.EntryList
	if len(entries) == 0 && e.Entry.Valid {
		entries = []decimal.Decimal{e.Entry.Decimal}
	}
	d.EntryPrices = looseList(entries)

	if e.Stop.Valid {
		d.StopLoss = trade.DecimalOf(e.Stop.Decimal)
	}
	if e.Lots.Valid {
		d.TotalPositionSize = trade.DecimalOf(e.Lots.Decimal)
	}
	return d
}

func looseList(values []decimal.Decimal) []trade.LooseDecimal {
	if len(values) == 0 {
		return nil
	}
	out := make([]trade.LooseDecimal, len(values))
	for i, v := range values {
		out[i] = trade.DecimalOf(v)
	}
	return out
}

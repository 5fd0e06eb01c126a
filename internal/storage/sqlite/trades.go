package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/tradetally/internal/storage"
	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

const tradeColumns = `id, user_id, symbol, timeframe, position, position_sizes, total_position_size,
	entry_prices, stop_loss, take_profit, trade_direction, additional_notes, observation,
	profit_loss, pips, screenshot_url, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateTrade inserts t, assigning an ID when empty.
func (s *Store) CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	if err := s.ready(ctx); err != nil {
		return trade.Trade{}, err
	}
	if strings.TrimSpace(t.UserID) == "" {
		return trade.Trade{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return trade.Trade{}, fmt.Errorf("symbol is required")
	}
	if t.ID == "" {
		t.ID = trade.NewID()
	}

	sizes, err := encodeDecimals(t.PositionSizes)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("encode position_sizes: %w", err)
	}
	entries, err := encodeDecimals(t.EntryPrices)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("encode entry_prices: %w", err)
	}
	targets, err := encodeDecimals(t.TakeProfit)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("encode take_profit: %w", err)
	}

	var pips sql.NullInt64
	if t.Pips != nil {
		pips = sql.NullInt64{Int64: int64(*t.Pips), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO trades (`+tradeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.Symbol,
		nullString(t.Timeframe),
		nullString(t.Position),
		sizes,
		nullDecimal(t.TotalPositionSize),
		entries,
		nullDecimal(t.StopLoss),
		targets,
		nullString(t.TradeDirection),
		nullString(t.AdditionalNotes),
		nullString(t.Observation),
		nullDecimal(t.ProfitLoss),
		pips,
		nullString(t.ScreenshotURL),
		toMillis(t.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return trade.Trade{}, storage.ErrAlreadyExists
		}
		return trade.Trade{}, fmt.Errorf("create trade: %w", err)
	}

	t.CreatedAt = fromMillis(toMillis(t.CreatedAt))
	return t, nil
}

// GetTrade returns one trade owned by userID.
func (s *Store) GetTrade(ctx context.Context, userID, id string) (trade.Trade, error) {
	if err := s.ready(ctx); err != nil {
		return trade.Trade{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trade.Trade{}, storage.ErrNotFound
		}
		return trade.Trade{}, fmt.Errorf("get trade: %w", err)
	}
	return t, nil
}

// ListTrades returns the user's trades inside filter, newest first unless
// filter.Order is asc.
func (s *Store) ListTrades(ctx context.Context, userID string, filter storage.ListFilter) ([]trade.Trade, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + tradeColumns + ` FROM trades WHERE user_id = ?`)
	args := []any{userID}
	if !filter.From.IsZero() {
		query.WriteString(` AND created_at >= ?`)
		args = append(args, toMillis(filter.From))
	}
	if !filter.To.IsZero() {
		query.WriteString(` AND created_at <= ?`)
		args = append(args, toMillis(filter.To))
	}
	if filter.Order == storage.OrderAsc {
		query.WriteString(` ORDER BY created_at ASC, id ASC`)
	} else {
		query.WriteString(` ORDER BY created_at DESC, id DESC`)
	}
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// DeleteTrade removes one trade owned by userID.
func (s *Store) DeleteTrade(ctx context.Context, userID, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM trades WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trade: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanTrade(row rowScanner) (trade.Trade, error) {
	var (
		t trade.Trade

		timeframe, position, direction, notes, obs, shot sql.NullString
		sizes, total, entries, stop, targets, profitLoss sql.NullString

		pips      sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Symbol, &timeframe, &position, &sizes, &total,
		&entries, &stop, &targets, &direction, &notes, &obs,
		&profitLoss, &pips, &shot, &createdAt,
	); err != nil {
		return trade.Trade{}, err
	}

	t.Timeframe = timeframe.String
	t.Position = position.String
	t.TradeDirection = direction.String
	t.AdditionalNotes = notes.String
	t.Observation = obs.String
	t.ScreenshotURL = shot.String
	t.CreatedAt = fromMillis(createdAt)
	if pips.Valid {
		n := int(pips.Int64)
		t.Pips = &n
	}

	var err error
	if t.PositionSizes, err = decodeDecimals("position_sizes", sizes); err != nil {
		return trade.Trade{}, err
	}
	if t.EntryPrices, err = decodeDecimals("entry_prices", entries); err != nil {
		return trade.Trade{}, err
	}
	if t.TakeProfit, err = decodeDecimals("take_profit", targets); err != nil {
		return trade.Trade{}, err
	}
	if t.TotalPositionSize, err = parseNullDecimal("total_position_size", total); err != nil {
		return trade.Trade{}, err
	}
	if t.StopLoss, err = parseNullDecimal("stop_loss", stop); err != nil {
		return trade.Trade{}, err
	}
	if t.ProfitLoss, err = parseNullDecimal("profit_loss", profitLoss); err != nil {
		return trade.Trade{}, err
	}
	return t, nil
}

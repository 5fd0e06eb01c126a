// Package sqlite provides the SQLite-backed trade and customer store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/fyrsmithlabs/tradetally/internal/storage"
	"github.com/fyrsmithlabs/tradetally/internal/storage/sqlite/migrations"
	"github.com/fyrsmithlabs/tradetally/internal/storage/sqlitemigrate"
)

const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

var errNotConfigured = errors.New("storage is not configured")

// Store persists trades and customers in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(column string, v sql.NullString) (decimal.NullDecimal, error) {
	if !v.Valid || v.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("decode %s: %w", column, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// Decimal lists are stored as JSON arrays of strings to keep full precision.
func encodeDecimals(values []decimal.Decimal) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	raw := make([]string, len(values))
	for i, v := range values {
		raw[i] = v.String()
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeDecimals(column string, v sql.NullString) ([]decimal.Decimal, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(v.String), &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]decimal.Decimal, 0, len(raw))
	for _, r := range raw {
		d, err := decimal.NewFromString(r)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", column, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)

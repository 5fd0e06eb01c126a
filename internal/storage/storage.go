// Package storage defines persistence contracts for trades and customers.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

var (
	// ErrNotFound indicates a requested record is missing or owned by
	// another user.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// Order is the sort direction for trade listings.
type Order string

const (
	OrderDesc Order = "desc"
	OrderAsc  Order = "asc"
)

// ListFilter bounds a trade listing. Zero times are open bounds; both ends
// are inclusive.
type ListFilter struct {
	From  time.Time
	To    time.Time
	Order Order
	Limit int
}

// TradeStore persists journal entries. Every call is scoped to one user.
type TradeStore interface {
	CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error)
	GetTrade(ctx context.Context, userID, id string) (trade.Trade, error)
	ListTrades(ctx context.Context, userID string, filter ListFilter) ([]trade.Trade, error)
	DeleteTrade(ctx context.Context, userID, id string) error
}

// Customer links a user to a membership tier and Stripe identifiers.
type Customer struct {
	UserID               string
	Membership           string
	StripeCustomerID     string
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CustomerUpdate carries the fields to change. Nil fields are left alone;
// a pointer to "" clears the value.
type CustomerUpdate struct {
	Membership           *string
	StripeCustomerID     *string
	StripeSubscriptionID *string
}

// CustomerStore persists membership records.
type CustomerStore interface {
	GetCustomer(ctx context.Context, userID string) (Customer, error)
	GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) error
	UpdateCustomerByUserID(ctx context.Context, userID string, u CustomerUpdate) (Customer, error)
	UpdateCustomerByStripeCustomerID(ctx context.Context, stripeCustomerID string, u CustomerUpdate) (Customer, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	TradeStore
	CustomerStore
	Close() error
}

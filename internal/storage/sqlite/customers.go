package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/tradetally/internal/storage"
)

const customerColumns = `user_id, membership, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

// GetCustomer returns the customer record for userID.
func (s *Store) GetCustomer(ctx context.Context, userID string) (storage.Customer, error) {
	return s.getCustomer(ctx, "user_id", userID)
}

// GetCustomerByStripeID returns the customer linked to a Stripe customer.
func (s *Store) GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (storage.Customer, error) {
	return s.getCustomer(ctx, "stripe_customer_id", stripeCustomerID)
}

// CreateCustomer inserts c. Membership defaults to free.
func (s *Store) CreateCustomer(ctx context.Context, c storage.Customer) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID := strings.TrimSpace(c.UserID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	membership := strings.TrimSpace(c.Membership)
	if membership == "" {
		membership = "free"
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		userID,
		membership,
		nullString(c.StripeCustomerID),
		nullString(c.StripeSubscriptionID),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// UpdateCustomerByUserID applies u to the customer owned by userID.
func (s *Store) UpdateCustomerByUserID(ctx context.Context, userID string, u storage.CustomerUpdate) (storage.Customer, error) {
	return s.updateCustomer(ctx, "user_id", userID, u)
}

// UpdateCustomerByStripeCustomerID applies u to the customer linked to a
// Stripe customer.
func (s *Store) UpdateCustomerByStripeCustomerID(ctx context.Context, stripeCustomerID string, u storage.CustomerUpdate) (storage.Customer, error) {
	return s.updateCustomer(ctx, "stripe_customer_id", stripeCustomerID, u)
}

// column is always one of the literal keys above.
func (s *Store) getCustomer(ctx context.Context, column, value string) (storage.Customer, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Customer{}, err
	}
	if strings.TrimSpace(value) == "" {
		return storage.Customer{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE `+column+` = ?`, value)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Customer{}, storage.ErrNotFound
		}
		return storage.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *Store) updateCustomer(ctx context.Context, column, value string, u storage.CustomerUpdate) (storage.Customer, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Customer{}, err
	}
	if strings.TrimSpace(value) == "" {
		return storage.Customer{}, storage.ErrNotFound
	}

	sets := []string{"updated_at = ?"}
	args := []any{toMillis(time.Now())}
	if u.Membership != nil {
		sets = append(sets, "membership = ?")
		args = append(args, strings.TrimSpace(*u.Membership))
	}
	if u.StripeCustomerID != nil {
		sets = append(sets, "stripe_customer_id = ?")
		args = append(args, nullString(*u.StripeCustomerID))
	}
	if u.StripeSubscriptionID != nil {
		sets = append(sets, "stripe_subscription_id = ?")
		args = append(args, nullString(*u.StripeSubscriptionID))
	}
	args = append(args, value)

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE customers SET `+strings.Join(sets, ", ")+` WHERE `+column+` = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Customer{}, storage.ErrAlreadyExists
		}
		return storage.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	if n == 0 {
		return storage.Customer{}, storage.ErrNotFound
	}

	// A changed stripe id moves the lookup key.
	if column == "stripe_customer_id" && u.StripeCustomerID != nil {
		value = strings.TrimSpace(*u.StripeCustomerID)
	}
	return s.getCustomer(ctx, column, value)
}

func scanCustomer(row rowScanner) (storage.Customer, error) {
	var (
		c                      storage.Customer
		stripeID, subscription sql.NullString
		createdAt, updatedAt   int64
	)
	if err := row.Scan(&c.UserID, &c.Membership, &stripeID, &subscription, &createdAt, &updatedAt); err != nil {
		return storage.Customer{}, err
	}
	c.StripeCustomerID = stripeID.String
	c.StripeSubscriptionID = subscription.String
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

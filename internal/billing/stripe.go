package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/tradetally/internal/logging"
)

// Default client configuration.
const (
	defaultStripeTimeout = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRateLimit     = 25
	defaultBurst         = 10
)

// StripeAPI is the subset of the Stripe API the service uses.
type StripeAPI interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	GetProduct(ctx context.Context, id string) (*stripe.Product, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
}

// StripeClient calls Stripe through stripe-go. The SDK retries network
// failures and retryable responses; calls wait on a process-wide limiter.
type StripeClient struct {
	api     *client.API
	limiter *rate.Limiter
}

// NewStripeClient creates a client for secretKey. baseURL overrides the
// public API endpoint and is empty in production.
func NewStripeClient(secretKey, baseURL string, logger *logging.Logger) (*StripeClient, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: defaultStripeTimeout},
		MaxNetworkRetries: stripe.Int64(defaultMaxRetries),
		LeveledLogger:     &stripeLogger{logger: logger.Named("stripe")},
	}
	if baseURL = strings.TrimRight(baseURL, "/"); baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}

	api := &client.API{}
	api.Init(secretKey, stripe.NewBackendsWithConfig(cfg))
	return &StripeClient{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

func (c *StripeClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

// GetSubscription retrieves a subscription with its default payment method
// expanded.
func (c *StripeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	params := &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("default_payment_method")

	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

// GetProduct retrieves a product.
func (c *StripeClient) GetProduct(ctx context.Context, id string) (*stripe.Product, error) {
	if id == "" {
		return nil, errors.New("product id is required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	p, err := c.api.Products.Get(id, &stripe.ProductParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// CreatePortalSession opens a billing portal session for customerID. Each
// call carries a fresh idempotency key that the SDK reuses across retries.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	if customerID == "" {
		return nil, errors.New("customer id is required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.SetIdempotencyKey(uuid.NewString())

	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create portal session: %w", err)
	}
	return s, nil
}

// stripeLogger routes SDK logs through the service logger.
type stripeLogger struct {
	logger *logging.Logger
}

func (l *stripeLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(context.Background(), fmt.Sprintf(format, v...))
}

func (l *stripeLogger) Infof(format string, v ...interface{}) {
	l.logger.Info(context.Background(), fmt.Sprintf(format, v...))
}

func (l *stripeLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(context.Background(), fmt.Sprintf(format, v...))
}

func (l *stripeLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(context.Background(), fmt.Sprintf(format, v...))
}

// PaymentMethod is the card summary shown on the billing view.
type PaymentMethod struct {
	Brand    string `json:"brand,omitempty"`
	Last4    string `json:"last4,omitempty"`
	ExpMonth int64  `json:"expMonth,omitempty"`
	ExpYear  int64  `json:"expYear,omitempty"`
}

// subscriptionCustomer returns the subscription's customer.
func subscriptionCustomer(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

// subscriptionProduct returns the product of the first subscription item.
func subscriptionProduct(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.Product != nil {
			return item.Price.Product.ID
		}
	}
	return ""
}

// subscriptionPeriodEnd returns the current period end in unix seconds. Stripe reports
// it per subscription item.
func subscriptionPeriodEnd(sub *stripe.Subscription) *int64 {
	if sub == nil || sub.Items == nil {
		return nil
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.CurrentPeriodEnd != 0 {
			end := item.CurrentPeriodEnd
			return &end
		}
	}
	return nil
}

// subscriptionCard summarizes the expanded default card, if any.
func subscriptionCard(sub *stripe.Subscription) *PaymentMethod {
	if sub == nil || sub.DefaultPaymentMethod == nil || sub.DefaultPaymentMethod.Card == nil {
		return nil
	}
	card := sub.DefaultPaymentMethod.Card
	return &PaymentMethod{
		Brand:    string(card.Brand),
		Last4:    card.Last4,
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
	}
}

var _ StripeAPI = (*StripeClient)(nil)

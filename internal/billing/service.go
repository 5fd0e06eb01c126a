package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/events"
	"github.com/fyrsmithlabs/tradetally/internal/logging"
	"github.com/fyrsmithlabs/tradetally/internal/storage"
)

// Service links users to Stripe customers and keeps memberships current.
type Service struct {
	customers storage.CustomerStore
	stripe    StripeAPI
	publisher events.Publisher
	logger    *logging.Logger
	appURL    string
	metrics   *Metrics
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Customers storage.CustomerStore
	// Stripe may be nil when no secret key is configured; Stripe-backed
	// operations then return ErrNotConfigured.
	Stripe    StripeAPI
	Publisher events.Publisher
	Logger    *logging.Logger
	// AppURL is the public origin used for portal return URLs.
	AppURL string
}

// NewService creates a billing service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Customers == nil {
		return nil, errors.New("customer store is required")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	return &Service{
		customers: cfg.Customers,
		stripe:    cfg.Stripe,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.Named("billing"),
		appURL:    strings.TrimRight(cfg.AppURL, "/"),
		metrics:   NewMetrics(),
	}, nil
}

// EnsureCustomer returns userID's customer, creating a free one on first
// access.
func (s *Service) EnsureCustomer(ctx context.Context, userID string) (storage.Customer, error) {
	if userID == "" {
		return storage.Customer{}, ErrUnauthenticated
	}
	c, err := s.customers.GetCustomer(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Customer{}, fmt.Errorf("get customer: %w", err)
	}

	err = s.customers.CreateCustomer(ctx, storage.Customer{
		UserID:     userID,
		Membership: string(MembershipFree),
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return storage.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	if err == nil {
		s.logger.Info(ctx, "customer provisioned", zap.String("user_id", userID))
	}
	return s.customers.GetCustomer(ctx, userID)
}

// MembershipOf returns userID's tier, provisioning the customer if needed.
func (s *Service) MembershipOf(ctx context.Context, userID string) (Membership, error) {
	c, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}
	return Membership(c.Membership).OrFree(), nil
}

// CheckoutURL appends client_reference_id=userID to paymentLink so the
// checkout completion can be linked back to the user.
func CheckoutURL(paymentLink, userID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if strings.TrimSpace(paymentLink) == "" {
		return "", fmt.Errorf("%w: payment link URL is required", ErrInvalidPaymentLink)
	}
	u, err := url.Parse(paymentLink)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentLink, paymentLink)
	}
	q := u.Query()
	q.Set("client_reference_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenBillingPortal creates a portal session and returns its URL.
func (s *Service) OpenBillingPortal(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if s.stripe == nil {
		return "", ErrNotConfigured
	}
	c, err := s.customers.GetCustomer(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("get customer: %w", err)
	}
	if err != nil || c.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	session, err := s.stripe.CreatePortalSession(ctx, c.StripeCustomerID, s.appURL+"/dashboard/billing")
	if err != nil {
		s.logger.Error(ctx, "open billing portal failed", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}
	return session.URL, nil
}

// Summary describes a user's current subscription.
type Summary struct {
	Status            string         `json:"status"`
	CancelAtPeriodEnd bool           `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *int64         `json:"currentPeriodEnd,omitempty"`
	PaymentMethod     *PaymentMethod `json:"paymentMethod,omitempty"`
}

// SubscriptionSummary returns userID's subscription details, or nil when
// the user has no subscription.
func (s *Service) SubscriptionSummary(ctx context.Context, userID string) (*Summary, error) {
	c, err := s.customers.GetCustomer(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if c.StripeSubscriptionID == "" || s.stripe == nil {
		return nil, nil
	}

	sub, err := s.stripe.GetSubscription(ctx, c.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  subscriptionPeriodEnd(sub),
		PaymentMethod:     subscriptionCard(sub),
	}, nil
}

// HandleEvent applies a verified webhook event. Unhandled types are
// ignored. A returned error should make the endpoint answer 5xx so the
// provider retries.
func (s *Service) HandleEvent(ctx context.Context, e stripe.Event) error {
	err := s.handleEvent(ctx, e)
	outcome := "ok"
	switch {
	case errors.Is(err, errIgnored):
		outcome, err = "ignored", nil
	case err != nil:
		outcome = "error"
		s.logger.Error(ctx, "webhook handling failed",
			zap.String("event_id", e.ID),
			zap.String("event_type", string(e.Type)),
			zap.Error(err))
	}
	s.metrics.webhook(string(e.Type), outcome)
	return err
}

var errIgnored = errors.New("event ignored")

func (s *Service) handleEvent(ctx context.Context, e stripe.Event) error {
	var raw []byte
	if e.Data != nil {
		raw = e.Data.Raw
	}

	switch e.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		if session.Mode != stripe.CheckoutSessionModeSubscription {
			return errIgnored
		}
		var subscriptionID, customerID string
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}
		if session.Customer != nil {
			customerID = session.Customer.ID
		}
		sub, err := s.updateStripeCustomer(ctx, session.ClientReferenceID, subscriptionID, customerID)
		if err != nil {
			return err
		}
		_, err = s.manageSubscriptionStatusChange(ctx, sub.ID, customerID, subscriptionProduct(sub))
		return err

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		_, err := s.manageSubscriptionStatusChange(ctx, sub.ID, subscriptionCustomer(&sub), subscriptionProduct(&sub))
		return err

	default:
		return errIgnored
	}
}

// updateStripeCustomer records the Stripe customer and subscription on
// userID's customer row, creating the row if needed.
func (s *Service) updateStripeCustomer(ctx context.Context, userID, subscriptionID, customerID string) (*stripe.Subscription, error) {
	if userID == "" || subscriptionID == "" || customerID == "" {
		return nil, errors.New("missing required parameters for updateStripeCustomer")
	}
	if s.stripe == nil {
		return nil, ErrNotConfigured
	}

	sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.EnsureCustomer(ctx, userID); err != nil {
		return nil, err
	}

	_, err = s.customers.UpdateCustomerByUserID(ctx, userID, storage.CustomerUpdate{
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &sub.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("update customer profile: %w", err)
	}
	s.logger.Info(ctx, "stripe customer linked",
		zap.String("user_id", userID),
		zap.String("stripe_customer_id", customerID))
	return sub, nil
}

// manageSubscriptionStatusChange recomputes the membership of the customer
// owning subscriptionID.
func (s *Service) manageSubscriptionStatusChange(ctx context.Context, subscriptionID, customerID, productID string) (Membership, error) {
	if subscriptionID == "" || customerID == "" || productID == "" {
		return "", errors.New("missing required parameters for manageSubscriptionStatusChange")
	}
	if s.stripe == nil {
		return "", ErrNotConfigured
	}

	sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return "", err
	}
	product, err := s.stripe.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	productTier, err := ParseMembership(product.Metadata["membership"])
	if err != nil {
		return "", err
	}

	status := string(sub.Status)
	membership := MembershipFor(status, productTier)
	tier := string(membership)
	c, err := s.customers.UpdateCustomerByStripeCustomerID(ctx, customerID, storage.CustomerUpdate{
		StripeSubscriptionID: &sub.ID,
		Membership:           &tier,
	})
	if err != nil {
		return "", fmt.Errorf("update subscription status: %w", err)
	}

	s.logger.Info(ctx, "membership updated",
		zap.String("user_id", c.UserID),
		zap.String("status", status),
		zap.String("membership", tier))
	events.Emit(ctx, s.publisher, s.logger, events.TypeMembershipChanged, c.UserID, map[string]string{
		"membership":      tier,
		"status":          status,
		"subscription_id": sub.ID,
	})
	return membership, nil
}

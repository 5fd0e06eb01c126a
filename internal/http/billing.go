package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tradetally/internal/billing"
)

// handleBilling returns the user's membership and subscription. Stripe
// failures leave the subscription out rather than failing the page.
func (s *Server) handleBilling(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	customer, err := s.billing.EnsureCustomer(ctx, u.ID)
	if err != nil {
		return s.toHTTPError(c, err, "failed to load billing")
	}

	resp := BillingResponse{
		Membership:        billing.Membership(customer.Membership).OrFree(),
		HasStripeCustomer: customer.StripeCustomerID != "",
	}

	summary, err := s.billing.SubscriptionSummary(ctx, u.ID)
	if err != nil {
		s.logger.Warn(ctx, "subscription lookup failed", zap.Error(err))
	} else {
		resp.Subscription = summary
	}

	if s.config.ProPaymentLink != "" {
		if link, err := billing.CheckoutURL(s.config.ProPaymentLink, u.ID); err == nil {
			resp.UpgradeURL = link
		} else {
			s.logger.Warn(ctx, "invalid pro payment link", zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleCheckout tags a payment link with the user. The body may name a
// link; otherwise the configured pro link is used.
func (s *Server) handleCheckout(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}

	var req CheckoutRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	link := strings.TrimSpace(req.PaymentLink)
	if link == "" {
		link = s.config.ProPaymentLink
	}

	checkout, err := billing.CheckoutURL(link, u.ID)
	if err != nil {
		return s.toHTTPError(c, err, "failed to create checkout")
	}
	return c.JSON(http.StatusOK, CheckoutResponse{URL: checkout})
}

// handleBillingPortal redirects to a Stripe billing portal session.
func (s *Server) handleBillingPortal(c echo.Context) error {
	u, err := mustUser(c)
	if err != nil {
		return err
	}
	portal, err := s.billing.OpenBillingPortal(c.Request().Context(), u.ID)
	if err != nil {
		return s.toHTTPError(c, err, "failed to open billing portal")
	}
	return c.Redirect(http.StatusSeeOther, portal)
}

// Package billing maps payment-provider subscriptions onto membership tiers.
//
// Memberships are driven by Stripe webhooks. A checkout completion links a
// user to a Stripe customer and subscription; later subscription events
// recompute the tier from the subscription status and the product's
// metadata.membership value.
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// Membership is a subscription tier.
type Membership string

const (
	MembershipFree Membership = "free"
	MembershipPro  Membership = "pro"
)

// Sentinel errors.
var (
	// ErrNoCustomer indicates the user has no Stripe customer on file.
	ErrNoCustomer = errors.New("no stripe customer for user")
	// ErrUnauthenticated indicates an operation was attempted without a user.
	ErrUnauthenticated = errors.New("user must be authenticated")
	// ErrInvalidPaymentLink indicates a missing or malformed payment link.
	ErrInvalidPaymentLink = errors.New("invalid payment link")
	// ErrInvalidMembership indicates product metadata names no known tier.
	ErrInvalidMembership = errors.New("invalid or missing membership in product metadata")
	// ErrNotConfigured indicates Stripe credentials are not configured.
	ErrNotConfigured = errors.New("billing is not configured")
)

// ParseMembership validates s as a tier name.
func ParseMembership(s string) (Membership, error) {
	switch m := Membership(strings.TrimSpace(s)); m {
	case MembershipFree, MembershipPro:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMembership, s)
	}
}

// MembershipFor returns the tier a subscription in status grants. Only
// active and trialing subscriptions carry the product's tier.
func MembershipFor(status string, product Membership) Membership {
	switch status {
	case "active", "trialing":
		return product
	case "canceled", "incomplete", "incomplete_expired", "past_due", "paused", "unpaid":
		return MembershipFree
	default:
		return MembershipFree
	}
}

// rank orders tiers for gating.
func (m Membership) rank() int {
	switch m {
	case MembershipPro:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether m grants access to tier.
func (m Membership) AtLeast(tier Membership) bool {
	return m.rank() >= tier.rank()
}

// OrFree returns m, or MembershipFree when m is unset or unknown.
func (m Membership) OrFree() Membership {
	if parsed, err := ParseMembership(string(m)); err == nil {
		return parsed
	}
	return MembershipFree
}

package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultTolerance is the maximum age of a signed webhook payload.
const DefaultTolerance = webhook.DefaultTolerance

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// ErrInvalidSignature indicates a webhook whose signature does not verify.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types handled by the service.
const (
	EventCheckoutCompleted   = stripe.EventTypeCheckoutSessionCompleted
	EventSubscriptionCreated = stripe.EventTypeCustomerSubscriptionCreated
	EventSubscriptionUpdated = stripe.EventTypeCustomerSubscriptionUpdated
	EventSubscriptionDeleted = stripe.EventTypeCustomerSubscriptionDeleted
)

// SignatureHeaderValue builds a header value for payload, for tests and
// local tooling.
func SignatureHeaderValue(payload []byte, secret string, t time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: t,
	}).Header
}

// VerifySignature checks header against payload. Any v1 entry may match.
// Payloads older than tolerance are rejected.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: no signing secret", ErrInvalidSignature)
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, secret, tolerance); err != nil {
		return signatureError(err)
	}
	return nil
}

// ParseEvent verifies payload and decodes the event. API version mismatches
// are accepted since only a few stable fields are read.
func ParseEvent(payload []byte, header, secret string) (stripe.Event, error) {
	if secret == "" {
		return stripe.Event{}, fmt.Errorf("%w: no signing secret", ErrInvalidSignature)
	}
	e, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if sigErr := signatureError(err); errors.Is(sigErr, ErrInvalidSignature) {
			return stripe.Event{}, sigErr
		}
		return stripe.Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if e.Type == "" {
		return stripe.Event{}, errors.New("webhook event has no type")
	}
	return e, nil
}

// signatureError maps the SDK's signature failures onto ErrInvalidSignature
// and passes anything else through.
func signatureError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	default:
		return err
	}
}

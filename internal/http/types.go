package http

import (
	"github.com/fyrsmithlabs/tradetally/internal/billing"
	"github.com/fyrsmithlabs/tradetally/internal/blob"
	"github.com/fyrsmithlabs/tradetally/internal/extraction"
	"github.com/fyrsmithlabs/tradetally/internal/trade"
)

// TradeListResponse is the response body for GET /api/v1/trades.
type TradeListResponse struct {
	Trades []trade.Trade `json:"trades"`
}

// UploadResponse is the response body for POST /api/v1/screenshots.
type UploadResponse struct {
	Object        blob.Object `json:"object"`
	ScreenshotURL string      `json:"screenshotUrl"`
	// Redirect is the journal form location pre-filled with the screenshot.
	Redirect   string                     `json:"redirect"`
	Extraction *extraction.ExtractedTrade `json:"extraction,omitempty"`
	Prefill    *trade.Draft               `json:"prefill,omitempty"`
}

// BillingResponse is the response body for GET /api/v1/billing.
type BillingResponse struct {
	Membership        billing.Membership `json:"membership"`
	HasStripeCustomer bool               `json:"hasStripeCustomer"`
	Subscription      *billing.Summary   `json:"subscription,omitempty"`
	// UpgradeURL is the pro payment link tagged with the user, when configured.
	UpgradeURL string `json:"upgradeUrl,omitempty"`
}

// CheckoutRequest is the request body for POST /api/v1/billing/checkout.
type CheckoutRequest struct {
	PaymentLink string `json:"payment_link"`
}

// CheckoutResponse is the response body for POST /api/v1/billing/checkout.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// WebhookResponse acknowledges a payment webhook.
type WebhookResponse struct {
	Received bool `json:"received"`
}

package billing

import (
	"strings"
	"time"
)

// CheckoutSession is a minimal representation of a Stripe
// checkout.session.completed payload.
type CheckoutSession struct {
	ID              string `json:"id"`
	Mode            string `json:"mode"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	PaymentIntent   string `json:"payment_intent"`
	AmountTotal     int64  `json:"amount_total"`
	Currency        string `json:"currency"`
	PaymentStatus   string `json:"payment_status"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// Invoice is a minimal representation of a Stripe invoice payload. Newer API
// versions nest the subscription reference under parent.subscription_details,
// so SubscriptionID checks both spots.
type Invoice struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
	AmountPaid    int64  `json:"amount_paid"`
	Currency      string `json:"currency"`
	PeriodStart   int64  `json:"period_start"`
	PeriodEnd     int64  `json:"period_end"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Metadata map[string]string `json:"metadata"`
}

// SubscriptionID returns the invoice's subscription reference across payload
// shapes.
func (in *Invoice) SubscriptionID() string {
	if id := strings.TrimSpace(in.Subscription); id != "" {
		return id
	}
	return strings.TrimSpace(in.Parent.SubscriptionDetails.Subscription)
}

// IsInitial reports whether the invoice charges the first subscription cycle.
func (in *Invoice) IsInitial() bool {
	return in.BillingReason == "subscription_create"
}

// SubscriptionEvent is a minimal representation of a Stripe subscription
// object as delivered in customer.subscription.* events.
type SubscriptionEvent struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// Charge is a minimal representation of a Stripe charge.refunded payload.
type Charge struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Refunded       bool   `json:"refunded"`
	AmountCaptured int64  `json:"amount_captured"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Refunds        struct {
		Data []struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"data"`
	} `json:"refunds"`
}

// LatestRefundID returns the first refund id of the charge, if present.
func (c *Charge) LatestRefundID() string {
	for _, r := range c.Refunds.Data {
		if id := strings.TrimSpace(r.ID); id != "" {
			return id
		}
	}
	return ""
}

// IsFullRefund reports whether the entire captured amount was returned.
func (c *Charge) IsFullRefund() bool {
	return c.AmountCaptured > 0 && c.AmountRefunded >= c.AmountCaptured
}

// ProviderSubscription is the authoritative subscription state fetched from
// the payment provider API, normalized for the sync routine.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Interval           string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	Metadata           map[string]string
	RawJSON            string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

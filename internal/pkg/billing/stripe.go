package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/internal/pkg/env"
)

// ProviderClient is the outbound surface to the payment provider API. The
// webhook flow only ever reads authoritative state through it; tests swap in
// a fake.
type ProviderClient interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	CreateCustomer(ctx context.Context, user *models.User) (string, error)
	NewCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
}

// CheckoutParams describes a checkout session to create for a plan purchase.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Mode       string // "payment" or "subscription"
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type stripeClient struct {
	api *client.API
}

// NewStripeClient builds a provider client from the configured secret key.
func NewStripeClient() (ProviderClient, error) {
	key := strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	if key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	api := &client.API{}
	api.Init(key, nil)
	return &stripeClient{api: api}, nil
}

func (c *stripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}

	params := &stripelib.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}

	out := &ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0)
		out.CanceledAt = &t
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
			if item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
			}
		}
		if item.CurrentPeriodStart > 0 {
			t := time.Unix(item.CurrentPeriodStart, 0)
			out.CurrentPeriodStart = &t
		}
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0)
			out.CurrentPeriodEnd = &t
		}
	}
	if raw, err := json.Marshal(sub); err == nil {
		out.RawJSON = string(raw)
	}
	return out, nil
}

func (c *stripeClient) CreateCustomer(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.ID == 0 {
		return "", errors.New("user is required")
	}
	params := &stripelib.CustomerParams{
		Email: stripelib.String(user.Email),
		Name:  stripelib.String(user.Name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", itoa(user.ID))

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

func (c *stripeClient) NewCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	if strings.TrimSpace(p.PriceID) == "" {
		return "", errors.New("price id is required")
	}

	mode := stripelib.CheckoutSessionModePayment
	if p.Mode == "subscription" {
		mode = stripelib.CheckoutSessionModeSubscription
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(mode)),
		SuccessURL: stripelib.String(p.SuccessURL),
		CancelURL:  stripelib.String(p.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(p.PriceID),
				Quantity: stripelib.Int64(1),
			},
		},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripelib.String(p.CustomerID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if mode == stripelib.CheckoutSessionModeSubscription {
		params.SubscriptionData = &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		}
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

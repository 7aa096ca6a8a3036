package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
	"github.com/yicheng0/tryveo4/app/repository"
	"github.com/yicheng0/tryveo4/internal/pkg/billing"
	"github.com/yicheng0/tryveo4/internal/pkg/credits"
	"github.com/yicheng0/tryveo4/internal/pkg/database"
	"github.com/yicheng0/tryveo4/internal/pkg/env"
	"github.com/yicheng0/tryveo4/internal/pkg/mail"
	"github.com/yicheng0/tryveo4/internal/pkg/usercontext"
)

const webhookTimeout = 15 * time.Second

var (
	billingSvc   *billing.Service
	billingSvcMu sync.Mutex
)

// getBillingService lazily wires the billing service with its live
// collaborators. A failed construction is retried on the next call rather
// than latched for the process lifetime.
func getBillingService() (*billing.Service, error) {
	billingSvcMu.Lock()
	defer billingSvcMu.Unlock()
	if billingSvc != nil {
		return billingSvc, nil
	}
	provider, err := billing.NewStripeClient()
	if err != nil {
		return nil, err
	}
	creditSvc := credits.NewServiceFromDB(database.GetDB())
	billingSvc = billing.NewServiceFromDB(database.GetDB(), creditSvc, provider, mail.NewNotifier())
	return billingSvc, nil
}

// HandleListPlans returns the active pricing plans for the public pricing page.
func HandleListPlans(c *fiber.Ctx) error {
	plans, err := repository.GetGlobalFactory().GetPlanRepository().GetActive()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plans")
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleCreateCheckout creates a Stripe checkout session for the current user.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		PlanID uint `json:"plan_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PlanID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "plan_id is required")
	}

	repos := repository.GetGlobalFactory()
	user, err := repos.GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "User not found")
	}
	plan, err := repos.GetPlanRepository().GetByID(req.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Plan not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plan")
	}

	svc, err := getBillingService()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Billing unavailable")
	}

	domain := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000")
	checkoutURL, err := svc.CreateCheckout(c.UserContext(), user, plan,
		domain+"/account/billing?checkout=success",
		domain+"/pricing?checkout=cancel")
	if err != nil {
		log.Printf("checkout creation failed for user %d plan %d: %v", user.ID, plan.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "checkout_failed", "Could not create checkout session")
	}

	return c.JSON(fiber.Map{"checkout_url": checkoutURL})
}

// HandleGetUserBilling returns the current user's balances, orders and
// subscription state.
func HandleGetUserBilling(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalFactory()

	creditSvc := credits.NewServiceFromDB(database.GetDB())
	usage, err := creditSvc.GetUsage(c.UserContext(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load balances")
	}

	offset, limit := parsePagination(c)
	orders, err := repos.GetOrderRepository().GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load orders")
	}

	var subscription fiber.Map
	if sub, err := repos.GetSubscriptionRepository().GetActiveByUserID(userCtx.UserID); err == nil {
		subscription = fiber.Map{
			"plan_id":              sub.PlanID,
			"status":               sub.Status,
			"interval":             sub.Interval,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"current_period_end":   formatTimePtr(sub.CurrentPeriodEnd),
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}

	logs, err := creditSvc.ListLogs(c.UserContext(), userCtx.UserID, 50)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit history")
	}

	return c.JSON(fiber.Map{
		"credits": fiber.Map{
			"one_time":     usage.OneTimeCredits,
			"subscription": usage.SubscriptionCredits,
			"total":        usage.TotalCredits(),
		},
		"orders":       orders,
		"subscription": subscription,
		"credit_log":   logs,
	})
}

// HandleStripeWebhook receives signed Stripe events. Signature verification
// is the authentication mechanism for this endpoint; dedup happens against
// the webhook_events table and duplicates of cleanly processed events return
// 200 without side effects. Processing errors return 500 so Stripe
// redelivers, and the redelivery is dispatched again.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	sigHeader := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	event, err := webhook.ConstructEventWithOptions(rawBody, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Printf("stripe webhook signature rejected: %v", err)
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Signature verification failed")
	}

	svc, err := getBillingService()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "billing_unavailable", "Billing unavailable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed", "Could not persist event")
	}
	// Redeliveries of a cleanly handled event are acknowledged without side
	// effects. Ones whose last attempt failed run again: the provider's
	// retry is the only recovery path for transient processing errors, and
	// every handler is idempotent under re-dispatch.
	if !created && !stored.NeedsProcessing() {
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	handleErr := dispatchStripeEvent(ctx, svc, event)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, handleErr)
	if handleErr != nil {
		log.Printf("stripe webhook %s (%s) failed: %v", event.ID, event.Type, handleErr)
		return jsonError(c, fiber.StatusInternalServerError, "webhook_processing_failed", "Event processing failed")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// dispatchStripeEvent decodes the event payload and routes it to the billing
// service. Unhandled event types are acknowledged without side effects.
func dispatchStripeEvent(ctx context.Context, svc *billing.Service, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session billing.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return svc.HandleCheckoutCompleted(ctx, session)

	case "invoice.paid":
		var invoice billing.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return svc.HandleInvoicePaid(ctx, invoice)

	case "invoice.payment_failed":
		var invoice billing.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return svc.HandleInvoicePaymentFailed(ctx, invoice)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return svc.HandleSubscriptionEvent(ctx, sub)

	case "customer.subscription.deleted":
		var sub billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return svc.HandleSubscriptionDeleted(ctx, sub)

	case "charge.refunded":
		var charge billing.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return fmt.Errorf("decode charge: %w", err)
		}
		return svc.HandleChargeRefunded(ctx, charge)

	default:
		log.Printf("stripe webhook: ignoring event type %s", event.Type)
		return nil
	}
}

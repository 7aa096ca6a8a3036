package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// CreditService is the slice of the credits engine the billing flow needs.
// Implemented by *credits.Service.
type CreditService interface {
	GrantOneTime(ctx context.Context, userID uint, amount int64, orderID *uint, reference string) (*models.Usage, error)
	RevokeOneTime(ctx context.Context, userID uint, amount int64, orderID *uint, reference string) (*models.Usage, error)
	SetSubscriptionCredits(ctx context.Context, userID uint, amount int64, orderID *uint, reference string) (*models.Usage, error)
	InitYearlyAllocation(ctx context.Context, userID uint, monthlyCredits int64, totalMonths int, periodStart time.Time, orderID *uint, reference string) (*models.Usage, error)
	RevokeSubscription(ctx context.Context, userID uint, clearAllocation bool, reference string) (*models.Usage, error)
}

// Mailer sends the best-effort payment-failure notification. A send error is
// logged, never propagated, so email can not block the financial write path.
type Mailer interface {
	SendPaymentFailed(email, name string, amountCents int64, currency string) error
}

// Service implements the webhook reconciliation flow: idempotent order
// insertion paired with atomic credit mutations, and the subscription mirror
// sync that is the sole writer of subscription state.
type Service struct {
	repo     Repository
	credits  CreditService
	provider ProviderClient
	mailer   Mailer // nil disables notifications
}

// NewService wires the billing service from its collaborators.
func NewService(repo Repository, credits CreditService, provider ProviderClient, mailer Mailer) *Service {
	return &Service{
		repo:     repo,
		credits:  credits,
		provider: provider,
		mailer:   mailer,
	}
}

// NewServiceFromDB builds a billing service over a GORM handle.
func NewServiceFromDB(db *gorm.DB, credits CreditService, provider ProviderClient, mailer Mailer) *Service {
	return NewService(NewRepository(db), credits, provider, mailer)
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false for a redelivery of an already-seen event.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// HandleCheckoutCompleted processes checkout.session.completed. One-time
// payments insert an order keyed by the payment-intent id and grant the
// plan's one-time credits exactly once; subscription checkouts delegate to
// SyncSubscription.
//
// Missing metadata is logged and the event dropped without error, matching
// the provider dashboard convention of not retrying malformed checkouts.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, session CheckoutSession) error {
	if session.Mode == "subscription" {
		if strings.TrimSpace(session.Subscription) == "" {
			log.Printf("billing: checkout %s in subscription mode without subscription id, dropping", session.ID)
			return nil
		}
		return s.SyncSubscription(ctx, session.Subscription, session.Customer)
	}

	userRes, err := resolveUser(s.repo, session.Metadata, session.Customer)
	if err != nil {
		if errors.Is(err, ErrUnresolvedIdentity) {
			log.Printf("billing: checkout %s has no resolvable user, dropping", session.ID)
			return nil
		}
		return err
	}
	planRes, err := resolvePlan(s.repo, session.Metadata, session.Metadata["price_id"])
	if err != nil {
		if errors.Is(err, ErrUnresolvedIdentity) {
			log.Printf("billing: checkout %s has no resolvable plan, dropping", session.ID)
			return nil
		}
		return err
	}

	paymentIntent := strings.TrimSpace(session.PaymentIntent)
	if paymentIntent == "" {
		log.Printf("billing: checkout %s has no payment intent, dropping", session.ID)
		return nil
	}

	// Persist the customer id on first assignment so later events resolve
	// via DB lookup even without metadata.
	if cid := strings.TrimSpace(session.Customer); cid != "" && !userRes.User.HasStripeCustomer() {
		if err := s.repo.SetUserStripeCustomer(userRes.User.ID, cid); err != nil {
			return fmt.Errorf("assign stripe customer: %w", err)
		}
	}

	created, order, err := s.repo.CreateOrderIfNotExists(&models.Order{
		UserID:          userRes.User.ID,
		PlanID:          planRes.Plan.ID,
		OrderType:       models.OrderTypeOneTimePurchase,
		Provider:        models.PaymentProviderStripe,
		ProviderOrderID: paymentIntent,
		PaymentIntentID: paymentIntent,
		AmountCents:     session.AmountTotal,
		Currency:        session.Currency,
		Status:          models.OrderStatusSucceeded,
	})
	if err != nil {
		return fmt.Errorf("insert one-time order: %w", err)
	}
	if !created {
		// Replay of an already-processed checkout; the credit grant already
		// happened with the first insert.
		return nil
	}

	benefits, err := planRes.Plan.Benefits()
	if err != nil {
		return fmt.Errorf("decode plan %d benefits: %w", planRes.Plan.ID, err)
	}
	if benefits.OneTimeCredits > 0 {
		if _, err := s.credits.GrantOneTime(ctx, order.UserID, benefits.OneTimeCredits, &order.ID, paymentIntent); err != nil {
			return fmt.Errorf("grant one-time credits: %w", err)
		}
	}
	return nil
}

// SyncSubscription fetches the authoritative subscription object from the
// provider and upserts the local mirror row. It is the sole writer of
// subscription state; unresolvable user or plan identity aborts the webhook
// so the provider retries delivery.
func (s *Service) SyncSubscription(ctx context.Context, subscriptionID, customerID string) error {
	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	if strings.TrimSpace(sub.CustomerID) == "" {
		sub.CustomerID = strings.TrimSpace(customerID)
	}

	userRes, err := resolveUser(s.repo, sub.Metadata, sub.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve user for subscription %s: %w", subscriptionID, err)
	}
	planRes, err := resolvePlan(s.repo, sub.Metadata, sub.PriceID)
	if err != nil {
		return fmt.Errorf("resolve plan for subscription %s: %w", subscriptionID, err)
	}

	if cid := strings.TrimSpace(sub.CustomerID); cid != "" && !userRes.User.HasStripeCustomer() {
		if err := s.repo.SetUserStripeCustomer(userRes.User.ID, cid); err != nil {
			return fmt.Errorf("assign stripe customer: %w", err)
		}
	}

	mirror := &models.Subscription{
		UserID:                 userRes.User.ID,
		PlanID:                 planRes.Plan.ID,
		Provider:               models.PaymentProviderStripe,
		ProviderSubscriptionID: sub.ID,
		ProviderCustomerID:     sub.CustomerID,
		PriceID:                sub.PriceID,
		Interval:               normalizeInterval(sub.Interval),
		Status:                 MapProviderStatus(sub.Status),
		CurrentPeriodStart:     sub.CurrentPeriodStart,
		CurrentPeriodEnd:       sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		CanceledAt:             sub.CanceledAt,
		RawPayloadJSON:         sub.RawJSON,
	}
	if err := s.repo.UpsertSubscription(mirror); err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

// HandleInvoicePaid processes invoice.paid: an idempotent order insert keyed
// by the invoice id, a subscription credit reset (monthly) or drip-schedule
// initialization (yearly) on first insert, and an unconditional re-sync.
func (s *Service) HandleInvoicePaid(ctx context.Context, invoice Invoice) error {
	subscriptionID := invoice.SubscriptionID()
	if subscriptionID == "" {
		log.Printf("billing: invoice %s has no subscription, ignoring", invoice.ID)
		return nil
	}

	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	if strings.TrimSpace(sub.CustomerID) == "" {
		sub.CustomerID = strings.TrimSpace(invoice.Customer)
	}

	userRes, err := resolveUser(s.repo, sub.Metadata, sub.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve user for invoice %s: %w", invoice.ID, err)
	}
	planRes, err := resolvePlan(s.repo, sub.Metadata, sub.PriceID)
	if err != nil {
		return fmt.Errorf("resolve plan for invoice %s: %w", invoice.ID, err)
	}

	orderType := models.OrderTypeSubscriptionRenewal
	if invoice.IsInitial() {
		orderType = models.OrderTypeSubscriptionInitial
	}

	created, order, err := s.repo.CreateOrderIfNotExists(&models.Order{
		UserID:          userRes.User.ID,
		PlanID:          planRes.Plan.ID,
		OrderType:       orderType,
		Provider:        models.PaymentProviderStripe,
		ProviderOrderID: invoice.ID,
		InvoiceID:       invoice.ID,
		SubscriptionID:  subscriptionID,
		AmountCents:     invoice.AmountPaid,
		Currency:        invoice.Currency,
		Status:          models.OrderStatusSucceeded,
	})
	if err != nil {
		return fmt.Errorf("insert invoice order: %w", err)
	}

	if created {
		benefits, err := planRes.Plan.Benefits()
		if err != nil {
			return fmt.Errorf("decode plan %d benefits: %w", planRes.Plan.ID, err)
		}
		switch normalizeInterval(sub.Interval) {
		case models.PlanIntervalYear:
			if benefits.MonthlyCredits > 0 && benefits.TotalMonths > 0 {
				var periodStart time.Time
				switch {
				case sub.CurrentPeriodStart != nil:
					periodStart = *sub.CurrentPeriodStart
				case invoice.PeriodStart > 0:
					periodStart = time.Unix(invoice.PeriodStart, 0)
				default:
					// Without period bounds the drip clock starts now; an
					// epoch start would make every month due at once.
					periodStart = time.Now()
				}
				if _, err := s.credits.InitYearlyAllocation(ctx, order.UserID, benefits.MonthlyCredits, benefits.TotalMonths, periodStart, &order.ID, invoice.ID); err != nil {
					return fmt.Errorf("init yearly allocation: %w", err)
				}
			}
		default:
			if benefits.MonthlyCredits > 0 {
				if _, err := s.credits.SetSubscriptionCredits(ctx, order.UserID, benefits.MonthlyCredits, &order.ID, invoice.ID); err != nil {
					return fmt.Errorf("reset subscription credits: %w", err)
				}
			}
		}
	}

	// Keep the mirror current even on replays.
	return s.SyncSubscription(ctx, subscriptionID, sub.CustomerID)
}

// HandleSubscriptionEvent processes customer.subscription.created/updated by
// delegating to the sync routine.
func (s *Service) HandleSubscriptionEvent(ctx context.Context, event SubscriptionEvent) error {
	return s.SyncSubscription(ctx, event.ID, event.Customer)
}

// HandleSubscriptionDeleted processes customer.subscription.deleted: sync the
// terminal state, then revoke the subscription-granted credits exactly once.
// The prior mirror status guards replays that slip past event dedup.
func (s *Service) HandleSubscriptionDeleted(ctx context.Context, event SubscriptionEvent) error {
	alreadyCanceled := false
	prior, err := s.repo.GetSubscriptionByProviderID(models.PaymentProviderStripe, event.ID)
	if err == nil {
		alreadyCanceled = prior.IsCanceled()
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup subscription %s: %w", event.ID, err)
	}

	if err := s.SyncSubscription(ctx, event.ID, event.Customer); err != nil {
		return err
	}
	if alreadyCanceled {
		return nil
	}

	current, err := s.repo.GetSubscriptionByProviderID(models.PaymentProviderStripe, event.ID)
	if err != nil {
		return fmt.Errorf("reload subscription %s: %w", event.ID, err)
	}

	// Yearly plans carry the drip sidecar that must be cleared alongside the
	// balance; the plan's interval decides.
	clearAllocation := false
	if plan, err := s.repo.GetPlanByID(current.PlanID); err == nil {
		clearAllocation = plan.Interval == models.PlanIntervalYear
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup plan %d: %w", current.PlanID, err)
	}

	if _, err := s.credits.RevokeSubscription(ctx, current.UserID, clearAllocation, event.ID); err != nil {
		return fmt.Errorf("revoke subscription credits: %w", err)
	}
	return nil
}

// HandleInvoicePaymentFailed re-syncs the subscription so the mirror shows
// past_due/unpaid, then best-effort notifies the user by email.
func (s *Service) HandleInvoicePaymentFailed(ctx context.Context, invoice Invoice) error {
	subscriptionID := invoice.SubscriptionID()
	if subscriptionID == "" {
		log.Printf("billing: failed invoice %s has no subscription, ignoring", invoice.ID)
		return nil
	}

	if err := s.SyncSubscription(ctx, subscriptionID, invoice.Customer); err != nil {
		return err
	}

	if s.mailer == nil {
		return nil
	}
	sub, err := s.repo.GetSubscriptionByProviderID(models.PaymentProviderStripe, subscriptionID)
	if err != nil {
		log.Printf("billing: payment-failed mail skipped, subscription %s not found: %v", subscriptionID, err)
		return nil
	}
	user, err := s.repo.GetUserByID(sub.UserID)
	if err != nil {
		log.Printf("billing: payment-failed mail skipped, user %d not found: %v", sub.UserID, err)
		return nil
	}
	if err := s.mailer.SendPaymentFailed(user.Email, user.Name, invoice.AmountPaid, invoice.Currency); err != nil {
		log.Printf("billing: payment-failed mail to %s failed: %v", user.Email, err)
	}
	return nil
}

// HandleChargeRefunded processes charge.refunded: an idempotent refund-order
// insert keyed by the refund id, linked to the original order via the
// payment-intent id. Only a full refund of a one-time purchase revokes the
// originally granted credits; partial refunds never do.
func (s *Service) HandleChargeRefunded(ctx context.Context, charge Charge) error {
	if !charge.Refunded && !charge.IsFullRefund() {
		// Partial refund: record the ledger row but leave credits alone.
		log.Printf("billing: charge %s partially refunded (%d/%d)", charge.ID, charge.AmountRefunded, charge.AmountCaptured)
	}

	refundID := charge.LatestRefundID()
	if refundID == "" {
		refundID = "refund:" + charge.ID
	}

	var original *models.Order
	if pi := strings.TrimSpace(charge.PaymentIntent); pi != "" {
		o, err := s.repo.GetOrderByPaymentIntent(models.PaymentProviderStripe, pi)
		if err == nil {
			original = o
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup original order: %w", err)
		}
	}

	refundOrder := &models.Order{
		OrderType:       models.OrderTypeRefund,
		Provider:        models.PaymentProviderStripe,
		ProviderOrderID: refundID,
		PaymentIntentID: charge.PaymentIntent,
		AmountCents:     -charge.AmountRefunded,
		Currency:        charge.Currency,
		Status:          models.OrderStatusRefunded,
	}
	if original != nil {
		refundOrder.UserID = original.UserID
		refundOrder.PlanID = original.PlanID
		refundOrder.RelatedOrderID = &original.ID
	}

	created, _, err := s.repo.CreateOrderIfNotExists(refundOrder)
	if err != nil {
		return fmt.Errorf("insert refund order: %w", err)
	}
	if !created || original == nil {
		return nil
	}

	if charge.IsFullRefund() && original.OrderType == models.OrderTypeOneTimePurchase {
		plan, err := s.repo.GetPlanByID(original.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("billing: refund %s references missing plan %d, skipping revoke", refundID, original.PlanID)
				return nil
			}
			return fmt.Errorf("lookup plan %d: %w", original.PlanID, err)
		}
		benefits, err := plan.Benefits()
		if err != nil {
			return fmt.Errorf("decode plan %d benefits: %w", plan.ID, err)
		}
		if benefits.OneTimeCredits > 0 {
			if _, err := s.credits.RevokeOneTime(ctx, original.UserID, benefits.OneTimeCredits, &original.ID, refundID); err != nil {
				return fmt.Errorf("revoke one-time credits: %w", err)
			}
		}
	}
	return nil
}

// EnsureCustomer returns the user's provider customer id, creating and
// persisting one on first use.
func (s *Service) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.ID == 0 {
		return "", errors.New("user is required")
	}
	if user.HasStripeCustomer() {
		return user.StripeCustomerID, nil
	}
	customerID, err := s.provider.CreateCustomer(ctx, user)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	if err := s.repo.SetUserStripeCustomer(user.ID, customerID); err != nil {
		return "", fmt.Errorf("persist customer id: %w", err)
	}
	user.StripeCustomerID = customerID
	return customerID, nil
}

// CreateCheckout builds a provider checkout session for the plan, carrying
// the metadata the webhook flow resolves identities from.
func (s *Service) CreateCheckout(ctx context.Context, user *models.User, plan *models.PricingPlan, successURL, cancelURL string) (string, error) {
	if plan == nil || !plan.IsActive {
		return "", errors.New("plan is not available")
	}
	customerID, err := s.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	mode := "payment"
	if plan.IsRecurring() {
		mode = "subscription"
	}
	return s.provider.NewCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		Mode:       mode,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			"user_id":  itoa(user.ID),
			"plan_id":  itoa(plan.ID),
			"price_id": plan.StripePriceID,
		},
	})
}

package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yicheng0/tryveo4/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreateOrderIfNotExists(order *models.Order) (bool, *models.Order, error)
	GetOrderByPaymentIntent(provider, paymentIntentID string) (*models.Order, error)
	UpsertSubscription(sub *models.Subscription) error
	GetSubscriptionByProviderID(provider, providerSubscriptionID string) (*models.Subscription, error)
	GetUserByID(id uint) (*models.User, error)
	GetUserByCustomerID(customerID string) (*models.User, error)
	SetUserStripeCustomer(userID uint, customerID string) error
	GetPlanByID(id uint) (*models.PricingPlan, error)
	GetPlanByPriceID(priceID string) (*models.PricingPlan, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateOrderIfNotExists inserts the order unless a row with the same
// (provider, provider_order_id) already exists. The returned bool is true
// only for the insert that actually happened; duplicate webhook deliveries
// see false and must skip their credit side effects.
func (r *gormRepository) CreateOrderIfNotExists(order *models.Order) (bool, *models.Order, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_order_id"},
		},
		DoNothing: true,
	}).Create(order)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Order
	if err := r.db.Where("provider = ? AND provider_order_id = ?", order.Provider, order.ProviderOrderID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetOrderByPaymentIntent(provider, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("provider = ? AND payment_intent_id = ? AND order_type <> ?",
		provider, paymentIntentID, models.OrderTypeRefund).
		Order("id ASC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan_id",
			"provider_customer_id",
			"price_id",
			"interval",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND provider_subscription_id = ?", sub.Provider, sub.ProviderSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) GetSubscriptionByProviderID(provider, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByCustomerID(customerID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SetUserStripeCustomer(userID uint, customerID string) error {
	return r.db.Model(&models.User{}).
		Where("id = ? AND (stripe_customer_id = '' OR stripe_customer_id IS NULL)", userID).
		Update("stripe_customer_id", customerID).Error
}

func (r *gormRepository) GetPlanByID(id uint) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetPlanByPriceID(priceID string) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	if err := r.db.Where("stripe_price_id = ?", priceID).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

package models

import "time"

// Payment provider constants used across billing-related models.
const (
	PaymentProviderStripe = "stripe"
)

const (
	OrderTypeOneTimePurchase     = "one_time_purchase"
	OrderTypeSubscriptionInitial = "subscription_initial"
	OrderTypeSubscriptionRenewal = "subscription_renewal"
	OrderTypeRefund              = "refund"
)

const (
	OrderStatusSucceeded = "succeeded"
	OrderStatusRefunded  = "refunded"
)

// Order is an immutable ledger row for one provider transaction. The unique
// (provider, provider_order_id) pair is the idempotency key that makes order
// insertion safe under at-least-once webhook delivery. Rows are never mutated
// after creation; refunds are separate rows linked via RelatedOrderID.
type Order struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	PlanID          uint      `gorm:"index" json:"plan_id"`
	OrderType       string    `gorm:"type:varchar(32);not null;index" json:"order_type"`
	Provider        string    `gorm:"type:varchar(20);not null;index:ux_orders_provider_order,unique,priority:1" json:"provider"`
	ProviderOrderID string    `gorm:"type:varchar(191);not null;index:ux_orders_provider_order,unique,priority:2" json:"provider_order_id"`
	PaymentIntentID string    `gorm:"type:varchar(191);default:'';index" json:"payment_intent_id"`
	InvoiceID       string    `gorm:"type:varchar(191);default:''" json:"invoice_id"`
	SubscriptionID  string    `gorm:"type:varchar(191);default:'';index" json:"subscription_id"`
	AmountCents     int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency        string    `gorm:"type:varchar(8);not null;default:'usd'" json:"currency"`
	Status          string    `gorm:"type:varchar(32);not null;default:'succeeded'" json:"status"`
	RelatedOrderID  *uint     `gorm:"default:null;index" json:"related_order_id,omitempty"`
	MetadataJSON    string    `gorm:"type:text" json:"metadata_json"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRefund reports whether the row records a refund transaction.
func (o *Order) IsRefund() bool {
	return o.OrderType == OrderTypeRefund
}

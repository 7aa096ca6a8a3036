package models

import "time"

const (
	CreditTypeOneTime      = "one_time"
	CreditTypeSubscription = "subscription"
)

const (
	CreditActionGrant    = "grant"
	CreditActionRevoke   = "revoke"
	CreditActionReset    = "reset"
	CreditActionAllocate = "allocate"
	CreditActionDeduct   = "deduct"
	CreditActionAdjust   = "adjust"
)

// CreditLog is the append-only audit trail of every credit mutation. Rows are
// written by the credits package in the same transaction as the balance
// change they describe.
type CreditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	CreditType   string    `gorm:"type:varchar(20);not null;index" json:"credit_type"`
	Action       string    `gorm:"type:varchar(20);not null;index" json:"action"`
	Amount       int64     `gorm:"not null" json:"amount"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	OrderID      *uint     `gorm:"default:null;index" json:"order_id,omitempty"`
	Reference    string    `gorm:"type:varchar(191);default:''" json:"reference"`
	Description  string    `gorm:"type:varchar(255);default:''" json:"description"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

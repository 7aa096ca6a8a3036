package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Usage holds a user's credit balances. Balances are mutated exclusively
// through the credits package, which pairs every change with a CreditLog row
// inside one transaction; nothing else may write these columns.
type Usage struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	OneTimeCredits      int64     `gorm:"not null;default:0" json:"one_time_credits"`
	SubscriptionCredits int64     `gorm:"not null;default:0" json:"subscription_credits"`
	AllocationJSON      string    `gorm:"type:text" json:"allocation_json"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// YearlyAllocation is the drip schedule sidecar stored on the usage row for
// annual-billing plans: a fixed monthly amount granted over N months instead
// of one lump sum at invoice time.
type YearlyAllocation struct {
	MonthlyCredits   int64      `json:"monthly_credits"`
	TotalMonths      int        `json:"total_months"`
	RemainingMonths  int        `json:"remaining_months"`
	NextAllocationAt time.Time  `json:"next_allocation_at"`
	LastAllocatedAt  *time.Time `json:"last_allocated_at,omitempty"`
}

// TotalCredits returns the combined spendable balance.
func (u *Usage) TotalCredits() int64 {
	return u.OneTimeCredits + u.SubscriptionCredits
}

// Allocation decodes the yearly drip sidecar, returning nil when none is set.
func (u *Usage) Allocation() (*YearlyAllocation, error) {
	raw := strings.TrimSpace(u.AllocationJSON)
	if raw == "" {
		return nil, nil
	}
	var a YearlyAllocation
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAllocation encodes the sidecar; nil clears it.
func (u *Usage) SetAllocation(a *YearlyAllocation) error {
	if a == nil {
		u.AllocationJSON = ""
		return nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	u.AllocationJSON = string(raw)
	return nil
}

// GetOrCreateUsage returns existing usage counters or creates a zeroed row.
func GetOrCreateUsage(db *gorm.DB, userID uint) (*Usage, error) {
	var usage Usage
	if err := db.Where("user_id = ?", userID).First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			usage = Usage{UserID: userID}
			if err := db.Create(&usage).Error; err != nil {
				return nil, err
			}
			return &usage, nil
		}
		return nil, err
	}
	return &usage, nil
}

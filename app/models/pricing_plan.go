package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	PlanIntervalOneTime = "one_time"
	PlanIntervalMonth   = "month"
	PlanIntervalYear    = "year"
)

// PricingPlan is a purchasable offering. The benefits column is a
// machine-readable map consumed by the billing reconciliation flow; billing
// code treats plans as read-only.
type PricingPlan struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description   string         `gorm:"type:text" json:"description"`
	Interval      string         `gorm:"type:varchar(16);not null;default:'one_time';index" json:"interval" validate:"oneof=one_time month year"`
	AmountCents   int64          `gorm:"not null;default:0" json:"amount_cents" validate:"gte=0"`
	Currency      string         `gorm:"type:varchar(8);not null;default:'usd'" json:"currency"`
	StripePriceID string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_price_id" validate:"required"`
	BenefitsJSON  string         `gorm:"type:text" json:"benefits_json"`
	IsActive      bool           `gorm:"default:true;index" json:"is_active"`
	SortOrder     int            `gorm:"default:0" json:"sort_order"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// PlanBenefits is the decoded benefits map of a pricing plan.
type PlanBenefits struct {
	OneTimeCredits int64 `json:"one_time_credits"`
	MonthlyCredits int64 `json:"monthly_credits"`
	TotalMonths    int   `json:"total_months"`
}

func (p *PricingPlan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// Benefits decodes the benefits column. An empty column yields zero benefits
// rather than an error so plans without credit grants stay valid.
func (p *PricingPlan) Benefits() (PlanBenefits, error) {
	var b PlanBenefits
	raw := strings.TrimSpace(p.BenefitsJSON)
	if raw == "" {
		return b, nil
	}
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return PlanBenefits{}, err
	}
	return b, nil
}

// SetBenefits encodes and stores the benefits map.
func (p *PricingPlan) SetBenefits(b PlanBenefits) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	p.BenefitsJSON = string(raw)
	return nil
}

// IsRecurring reports whether the plan bills on a subscription interval.
func (p *PricingPlan) IsRecurring() bool {
	return p.Interval == PlanIntervalMonth || p.Interval == PlanIntervalYear
}

package repository

import (
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new pricing plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// Create creates a new pricing plan
func (r *planRepository) Create(plan *models.PricingPlan) error {
	return r.db.Create(plan).Error
}

// GetByID retrieves a plan by ID
func (r *planRepository) GetByID(id uint) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByStripePriceID retrieves a plan by its provider price id
func (r *planRepository) GetByStripePriceID(priceID string) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	if err := r.db.Where("stripe_price_id = ?", priceID).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetActive retrieves plans shown on the pricing page
func (r *planRepository) GetActive() ([]models.PricingPlan, error) {
	var plans []models.PricingPlan
	err := r.db.Where("is_active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&plans).Error
	return plans, err
}

// GetAll retrieves every plan including inactive ones
func (r *planRepository) GetAll() ([]models.PricingPlan, error) {
	var plans []models.PricingPlan
	err := r.db.Order("sort_order ASC, id ASC").Find(&plans).Error
	return plans, err
}

// Update updates a pricing plan
func (r *planRepository) Update(plan *models.PricingPlan) error {
	return r.db.Save(plan).Error
}

// Delete soft-deletes a pricing plan
func (r *planRepository) Delete(id uint) error {
	return r.db.Delete(&models.PricingPlan{}, id).Error
}

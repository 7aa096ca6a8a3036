package repository

import (
	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
}

// PostRepository defines the interface for blog post operations
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id uint) (*models.Post, error)
	GetBySlug(slug string) (*models.Post, error)
	GetPublished(offset, limit int) ([]models.Post, error)
	GetPublishedByTag(tagSlug string, offset, limit int) ([]models.Post, error)
	GetAll(offset, limit int) ([]models.Post, error)
	Update(post *models.Post) error
	Delete(id uint) error
	Count() (int64, error)
	CountPublished() (int64, error)
	SlugExists(slug string) (bool, error)
	SlugExistsExceptID(slug string, id uint) (bool, error)
	ReplaceTags(post *models.Post, tags []models.Tag) error
}

// TagRepository defines the interface for tag operations
type TagRepository interface {
	GetOrCreateByNames(names []string) ([]models.Tag, error)
	GetBySlug(slug string) (*models.Tag, error)
	GetAll() ([]models.Tag, error)
	Delete(id uint) error
}

// PlanRepository defines the interface for pricing plan operations
type PlanRepository interface {
	Create(plan *models.PricingPlan) error
	GetByID(id uint) (*models.PricingPlan, error)
	GetByStripePriceID(priceID string) (*models.PricingPlan, error)
	GetActive() ([]models.PricingPlan, error)
	GetAll() ([]models.PricingPlan, error)
	Update(plan *models.PricingPlan) error
	Delete(id uint) error
}

// OrderRepository defines the read-side interface for the order ledger.
// Writes go through the billing service only.
type OrderRepository interface {
	GetByID(id uint) (*models.Order, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Order, error)
	List(offset, limit int) ([]models.Order, error)
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
}

// SubscriptionRepository defines the read-side interface for the
// subscription mirror.
type SubscriptionRepository interface {
	GetByUserID(userID uint) ([]models.Subscription, error)
	GetActiveByUserID(userID uint) (*models.Subscription, error)
	List(offset, limit int) ([]models.Subscription, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Post         PostRepository
	Tag          TagRepository
	Plan         PlanRepository
	Order        OrderRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Post:         NewPostRepository(db),
		Tag:          NewTagRepository(db),
		Plan:         NewPlanRepository(db),
		Order:        NewOrderRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}

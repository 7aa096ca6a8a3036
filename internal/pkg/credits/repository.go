package credits

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yicheng0/tryveo4/app/models"
)

// MutateFunc receives the usage row locked for update, applies balance and
// sidecar changes in place, and returns the audit rows describing them.
type MutateFunc func(usage *models.Usage) ([]models.CreditLog, error)

// Repository is the storage boundary for credit mutations. Mutate must apply
// the whole change atomically: lock the usage row, run fn, persist the row
// and its audit entries, all inside one transaction. This is the lost-update
// guard the webhook handlers rely on under concurrent delivery.
type Repository interface {
	GetUsage(ctx context.Context, userID uint) (*models.Usage, error)
	Mutate(ctx context.Context, userID uint, fn MutateFunc) (*models.Usage, error)
	ListLogs(ctx context.Context, userID uint, limit int) ([]models.CreditLog, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credits repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUsage(ctx context.Context, userID uint) (*models.Usage, error) {
	return models.GetOrCreateUsage(r.db.WithContext(ctx), userID)
}

func (r *gormRepository) Mutate(ctx context.Context, userID uint, fn MutateFunc) (*models.Usage, error) {
	var out models.Usage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var usage models.Usage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&usage).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			usage = models.Usage{UserID: userID}
			if err := tx.Create(&usage).Error; err != nil {
				return err
			}
			// Re-read under lock so concurrent creators serialize here.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ?", userID).
				First(&usage).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		logs, err := fn(&usage)
		if err != nil {
			return err
		}
		if err := tx.Save(&usage).Error; err != nil {
			return err
		}
		for i := range logs {
			logs[i].UserID = userID
			if err := tx.Create(&logs[i]).Error; err != nil {
				return err
			}
		}
		out = usage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *gormRepository) ListLogs(ctx context.Context, userID uint, limit int) ([]models.CreditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.CreditLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

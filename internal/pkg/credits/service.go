package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// ErrInsufficientCredits is returned by Deduct when the combined balance
// cannot cover the requested amount.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Service exposes the named atomic credit operations. Handlers never
// read-modify-write balances themselves; every mutation goes through here so
// the audit log and the balance always change together.
type Service struct {
	repo Repository
}

// NewService creates a credits service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a credits service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// GetUsage returns the user's usage row, creating a zeroed one if missing.
func (s *Service) GetUsage(ctx context.Context, userID uint) (*models.Usage, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	return s.repo.GetUsage(ctx, userID)
}

// ListLogs returns the most recent audit entries for a user.
func (s *Service) ListLogs(ctx context.Context, userID uint, limit int) ([]models.CreditLog, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	return s.repo.ListLogs(ctx, userID, limit)
}

// GrantOneTime adds purchased credits to the one-time balance.
func (s *Service) GrantOneTime(ctx context.Context, userID uint, amount int64, orderID *uint, reference string) (*models.Usage, error) {
	if userID == 0 || amount <= 0 {
		return nil, fmt.Errorf("invalid one-time grant: user=%d amount=%d", userID, amount)
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		usage.OneTimeCredits += amount
		return []models.CreditLog{{
			CreditType:   models.CreditTypeOneTime,
			Action:       models.CreditActionGrant,
			Amount:       amount,
			BalanceAfter: usage.OneTimeCredits,
			OrderID:      orderID,
			Reference:    reference,
		}}, nil
	})
}

// RevokeOneTime removes previously granted one-time credits, clamping at
// zero. Used by the refund path with the original grant amount.
func (s *Service) RevokeOneTime(ctx context.Context, userID uint, amount int64, orderID *uint, reference string) (*models.Usage, error) {
	if userID == 0 || amount <= 0 {
		return nil, fmt.Errorf("invalid one-time revoke: user=%d amount=%d", userID, amount)
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		delta := amount
		if delta > usage.OneTimeCredits {
			delta = usage.OneTimeCredits
		}
		usage.OneTimeCredits -= delta
		return []models.CreditLog{{
			CreditType:   models.CreditTypeOneTime,
			Action:       models.CreditActionRevoke,
			Amount:       -delta,
			BalanceAfter: usage.OneTimeCredits,
			OrderID:      orderID,
			Reference:    reference,
		}}, nil
	})
}

// SetSubscriptionCredits overwrites the subscription balance with the plan's
// monthly amount. Overwriting (not incrementing) makes monthly invoice
// replays idempotent at the balance level.
func (s *Service) SetSubscriptionCredits(ctx context.Context, userID uint, amount int64, orderID *uint, reference string) (*models.Usage, error) {
	if userID == 0 || amount < 0 {
		return nil, fmt.Errorf("invalid subscription reset: user=%d amount=%d", userID, amount)
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		delta := amount - usage.SubscriptionCredits
		usage.SubscriptionCredits = amount
		return []models.CreditLog{{
			CreditType:   models.CreditTypeSubscription,
			Action:       models.CreditActionReset,
			Amount:       delta,
			BalanceAfter: usage.SubscriptionCredits,
			OrderID:      orderID,
			Reference:    reference,
		}}, nil
	})
}

// InitYearlyAllocation writes the drip schedule sidecar for an annual plan:
// the full month count remains to be dripped, nothing is granted up front.
// Any prior subscription balance is reset to zero so a plan change cannot
// leak credits across schedules.
func (s *Service) InitYearlyAllocation(ctx context.Context, userID uint, monthlyCredits int64, totalMonths int, periodStart time.Time, orderID *uint, reference string) (*models.Usage, error) {
	if userID == 0 || monthlyCredits <= 0 || totalMonths <= 0 {
		return nil, fmt.Errorf("invalid yearly allocation: user=%d monthly=%d months=%d", userID, monthlyCredits, totalMonths)
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		delta := -usage.SubscriptionCredits
		usage.SubscriptionCredits = 0
		if err := usage.SetAllocation(&models.YearlyAllocation{
			MonthlyCredits:   monthlyCredits,
			TotalMonths:      totalMonths,
			RemainingMonths:  totalMonths,
			NextAllocationAt: periodStart,
		}); err != nil {
			return nil, err
		}
		return []models.CreditLog{{
			CreditType:   models.CreditTypeSubscription,
			Action:       models.CreditActionReset,
			Amount:       delta,
			BalanceAfter: 0,
			OrderID:      orderID,
			Reference:    reference,
		}}, nil
	})
}

// AllocateDueMonths performs the monthly catch-up drip for yearly schedules:
// every month that has become due since the last run is granted in one
// atomic step. Returns the total amount granted (zero when nothing is due).
func (s *Service) AllocateDueMonths(ctx context.Context, userID uint, now time.Time) (int64, error) {
	if userID == 0 {
		return 0, errors.New("user_id is required")
	}
	var granted int64
	_, err := s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		alloc, err := usage.Allocation()
		if err != nil {
			return nil, err
		}
		due := dueMonths(alloc, now)
		if due == 0 {
			granted = 0
			return nil, nil
		}
		granted = int64(due) * alloc.MonthlyCredits
		usage.SubscriptionCredits += granted
		advanceAllocation(alloc, due, now)
		if err := usage.SetAllocation(alloc); err != nil {
			return nil, err
		}
		return []models.CreditLog{{
			CreditType:   models.CreditTypeSubscription,
			Action:       models.CreditActionAllocate,
			Amount:       granted,
			BalanceAfter: usage.SubscriptionCredits,
			Reference:    fmt.Sprintf("yearly_allocation:%d_months", due),
		}}, nil
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

// RevokeSubscription zeroes the subscription balance on cancellation and,
// for yearly plans, clears the drip sidecar so no further months allocate.
func (s *Service) RevokeSubscription(ctx context.Context, userID uint, clearAllocation bool, reference string) (*models.Usage, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		delta := -usage.SubscriptionCredits
		usage.SubscriptionCredits = 0
		if clearAllocation {
			if err := usage.SetAllocation(nil); err != nil {
				return nil, err
			}
		}
		return []models.CreditLog{{
			CreditType:   models.CreditTypeSubscription,
			Action:       models.CreditActionRevoke,
			Amount:       delta,
			BalanceAfter: 0,
			Reference:    reference,
		}}, nil
	})
}

// Deduct consumes credits, subscription balance first, then one-time.
func (s *Service) Deduct(ctx context.Context, userID uint, amount int64, reference string) (*models.Usage, error) {
	if userID == 0 || amount <= 0 {
		return nil, fmt.Errorf("invalid deduction: user=%d amount=%d", userID, amount)
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		if usage.TotalCredits() < amount {
			return nil, ErrInsufficientCredits
		}
		var logs []models.CreditLog
		remaining := amount
		if usage.SubscriptionCredits > 0 {
			take := remaining
			if take > usage.SubscriptionCredits {
				take = usage.SubscriptionCredits
			}
			usage.SubscriptionCredits -= take
			remaining -= take
			logs = append(logs, models.CreditLog{
				CreditType:   models.CreditTypeSubscription,
				Action:       models.CreditActionDeduct,
				Amount:       -take,
				BalanceAfter: usage.SubscriptionCredits,
				Reference:    reference,
			})
		}
		if remaining > 0 {
			usage.OneTimeCredits -= remaining
			logs = append(logs, models.CreditLog{
				CreditType:   models.CreditTypeOneTime,
				Action:       models.CreditActionDeduct,
				Amount:       -remaining,
				BalanceAfter: usage.OneTimeCredits,
				Reference:    reference,
			})
		}
		return logs, nil
	})
}

// AdminAdjust applies a manual signed adjustment to one balance.
func (s *Service) AdminAdjust(ctx context.Context, userID uint, creditType string, delta int64, description string) (*models.Usage, error) {
	if userID == 0 || delta == 0 {
		return nil, fmt.Errorf("invalid adjustment: user=%d delta=%d", userID, delta)
	}
	if creditType != models.CreditTypeOneTime && creditType != models.CreditTypeSubscription {
		return nil, fmt.Errorf("unknown credit type %q", creditType)
	}
	return s.repo.Mutate(ctx, userID, func(usage *models.Usage) ([]models.CreditLog, error) {
		var after int64
		switch creditType {
		case models.CreditTypeOneTime:
			if usage.OneTimeCredits+delta < 0 {
				return nil, ErrInsufficientCredits
			}
			usage.OneTimeCredits += delta
			after = usage.OneTimeCredits
		case models.CreditTypeSubscription:
			if usage.SubscriptionCredits+delta < 0 {
				return nil, ErrInsufficientCredits
			}
			usage.SubscriptionCredits += delta
			after = usage.SubscriptionCredits
		}
		return []models.CreditLog{{
			CreditType:   creditType,
			Action:       models.CreditActionAdjust,
			Amount:       delta,
			BalanceAfter: after,
			Description:  description,
		}}, nil
	})
}

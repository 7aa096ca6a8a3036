package billing

import (
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/yicheng0/tryveo4/app/models"
)

// ResolutionSource tags how an identity was resolved, making the fallback
// order explicit and testable instead of burying it in optional chaining.
type ResolutionSource string

const (
	ResolvedViaMetadata ResolutionSource = "metadata"
	ResolvedViaDB       ResolutionSource = "db"
	Unresolved          ResolutionSource = "unresolved"
)

// UserResolution is the outcome of resolving the owning user of an event.
type UserResolution struct {
	User   *models.User
	Source ResolutionSource
}

// PlanResolution is the outcome of resolving the plan behind an event.
type PlanResolution struct {
	Plan   *models.PricingPlan
	Source ResolutionSource
}

// ErrUnresolvedIdentity is returned when neither metadata nor lookups can
// attribute an event. Webhook processing aborts so the provider redelivers.
var ErrUnresolvedIdentity = errors.New("unresolved billing identity")

// resolveUser attributes an event to a local user: the user_id metadata key
// wins, then a DB lookup by provider customer id.
func resolveUser(repo Repository, metadata map[string]string, customerID string) (UserResolution, error) {
	if raw := strings.TrimSpace(metadata["user_id"]); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err == nil && id > 0 {
			user, err := repo.GetUserByID(uint(id))
			if err == nil {
				return UserResolution{User: user, Source: ResolvedViaMetadata}, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return UserResolution{Source: Unresolved}, err
			}
		}
	}

	if cid := strings.TrimSpace(customerID); cid != "" {
		user, err := repo.GetUserByCustomerID(cid)
		if err == nil {
			return UserResolution{User: user, Source: ResolvedViaDB}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return UserResolution{Source: Unresolved}, err
		}
	}

	return UserResolution{Source: Unresolved}, ErrUnresolvedIdentity
}

// resolvePlan attributes an event to a pricing plan: the plan_id metadata key
// wins, then a lookup by provider price id.
func resolvePlan(repo Repository, metadata map[string]string, priceID string) (PlanResolution, error) {
	if raw := strings.TrimSpace(metadata["plan_id"]); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err == nil && id > 0 {
			plan, err := repo.GetPlanByID(uint(id))
			if err == nil {
				return PlanResolution{Plan: plan, Source: ResolvedViaMetadata}, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return PlanResolution{Source: Unresolved}, err
			}
		}
	}

	if pid := strings.TrimSpace(priceID); pid != "" {
		plan, err := repo.GetPlanByPriceID(pid)
		if err == nil {
			return PlanResolution{Plan: plan, Source: ResolvedViaDB}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return PlanResolution{Source: Unresolved}, err
		}
	}

	return PlanResolution{Source: Unresolved}, ErrUnresolvedIdentity
}

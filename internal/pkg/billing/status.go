package billing

import (
	"strings"

	"github.com/yicheng0/tryveo4/app/models"
)

// MapProviderStatus normalizes a Stripe subscription status to the mirror's
// status set. Unknown values pass through lowercased so a new provider status
// surfaces in the dashboard instead of being swallowed.
func MapProviderStatus(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case "active":
		return models.SubscriptionStatusActive
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "unpaid":
		return models.SubscriptionStatusUnpaid
	case "canceled", "cancelled":
		return models.SubscriptionStatusCanceled
	case "incomplete", "incomplete_expired":
		return models.SubscriptionStatusIncomplete
	default:
		return s
	}
}

// normalizeInterval maps a provider recurrence interval onto the plan
// interval constants.
func normalizeInterval(interval string) string {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "month", "monthly":
		return models.PlanIntervalMonth
	case "year", "yearly", "annual":
		return models.PlanIntervalYear
	default:
		return models.PlanIntervalMonth
	}
}

package credits

import (
	"time"

	"github.com/yicheng0/tryveo4/app/models"
)

// dueMonths counts how many monthly drips are due at now, capped by the
// remaining months of the schedule. The first drip becomes due at
// NextAllocationAt, subsequent ones at one-month steps after it.
func dueMonths(a *models.YearlyAllocation, now time.Time) int {
	if a == nil || a.RemainingMonths <= 0 {
		return 0
	}
	due := 0
	next := a.NextAllocationAt
	for due < a.RemainingMonths && !next.After(now) {
		due++
		next = next.AddDate(0, 1, 0)
	}
	return due
}

// advanceAllocation consumes n due months from the schedule in place.
func advanceAllocation(a *models.YearlyAllocation, n int, now time.Time) {
	if a == nil || n <= 0 {
		return
	}
	if n > a.RemainingMonths {
		n = a.RemainingMonths
	}
	a.RemainingMonths -= n
	a.NextAllocationAt = a.NextAllocationAt.AddDate(0, n, 0)
	t := now
	a.LastAllocatedAt = &t
}

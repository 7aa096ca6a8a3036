package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageAllocationRoundTrip(t *testing.T) {
	u := &Usage{}

	alloc, err := u.Allocation()
	require.NoError(t, err)
	assert.Nil(t, alloc, "empty sidecar should decode to nil")

	next := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, u.SetAllocation(&YearlyAllocation{
		MonthlyCredits:   100,
		TotalMonths:      12,
		RemainingMonths:  12,
		NextAllocationAt: next,
	}))

	alloc, err = u.Allocation()
	require.NoError(t, err)
	require.NotNil(t, alloc)
	assert.Equal(t, int64(100), alloc.MonthlyCredits)
	assert.Equal(t, 12, alloc.RemainingMonths)
	assert.True(t, alloc.NextAllocationAt.Equal(next))

	require.NoError(t, u.SetAllocation(nil))
	assert.Equal(t, "", u.AllocationJSON)
}

func TestUsageAllocationMalformed(t *testing.T) {
	u := &Usage{AllocationJSON: `{"monthly_credits":`}
	_, err := u.Allocation()
	require.Error(t, err)
}

func TestUsageTotalCredits(t *testing.T) {
	u := &Usage{OneTimeCredits: 40, SubscriptionCredits: 60}
	assert.Equal(t, int64(100), u.TotalCredits())
}

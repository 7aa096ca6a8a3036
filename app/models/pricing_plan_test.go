package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingPlanBenefits(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    PlanBenefits
		wantErr bool
	}{
		{
			name: "one-time pack",
			raw:  `{"one_time_credits": 500}`,
			want: PlanBenefits{OneTimeCredits: 500},
		},
		{
			name: "yearly drip",
			raw:  `{"monthly_credits": 100, "total_months": 12}`,
			want: PlanBenefits{MonthlyCredits: 100, TotalMonths: 12},
		},
		{
			name: "empty column",
			raw:  "",
			want: PlanBenefits{},
		},
		{
			name:    "malformed json",
			raw:     `{"one_time_credits":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PricingPlan{BenefitsJSON: tt.raw}
			got, err := p.Benefits()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPricingPlanSetBenefitsRoundTrip(t *testing.T) {
	p := &PricingPlan{}
	require.NoError(t, p.SetBenefits(PlanBenefits{MonthlyCredits: 250, TotalMonths: 12}))

	got, err := p.Benefits()
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.MonthlyCredits)
	assert.Equal(t, 12, got.TotalMonths)
}

func TestPricingPlanIsRecurring(t *testing.T) {
	assert.False(t, (&PricingPlan{Interval: PlanIntervalOneTime}).IsRecurring())
	assert.True(t, (&PricingPlan{Interval: PlanIntervalMonth}).IsRecurring())
	assert.True(t, (&PricingPlan{Interval: PlanIntervalYear}).IsRecurring())
}

package credits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yicheng0/tryveo4/app/models"
)

// fakeRepository applies mutations against in-memory usage rows, mirroring
// the atomicity contract of the GORM implementation.
type fakeRepository struct {
	usages map[uint]*models.Usage
	logs   []models.CreditLog
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{usages: map[uint]*models.Usage{}}
}

func (f *fakeRepository) GetUsage(_ context.Context, userID uint) (*models.Usage, error) {
	u, ok := f.usages[userID]
	if !ok {
		u = &models.Usage{UserID: userID}
		f.usages[userID] = u
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepository) Mutate(_ context.Context, userID uint, fn MutateFunc) (*models.Usage, error) {
	u, ok := f.usages[userID]
	if !ok {
		u = &models.Usage{UserID: userID}
		f.usages[userID] = u
	}
	work := *u
	logs, err := fn(&work)
	if err != nil {
		return nil, err
	}
	*u = work
	for i := range logs {
		logs[i].UserID = userID
		f.logs = append(f.logs, logs[i])
	}
	cp := work
	return &cp, nil
}

func (f *fakeRepository) ListLogs(_ context.Context, userID uint, limit int) ([]models.CreditLog, error) {
	var out []models.CreditLog
	for _, l := range f.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func TestGrantAndRevokeOneTime(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	usage, err := svc.GrantOneTime(ctx, 1, 500, nil, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), usage.OneTimeCredits)

	// Revoke clamps at zero even if more was asked than remains.
	_, err = svc.Deduct(ctx, 1, 100, "demo")
	require.NoError(t, err)
	usage, err = svc.RevokeOneTime(ctx, 1, 500, nil, "re_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.OneTimeCredits)

	logs, err := svc.ListLogs(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, models.CreditActionGrant, logs[0].Action)
	assert.Equal(t, models.CreditActionRevoke, logs[2].Action)
	assert.Equal(t, int64(-400), logs[2].Amount, "revoke logs the actual delta after clamping")
}

func TestGrantOneTimeRejectsInvalidInput(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, err := svc.GrantOneTime(context.Background(), 0, 100, nil, "")
	assert.Error(t, err)
	_, err = svc.GrantOneTime(context.Background(), 1, 0, nil, "")
	assert.Error(t, err)
}

func TestSetSubscriptionCreditsOverwrites(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	usage, err := svc.SetSubscriptionCredits(ctx, 7, 200, nil, "in_1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), usage.SubscriptionCredits)

	// Replaying the same reset is a balance-level no-op.
	usage, err = svc.SetSubscriptionCredits(ctx, 7, 200, nil, "in_1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), usage.SubscriptionCredits)

	// A lower plan amount overwrites rather than tops up.
	usage, err = svc.SetSubscriptionCredits(ctx, 7, 50, nil, "in_2")
	require.NoError(t, err)
	assert.Equal(t, int64(50), usage.SubscriptionCredits)
}

func TestYearlyAllocationLifecycle(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	usage, err := svc.InitYearlyAllocation(ctx, 3, 100, 12, periodStart, nil, "in_year_1")
	require.NoError(t, err)

	// No lump-sum grant at init time.
	assert.Equal(t, int64(0), usage.SubscriptionCredits)
	alloc, err := usage.Allocation()
	require.NoError(t, err)
	require.NotNil(t, alloc)
	assert.Equal(t, 12, alloc.RemainingMonths)
	assert.Equal(t, int64(100), alloc.MonthlyCredits)

	// First catch-up grants exactly one month.
	granted, err := svc.AllocateDueMonths(ctx, 3, periodStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(100), granted)

	// Three more months elapse: drip catches up in one call.
	granted, err = svc.AllocateDueMonths(ctx, 3, periodStart.AddDate(0, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(300), granted)

	usage, err = svc.GetUsage(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(400), usage.SubscriptionCredits)
	alloc, err = usage.Allocation()
	require.NoError(t, err)
	assert.Equal(t, 8, alloc.RemainingMonths)

	// Nothing due right after a catch-up.
	granted, err = svc.AllocateDueMonths(ctx, 3, periodStart.AddDate(0, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), granted)
}

func TestRevokeSubscriptionClearsAllocation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()
	periodStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.InitYearlyAllocation(ctx, 9, 100, 12, periodStart, nil, "in_year")
	require.NoError(t, err)
	_, err = svc.AllocateDueMonths(ctx, 9, periodStart)
	require.NoError(t, err)

	usage, err := svc.RevokeSubscription(ctx, 9, true, "sub_deleted")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.SubscriptionCredits)
	alloc, err := usage.Allocation()
	require.NoError(t, err)
	assert.Nil(t, alloc, "sidecar must be cleared so no further months drip")
}

func TestDeductPrefersSubscriptionCredits(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.GrantOneTime(ctx, 5, 50, nil, "pi_x")
	require.NoError(t, err)
	_, err = svc.SetSubscriptionCredits(ctx, 5, 30, nil, "in_x")
	require.NoError(t, err)

	usage, err := svc.Deduct(ctx, 5, 40, "generation")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.SubscriptionCredits)
	assert.Equal(t, int64(40), usage.OneTimeCredits)

	_, err = svc.Deduct(ctx, 5, 41, "generation")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	// Failed deduction must not change balances.
	usage, err = svc.GetUsage(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(40), usage.TotalCredits())
}

func TestAdminAdjust(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	usage, err := svc.AdminAdjust(ctx, 2, models.CreditTypeOneTime, 25, "support goodwill")
	require.NoError(t, err)
	assert.Equal(t, int64(25), usage.OneTimeCredits)

	_, err = svc.AdminAdjust(ctx, 2, models.CreditTypeOneTime, -50, "oops")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	_, err = svc.AdminAdjust(ctx, 2, "bogus", 10, "")
	assert.Error(t, err)
}

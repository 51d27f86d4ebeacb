package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"github.com/smallbiznis/dreamline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	admin = identitydomain.Identity{SubjectID: "a1", Role: identitydomain.RoleAdmin}
	user  = identitydomain.Identity{SubjectID: "u1", Role: identitydomain.RoleUser}
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.SeedSettings(t, db, "0.3", "USD")
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		AuthzSvc: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
	}).(*Service)
	return svc, db
}

func TestSnapshotReadsSeededSettings(t *testing.T) {
	svc, db := newTestService(t)

	snap, err := svc.Snapshot(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, snap.Rate.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, "USD", snap.Currency)
	assert.Equal(t, int64(1), snap.Version)
}

func TestUpdateCommissionRateBumpsVersion(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	updated, err := svc.UpdateCommissionRate(ctx, admin, decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	assert.Equal(t, "0.25", updated.CommissionRate)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "a1", *updated.UpdatedBy)

	snap, err := svc.Snapshot(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
}

func TestUpdateCommissionRateRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateCommissionRate(ctx, admin, decimal.RequireFromString("1.01"))
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidCommissionRate)

	_, err = svc.UpdateCommissionRate(ctx, admin, decimal.RequireFromString("-0.1"))
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidCommissionRate)

	_, err = svc.UpdateCommissionRate(ctx, user, decimal.RequireFromString("0.1"))
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Get(ctx, user)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestSnapshotWithoutSettings(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Clock: clock.NewFakeClock(time.Now())}).(*Service)

	_, err := svc.Snapshot(context.Background(), nil)
	assert.ErrorIs(t, err, settingsdomain.ErrSettingsMissing)
}

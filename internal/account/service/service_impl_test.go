package service

import (
	"context"
	"testing"
	"time"

	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	"github.com/smallbiznis/dreamline/internal/account/repository"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
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
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		AuthzSvc: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
	}).(*Service)
	return svc, db
}

func TestGrantCreditsCreatesAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.GrantCredits(ctx, admin, "u2", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), account.Credits)
	assert.Equal(t, accountdomain.PlanFree, account.Plan)

	account, err = svc.GrantCredits(ctx, admin, "u2", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), account.Credits)
}

func TestGrantCreditsValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GrantCredits(ctx, admin, "u2", 0)
	assert.ErrorIs(t, err, accountdomain.ErrInvalidCredits)

	_, err = svc.GrantCredits(ctx, admin, " ", 1)
	assert.ErrorIs(t, err, accountdomain.ErrInvalidSubject)

	_, err = svc.GrantCredits(ctx, user, "u1", 10)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestSetPlanRejectsPaidGuest(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&accountdomain.Account{SubjectID: "g1", IsGuest: true, Plan: accountdomain.PlanFree, CreatedAt: now, UpdatedAt: now}).Error)

	_, err := svc.SetPlan(ctx, admin, "g1", accountdomain.PlanPaid)
	assert.ErrorIs(t, err, accountdomain.ErrGuestAccount)

	account, err := svc.SetPlan(ctx, admin, "u3", accountdomain.PlanPaid)
	require.NoError(t, err)
	assert.Equal(t, accountdomain.PlanPaid, account.Plan)

	_, err = svc.SetPlan(ctx, admin, "u3", accountdomain.Plan("gold"))
	assert.ErrorIs(t, err, accountdomain.ErrInvalidPlan)
}

func TestGetAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, admin, "missing")
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)

	_, err = svc.GrantCredits(ctx, admin, "u4", 1)
	require.NoError(t, err)
	account, err := svc.Get(ctx, admin, "u4")
	require.NoError(t, err)
	assert.Equal(t, "u4", account.SubjectID)
}

package authorization

import (
	"context"
	"testing"

	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"github.com/smallbiznis/dreamline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAuditSvc struct {
	mock.Mock
}

func (m *mockAuditSvc) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	args := m.Called(ctx, actorType, actorID, action, targetType, targetID, metadata)
	return args.Error(0)
}

func (m *mockAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestService(t *testing.T, audit auditdomain.Service) Service {
	t.Helper()
	enforcer, err := NewEnforcer(testutil.OpenDB(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit})
}

func TestAuthorizeRolePermissions(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	user := identitydomain.Identity{SubjectID: "u1", Role: identitydomain.RoleUser}
	guest := identitydomain.Identity{SubjectID: "g1", IsGuest: true, Role: identitydomain.RoleUser}
	interpreter := identitydomain.Identity{SubjectID: "i1", Role: identitydomain.RoleInterpreter}
	admin := identitydomain.Identity{SubjectID: "a1", Role: identitydomain.RoleAdmin}
	system := identitydomain.Identity{SubjectID: "payments", Role: identitydomain.RoleSystem}

	tests := []struct {
		name    string
		actor   identitydomain.Identity
		object  string
		action  string
		allowed bool
	}{
		{"user creates", user, ObjectOrder, string(orderdomain.ActionCreate), true},
		{"guest creates", guest, ObjectOrder, string(orderdomain.ActionCreate), true},
		{"user cannot complete", user, ObjectOrder, string(orderdomain.ActionComplete), false},
		{"user cannot cancel", user, ObjectOrder, string(orderdomain.ActionCancel), false},
		{"interpreter completes", interpreter, ObjectOrder, string(orderdomain.ActionComplete), true},
		{"interpreter cannot create", interpreter, ObjectOrder, string(orderdomain.ActionCreate), false},
		{"interpreter cannot assign", interpreter, ObjectOrder, string(orderdomain.ActionAssign), false},
		{"admin cancels", admin, ObjectOrder, string(orderdomain.ActionCancel), true},
		{"admin cannot complete", admin, ObjectOrder, string(orderdomain.ActionComplete), false},
		{"admin updates settings", admin, ObjectSettings, ActionSettingsUpdate, true},
		{"user cannot view settings", user, ObjectSettings, ActionSettingsView, false},
		{"system marks paid", system, ObjectOrder, string(orderdomain.ActionMarkPaid), true},
		{"system cannot update settings", system, ObjectSettings, ActionSettingsUpdate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tt.actor, tt.object, tt.action)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeRejectsInvalidActor(t *testing.T) {
	svc := newTestService(t, nil)
	err := svc.Authorize(context.Background(), identitydomain.Identity{Role: identitydomain.RoleAdmin}, ObjectOrder, "order.view")
	assert.ErrorIs(t, err, ErrInvalidActor)

	err = svc.Authorize(context.Background(), identitydomain.Identity{SubjectID: "x", Role: "root"}, ObjectOrder, "order.view")
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestAuthorizeAuditsDenial(t *testing.T) {
	audit := &mockAuditSvc{}
	audit.On("AuditLog", mock.Anything, "user", mock.Anything, "authorization.denied", "authorization", mock.Anything, mock.Anything).Return(nil).Once()
	svc := newTestService(t, audit)

	err := svc.Authorize(context.Background(), identitydomain.Identity{SubjectID: "u1", Role: identitydomain.RoleUser}, ObjectAuditLog, ActionAuditLogView)
	assert.ErrorIs(t, err, ErrForbidden)
	audit.AssertExpectations(t)
}

package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrder       = "order"
	ObjectInterpreter = "interpreter"
	ObjectSettings    = "settings"
	ObjectAuditLog    = "audit_log"
	ObjectAccount     = "account"
	ObjectLedger      = "ledger"
)

const (
	ActionInterpreterView   = "interpreter.view"
	ActionInterpreterCreate = "interpreter.create"
	ActionInterpreterUpdate = "interpreter.update"

	ActionSettingsView   = "settings.view"
	ActionSettingsUpdate = "settings.update"

	ActionAuditLogView = "audit_log.view"

	ActionAccountView   = "account.view"
	ActionAccountUpdate = "account.update"

	ActionLedgerView = "ledger.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor identitydomain.Identity, object string, action string) error {
	if err := actor.Validate(); err != nil {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(actor.Role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor identitydomain.Identity, object string, action string) {
	s.log.Debug("authorization denied",
		zap.String("role", string(actor.Role)),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	subjectID := actor.SubjectID
	targetID := object
	if err := s.auditSvc.AuditLog(ctx, string(actor.Role), &subjectID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   string(actor.Role),
	}); err != nil {
		s.log.Warn("failed to audit authorization denial", zap.Error(err))
	}
}

func roleSubject(role identitydomain.Role) string {
	return "role:" + string(role)
}

func order(action orderdomain.Action) string {
	return string(action)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Users own orders
		{"role:user", ObjectOrder, order(orderdomain.ActionCreate)},
		{"role:user", ObjectOrder, order(orderdomain.ActionView)},
		{"role:user", ObjectOrder, order(orderdomain.ActionAssign)},
		{"role:user", ObjectOrder, order(orderdomain.ActionRequestClarification)},
		{"role:user", ObjectOrder, order(orderdomain.ActionClose)},
		{"role:user", ObjectInterpreter, ActionInterpreterView},

		// Interpreters fulfil assigned orders
		{"role:interpreter", ObjectOrder, order(orderdomain.ActionView)},
		{"role:interpreter", ObjectOrder, order(orderdomain.ActionStart)},
		{"role:interpreter", ObjectOrder, order(orderdomain.ActionComplete)},
		{"role:interpreter", ObjectOrder, order(orderdomain.ActionAnswerClarification)},
		{"role:interpreter", ObjectInterpreter, ActionInterpreterView},
		{"role:interpreter", ObjectLedger, ActionLedgerView},

		// Admin
		{"role:admin", ObjectOrder, order(orderdomain.ActionView)},
		{"role:admin", ObjectOrder, order(orderdomain.ActionAssign)},
		{"role:admin", ObjectOrder, order(orderdomain.ActionClose)},
		{"role:admin", ObjectOrder, order(orderdomain.ActionCancel)},
		{"role:admin", ObjectOrder, order(orderdomain.ActionMarkPaid)},
		{"role:admin", ObjectInterpreter, ActionInterpreterView},
		{"role:admin", ObjectInterpreter, ActionInterpreterCreate},
		{"role:admin", ObjectInterpreter, ActionInterpreterUpdate},
		{"role:admin", ObjectSettings, ActionSettingsView},
		{"role:admin", ObjectSettings, ActionSettingsUpdate},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
		{"role:admin", ObjectAccount, ActionAccountView},
		{"role:admin", ObjectAccount, ActionAccountUpdate},
		{"role:admin", ObjectLedger, ActionLedgerView},

		// System (payment webhooks, automated assignment)
		{"role:system", ObjectOrder, order(orderdomain.ActionView)},
		{"role:system", ObjectOrder, order(orderdomain.ActionAssign)},
		{"role:system", ObjectOrder, order(orderdomain.ActionCancel)},
		{"role:system", ObjectOrder, order(orderdomain.ActionMarkPaid)},
		{"role:system", ObjectAccount, ActionAccountUpdate},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

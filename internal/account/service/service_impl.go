package service

import (
	"context"
	"strings"

	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     accountdomain.Repository
	AuthzSvc authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     accountdomain.Repository
	authzSvc authorization.Service
	auditSvc auditdomain.Service
}

func NewService(p Params) accountdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		authzSvc: p.AuthzSvc,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Identity, subjectID string) (*accountdomain.Account, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectAccount, authorization.ActionAccountView); err != nil {
		return nil, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, accountdomain.ErrInvalidSubject
	}

	account, err := s.repo.FindBySubject(ctx, s.db, subjectID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}

// GrantCredits adds paid credits, creating the account when the subject has
// not submitted anything yet.
func (s *Service) GrantCredits(ctx context.Context, actor identitydomain.Identity, subjectID string, credits int64) (*accountdomain.Account, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectAccount, authorization.ActionAccountUpdate); err != nil {
		return nil, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, accountdomain.ErrInvalidSubject
	}
	if credits <= 0 {
		return nil, accountdomain.ErrInvalidCredits
	}

	now := s.clock.Now()
	var updated *accountdomain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.EnsureForUpdate(ctx, tx, subjectID, false, now)
		if err != nil {
			return err
		}
		if account.IsGuest {
			return accountdomain.ErrGuestAccount
		}
		if err := s.repo.AddCredits(ctx, tx, subjectID, credits, now); err != nil {
			return err
		}
		updated, err = s.repo.FindBySubject(ctx, tx, subjectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, "account.credits_granted", subjectID, map[string]any{
		"credits": credits,
		"balance": updated.Credits,
	})
	return updated, nil
}

func (s *Service) SetPlan(ctx context.Context, actor identitydomain.Identity, subjectID string, plan accountdomain.Plan) (*accountdomain.Account, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectAccount, authorization.ActionAccountUpdate); err != nil {
		return nil, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, accountdomain.ErrInvalidSubject
	}
	if !plan.Valid() {
		return nil, accountdomain.ErrInvalidPlan
	}

	now := s.clock.Now()
	var updated *accountdomain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.EnsureForUpdate(ctx, tx, subjectID, false, now)
		if err != nil {
			return err
		}
		if account.IsGuest && plan == accountdomain.PlanPaid {
			return accountdomain.ErrGuestAccount
		}
		if err := s.repo.UpdatePlan(ctx, tx, subjectID, plan, now); err != nil {
			return err
		}
		updated, err = s.repo.FindBySubject(ctx, tx, subjectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, "account.plan_updated", subjectID, map[string]any{"plan": string(plan)})
	return updated, nil
}

func (s *Service) audit(ctx context.Context, actor identitydomain.Identity, action string, subjectID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := actor.SubjectID
	targetID := subjectID
	if err := s.auditSvc.AuditLog(ctx, string(actor.Role), &actorID, action, "account", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

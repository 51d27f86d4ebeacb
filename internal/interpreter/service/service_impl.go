package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	"github.com/smallbiznis/dreamline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     interpreterdomain.Repository
	AuthzSvc authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     interpreterdomain.Repository
	authzSvc authorization.Service
	auditSvc auditdomain.Service
}

func NewService(p Params) interpreterdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("interpreter.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authzSvc: p.AuthzSvc,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, actor identitydomain.Identity, req interpreterdomain.CreateRequest) (*interpreterdomain.Interpreter, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectInterpreter, authorization.ActionInterpreterCreate); err != nil {
		return nil, err
	}

	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return nil, interpreterdomain.ErrInvalidSubject
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, interpreterdomain.ErrInvalidDisplayName
	}
	kind := interpreterdomain.Kind(strings.ToUpper(strings.TrimSpace(string(req.Kind))))
	if !kind.Valid() {
		return nil, interpreterdomain.ErrInvalidKind
	}
	if req.Price < 0 {
		return nil, interpreterdomain.ErrInvalidPrice
	}

	now := s.clock.Now()
	interpreter := &interpreterdomain.Interpreter{
		ID:          s.genID.Generate(),
		SubjectID:   subjectID,
		DisplayName: displayName,
		Kind:        kind,
		Price:       req.Price,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, interpreter); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, interpreterdomain.ErrSubjectTaken
		}
		return nil, err
	}

	s.audit(ctx, actor, "interpreter.created", interpreter, map[string]any{
		"subject_id": interpreter.SubjectID,
		"kind":       string(interpreter.Kind),
		"price":      interpreter.Price,
	})
	return interpreter, nil
}

func (s *Service) Get(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*interpreterdomain.Interpreter, error) {
	if conn == nil {
		conn = s.db
	}
	interpreter, err := s.repo.FindByID(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	if interpreter == nil {
		return nil, interpreterdomain.ErrInterpreterNotFound
	}
	return interpreter, nil
}

func (s *Service) List(ctx context.Context, actor identitydomain.Identity, req interpreterdomain.ListRequest) ([]interpreterdomain.Interpreter, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectInterpreter, authorization.ActionInterpreterView); err != nil {
		return nil, err
	}
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, interpreterdomain.ErrInvalidKind
	}
	if actor.Role != identitydomain.RoleAdmin {
		req.ActiveOnly = true
	}
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) UpdatePrice(ctx context.Context, actor identitydomain.Identity, id string, price int64) (*interpreterdomain.Interpreter, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectInterpreter, authorization.ActionInterpreterUpdate); err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, interpreterdomain.ErrInvalidPrice
	}
	interpreterID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	previous, err := s.Get(ctx, s.db, interpreterID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdatePrice(ctx, s.db, interpreterID, price, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, interpreterdomain.ErrInterpreterNotFound
	}

	updated, err := s.Get(ctx, s.db, interpreterID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "interpreter.price_updated", updated, map[string]any{
		"previous_price": previous.Price,
		"price":          updated.Price,
	})
	return updated, nil
}

func (s *Service) SetActive(ctx context.Context, actor identitydomain.Identity, id string, active bool) (*interpreterdomain.Interpreter, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectInterpreter, authorization.ActionInterpreterUpdate); err != nil {
		return nil, err
	}
	interpreterID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.SetActive(ctx, s.db, interpreterID, active, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, interpreterdomain.ErrInterpreterNotFound
	}

	updated, err := s.Get(ctx, s.db, interpreterID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "interpreter.active_updated", updated, map[string]any{"active": active})
	return updated, nil
}

func (s *Service) audit(ctx context.Context, actor identitydomain.Identity, action string, interpreter *interpreterdomain.Interpreter, metadata map[string]any) {
	if s.auditSvc == nil || interpreter == nil {
		return
	}
	subjectID := actor.SubjectID
	targetID := interpreter.ID.String()
	if err := s.auditSvc.AuditLog(ctx, string(actor.Role), &subjectID, action, "interpreter", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, interpreterdomain.ErrInvalidInterpreter
	}
	return id, nil
}

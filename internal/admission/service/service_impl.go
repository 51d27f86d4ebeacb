package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
	obsmetrics "github.com/smallbiznis/dreamline/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Accounts   accountdomain.Repository
	Orders     admissiondomain.OrderCounter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	accounts   accountdomain.Repository
	orders     admissiondomain.OrderCounter
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) admissiondomain.Service {
	return &Service{
		log:        p.Log.Named("admission.service"),
		accounts:   p.Accounts,
		orders:     p.Orders,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Acquire(ctx context.Context, tx *gorm.DB, subjectID string, isGuest bool, now time.Time) (*accountdomain.Account, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("acquire account: empty subject")
	}
	account, err := s.accounts.EnsureForUpdate(ctx, tx, subjectID, isGuest, now)
	if err != nil {
		return nil, fmt.Errorf("acquire account: %w", err)
	}
	return account, nil
}

func (s *Service) Check(ctx context.Context, tx *gorm.DB, account *accountdomain.Account, req admissiondomain.CheckRequest) (admissiondomain.Decision, error) {
	if account == nil {
		return admissiondomain.Decision{}, accountdomain.ErrAccountNotFound
	}

	decision, err := s.decide(ctx, tx, account, req)
	mode := string(decision.Mode)
	result := "allowed"
	if err != nil {
		mode = "none"
		result = "error"
		var denied *admissiondomain.DeniedError
		if errors.As(err, &denied) {
			result = string(denied.Reason)
		}
	}
	s.obsMetrics.RecordAdmission(mode, result)
	return decision, err
}

func (s *Service) decide(ctx context.Context, tx *gorm.DB, account *accountdomain.Account, req admissiondomain.CheckRequest) (admissiondomain.Decision, error) {
	if req.IsGuest {
		count, err := s.orders.CountLiveBySubject(ctx, tx, req.SubjectID)
		if err != nil {
			return admissiondomain.Decision{}, fmt.Errorf("count guest orders: %w", err)
		}
		if count >= int64(req.Policy.GuestOrderLimit) {
			return admissiondomain.Decision{}, &admissiondomain.DeniedError{Reason: admissiondomain.ReasonGuestExhausted}
		}
		return admissiondomain.Decision{Mode: admissiondomain.ModeGuest}, nil
	}

	window := req.Policy.FreeWindow
	var nextReset *time.Time
	if account.LastFreeGrantAt != nil {
		next := account.LastFreeGrantAt.UTC().Add(window)
		nextReset = &next
	}

	if nextReset == nil || !req.Now.Before(*nextReset) {
		stamped, err := s.accounts.StampFreeGrant(ctx, tx, account.SubjectID, req.Now.Add(-window), req.Now)
		if err != nil {
			return admissiondomain.Decision{}, fmt.Errorf("stamp free grant: %w", err)
		}
		if stamped {
			return admissiondomain.Decision{Mode: admissiondomain.ModeFree}, nil
		}
		// The locked row said the window was open; a miss means a concurrent
		// grant slipped in, so fall through as if the window were closed.
		s.log.Warn("free grant stamp lost", zap.String("subject_id", account.SubjectID))
		if nextReset == nil {
			next := req.Now.Add(window)
			nextReset = &next
		}
	}

	if account.Plan != accountdomain.PlanPaid {
		return admissiondomain.Decision{}, &admissiondomain.DeniedError{
			Reason:      admissiondomain.ReasonDailyLimitReached,
			NextResetAt: nextReset,
		}
	}

	consumed, err := s.accounts.ConsumeCredit(ctx, tx, account.SubjectID, req.Now)
	if err != nil {
		return admissiondomain.Decision{}, fmt.Errorf("consume credit: %w", err)
	}
	if !consumed {
		return admissiondomain.Decision{}, &admissiondomain.DeniedError{
			Reason:      admissiondomain.ReasonNoCredits,
			NextResetAt: nextReset,
		}
	}
	return admissiondomain.Decision{Mode: admissiondomain.ModeCredit}, nil
}

func (s *Service) Refund(ctx context.Context, tx *gorm.DB, subjectID string, mode admissiondomain.Mode, now time.Time) error {
	if mode != admissiondomain.ModeCredit {
		return nil
	}
	if err := s.accounts.AddCredits(ctx, tx, subjectID, 1, now); err != nil {
		return fmt.Errorf("refund credit: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	AuthzSvc authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	authzSvc authorization.Service
	auditSvc auditdomain.Service
}

func NewService(p Params) settingsdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("settings.service"),
		clock:    p.Clock,
		authzSvc: p.AuthzSvc,
		auditSvc: p.AuditSvc,
	}
}

// Snapshot reads the settings row through tx so a settlement and the values it
// was computed against come from the same transaction.
func (s *Service) Snapshot(ctx context.Context, tx *gorm.DB) (settingsdomain.Snapshot, error) {
	if tx == nil {
		tx = s.db
	}
	row, err := s.load(ctx, tx)
	if err != nil {
		return settingsdomain.Snapshot{}, err
	}
	rate, err := decimal.NewFromString(row.CommissionRate)
	if err != nil {
		return settingsdomain.Snapshot{}, fmt.Errorf("parse commission rate: %w", err)
	}
	if err := settingsdomain.ValidateRate(rate); err != nil {
		return settingsdomain.Snapshot{}, err
	}
	return settingsdomain.Snapshot{
		Rate:     rate,
		Currency: row.Currency,
		Version:  row.Version,
	}, nil
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Identity) (*settingsdomain.PlatformSettings, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectSettings, authorization.ActionSettingsView); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db)
}

func (s *Service) UpdateCommissionRate(ctx context.Context, actor identitydomain.Identity, rate decimal.Decimal) (*settingsdomain.PlatformSettings, error) {
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectSettings, authorization.ActionSettingsUpdate); err != nil {
		return nil, err
	}
	if err := settingsdomain.ValidateRate(rate); err != nil {
		return nil, err
	}

	var previous, updated *settingsdomain.PlatformSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		previous = current

		updatedBy := actor.SubjectID
		res := tx.Model(&settingsdomain.PlatformSettings{}).
			Where("id = ? AND version = ?", settingsdomain.SingletonID, current.Version).
			Updates(map[string]any{
				"commission_rate": rate.String(),
				"version":         current.Version + 1,
				"updated_by":      updatedBy,
				"updated_at":      s.clock.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return settingsdomain.ErrSettingsMissing
		}

		updated, err = s.load(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		subjectID := actor.SubjectID
		targetID := "platform_settings"
		if err := s.auditSvc.AuditLog(ctx, string(actor.Role), &subjectID, "settings.commission_rate_updated", "platform_settings", &targetID, map[string]any{
			"previous_rate": previous.CommissionRate,
			"rate":          updated.CommissionRate,
			"version":       updated.Version,
		}); err != nil {
			s.log.Warn("failed to audit commission rate update", zap.Error(err))
		}
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB) (*settingsdomain.PlatformSettings, error) {
	var row settingsdomain.PlatformSettings
	err := db.WithContext(ctx).Where("id = ?", settingsdomain.SingletonID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settingsdomain.ErrSettingsMissing
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/dreamline/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureForUpdate(ctx context.Context, tx *gorm.DB, subjectID string, isGuest bool, now time.Time) (*domain.Account, error) {
	seed := domain.Account{
		SubjectID: subjectID,
		IsGuest:   isGuest,
		Plan:      domain.PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "subject_id"}}, DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}

	stmt := tx.WithContext(ctx)
	// sqlite has no row locks; its single writer already serializes the tx.
	if tx.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account domain.Account
	if err := stmt.Where("subject_id = ?", subjectID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindBySubject(ctx context.Context, db *gorm.DB, subjectID string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) StampFreeGrant(ctx context.Context, tx *gorm.DB, subjectID string, windowStart time.Time, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&domain.Account{}).
		Where("subject_id = ?", subjectID).
		Where("last_free_grant_at IS NULL OR last_free_grant_at <= ?", windowStart).
		Updates(map[string]any{
			"last_free_grant_at": now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ConsumeCredit(ctx context.Context, tx *gorm.DB, subjectID string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&domain.Account{}).
		Where("subject_id = ? AND credits > 0", subjectID).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits - 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AddCredits(ctx context.Context, tx *gorm.DB, subjectID string, delta int64, now time.Time) error {
	if delta <= 0 {
		return domain.ErrInvalidCredits
	}
	res := tx.WithContext(ctx).Model(&domain.Account{}).
		Where("subject_id = ?", subjectID).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", delta),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *repo) UpdatePlan(ctx context.Context, tx *gorm.DB, subjectID string, plan domain.Plan, now time.Time) error {
	if !plan.Valid() {
		return domain.ErrInvalidPlan
	}
	res := tx.WithContext(ctx).Model(&domain.Account{}).
		Where("subject_id = ?", subjectID).
		Updates(map[string]any{
			"plan":       plan,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

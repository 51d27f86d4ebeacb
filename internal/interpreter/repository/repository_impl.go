package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/internal/interpreter/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, interpreter *domain.Interpreter) error {
	return db.WithContext(ctx).Create(interpreter).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Interpreter, error) {
	var interpreter domain.Interpreter
	err := db.WithContext(ctx).Where("id = ?", id).First(&interpreter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &interpreter, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.Interpreter, error) {
	var items []domain.Interpreter
	stmt := db.WithContext(ctx).Model(&domain.Interpreter{})
	if req.Kind != "" {
		stmt = stmt.Where("kind = ?", req.Kind)
	}
	if req.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("display_name asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, price int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Interpreter{}).
		Where("id = ?", id).
		Updates(map[string]any{"price": price, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Interpreter{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

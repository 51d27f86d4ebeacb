package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindLiveByFingerprint(ctx context.Context, db *gorm.DB, subjectID, fingerprint string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("subject_id = ? AND content_fingerprint = ? AND status <> ?", subjectID, fingerprint, domain.StatusCancelled).
		Order("created_at asc").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) CountLiveBySubject(ctx context.Context, db *gorm.DB, subjectID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Order{}).
		Where("subject_id = ? AND status <> ?", subjectID, domain.StatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *repo) ConditionalUpdate(ctx context.Context, db *gorm.DB, update domain.StatusUpdate) (bool, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", update.OrderID, update.ExpectedStatus)
	if update.ExpectedPayment != "" {
		stmt = stmt.Where("payment_status = ?", update.ExpectedPayment)
	}
	for _, column := range update.NullColumns {
		stmt = stmt.Where(column + " IS NULL")
	}

	res := stmt.Updates(update.Values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Order, error) {
	var orders []*domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})

	if subjectID := strings.TrimSpace(filter.SubjectID); subjectID != "" {
		stmt = stmt.Where("subject_id = ?", subjectID)
	}
	if interpreter := strings.TrimSpace(filter.InterpreterSubjectID); interpreter != "" {
		stmt = stmt.Where("assigned_interpreter_subject_id = ?", interpreter)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CursorCreatedAt != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			*filter.CursorCreatedAt,
			*filter.CursorCreatedAt,
			filter.CursorID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) CountStuck(ctx context.Context, db *gorm.DB, statuses []domain.Status, before time.Time) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status `gorm:"column:status"`
		Count  int64         `gorm:"column:count"`
	}
	err := db.WithContext(ctx).Model(&domain.Order{}).
		Select("status, COUNT(1) AS count").
		Where("status IN ? AND updated_at < ?", statuses, before).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Status]int64, len(statuses))
	for _, status := range statuses {
		out[status] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

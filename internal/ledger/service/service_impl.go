package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/internal/clock"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry ledgerdomain.Transaction) (bool, error) {
	if entry.OrderID == 0 || entry.InterpreterID == 0 {
		return false, ledgerdomain.ErrInvalidOrder
	}
	entry.InterpreterSubjectID = strings.TrimSpace(entry.InterpreterSubjectID)
	if entry.InterpreterSubjectID == "" {
		return false, ledgerdomain.ErrInvalidSubject
	}
	entry.Currency = strings.TrimSpace(entry.Currency)
	if entry.Currency == "" {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if entry.GrossAmount < 0 || entry.PlatformCommission < 0 || entry.Amount < 0 ||
		entry.PlatformCommission+entry.Amount != entry.GrossAmount {
		return false, ledgerdomain.ErrInvalidAmount
	}

	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO interpreter_transactions (
			id, order_id, interpreter_id, interpreter_subject_id, gross_amount,
			platform_commission, amount, commission_rate, settings_version, currency, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO NOTHING`,
		entry.ID,
		entry.OrderID,
		entry.InterpreterID,
		entry.InterpreterSubjectID,
		entry.GrossAmount,
		entry.PlatformCommission,
		entry.Amount,
		entry.CommissionRate,
		entry.SettingsVersion,
		entry.Currency,
		entry.CreatedAt.UTC(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	existing, err := s.GetByOrderID(ctx, tx, entry.OrderID)
	if err != nil {
		return false, err
	}
	if existing == nil || !existing.Agrees(entry) {
		s.log.Error("ledger row disagrees with settlement",
			zap.String("order_id", entry.OrderID.String()),
		)
		return false, ledgerdomain.ErrLedgerMismatch
	}
	return false, nil
}

func (s *Service) GetByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*ledgerdomain.Transaction, error) {
	if db == nil {
		db = s.db
	}
	var row ledgerdomain.Transaction
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (ledgerdomain.ListTransactionsResponse, error) {
	subject := strings.TrimSpace(req.InterpreterSubjectID)
	if subject == "" {
		return ledgerdomain.ListTransactionsResponse{}, ledgerdomain.ErrInvalidSubject
	}

	stmt := s.db.WithContext(ctx).Model(&ledgerdomain.Transaction{}).
		Where("interpreter_subject_id = ?", subject)

	if strings.TrimSpace(req.PageToken) != "" {
		rawID, createdAt, err := pagination.ParseTimeCursor(req.PageToken)
		if err != nil {
			return ledgerdomain.ListTransactionsResponse{}, ledgerdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(rawID)
		if err != nil || id == 0 {
			return ledgerdomain.ListTransactionsResponse{}, ledgerdomain.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	limit := req.Limit()
	var items []*ledgerdomain.Transaction
	if err := stmt.Order("created_at desc, id desc").Limit(limit + 1).Find(&items).Error; err != nil {
		return ledgerdomain.ListTransactionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *ledgerdomain.Transaction) string {
		return pagination.TimeCursor(item.ID.String(), item.CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	var total struct {
		Sum int64 `gorm:"column:total"`
	}
	if err := s.db.WithContext(ctx).Model(&ledgerdomain.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("interpreter_subject_id = ?", subject).
		Scan(&total).Error; err != nil {
		return ledgerdomain.ListTransactionsResponse{}, err
	}

	rows := make([]ledgerdomain.Transaction, 0, len(items))
	for _, item := range items {
		rows = append(rows, *item)
	}
	return ledgerdomain.ListTransactionsResponse{
		PageInfo:     *pageInfo,
		Transactions: rows,
		TotalAmount:  total.Sum,
	}, nil
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
	"gorm.io/gorm"
)

// Transaction is the append-only record of an interpreter earning. There is at
// most one per order.
type Transaction struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID              snowflake.ID `gorm:"not null;uniqueIndex:ux_interpreter_transactions_order" json:"order_id"`
	InterpreterID        snowflake.ID `gorm:"not null" json:"interpreter_id"`
	InterpreterSubjectID string       `gorm:"type:text;not null;index:ix_interpreter_transactions_subject,priority:1" json:"interpreter_subject_id"`
	GrossAmount          int64        `gorm:"not null" json:"gross_amount"`
	PlatformCommission   int64        `gorm:"not null" json:"platform_commission"`
	Amount               int64        `gorm:"not null" json:"amount"`
	CommissionRate       string       `gorm:"type:text;not null" json:"commission_rate"`
	SettingsVersion      int64        `gorm:"not null" json:"settings_version"`
	Currency             string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt            time.Time    `gorm:"not null;index:ix_interpreter_transactions_subject,priority:2" json:"created_at"`
}

func (Transaction) TableName() string { return "interpreter_transactions" }

// Agrees reports whether two rows describe the same settlement.
func (t Transaction) Agrees(other Transaction) bool {
	return t.OrderID == other.OrderID &&
		t.InterpreterID == other.InterpreterID &&
		t.GrossAmount == other.GrossAmount &&
		t.PlatformCommission == other.PlatformCommission &&
		t.Amount == other.Amount
}

type ListTransactionsRequest struct {
	pagination.Pagination
	InterpreterSubjectID string
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
	TotalAmount  int64         `json:"total_amount"`
}

type Service interface {
	// Record appends the row inside tx. It reports false when a row for the
	// order already existed and agrees with entry.
	Record(ctx context.Context, tx *gorm.DB, entry Transaction) (bool, error)
	GetByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Transaction, error)
	List(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

var (
	ErrInvalidOrder     = errors.New("invalid_order")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidSubject   = errors.New("invalid_interpreter_subject")
	ErrLedgerMismatch   = errors.New("ledger_mismatch")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)

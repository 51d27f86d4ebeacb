package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	"gorm.io/gorm"
)

const SingletonID = 1

// PlatformSettings is the single versioned settings row.
type PlatformSettings struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	CommissionRate string    `gorm:"type:text;not null" json:"commission_rate"`
	Currency       string    `gorm:"type:text;not null" json:"currency"`
	Version        int64     `gorm:"not null" json:"version"`
	UpdatedBy      *string   `gorm:"type:text" json:"updated_by,omitempty"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (PlatformSettings) TableName() string { return "platform_settings" }

// Snapshot is the settings value a settlement is computed against.
type Snapshot struct {
	Rate     decimal.Decimal
	Currency string
	Version  int64
}

type Service interface {
	Snapshot(ctx context.Context, tx *gorm.DB) (Snapshot, error)
	Get(ctx context.Context, actor identitydomain.Identity) (*PlatformSettings, error)
	UpdateCommissionRate(ctx context.Context, actor identitydomain.Identity, rate decimal.Decimal) (*PlatformSettings, error)
}

var (
	ErrInvalidCommissionRate = errors.New("invalid_commission_rate")
	ErrSettingsMissing       = errors.New("platform_settings_missing")
)

// ValidateRate enforces 0 <= rate <= 1.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidCommissionRate
	}
	return nil
}

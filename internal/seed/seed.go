package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/internal/config"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	AIInterpreterSubject = "system:ai-interpreter"
	aiInterpreterName    = "Dreamline AI"
)

// EnsurePlatformSettings creates the settings singleton from config when it
// does not exist. An existing row is never overwritten.
func EnsurePlatformSettings(db *gorm.DB, cfg config.SettlementConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if err := settingsdomain.ValidateRate(cfg.DefaultCommissionRate); err != nil {
		return err
	}

	row := settingsdomain.PlatformSettings{
		ID:             settingsdomain.SingletonID,
		CommissionRate: cfg.DefaultCommissionRate.String(),
		Currency:       cfg.Currency,
		Version:        1,
		UpdatedAt:      time.Now().UTC(),
	}
	return db.WithContext(context.Background()).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row).Error
}

// EnsureAIInterpreter creates the AI interpreter profile that AI orders are
// assigned to.
func EnsureAIInterpreter(db *gorm.DB, node *snowflake.Node, price int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}
	if price < 0 {
		return interpreterdomain.ErrInvalidPrice
	}

	now := time.Now().UTC()
	row := interpreterdomain.Interpreter{
		ID:          node.Generate(),
		SubjectID:   AIInterpreterSubject,
		DisplayName: aiInterpreterName,
		Kind:        interpreterdomain.KindAI,
		Price:       price,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return db.WithContext(context.Background()).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "subject_id"}}, DoNothing: true}).
		Create(&row).Error
}

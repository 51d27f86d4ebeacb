package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"github.com/smallbiznis/dreamline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDuplicateRequest = errors.New("duplicate_request")
	// ErrFingerprintTaken is returned from Insert when the storage constraint
	// rejected the row. The surrounding transaction is unusable afterwards.
	ErrFingerprintTaken = errors.New("fingerprint_taken")
)

// DuplicateError reports the live order that already holds the fingerprint.
type DuplicateError struct {
	ExistingOrderID snowflake.ID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate request: existing order %s", e.ExistingOrderID)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateRequest
}

type Params struct {
	fx.In

	Log  *zap.Logger
	Repo orderdomain.Repository
}

type Guard struct {
	log  *zap.Logger
	repo orderdomain.Repository
}

func NewGuard(p Params) *Guard {
	return &Guard{
		log:  p.Log.Named("dedup.guard"),
		repo: p.Repo,
	}
}

// FindLive returns a DuplicateError when a non-cancelled order already holds
// the fingerprint.
func (g *Guard) FindLive(ctx context.Context, tx *gorm.DB, subjectID, fingerprint string) error {
	existing, err := g.repo.FindLiveByFingerprint(ctx, tx, subjectID, fingerprint)
	if err != nil {
		return err
	}
	if existing != nil {
		return &DuplicateError{ExistingOrderID: existing.ID}
	}
	return nil
}

// Insert runs insert and classifies a uniqueness violation as
// ErrFingerprintTaken.
func (g *Guard) Insert(ctx context.Context, tx *gorm.DB, insert func(tx *gorm.DB) error) error {
	err := insert(tx.WithContext(ctx))
	if err == nil {
		return nil
	}
	if db.IsDuplicateKeyErr(err) {
		return ErrFingerprintTaken
	}
	return err
}

// Resolve looks up the order that won a constraint race. It must run on a
// fresh connection after the losing transaction rolled back.
func (g *Guard) Resolve(ctx context.Context, conn *gorm.DB, subjectID, fingerprint string) error {
	existing, err := g.repo.FindLiveByFingerprint(ctx, conn, subjectID, fingerprint)
	if err != nil {
		return err
	}
	if existing == nil {
		g.log.Warn("duplicate fingerprint without a live order", zap.String("subject_id", subjectID))
		return ErrDuplicateRequest
	}
	return &DuplicateError{ExistingOrderID: existing.ID}
}

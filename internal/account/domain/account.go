package domain

import (
	"context"
	"errors"
	"time"

	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	"gorm.io/gorm"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

// Account carries per-subject admission state. Guests get a row too so that
// concurrent submissions serialize on it.
type Account struct {
	SubjectID       string     `gorm:"primaryKey;type:text" json:"subject_id"`
	IsGuest         bool       `gorm:"not null;default:false" json:"is_guest"`
	Plan            Plan       `gorm:"type:text;not null;default:free" json:"plan"`
	Credits         int64      `gorm:"not null;default:0" json:"credits"`
	LastFreeGrantAt *time.Time `json:"last_free_grant_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrInvalidPlan     = errors.New("invalid_plan")
	ErrInvalidCredits  = errors.New("invalid_credits")
	ErrInvalidSubject  = errors.New("invalid_subject")
	ErrGuestAccount    = errors.New("guest_account")
)

func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPaid
}

// Service is the administrative surface over accounts. Admission consumes
// accounts through Repository directly.
type Service interface {
	Get(ctx context.Context, actor identitydomain.Identity, subjectID string) (*Account, error)
	GrantCredits(ctx context.Context, actor identitydomain.Identity, subjectID string, credits int64) (*Account, error)
	SetPlan(ctx context.Context, actor identitydomain.Identity, subjectID string, plan Plan) (*Account, error)
}

type Repository interface {
	// EnsureForUpdate creates the account if missing and returns it locked for
	// the remainder of tx.
	EnsureForUpdate(ctx context.Context, tx *gorm.DB, subjectID string, isGuest bool, now time.Time) (*Account, error)
	FindBySubject(ctx context.Context, db *gorm.DB, subjectID string) (*Account, error)
	// StampFreeGrant records a free-window admission, but only when no grant
	// happened after windowStart.
	StampFreeGrant(ctx context.Context, tx *gorm.DB, subjectID string, windowStart time.Time, now time.Time) (bool, error)
	ConsumeCredit(ctx context.Context, tx *gorm.DB, subjectID string, now time.Time) (bool, error)
	AddCredits(ctx context.Context, tx *gorm.DB, subjectID string, delta int64, now time.Time) error
	UpdatePlan(ctx context.Context, tx *gorm.DB, subjectID string, plan Plan, now time.Time) error
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	"github.com/smallbiznis/dreamline/internal/config"
	"gorm.io/gorm"
)

// Mode records which allowance admitted an order.
type Mode string

const (
	ModeGuest  Mode = "guest"
	ModeFree   Mode = "free"
	ModeCredit Mode = "credit"
)

// DenyReason explains why a subject is not admitted.
type DenyReason string

const (
	ReasonGuestExhausted    DenyReason = "guest_exhausted"
	ReasonDailyLimitReached DenyReason = "daily_limit_reached"
	ReasonNoCredits         DenyReason = "no_credits"
)

// Decision is the admission outcome for an allowed subject.
type Decision struct {
	Mode Mode
}

// DeniedError is returned when admission is refused. NextResetAt is set when
// the refusal lifts on its own once the free window elapses.
type DeniedError struct {
	Reason      DenyReason
	NextResetAt *time.Time
}

func (e *DeniedError) Error() string {
	if e.NextResetAt != nil {
		return fmt.Sprintf("admission denied: %s (next reset %s)", e.Reason, e.NextResetAt.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("admission denied: %s", e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrAdmissionDenied
}

var ErrAdmissionDenied = errors.New("admission_denied")

// OrderCounter counts a subject's non-cancelled orders.
type OrderCounter interface {
	CountLiveBySubject(ctx context.Context, db *gorm.DB, subjectID string) (int64, error)
}

type CheckRequest struct {
	SubjectID string
	IsGuest   bool
	Now       time.Time
	Policy    config.QuotaPolicy
}

// Service decides admission and records consumption against the locked
// account row. Both calls must run inside the caller's transaction.
type Service interface {
	Acquire(ctx context.Context, tx *gorm.DB, subjectID string, isGuest bool, now time.Time) (*accountdomain.Account, error)
	Check(ctx context.Context, tx *gorm.DB, account *accountdomain.Account, req CheckRequest) (Decision, error)
	// Refund returns a consumed credit; other modes are not refundable.
	Refund(ctx context.Context, tx *gorm.DB, subjectID string, mode Mode, now time.Time) error
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
)

// MaxContentLength bounds dream content and interpretation text, in runes.
const MaxContentLength = 8000

type Status string

const (
	StatusNew                    Status = "new"
	StatusAssigned               Status = "assigned"
	StatusInProgress             Status = "in_progress"
	StatusCompleted              Status = "completed"
	StatusClarificationRequested Status = "clarification_requested"
	StatusClosed                 Status = "closed"
	StatusCancelled              Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusCompleted,
		StatusClarificationRequested, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// InterpretationVisible reports whether the owner may read the interpretation.
func (s Status) InterpretationVisible() bool {
	switch s {
	case StatusCompleted, StatusClarificationRequested, StatusClosed:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
)

type FulfillmentType string

const (
	FulfillmentAI    FulfillmentType = "AI"
	FulfillmentHuman FulfillmentType = "HUMAN"
)

func (f FulfillmentType) Valid() bool {
	return f == FulfillmentAI || f == FulfillmentHuman
}

// Order is a single dream-interpretation request.
type Order struct {
	ID                           snowflake.ID         `gorm:"primaryKey" json:"id"`
	SubjectID                    string               `gorm:"type:text;not null;index:ix_orders_subject_created,priority:1" json:"subject_id"`
	IsGuest                      bool                 `gorm:"not null;default:false" json:"is_guest"`
	FulfillmentType              FulfillmentType      `gorm:"type:text;not null" json:"fulfillment_type"`
	Content                      string               `gorm:"type:text;not null" json:"content"`
	ContentFingerprint           string               `gorm:"type:text;not null" json:"-"`
	Status                       Status               `gorm:"type:text;not null;index:ix_orders_status_updated,priority:1" json:"status"`
	PaymentStatus                PaymentStatus        `gorm:"type:text;not null" json:"payment_status"`
	AdmissionMode                admissiondomain.Mode `gorm:"type:text;not null" json:"admission_mode"`
	Currency                     string               `gorm:"type:text;not null" json:"currency"`
	LockedPrice                  *int64               `json:"locked_price,omitempty"`
	AssignedInterpreterID        *snowflake.ID        `json:"assigned_interpreter_id,omitempty"`
	AssignedInterpreterSubjectID *string              `gorm:"type:text;index:ix_orders_interpreter_created,priority:1" json:"assigned_interpreter_subject_id,omitempty"`
	InterpretationText           *string              `gorm:"type:text" json:"interpretation_text,omitempty"`
	PlatformCommission           *int64               `json:"platform_commission,omitempty"`
	InterpreterEarning           *int64               `json:"interpreter_earning,omitempty"`
	CommissionRate               *string              `gorm:"type:text" json:"commission_rate,omitempty"`
	SettingsVersion              *int64               `json:"settings_version,omitempty"`
	ClarificationQuestion        *string              `gorm:"type:text" json:"clarification_question,omitempty"`
	ClarificationAnswer          *string              `gorm:"type:text" json:"clarification_answer,omitempty"`
	AssignedAt                   *time.Time           `json:"assigned_at,omitempty"`
	AcceptedAt                   *time.Time           `json:"accepted_at,omitempty"`
	CompletedAt                  *time.Time           `json:"completed_at,omitempty"`
	ClosedAt                     *time.Time           `json:"closed_at,omitempty"`
	CancelledAt                  *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt                    time.Time            `gorm:"not null;index:ix_orders_subject_created,priority:2;index:ix_orders_interpreter_created,priority:2" json:"created_at"`
	UpdatedAt                    time.Time            `gorm:"not null;index:ix_orders_status_updated,priority:2" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// Settled reports whether the settlement split has been written.
func (o *Order) Settled() bool {
	return o.PlatformCommission != nil && o.InterpreterEarning != nil
}

// View is the caller-facing projection of an Order after redaction.
type View struct {
	Order
	InterpretationRedacted bool `json:"interpretation_redacted,omitempty"`
}

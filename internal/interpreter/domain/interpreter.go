package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	"gorm.io/gorm"
)

type Kind string

const (
	KindAI    Kind = "AI"
	KindHuman Kind = "HUMAN"
)

func (k Kind) Valid() bool {
	return k == KindAI || k == KindHuman
}

// Interpreter is a fulfilment profile, human or AI, with its current price.
type Interpreter struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	SubjectID   string       `gorm:"type:text;not null;uniqueIndex:ux_interpreters_subject" json:"subject_id"`
	DisplayName string       `gorm:"type:text;not null" json:"display_name"`
	Kind        Kind         `gorm:"type:text;not null" json:"kind"`
	Price       int64        `gorm:"not null" json:"price"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Interpreter) TableName() string { return "interpreters" }

type CreateRequest struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Kind        Kind   `json:"kind"`
	Price       int64  `json:"price"`
}

type ListRequest struct {
	Kind       Kind
	ActiveOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, interpreter *Interpreter) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Interpreter, error)
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]Interpreter, error)
	UpdatePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, price int64, now time.Time) (bool, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) (bool, error)
}

type Service interface {
	Create(ctx context.Context, actor identitydomain.Identity, req CreateRequest) (*Interpreter, error)
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Interpreter, error)
	List(ctx context.Context, actor identitydomain.Identity, req ListRequest) ([]Interpreter, error)
	UpdatePrice(ctx context.Context, actor identitydomain.Identity, id string, price int64) (*Interpreter, error)
	SetActive(ctx context.Context, actor identitydomain.Identity, id string, active bool) (*Interpreter, error)
}

var (
	ErrInterpreterNotFound = errors.New("interpreter_not_found")
	ErrInvalidInterpreter  = errors.New("invalid_interpreter_id")
	ErrInvalidKind         = errors.New("invalid_interpreter_kind")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidSubject      = errors.New("invalid_subject")
	ErrInvalidDisplayName  = errors.New("invalid_display_name")
	ErrSubjectTaken        = errors.New("interpreter_subject_taken")
)

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateOrderRequest struct {
	Actor           identitydomain.Identity
	FulfillmentType FulfillmentType
	Content         string
}

type CreateOrderResult struct {
	Order *Order
	Mode  admissiondomain.Mode
}

type AssignRequest struct {
	Actor         identitydomain.Identity
	OrderID       string
	InterpreterID string
}

type TransitionRequest struct {
	Actor          identitydomain.Identity
	OrderID        string
	Status         Status
	Interpretation string
	Question       string
	Answer         string
}

type ListOrdersRequest struct {
	pagination.Pagination
	Actor  identitydomain.Identity
	Status Status
}

type ListOrdersResponse struct {
	pagination.PageInfo
	Orders []View `json:"orders"`
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error)
	Assign(ctx context.Context, req AssignRequest) (*Order, error)
	Transition(ctx context.Context, req TransitionRequest) (*Order, error)
	MarkPaid(ctx context.Context, actor identitydomain.Identity, orderID string) (*Order, error)
	Get(ctx context.Context, actor identitydomain.Identity, orderID string) (*View, error)
	List(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error)
}

type ListFilter struct {
	SubjectID            string
	InterpreterSubjectID string
	Status               Status
	CursorID             snowflake.ID
	CursorCreatedAt      *time.Time
	Limit                int
}

// StatusUpdate is a conditional update: it applies only while the row still
// has ExpectedStatus (and ExpectedPayment, when set) and every column in
// NullColumns is still NULL.
type StatusUpdate struct {
	OrderID         snowflake.ID
	ExpectedStatus  Status
	ExpectedPayment PaymentStatus
	NullColumns     []string
	Values          map[string]any
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindLiveByFingerprint(ctx context.Context, db *gorm.DB, subjectID, fingerprint string) (*Order, error)
	CountLiveBySubject(ctx context.Context, db *gorm.DB, subjectID string) (int64, error)
	ConditionalUpdate(ctx context.Context, db *gorm.DB, update StatusUpdate) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Order, error)
	CountStuck(ctx context.Context, db *gorm.DB, statuses []Status, before time.Time) (map[Status]int64, error)
}

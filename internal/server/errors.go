package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
	admissiondomain "github.com/smallbiznis/dreamline/internal/admission/domain"
	auditdomain "github.com/smallbiznis/dreamline/internal/audit/domain"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/dedup"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`

	Reason          string     `json:"reason,omitempty"`
	NextResetAt     *time.Time `json:"next_reset_at,omitempty"`
	ExistingOrderID string     `json:"existing_order_id,omitempty"`
	From            string     `json:"from,omitempty"`
	To              string     `json:"to,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var denied *admissiondomain.DeniedError
	if errors.As(err, &denied) {
		return admissionStatus(denied.Reason), errorPayload{
			Type:        "admission_denied",
			Message:     "admission denied",
			Reason:      string(denied.Reason),
			NextResetAt: denied.NextResetAt,
		}
	}

	var dup *dedup.DuplicateError
	if errors.As(err, &dup) {
		return http.StatusConflict, errorPayload{
			Type:            "duplicate_request",
			Message:         "an equivalent order is already open",
			ExistingOrderID: dup.ExistingOrderID.String(),
		}
	}

	var transition *orderdomain.TransitionError
	if errors.As(err, &transition) {
		errType := "invalid_transition"
		if transition.Reason == orderdomain.ReasonStaleStatus {
			errType = "storage_conflict"
		}
		return http.StatusConflict, errorPayload{
			Type:    errType,
			Message: transition.Error(),
			Reason:  transition.Reason,
			From:    string(transition.From),
			To:      string(transition.To),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identitydomain.ErrMissingCredential),
		errors.Is(err, identitydomain.ErrInvalidCredential),
		errors.Is(err, identitydomain.ErrInvalidSubject),
		errors.Is(err, identitydomain.ErrInvalidRole):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, orderdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, dedup.ErrDuplicateRequest):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_request",
			Message: "an equivalent order is already open",
		}
	case errors.Is(err, orderdomain.ErrAlreadyAssigned),
		errors.Is(err, orderdomain.ErrStorageConflict),
		errors.Is(err, orderdomain.ErrWriteOnceViolation),
		errors.Is(err, orderdomain.ErrPaymentNotAllowed),
		errors.Is(err, interpreterdomain.ErrSubjectTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Reason:  err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func admissionStatus(reason admissiondomain.DenyReason) int {
	switch reason {
	case admissiondomain.ReasonGuestExhausted:
		return http.StatusForbidden
	case admissiondomain.ReasonDailyLimitReached:
		return http.StatusTooManyRequests
	case admissiondomain.ReasonNoCredits:
		return http.StatusPaymentRequired
	default:
		return http.StatusForbidden
	}
}

// classifyErrorForLog feeds the request logger with the same vocabulary the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	switch {
	case payload.Reason != "":
		return payload.Type, payload.Reason
	case len(payload.Errors) > 0:
		return payload.Type, payload.Errors[0].Code
	default:
		return payload.Type, payload.Type
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidCursor):
		return true
	case isOrderValidationError(err),
		isInterpreterValidationError(err),
		isAccountValidationError(err),
		isListingValidationError(err),
		errors.Is(err, settingsdomain.ErrInvalidCommissionRate):
		return true
	default:
		return false
	}
}

func isOrderValidationError(err error) bool {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidOrderID),
		errors.Is(err, orderdomain.ErrInvalidStatus),
		errors.Is(err, orderdomain.ErrInvalidFulfillment),
		errors.Is(err, orderdomain.ErrInvalidContent),
		errors.Is(err, orderdomain.ErrContentTooLong),
		errors.Is(err, orderdomain.ErrInterpretationMissing),
		errors.Is(err, orderdomain.ErrQuestionMissing),
		errors.Is(err, orderdomain.ErrAnswerMissing),
		errors.Is(err, orderdomain.ErrInvalidInterpreter),
		errors.Is(err, orderdomain.ErrInterpreterMismatch):
		return true
	default:
		return false
	}
}

func isInterpreterValidationError(err error) bool {
	switch {
	case errors.Is(err, interpreterdomain.ErrInvalidInterpreter),
		errors.Is(err, interpreterdomain.ErrInvalidKind),
		errors.Is(err, interpreterdomain.ErrInvalidPrice),
		errors.Is(err, interpreterdomain.ErrInvalidSubject),
		errors.Is(err, interpreterdomain.ErrInvalidDisplayName):
		return true
	default:
		return false
	}
}

func isAccountValidationError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrInvalidPlan),
		errors.Is(err, accountdomain.ErrInvalidCredits),
		errors.Is(err, accountdomain.ErrInvalidSubject),
		errors.Is(err, accountdomain.ErrGuestAccount):
		return true
	default:
		return false
	}
}

func isListingValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, interpreterdomain.ErrInterpreterNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pagination.ErrInvalidCursor):
		return "invalid_page_token"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasSuffix(code, "_required") {
		return strings.TrimSuffix(code, "_required")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch {
	case code == "invalid_request":
		return "invalid request"
	case strings.HasSuffix(code, "_required"):
		return "value is required"
	case code == "content_too_long":
		return "value is too long"
	default:
		return "invalid value"
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrInvalidOrderID        = errors.New("invalid_order_id")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidFulfillment    = errors.New("invalid_fulfillment_type")
	ErrInvalidContent        = errors.New("invalid_content")
	ErrContentTooLong        = errors.New("content_too_long")
	ErrInterpretationMissing = errors.New("interpretation_required")
	ErrQuestionMissing       = errors.New("clarification_question_required")
	ErrAnswerMissing         = errors.New("clarification_answer_required")
	ErrInvalidInterpreter    = errors.New("invalid_interpreter")
	ErrInterpreterMismatch   = errors.New("interpreter_kind_mismatch")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyAssigned       = errors.New("already_assigned")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrStorageConflict       = errors.New("storage_conflict")
	ErrWriteOnceViolation    = errors.New("write_once_violation")
	ErrPaymentNotAllowed     = errors.New("payment_not_allowed")
)

const (
	ReasonEdgeNotAllowed   = "edge_not_allowed"
	ReasonTerminal         = "terminal_status"
	ReasonStaleStatus      = "stale_status"
	ReasonUseAssign        = "use_assign"
	ReasonAlreadyRequested = "clarification_already_requested"
)

// TransitionError describes a rejected status change. A stale_status rejection
// means the persisted status moved underneath the caller.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrInvalidTransition:
		return true
	case ErrStorageConflict:
		return e.Reason == ReasonStaleStatus
	default:
		return false
	}
}

// StaleTransition builds the error returned when a conditional update affected
// no rows.
func StaleTransition(from, to Status) error {
	return &TransitionError{From: from, To: to, Reason: ReasonStaleStatus}
}

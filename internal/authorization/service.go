package authorization

import (
	"context"
	"errors"

	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
)

type Service interface {
	// Authorize checks the role-level permission only. Relationship checks
	// (owner, assigned interpreter) belong to the calling service.
	Authorize(ctx context.Context, actor identitydomain.Identity, object string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

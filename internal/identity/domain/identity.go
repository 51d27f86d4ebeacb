package domain

import (
	"context"
	"errors"
	"strings"
)

// Role is the actor role carried by a verified identity.
type Role string

const (
	RoleUser        Role = "user"
	RoleInterpreter Role = "interpreter"
	RoleAdmin       Role = "admin"
	RoleSystem      Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleInterpreter, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// Identity is the verified (subject, guest) pair plus the actor role.
type Identity struct {
	SubjectID string `json:"subject_id"`
	IsGuest   bool   `json:"is_guest"`
	Role      Role   `json:"role"`
}

func (i Identity) Validate() error {
	if strings.TrimSpace(i.SubjectID) == "" {
		return ErrInvalidSubject
	}
	if !i.Role.Valid() {
		return ErrInvalidRole
	}
	if i.IsGuest && i.Role != RoleUser {
		return ErrInvalidRole
	}
	return nil
}

// Verifier turns a bearer credential into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, bearer string) (Identity, error)
}

var (
	ErrMissingCredential = errors.New("missing_credential")
	ErrInvalidCredential = errors.New("invalid_credential")
	ErrInvalidSubject    = errors.New("invalid_subject")
	ErrInvalidRole       = errors.New("invalid_role")
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

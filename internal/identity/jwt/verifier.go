package jwt

import (
	"context"
	"errors"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/dreamline/internal/config"
	"github.com/smallbiznis/dreamline/internal/identity/domain"
)

var ErrSecretRequired = errors.New("auth jwt secret is required")

// Claims carried by bearer tokens issued by the identity provider.
type Claims struct {
	Guest bool   `json:"guest"`
	Role  string `json:"role"`
	gojwt.RegisteredClaims
}

// Verifier validates HS256 tokens. It is the only verification path; there is no
// unverified fallback.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

func NewVerifier(cfg config.Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   cfg.AuthJWTIssuer,
		audience: cfg.AuthJWTAudience,
		leeway:   30 * time.Second,
	}, nil
}

func (v *Verifier) Verify(_ context.Context, bearer string) (domain.Identity, error) {
	raw := strings.TrimSpace(bearer)
	if raw == "" {
		return domain.Identity{}, domain.ErrMissingCredential
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, gojwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := gojwt.ParseWithClaims(raw, claims, func(*gojwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Identity{}, domain.ErrInvalidCredential
	}

	role := domain.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if role == "" {
		role = domain.RoleUser
	}
	id := domain.Identity{
		SubjectID: strings.TrimSpace(claims.Subject),
		IsGuest:   claims.Guest,
		Role:      role,
	}
	if err := id.Validate(); err != nil {
		return domain.Identity{}, domain.ErrInvalidCredential
	}
	return id, nil
}

var _ domain.Verifier = (*Verifier)(nil)

package identity

import (
	"github.com/smallbiznis/dreamline/internal/identity/domain"
	"github.com/smallbiznis/dreamline/internal/identity/jwt"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(
		fx.Annotate(jwt.NewVerifier, fx.As(new(domain.Verifier))),
	),
)

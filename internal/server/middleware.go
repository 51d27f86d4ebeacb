package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dreamline/internal/auditcontext"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	"github.com/smallbiznis/dreamline/internal/observability/logger"
	"go.uber.org/zap"
)

const bearerPrefix = "bearer "

// RequireIdentity verifies the bearer token and stores the identity on the
// request context. Nothing downstream reads identity from the request body.
func (s *Server) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(raw) < len(bearerPrefix) || !strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
			AbortWithError(c, identitydomain.ErrMissingCredential)
			return
		}

		id, err := s.verifier.Verify(c.Request.Context(), raw[len(bearerPrefix):])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := identitydomain.WithIdentity(c.Request.Context(), id)
		ctx = auditcontext.WithActor(ctx, string(id.Role), id.SubjectID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (identitydomain.Identity, bool) {
	return identitydomain.FromContext(c.Request.Context())
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := identityFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// CreateOrderRateLimit throttles order creation per subject ahead of the
// admission check.
func (s *Server) CreateOrderRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.createLimiter.Enabled() {
			c.Next()
			return
		}
		actor, ok := identityFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		res := s.createLimiter.Allow(c.Request.Context(), actor.SubjectID)
		if !res.Allowed {
			s.obsMetrics.RecordRateLimited()
			logger.FromContext(c.Request.Context()).Info("create order rate limited",
				zap.String("subject_id", actor.SubjectID),
				zap.Duration("retry_after", res.RetryAfter),
			)
			setRetryAfter(c, res.RetryAfter)
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

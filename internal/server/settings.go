package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type updateCommissionRateRequest struct {
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

func (s *Server) GetSettings(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	current, err := s.settingsSvc.Get(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": current})
}

func (s *Server) UpdateCommissionRate(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateCommissionRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.CommissionRate == nil {
		AbortWithError(c, newValidationError("commission_rate", "required", "commission_rate is required"))
		return
	}

	updated, err := s.settingsSvc.UpdateCommissionRate(c.Request.Context(), actor, *req.CommissionRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

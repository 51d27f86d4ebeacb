package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/dreamline/internal/account/domain"
)

type grantCreditsRequest struct {
	Credits int64 `json:"credits"`
}

type setPlanRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) GetAccount(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	account, err := s.accountSvc.Get(c.Request.Context(), actor, strings.TrimSpace(c.Param("subject")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) GrantCredits(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req grantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.GrantCredits(c.Request.Context(), actor, strings.TrimSpace(c.Param("subject")), req.Credits)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) SetPlan(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.SetPlan(c.Request.Context(), actor, strings.TrimSpace(c.Param("subject")), accountdomain.Plan(strings.ToLower(strings.TrimSpace(req.Plan))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	interpreterdomain "github.com/smallbiznis/dreamline/internal/interpreter/domain"
)

type createInterpreterRequest struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Price       int64  `json:"price"`
}

type updateInterpreterPriceRequest struct {
	Price *int64 `json:"price"`
}

type setInterpreterActiveRequest struct {
	Active *bool `json:"active"`
}

type listInterpretersQuery struct {
	Kind       string `form:"kind"`
	ActiveOnly string `form:"active_only"`
}

func (s *Server) ListInterpreters(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query listInterpretersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}

	req := interpreterdomain.ListRequest{
		Kind: interpreterdomain.Kind(strings.ToUpper(strings.TrimSpace(query.Kind))),
	}
	if activeOnly != nil {
		req.ActiveOnly = *activeOnly
	}

	items, err := s.interpreterSvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateInterpreter(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createInterpreterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.interpreterSvc.Create(c.Request.Context(), actor, interpreterdomain.CreateRequest{
		SubjectID:   strings.TrimSpace(req.SubjectID),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Kind:        interpreterdomain.Kind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Price:       req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) UpdateInterpreterPrice(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateInterpreterPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Price == nil {
		AbortWithError(c, newValidationError("price", "required", "price is required"))
		return
	}

	updated, err := s.interpreterSvc.UpdatePrice(c.Request.Context(), actor, strings.TrimSpace(c.Param("id")), *req.Price)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (s *Server) SetInterpreterActive(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req setInterpreterActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Active == nil {
		AbortWithError(c, newValidationError("active", "required", "active is required"))
		return
	}

	updated, err := s.interpreterSvc.SetActive(c.Request.Context(), actor, strings.TrimSpace(c.Param("id")), *req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

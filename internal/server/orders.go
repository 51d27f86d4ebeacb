package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/dreamline/internal/order/domain"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
)

type createOrderRequest struct {
	FulfillmentType string `json:"fulfillment_type"`
	Content         string `json:"content"`
}

type assignOrderRequest struct {
	InterpreterID string `json:"interpreter_id"`
}

type transitionOrderRequest struct {
	Status         string `json:"status"`
	Interpretation string `json:"interpretation"`
	Question       string `json:"question"`
	Answer         string `json:"answer"`
}

type listOrdersQuery struct {
	pagination.Pagination
	Status string `form:"status"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		Actor:           actor,
		FulfillmentType: orderdomain.FulfillmentType(strings.ToUpper(strings.TrimSpace(req.FulfillmentType))),
		Content:         req.Content,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":      res.Order,
		"admission": gin.H{"mode": res.Mode},
	})
}

func (s *Server) AssignOrder(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req assignOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Assign(c.Request.Context(), orderdomain.AssignRequest{
		Actor:         actor,
		OrderID:       strings.TrimSpace(c.Param("id")),
		InterpreterID: strings.TrimSpace(req.InterpreterID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) TransitionOrder(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req transitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Transition(c.Request.Context(), orderdomain.TransitionRequest{
		Actor:          actor,
		OrderID:        strings.TrimSpace(c.Param("id")),
		Status:         orderdomain.Status(strings.TrimSpace(req.Status)),
		Interpretation: req.Interpretation,
		Question:       req.Question,
		Answer:         req.Answer,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) MarkOrderPaid(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	order, err := s.orderSvc.MarkPaid(c.Request.Context(), actor, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) GetOrder(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	view, err := s.orderSvc.Get(c.Request.Context(), actor, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) ListOrders(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrdersRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Actor:  actor,
		Status: orderdomain.Status(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Orders, "page_info": resp.PageInfo})
}

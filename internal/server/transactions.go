package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/dreamline/internal/identity/domain"
	ledgerdomain "github.com/smallbiznis/dreamline/internal/ledger/domain"
	"github.com/smallbiznis/dreamline/pkg/db/pagination"
)

type listTransactionsQuery struct {
	pagination.Pagination
	InterpreterSubjectID string `form:"interpreter_subject_id"`
}

// ListMyTransactions returns the caller's ledger rows. Admins may read another
// interpreter's rows through interpreter_subject_id.
func (s *Server) ListMyTransactions(c *gin.Context) {
	actor, ok := identityFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query listTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	subjectID := actor.SubjectID
	if requested := strings.TrimSpace(query.InterpreterSubjectID); requested != "" && requested != subjectID {
		if actor.Role != identitydomain.RoleAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		subjectID = requested
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), ledgerdomain.ListTransactionsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		InterpreterSubjectID: subjectID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         resp.Transactions,
		"total_amount": resp.TotalAmount,
		"page_info":    resp.PageInfo,
	})
}

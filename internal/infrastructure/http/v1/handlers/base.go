// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"metaquery/internal/domain"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/metadata"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// HandleError registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// BindCriteria parses the request's query string into criteria for def.
// Paging parameters are left to BindPage.
func BindCriteria(c *gin.Context, def metadata.EntityDef) (*criteria.Criteria, error) {
	return criteria.Parse(def, c.Request.URL.Query())
}

// BindPage parses page/size, offset/limit and sort from the query string.
func BindPage(c *gin.Context, def metadata.EntityDef) (domain.PageRequest, error) {
	return domain.ParsePageRequest(def, c.Request.URL.Query())
}

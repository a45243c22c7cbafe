package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"metaquery/internal/domain"
)

// HeaderTotalCount carries the total number of matching records on list responses.
const HeaderTotalCount = "X-Total-Count"

// QueryHandler serves criteria queries over one entity.
type QueryHandler[R any] struct {
	*BaseHandler
	service *domain.QueryService[R]
}

// NewQueryHandler creates a handler for service.
func NewQueryHandler[R any](base *BaseHandler, service *domain.QueryService[R]) *QueryHandler[R] {
	return &QueryHandler[R]{BaseHandler: base, service: service}
}

// List returns one page of matching records.
// GET /{entity}?<field>.<operation>=<value>&page=0&size=20&sort=field,desc
func (h *QueryHandler[R]) List(c *gin.Context) {
	def := h.service.Entity()
	crit, err := BindCriteria(c, def)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, err := BindPage(c, def)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.service.FindPageByCriteria(c.Request.Context(), crit, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header(HeaderTotalCount, strconv.FormatInt(result.TotalCount, 10))
	h.OK(c, result)
}

// Count returns the number of matching records.
// GET /{entity}/count?<field>.<operation>=<value>
func (h *QueryHandler[R]) Count(c *gin.Context) {
	crit, err := BindCriteria(c, h.service.Entity())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	n, err := h.service.CountByCriteria(c.Request.Context(), crit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, gin.H{"count": n})
}

// RegisterRoutes mounts List and Count on group.
func (h *QueryHandler[R]) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.GET("/count", h.Count)
}

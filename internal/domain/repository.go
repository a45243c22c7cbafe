// Package domain provides the query service and the store contract backends implement.
package domain

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/query"
	"metaquery/internal/metadata"
)

// --- Sorting & Pagination ---

// Direction of a sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order sorts by one scalar field of the queried entity.
type Order struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Paging limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 2000
)

// PageRequest selects a window of the ordered result.
type PageRequest struct {
	Offset int
	Limit  int
	Sort   []Order
}

// Page contains paginated results.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ParseSort parses sort specs: "field", "field,asc", "field,desc", "-field" or "+field".
func ParseSort(def metadata.EntityDef, specs []string) ([]Order, error) {
	orders := make([]Order, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		o := Order{Direction: Asc}
		switch {
		case strings.HasPrefix(spec, "-"):
			o.Field, o.Direction = spec[1:], Desc
		case strings.HasPrefix(spec, "+"):
			o.Field = spec[1:]
		default:
			name, dir, found := strings.Cut(spec, ",")
			o.Field = name
			if found {
				switch strings.ToLower(strings.TrimSpace(dir)) {
				case "asc":
				case "desc":
					o.Direction = Desc
				default:
					return nil, apperror.NewValidation(fmt.Sprintf("invalid sort direction %q", dir)).
						WithDetail("sort", spec)
				}
			}
		}
		if _, ok := def.Field(o.Field); !ok {
			return nil, apperror.NewUnknownField(def.Name, o.Field).WithDetail("sort", spec)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// ParsePageRequest reads paging parameters. page/size (zero-based page)
// and offset/limit are both accepted; offset/limit wins when both are given.
// The size defaults to DefaultPageSize and is capped at MaxPageSize.
func ParsePageRequest(def metadata.EntityDef, params url.Values) (PageRequest, error) {
	req := PageRequest{Limit: DefaultPageSize}

	intParam := func(name string) (int, bool, error) {
		raw := params.Get(name)
		if raw == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, false, apperror.NewValidation(fmt.Sprintf("%s must be a non-negative integer", name)).
				WithDetail(name, raw)
		}
		return n, true, nil
	}

	size, hasSize, err := intParam("size")
	if err != nil {
		return req, err
	}
	page, hasPage, err := intParam("page")
	if err != nil {
		return req, err
	}
	limit, hasLimit, err := intParam("limit")
	if err != nil {
		return req, err
	}
	offset, hasOffset, err := intParam("offset")
	if err != nil {
		return req, err
	}

	if hasSize {
		req.Limit = size
	}
	if hasLimit {
		req.Limit = limit
	}
	switch {
	case req.Limit == 0:
		req.Limit = DefaultPageSize
	case req.Limit > MaxPageSize:
		req.Limit = MaxPageSize
	}
	if hasPage {
		req.Offset = page * req.Limit
	}
	if hasOffset {
		req.Offset = offset
	}

	var specs []string
	for _, raw := range params["sort"] {
		specs = append(specs, splitSort(raw)...)
	}
	req.Sort, err = ParseSort(def, specs)
	return req, err
}

// splitSort splits a sort parameter into specs. A direction token binds to
// the field before it: "id,desc,title" is ["id,desc", "title"].
func splitSort(raw string) []string {
	tokens := strings.Split(raw, ",")
	specs := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		spec := tokens[i]
		if i+1 < len(tokens) && isDirection(tokens[i+1]) {
			spec += "," + tokens[i+1]
			i++
		}
		specs = append(specs, spec)
	}
	return specs
}

func isDirection(token string) bool {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "asc", "desc":
		return true
	}
	return false
}

// --- Store ---

// QueryStore runs compiled queries against one backend.
// Implementations must return every record Query.Where selects exactly once.
type QueryStore[R any] interface {
	// Find returns the selected records. A nil page returns all of them,
	// ordered by primary key.
	Find(ctx context.Context, q query.Query, page *PageRequest) ([]R, error)

	// Count returns the number of selected records.
	Count(ctx context.Context, q query.Query) (int64, error)
}

// --- Hooks ---

// HookEvent represents a point of the query lifecycle.
type HookEvent string

const (
	// BeforeQuery runs on a private copy of the criteria before compilation.
	BeforeQuery HookEvent = "before_query"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, subject T) error

// HookRegistry stores lifecycle hooks.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes all hooks for the specified event, stopping at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, subject T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, subject); err != nil {
			return err
		}
	}
	return nil
}

// OnBeforeQuery registers a hook to run before compilation.
func (r *HookRegistry[T]) OnBeforeQuery(hook Hook[T]) {
	r.On(BeforeQuery, hook)
}

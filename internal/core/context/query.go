// Package context carries per-execution values through a query's call chain.
package context

import (
	"context"

	"github.com/google/uuid"
)

// QueryScope identifies one execution of a compiled query.
type QueryScope struct {
	QueryID   string
	RequestID string
	Entity    string
}

type queryScopeKey struct{}

// WithQueryScope adds QueryScope to context.
func WithQueryScope(ctx context.Context, scope *QueryScope) context.Context {
	return context.WithValue(ctx, queryScopeKey{}, scope)
}

// GetQueryScope returns QueryScope from context.
func GetQueryScope(ctx context.Context) *QueryScope {
	if v, ok := ctx.Value(queryScopeKey{}).(*QueryScope); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if s := GetQueryScope(ctx); s != nil {
		return s.RequestID
	}
	return ""
}

// NewQueryScope starts a scope for entity, inheriting the request ID of an
// enclosing scope when there is one. Query IDs are UUIDv7 so they sort by start time.
func NewQueryScope(ctx context.Context, entity string) *QueryScope {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &QueryScope{
		QueryID:   id.String(),
		RequestID: GetRequestID(ctx),
		Entity:    entity,
	}
}

// WithRequestID marks ctx with an inbound request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	scope := GetQueryScope(ctx)
	if scope == nil {
		return WithQueryScope(ctx, &QueryScope{RequestID: requestID})
	}
	cp := *scope
	cp.RequestID = requestID
	return WithQueryScope(ctx, &cp)
}

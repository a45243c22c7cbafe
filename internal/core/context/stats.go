package context

import (
	"context"
	"sync/atomic"
	"time"
)

// RequestStats accumulates the store calls made while serving one request.
// It is safe for concurrent use; paged queries record from two goroutines.
type RequestStats struct {
	queries atomic.Int64
	elapsed atomic.Int64
}

type requestStatsKey struct{}

// WithRequestStats attaches stats to ctx.
func WithRequestStats(ctx context.Context, stats *RequestStats) context.Context {
	return context.WithValue(ctx, requestStatsKey{}, stats)
}

// GetRequestStats returns the stats attached to ctx, or nil.
func GetRequestStats(ctx context.Context) *RequestStats {
	if v, ok := ctx.Value(requestStatsKey{}).(*RequestStats); ok {
		return v
	}
	return nil
}

// Record adds one store call.
func (s *RequestStats) Record(elapsed time.Duration) {
	s.queries.Add(1)
	s.elapsed.Add(int64(elapsed))
}

// Queries returns the number of recorded store calls.
func (s *RequestStats) Queries() int64 { return s.queries.Load() }

// Elapsed returns the summed duration of the recorded store calls.
func (s *RequestStats) Elapsed() time.Duration { return time.Duration(s.elapsed.Load()) }

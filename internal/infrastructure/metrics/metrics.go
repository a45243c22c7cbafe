// Package metrics exports query outcomes to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain"
)

var _ domain.Observer = (*Recorder)(nil)

// Recorder implements domain.Observer.
type Recorder struct {
	// QueriesTotal counts store calls by entity, operation and status.
	QueriesTotal *prometheus.CounterVec
	// QueryDuration is the latency of store calls.
	QueryDuration *prometheus.HistogramVec
}

// NewRecorder registers the query metrics with reg. A nil reg uses the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaquery_queries_total",
				Help: "Total number of criteria queries run against a store",
			},
			[]string{"entity", "operation", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metaquery_query_duration_seconds",
				Help:    "Store latency of criteria queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity", "operation"},
		),
	}
}

// ObserveQuery implements domain.Observer.
func (r *Recorder) ObserveQuery(entity, operation string, elapsed time.Duration, err error) {
	r.QueriesTotal.WithLabelValues(entity, operation, Status(err)).Inc()
	r.QueryDuration.WithLabelValues(entity, operation).Observe(elapsed.Seconds())
}

// Status labels an outcome: "ok", or the error code.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeStore
}

package domain

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"metaquery/internal/core/apperror"
	appctx "metaquery/internal/core/context"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/query"
	"metaquery/internal/metadata"
	"metaquery/pkg/logger"
)

var tracer = otel.Tracer("metaquery/query")

// Observer receives the outcome of every store call. See the metrics package.
type Observer interface {
	ObserveQuery(entity, operation string, elapsed time.Duration, err error)
}

// QueryService answers criteria queries for one entity: it compiles criteria
// and hands the compiled query to its store.
type QueryService[R any] struct {
	entity      metadata.EntityDef
	store       QueryStore[R]
	opts        []query.Option
	hooks       *HookRegistry[*criteria.Criteria]
	observer    Observer
	maxParallel int
}

// QueryServiceConfig configures the query service.
type QueryServiceConfig[R any] struct {
	Entity   metadata.EntityDef
	Store    QueryStore[R]
	Options  []query.Option
	Observer Observer // Optional
	// MaxParallel bounds concurrent store calls of CountMany (default 4).
	MaxParallel int
}

// NewQueryService creates a new query service.
func NewQueryService[R any](cfg QueryServiceConfig[R]) *QueryService[R] {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &QueryService[R]{
		entity:      cfg.Entity.Normalize(),
		store:       cfg.Store,
		opts:        cfg.Options,
		hooks:       NewHookRegistry[*criteria.Criteria](),
		observer:    cfg.Observer,
		maxParallel: cfg.MaxParallel,
	}
}

// Entity returns the definition the service queries.
func (s *QueryService[R]) Entity() metadata.EntityDef {
	return s.entity
}

// Hooks returns the hook registry for external registration.
func (s *QueryService[R]) Hooks() *HookRegistry[*criteria.Criteria] {
	return s.hooks
}

// Compile runs the before-query hooks on a copy of c and compiles the result.
// The caller's criteria are never modified.
func (s *QueryService[R]) Compile(ctx context.Context, c *criteria.Criteria) (query.Query, error) {
	var cp *criteria.Criteria
	if c == nil {
		cp = criteria.New(s.entity)
	} else {
		cp = c.Copy()
	}
	if err := s.hooks.Run(ctx, BeforeQuery, cp); err != nil {
		return query.Query{}, err
	}

	q, err := query.Compile(s.entity, cp, s.opts...)
	if err != nil {
		return query.Query{}, err
	}

	logger.Debug(ctx, "criteria compiled",
		"criteria", cp.String(),
		"where", q.Where.String(),
		"distinct", q.Distinct,
		"fingerprint", q.Fingerprint(),
	)
	return q, nil
}

// FindByCriteria returns every record matching c.
func (s *QueryService[R]) FindByCriteria(ctx context.Context, c *criteria.Criteria) ([]R, error) {
	q, err := s.Compile(ctx, c)
	if err != nil {
		return nil, err
	}
	if q.MatchesNone() {
		return []R{}, nil
	}

	var items []R
	err = s.execute(ctx, "find", q, func(ctx context.Context) error {
		var err error
		items, err = s.store.Find(ctx, q, nil)
		return err
	})
	return items, err
}

// FindSortedByCriteria returns every record matching c in the given order.
func (s *QueryService[R]) FindSortedByCriteria(ctx context.Context, c *criteria.Criteria, sort []Order) ([]R, error) {
	page := PageRequest{Sort: sort}
	if err := s.checkPage(page); err != nil {
		return nil, err
	}
	q, err := s.Compile(ctx, c)
	if err != nil {
		return nil, err
	}
	if q.MatchesNone() {
		return []R{}, nil
	}

	var items []R
	err = s.execute(ctx, "find", q, func(ctx context.Context) error {
		var err error
		items, err = s.store.Find(ctx, q, &page)
		return err
	})
	return items, err
}

// FindPageByCriteria returns one page of the records matching c together with
// the total count. Both store calls run concurrently.
func (s *QueryService[R]) FindPageByCriteria(ctx context.Context, c *criteria.Criteria, page PageRequest) (Page[R], error) {
	if err := s.checkPage(page); err != nil {
		return Page[R]{}, err
	}
	result := Page[R]{Items: []R{}, Limit: page.Limit, Offset: page.Offset}

	q, err := s.Compile(ctx, c)
	if err != nil {
		return result, err
	}
	if q.MatchesNone() {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.execute(gctx, "find_page", q, func(ctx context.Context) error {
			items, err := s.store.Find(ctx, q, &page)
			if err == nil && items != nil {
				result.Items = items
			}
			return err
		})
	})
	g.Go(func() error {
		return s.execute(gctx, "count", q, func(ctx context.Context) error {
			var err error
			result.TotalCount, err = s.store.Count(ctx, q)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return Page[R]{}, err
	}
	return result, nil
}

// CountByCriteria returns the number of records matching c.
func (s *QueryService[R]) CountByCriteria(ctx context.Context, c *criteria.Criteria) (int64, error) {
	q, err := s.Compile(ctx, c)
	if err != nil {
		return 0, err
	}
	if q.MatchesNone() {
		return 0, nil
	}

	var n int64
	err = s.execute(ctx, "count", q, func(ctx context.Context) error {
		var err error
		n, err = s.store.Count(ctx, q)
		return err
	})
	return n, err
}

// CountMany counts several criteria concurrently. Results are in input order.
func (s *QueryService[R]) CountMany(ctx context.Context, cs []*criteria.Criteria) ([]int64, error) {
	counts := make([]int64, len(cs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, c := range cs {
		g.Go(func() error {
			n, err := s.CountByCriteria(gctx, c)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *QueryService[R]) checkPage(page PageRequest) error {
	if page.Limit < 0 || page.Offset < 0 {
		return apperror.NewValidation("offset and limit must be non-negative").
			WithDetail("offset", page.Offset).
			WithDetail("limit", page.Limit)
	}
	for _, o := range page.Sort {
		if _, ok := s.entity.Field(o.Field); !ok {
			return apperror.NewUnknownField(s.entity.Name, o.Field).WithDetail("sort", o.Field)
		}
		if o.Direction != Asc && o.Direction != Desc {
			return apperror.NewValidation(fmt.Sprintf("invalid sort direction %q", o.Direction))
		}
	}
	return nil
}

// execute runs one store call inside a query scope and a tracing span and
// wraps store failures exactly once.
func (s *QueryService[R]) execute(ctx context.Context, op string, q query.Query, fn func(ctx context.Context) error) error {
	scope := appctx.NewQueryScope(ctx, s.entity.Name)
	ctx = appctx.WithQueryScope(ctx, scope)

	ctx, span := tracer.Start(ctx, "query."+op,
		trace.WithAttributes(
			attribute.String("query.entity", s.entity.Name),
			attribute.String("query.fingerprint", q.Fingerprint()),
			attribute.Bool("query.distinct", q.NeedsDistinct()),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.ObserveQuery(s.entity.Name, op, elapsed, err)
	}
	if stats := appctx.GetRequestStats(ctx); stats != nil {
		stats.Record(elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "query failed", "operation", op, "elapsed", elapsed, "error", err)
		if apperror.IsAppError(err) {
			return err
		}
		return apperror.NewStore(s.entity.Name, err).WithDetail("operation", op)
	}

	logger.Debug(ctx, "query executed", "operation", op, "elapsed", elapsed)
	return nil
}

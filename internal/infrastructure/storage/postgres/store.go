package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"metaquery/internal/domain"
	"metaquery/internal/domain/query"
	"metaquery/internal/infrastructure/storage/sqlrender"
	"metaquery/internal/metadata"
)

// Compile-time check that Store implements domain.QueryStore.
var _ domain.QueryStore[struct{}] = (*Store[struct{}])(nil)

// Store runs compiled queries for one entity. R is scanned with pgxscan, so
// its "db" tags must match the table's columns.
type Store[R any] struct {
	txm      *TxManager
	def      metadata.EntityDef
	columns  []string
	renderer *sqlrender.Renderer
}

// NewStore creates a store for def. Every column tagged on R is selected.
func NewStore[R any](txm *TxManager, def metadata.EntityDef) *Store[R] {
	return &Store[R]{
		txm:      txm,
		def:      def.Normalize(),
		columns:  metadata.ExtractDBColumns[R](),
		renderer: sqlrender.New(sqlrender.Postgres),
	}
}

// Find returns the records q selects.
func (s *Store[R]) Find(ctx context.Context, q query.Query, page *domain.PageRequest) ([]R, error) {
	sql, args, err := s.findSQL(q, page)
	if err != nil {
		return nil, err
	}

	items := make([]R, 0)
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		return pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &items, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.def.Table, err)
	}
	return items, nil
}

// Count returns the number of records q selects.
func (s *Store[R]) Count(ctx context.Context, q query.Query) (int64, error) {
	sql, args, err := s.countSQL(q)
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		return s.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.def.Table, err)
	}
	return n, nil
}

func (s *Store[R]) findSQL(q query.Query, page *domain.PageRequest) (string, []any, error) {
	if err := s.check(q); err != nil {
		return "", nil, err
	}
	sb, err := s.renderer.Select(q, s.columns, page)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return sql, args, nil
}

func (s *Store[R]) countSQL(q query.Query) (string, []any, error) {
	if err := s.check(q); err != nil {
		return "", nil, err
	}
	sb, err := s.renderer.Count(q)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build count query: %w", err)
	}
	return sql, args, nil
}

func (s *Store[R]) check(q query.Query) error {
	if q.Entity.Name != s.def.Name {
		return fmt.Errorf("postgres store for %s cannot run a query on %s", s.def.Name, q.Entity.Name)
	}
	return nil
}

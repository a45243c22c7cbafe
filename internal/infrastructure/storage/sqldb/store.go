package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"

	"metaquery/internal/domain"
	"metaquery/internal/domain/query"
	"metaquery/internal/infrastructure/storage/sqlrender"
	"metaquery/internal/metadata"
)

// Compile-time check that Store implements domain.QueryStore.
var _ domain.QueryStore[struct{}] = (*Store[struct{}])(nil)

// Store runs compiled queries for one entity over a *sql.DB.
type Store[R any] struct {
	db       *sql.DB
	def      metadata.EntityDef
	columns  []string
	renderer *sqlrender.Renderer
}

// NewStore creates a store for def. Every column tagged on R is selected.
func NewStore[R any](db *sql.DB, dialect sqlrender.Dialect, def metadata.EntityDef) *Store[R] {
	return &Store[R]{
		db:       db,
		def:      def.Normalize(),
		columns:  metadata.ExtractDBColumns[R](),
		renderer: sqlrender.New(dialect),
	}
}

// Find returns the records q selects.
func (s *Store[R]) Find(ctx context.Context, q query.Query, page *domain.PageRequest) ([]R, error) {
	if err := s.check(q); err != nil {
		return nil, err
	}
	sb, err := s.renderer.Select(q, s.columns, page)
	if err != nil {
		return nil, err
	}
	stmt, args, err := s.build(sb.ToSql())
	if err != nil {
		return nil, err
	}

	items := make([]R, 0)
	if err := sqlscan.Select(ctx, s.db, &items, stmt, args...); err != nil {
		return nil, fmt.Errorf("find %s: %w", s.def.Table, err)
	}
	return items, nil
}

// Count returns the number of records q selects.
func (s *Store[R]) Count(ctx context.Context, q query.Query) (int64, error) {
	if err := s.check(q); err != nil {
		return 0, err
	}
	sb, err := s.renderer.Count(q)
	if err != nil {
		return 0, err
	}
	stmt, args, err := s.build(sb.ToSql())
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.def.Table, err)
	}
	return n, nil
}

func (s *Store[R]) build(stmt string, args []any, err error) (string, []any, error) {
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	args, err = driverArgs(args)
	if err != nil {
		return "", nil, err
	}
	return stmt, args, nil
}

func (s *Store[R]) check(q query.Query) error {
	if q.Entity.Name != s.def.Name {
		return fmt.Errorf("%s store for %s cannot run a query on %s", s.renderer.Dialect().Name, s.def.Name, q.Entity.Name)
	}
	return nil
}

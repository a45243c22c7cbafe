// Package gormstore runs compiled queries through GORM. The rendered joins and
// conditions come from sqlrender; GORM builds the statement and scans rows.
package gormstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"metaquery/internal/domain"
	"metaquery/internal/domain/query"
	"metaquery/internal/infrastructure/storage/sqlrender"
	"metaquery/internal/metadata"
)

// Compile-time check that Store implements domain.QueryStore.
var _ domain.QueryStore[struct{}] = (*Store[struct{}])(nil)

// OpenMySQL opens a GORM connection to MySQL.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:      newLogger(),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// WrapConn opens GORM over an existing connection pool speaking MySQL-style
// SQL ("?" placeholders, backquoted identifiers), e.g. SQLite.
func WrapConn(conn *sql.DB) (*gorm.DB, error) {
	return gorm.Open(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: newLogger()})
}

// Store runs compiled queries for one entity. R is scanned by GORM, so its
// field names must map to the table's columns under GORM's naming strategy.
type Store[R any] struct {
	db       *gorm.DB
	def      metadata.EntityDef
	columns  []string
	renderer *sqlrender.Renderer
}

// NewStore creates a store for def. dialect controls how conditions are
// rendered and must match the database behind db.
func NewStore[R any](db *gorm.DB, dialect sqlrender.Dialect, def metadata.EntityDef) *Store[R] {
	return &Store[R]{
		db:       db,
		def:      def.Normalize(),
		columns:  metadata.ExtractDBColumns[R](),
		renderer: sqlrender.New(dialect),
	}
}

// Find returns the records q selects.
func (s *Store[R]) Find(ctx context.Context, q query.Query, page *domain.PageRequest) ([]R, error) {
	tx, err := s.find(s.db.WithContext(ctx), q, page)
	if err != nil {
		return nil, err
	}
	items := make([]R, 0)
	if err := tx.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", s.def.Table, err)
	}
	return items, nil
}

// Count returns the number of records q selects.
func (s *Store[R]) Count(ctx context.Context, q query.Query) (int64, error) {
	tx, err := s.count(s.db.WithContext(ctx), q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.def.Table, err)
	}
	return n, nil
}

func (s *Store[R]) find(db *gorm.DB, q query.Query, page *domain.PageRequest) (*gorm.DB, error) {
	tx, err := s.filtered(db, q)
	if err != nil {
		return nil, err
	}
	tx = tx.Select(sqlrender.Columns(s.def.Table, s.columns))
	if q.NeedsDistinct() {
		tx = tx.Distinct()
	}

	var orders []domain.Order
	if page != nil {
		orders = page.Sort
	}
	items, err := s.renderer.OrderBy(s.def, orders)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		tx = tx.Order(item)
	}

	if limit, ok := s.renderer.Limit(page); ok {
		tx = tx.Limit(int(limit))
	}
	if page != nil && page.Offset > 0 {
		tx = tx.Offset(page.Offset)
	}
	return tx, nil
}

func (s *Store[R]) count(db *gorm.DB, q query.Query) (*gorm.DB, error) {
	tx, err := s.filtered(db, q)
	if err != nil {
		return nil, err
	}
	if q.NeedsDistinct() {
		tx = tx.Distinct(s.def.Table + "." + s.def.PrimaryKeyField().Column)
	}
	return tx, nil
}

func (s *Store[R]) filtered(db *gorm.DB, q query.Query) (*gorm.DB, error) {
	if q.Entity.Name != s.def.Name {
		return nil, fmt.Errorf("gorm store for %s cannot run a query on %s", s.def.Name, q.Entity.Name)
	}
	tx := db.Table(s.def.Table)
	for _, j := range sqlrender.Joins(q) {
		tx = tx.Joins("LEFT JOIN " + j)
	}
	where, err := s.renderer.Where(q)
	if err != nil {
		return nil, err
	}
	if where != nil {
		cond, args, err := where.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build condition: %w", err)
		}
		for i, a := range args {
			if args[i], err = driver.DefaultParameterConverter.ConvertValue(a); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
		}
		tx = tx.Where(cond, args...)
	}
	return tx, nil
}

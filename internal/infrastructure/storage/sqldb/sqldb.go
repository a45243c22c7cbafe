// Package sqldb runs compiled queries through database/sql. It serves SQLite
// (modernc.org/sqlite, pure Go) and MySQL.
package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"metaquery/internal/domain/shop"
	"metaquery/internal/infrastructure/storage/sqlrender"
)

// Open connects to driver ("sqlite" or "mysql") and returns the matching dialect.
func Open(ctx context.Context, driverName, dsn string) (*sql.DB, sqlrender.Dialect, error) {
	dialect, err := sqlrender.DialectByName(driverName)
	if err != nil {
		return nil, sqlrender.Dialect{}, err
	}
	if dialect.Name == sqlrender.Postgres.Name {
		return nil, sqlrender.Dialect{}, fmt.Errorf("use the postgres store for %s", driverName)
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, sqlrender.Dialect{}, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == sqlrender.SQLite.Name {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, sqlrender.Dialect{}, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	return db, dialect, nil
}

// Seed recreates the shop tables and loads f in one transaction.
func Seed(ctx context.Context, db *sql.DB, dialect sqlrender.Dialect, f shop.Fixtures) error {
	builder := squirrel.StatementBuilder.PlaceholderFormat(dialect.Placeholder)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range shop.Tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	for _, stmt := range shop.SchemaStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	for _, t := range f.Tables() {
		for _, row := range t.Rows {
			query, args, err := builder.Insert(t.Table).SetMap(row).ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			args, err = driverArgs(args)
			if err != nil {
				return fmt.Errorf("insert %s: %w", t.Table, err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert %s: %w", t.Table, err)
			}
		}
	}
	return tx.Commit()
}

// driverArgs converts arguments to plain driver values: pointers are
// dereferenced, named kinds lose their names and int32 widens to int64.
func driverArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

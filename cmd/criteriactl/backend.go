package main

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"gorm.io/gorm"

	"metaquery/internal/domain"
	"metaquery/internal/domain/shop"
	"metaquery/internal/infrastructure/celeval"
	"metaquery/internal/infrastructure/storage/gormstore"
	"metaquery/internal/infrastructure/storage/memory"
	"metaquery/internal/infrastructure/storage/postgres"
	"metaquery/internal/infrastructure/storage/sqldb"
	"metaquery/internal/infrastructure/storage/sqlrender"
	"metaquery/internal/metadata"
	"metaquery/pkg/logger"
)

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverGorm     = "gorm"
)

// backend is an open connection to one of the supported stores.
type backend struct {
	driver  string
	dialect sqlrender.Dialect
	db      *sql.DB
	gormDB  *gorm.DB
	pool    *postgres.Pool
	txm     *postgres.TxManager
	cel     *celeval.Evaluator
}

func openBackend(ctx context.Context, driver, dsn string) (*backend, error) {
	switch driver {
	case driverMemory:
		return &backend{driver: driver}, nil

	case driverPostgres, "postgresql", "pgx":
		cfg := postgres.DefaultPoolConfig(dsn)
		maxConns, err := poolSize(getEnvInt("PG_MAX_CONNS", int(cfg.MaxConns)))
		if err != nil {
			return nil, err
		}
		cfg.MaxConns = maxConns
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{driver: driverPostgres, dialect: sqlrender.Postgres, pool: pool, txm: postgres.NewTxManager(pool)}, nil

	case driverGorm:
		db, err := gormstore.OpenMySQL(dsn)
		if err != nil {
			return nil, err
		}
		return &backend{driver: driver, dialect: sqlrender.MySQL, gormDB: db}, nil
	}

	if dsn == "" {
		return nil, fmt.Errorf("no connection string for %s: set --dsn or DATABASE_URL", driver)
	}
	db, dialect, err := sqldb.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return &backend{driver: dialect.Name, dialect: dialect, db: db}, nil
}

// poolSize converts a configured connection count to the pool's int32.
func poolSize(n int) (int32, error) {
	if n < 1 || n > math.MaxInt32 {
		return 0, fmt.Errorf("PG_MAX_CONNS must be between 1 and %d, got %d", math.MaxInt32, n)
	}
	return int32(n), nil
}

// Ping checks the connection.
func (b *backend) Ping(ctx context.Context) error {
	switch {
	case b.pool != nil:
		return b.pool.Ping(ctx)
	case b.gormDB != nil:
		db, err := b.gormDB.DB()
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	case b.db != nil:
		return b.db.PingContext(ctx)
	}
	return nil
}

func (b *backend) Close() {
	switch {
	case b.pool != nil:
		b.pool.Close()
	case b.gormDB != nil:
		if db, err := b.gormDB.DB(); err == nil {
			_ = db.Close()
		}
	case b.db != nil:
		_ = b.db.Close()
	}
}

// seed recreates the shop tables and loads the sample data.
func (b *backend) seed(ctx context.Context) error {
	data := shop.SampleData()
	switch {
	case b.txm != nil:
		return postgres.Seed(ctx, b.txm, data)
	case b.gormDB != nil:
		db, err := b.gormDB.DB()
		if err != nil {
			return err
		}
		return sqldb.Seed(ctx, db, b.dialect, data)
	case b.db != nil:
		if b.dialect.Name == sqlrender.SQLite.Name {
			// Dates stored by SQLite do not compare as instants.
			logger.Info(ctx, "sqlite: loading sample data without dates")
			data = data.WithoutDates()
		}
		return sqldb.Seed(ctx, b.db, b.dialect, data)
	}
	return fmt.Errorf("the %s driver has nothing to initialize", b.driver)
}

// storeFor opens a store for def on a database backend.
func storeFor[R any](b *backend, def metadata.EntityDef) (domain.QueryStore[R], error) {
	switch {
	case b.txm != nil:
		return postgres.NewStore[R](b.txm, def), nil
	case b.gormDB != nil:
		return gormstore.NewStore[R](b.gormDB, b.dialect, def), nil
	case b.db != nil:
		return sqldb.NewStore[R](b.db, b.dialect, def), nil
	}
	return nil, fmt.Errorf("the %s driver only serves the built-in shop entities", b.driver)
}

// shopStore opens a store for a shop entity. The memory driver is loaded with records.
func shopStore[R any](b *backend, def metadata.EntityDef, records []R) (domain.QueryStore[R], error) {
	if b.driver != driverMemory {
		return storeFor[R](b, def)
	}
	var opts []memory.Option[R]
	if b.cel != nil {
		opts = append(opts, memory.WithEvaluator[R](b.cel))
	}
	s := memory.New(def, opts...)
	s.Insert(records...)
	return s, nil
}

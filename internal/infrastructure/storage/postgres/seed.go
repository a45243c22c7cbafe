package postgres

import (
	"context"
	"fmt"

	"metaquery/internal/domain/shop"
	"metaquery/pkg/logger"
)

// Seed recreates the shop tables and loads f in one transaction. The schema
// goes in one batch and each table's rows through COPY.
func Seed(ctx context.Context, txm *TxManager, f shop.Fixtures) error {
	ddl := make([]BatchQuery, 0, len(shop.Tables)+8)
	for _, table := range shop.Tables {
		ddl = append(ddl, BatchQuery{SQL: "DROP TABLE IF EXISTS " + table + " CASCADE"})
	}
	for _, stmt := range shop.SchemaStatements() {
		ddl = append(ddl, BatchQuery{SQL: stmt})
	}

	executor := NewBatchExecutor(txm)
	inserter := NewBatchInserter(txm)
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := executor.ExecuteBatch(ctx, ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		for _, t := range f.Tables() {
			n, err := inserter.CopyFromMaps(ctx, t.Table, t.Rows)
			if err != nil {
				return fmt.Errorf("load %s: %w", t.Table, err)
			}
			logger.Debug(ctx, "table loaded", "table", t.Table, "rows", n)
		}
		return nil
	})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"metaquery/internal/domain"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/shop"
	"metaquery/internal/metadata"
	"metaquery/pkg/logger"
)

func newFindCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "find [query]",
		Short:   "Print one page of the records a criteria query string selects",
		Example: `  criteriactl find --driver sqlite --dsn shop.db -e address 'country.notIn=US&sort=city&size=2'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args, false)
		},
	}
}

func newCountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "count [query]",
		Short:   "Print the number of records a criteria query string selects",
		Example: `  criteriactl count --driver postgres -e category 'productId.specified=false'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args, true)
		},
	}
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the shop tables and load the sample data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			b, err := openBackend(ctx, opts.driver, opts.dsn)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.seed(ctx); err != nil {
				return err
			}
			logger.Info(ctx, "sample data loaded", "driver", b.driver)
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", b.driver)
			return nil
		},
	}
}

func (o *options) run(cmd *cobra.Command, args []string, countOnly bool) error {
	def, c, err := o.parse(args)
	if err != nil {
		return err
	}
	var page *domain.PageRequest
	if !countOnly {
		p, err := domain.ParsePageRequest(def, o.params(args))
		if err != nil {
			return err
		}
		page = &p
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	b, err := openBackend(ctx, o.driver, o.dsn)
	if err != nil {
		return err
	}
	defer b.Close()

	w := cmd.OutOrStdout()
	if b.driver == driverMemory {
		if o.schema != "" {
			return fmt.Errorf("the %s driver only serves the built-in shop entities", b.driver)
		}
		return o.runShop(ctx, w, b, def, c, page)
	}

	store, err := storeFor[map[string]any](b, def)
	if err != nil {
		return err
	}
	return execute(ctx, w, o.service(def, store), c, page)
}

func (o *options) runShop(ctx context.Context, w io.Writer, b *backend, def metadata.EntityDef, c *criteria.Criteria, page *domain.PageRequest) error {
	data := shop.SampleData()
	switch def.Name {
	case shop.EntityCategory:
		return runShopEntity(ctx, w, o, b, def, data.Categories, c, page)
	case shop.EntityProduct:
		return runShopEntity(ctx, w, o, b, def, data.Products, c, page)
	case shop.EntityCustomer:
		return runShopEntity(ctx, w, o, b, def, data.Customers, c, page)
	case shop.EntityAddress:
		return runShopEntity(ctx, w, o, b, def, data.Addresses, c, page)
	}
	return fmt.Errorf("unknown shop entity %q", def.Name)
}

func runShopEntity[R any](ctx context.Context, w io.Writer, o *options, b *backend, def metadata.EntityDef, records []R, c *criteria.Criteria, page *domain.PageRequest) error {
	store, err := shopStore(b, def, records)
	if err != nil {
		return err
	}
	return execute(ctx, w, newService(o, def, store, nil), c, page)
}

func (o *options) service(def metadata.EntityDef, store domain.QueryStore[map[string]any]) *domain.QueryService[map[string]any] {
	return newService(o, def, store, nil)
}

func newService[R any](o *options, def metadata.EntityDef, store domain.QueryStore[R], observer domain.Observer) *domain.QueryService[R] {
	return domain.NewQueryService(domain.QueryServiceConfig[R]{
		Entity:   def,
		Store:    store,
		Options:  o.compileOptions(),
		Observer: observer,
	})
}

// execute prints the count when page is nil and the page as JSON otherwise.
func execute[R any](ctx context.Context, w io.Writer, svc *domain.QueryService[R], c *criteria.Criteria, page *domain.PageRequest) error {
	if page == nil {
		n, err := svc.CountByCriteria(ctx, c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, n)
		return err
	}

	result, err := svc.FindPageByCriteria(ctx, c, *page)
	if err != nil {
		return err
	}
	if rows, ok := any(result.Items).([]map[string]any); ok {
		textColumns(rows)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// textColumns turns raw bytes, as MySQL returns text columns, into strings.
func textColumns(rows []map[string]any) {
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
	}
}

package shoptest

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/domain"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/shop"
)

// Backend bundles one query service per shop entity, all backed by the same store kind.
type Backend struct {
	Categories *domain.QueryService[shop.Category]
	Products   *domain.QueryService[shop.Product]
	Customers  *domain.QueryService[shop.Customer]
	Addresses  *domain.QueryService[shop.Address]
}

// Stores builds a Backend from one store per entity.
func Stores(
	categories domain.QueryStore[shop.Category],
	products domain.QueryStore[shop.Product],
	customers domain.QueryStore[shop.Customer],
	addresses domain.QueryStore[shop.Address],
) Backend {
	return Backend{
		Categories: domain.NewQueryService(domain.QueryServiceConfig[shop.Category]{Entity: shop.CategoryDef(), Store: categories}),
		Products:   domain.NewQueryService(domain.QueryServiceConfig[shop.Product]{Entity: shop.ProductDef(), Store: products}),
		Customers:  domain.NewQueryService(domain.QueryServiceConfig[shop.Customer]{Entity: shop.CustomerDef(), Store: customers}),
		Addresses:  domain.NewQueryService(domain.QueryServiceConfig[shop.Address]{Entity: shop.AddressDef(), Store: addresses}),
	}
}

// Run answers sc with FindByCriteria and CountByCriteria.
func (b Backend) Run(ctx context.Context, sc Scenario) (ids []int64, count int64, err error) {
	switch sc.Entity {
	case shop.EntityCategory:
		return run(ctx, b.Categories, sc, func(c shop.Category) int64 { return c.ID })
	case shop.EntityProduct:
		return run(ctx, b.Products, sc, func(p shop.Product) int64 { return p.ID })
	case shop.EntityCustomer:
		return run(ctx, b.Customers, sc, func(c shop.Customer) int64 { return c.ID })
	case shop.EntityAddress:
		return run(ctx, b.Addresses, sc, func(a shop.Address) int64 { return a.ID })
	}
	return nil, 0, fmt.Errorf("unknown entity %q", sc.Entity)
}

// RunPage answers ps with FindPageByCriteria.
func (b Backend) RunPage(ctx context.Context, ps PageScenario) (ids []int64, total int64, err error) {
	switch ps.Entity {
	case shop.EntityCategory:
		return runPage(ctx, b.Categories, ps, func(c shop.Category) int64 { return c.ID })
	case shop.EntityProduct:
		return runPage(ctx, b.Products, ps, func(p shop.Product) int64 { return p.ID })
	case shop.EntityCustomer:
		return runPage(ctx, b.Customers, ps, func(c shop.Customer) int64 { return c.ID })
	case shop.EntityAddress:
		return runPage(ctx, b.Addresses, ps, func(a shop.Address) int64 { return a.ID })
	}
	return nil, 0, fmt.Errorf("unknown entity %q", ps.Entity)
}

func runPage[R any](ctx context.Context, svc *domain.QueryService[R], ps PageScenario, id func(R) int64) ([]int64, int64, error) {
	params, err := url.ParseQuery(ps.Query)
	if err != nil {
		return nil, 0, err
	}
	c, err := criteria.Parse(svc.Entity(), params)
	if err != nil {
		return nil, 0, err
	}
	page, err := svc.FindPageByCriteria(ctx, c, ps.Page)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, 0, len(page.Items))
	for _, it := range page.Items {
		ids = append(ids, id(it))
	}
	return ids, page.TotalCount, nil
}

func run[R any](ctx context.Context, svc *domain.QueryService[R], sc Scenario, id func(R) int64) ([]int64, int64, error) {
	c, err := criteria.Parse(svc.Entity(), sc.Params())
	if err != nil {
		return nil, 0, err
	}
	items, err := svc.FindByCriteria(ctx, c)
	if err != nil {
		return nil, 0, err
	}
	n, err := svc.CountByCriteria(ctx, c)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, id(it))
	}
	return ids, n, nil
}

// RunAll checks every scenario: the listing holds exactly the wanted ids,
// each once, and the count agrees with it. Page scenarios must return their
// ids in order.
func RunAll(t *testing.T, b Backend, skipDates bool) {
	t.Helper()
	for _, sc := range Scenarios() {
		if skipDates && sc.UsesDates {
			continue
		}
		t.Run(sc.Name(), func(t *testing.T) {
			ids, count, err := b.Run(context.Background(), sc)
			require.NoError(t, err)
			assert.ElementsMatch(t, sc.Want, ids)
			assert.Equal(t, int64(len(sc.Want)), count)
		})
	}
	for _, ps := range PageScenarios() {
		t.Run(ps.Name(), func(t *testing.T) {
			ids, total, err := b.RunPage(context.Background(), ps)
			require.NoError(t, err)
			assert.Equal(t, ps.Want, ids)
			assert.Equal(t, ps.Total, total)
		})
	}
}

package memory

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/query"
	"metaquery/internal/domain/shop"
	"metaquery/internal/domain/shop/shoptest"
)

func newShopStores() (*Store[shop.Category], *Store[shop.Product], *Store[shop.Customer], *Store[shop.Address]) {
	data := shop.SampleData()
	categories := New[shop.Category](shop.CategoryDef())
	categories.Insert(data.Categories...)
	products := New[shop.Product](shop.ProductDef())
	products.Insert(data.Products...)
	customers := New[shop.Customer](shop.CustomerDef())
	customers.Insert(data.Customers...)
	addresses := New[shop.Address](shop.AddressDef())
	addresses.Insert(data.Addresses...)
	return categories, products, customers, addresses
}

func TestScenarios(t *testing.T) {
	shoptest.RunAll(t, shoptest.Stores(newShopStores()), false)
}

func categoryService() *domain.QueryService[shop.Category] {
	categories, _, _, _ := newShopStores()
	return domain.NewQueryService(domain.QueryServiceConfig[shop.Category]{
		Entity: shop.CategoryDef(),
		Store:  categories,
	})
}

// defaultCategoryShouldBeFound asserts the listing holds id and the count is 1.
func defaultCategoryShouldBeFound(t *testing.T, svc *domain.QueryService[shop.Category], c *criteria.Criteria, id int64) {
	t.Helper()
	items, err := svc.FindByCriteria(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)

	n, err := svc.CountByCriteria(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func defaultCategoryShouldNotBeFound(t *testing.T, svc *domain.QueryService[shop.Category], c *criteria.Criteria) {
	t.Helper()
	items, err := svc.FindByCriteria(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, items)

	n, err := svc.CountByCriteria(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCategoryIDFiltering(t *testing.T) {
	svc := categoryService()
	def := svc.Entity()
	with := func(f filter.Filter) *criteria.Criteria {
		return criteria.New(def).MustSet("id", f).MustSet("description", filter.Eq("Phones"))
	}

	defaultCategoryShouldBeFound(t, svc, with(filter.Eq[int64](2)), 2)
	defaultCategoryShouldNotBeFound(t, svc, with(filter.Ne[int64](2)))
	defaultCategoryShouldBeFound(t, svc, with(filter.Gte[int64](2)), 2)
	defaultCategoryShouldNotBeFound(t, svc, with(filter.Gt[int64](2)))
	defaultCategoryShouldBeFound(t, svc, with(filter.Lte[int64](2)), 2)
	defaultCategoryShouldNotBeFound(t, svc, with(filter.Lt[int64](2)))
}

func TestFoldCase(t *testing.T) {
	categories, _, _, _ := newShopStores()
	svc := domain.NewQueryService(domain.QueryServiceConfig[shop.Category]{
		Entity:  shop.CategoryDef(),
		Store:   categories,
		Options: []query.Option{query.WithFoldCase()},
	})

	c := criteria.New(svc.Entity()).MustSet("description", filter.Contains("LAPTOP"))
	items, err := svc.FindByCriteria(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)
}

func TestTwoRecordCatalogue(t *testing.T) {
	one, two := int32(1), int32(2)
	store := New[shop.Category](shop.CategoryDef())
	store.Insert(
		shop.Category{ID: 1, Description: "A", SortOrder: &one},
		shop.Category{ID: 2, Description: "B", SortOrder: &two},
	)
	svc := domain.NewQueryService(domain.QueryServiceConfig[shop.Category]{Entity: shop.CategoryDef(), Store: store})

	tests := []struct {
		query string
		want  []int64
	}{
		{query: "description.contains=A", want: []int64{1}},
		{query: "sortOrder.greaterThanOrEqual=1", want: []int64{1, 2}},
		{query: "sortOrder.greaterThan=1", want: []int64{2}},
		{query: "sortOrder.greaterThanOrEqual=2&sortOrder.lessThanOrEqual=2", want: []int64{2}},
		{query: "description.equals=A&description.notEquals=A", want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			c, err := criteria.Parse(svc.Entity(), params)
			require.NoError(t, err)

			items, err := svc.FindByCriteria(context.Background(), c)
			require.NoError(t, err)
			ids := make([]int64, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tt.want, ids)

			n, err := svc.CountByCriteria(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestFindPage(t *testing.T) {
	svc := categoryService()
	c := criteria.New(svc.Entity()).MustSet("sortOrder", filter.IsSpecified(true))

	page, err := svc.FindPageByCriteria(context.Background(), c, domain.PageRequest{
		Offset: 1,
		Limit:  2,
		Sort:   []domain.Order{{Field: "sortOrder", Direction: domain.Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Items[0].ID)
	assert.Equal(t, int64(2), page.Items[1].ID)

	page, err = svc.FindPageByCriteria(context.Background(), c, domain.PageRequest{Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(4), page.TotalCount)
}

func TestFindSorted(t *testing.T) {
	svc := categoryService()

	items, err := svc.FindSortedByCriteria(context.Background(), nil, []domain.Order{{Field: "sortOrder", Direction: domain.Desc}})
	require.NoError(t, err)
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []int64{5, 3, 2, 1, 4}, ids, "absent sort keys go last when descending")

	_, err = svc.FindSortedByCriteria(context.Background(), nil, []domain.Order{{Field: "sortOrder", Direction: "up"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestFindPage_RejectsUnknownSortField(t *testing.T) {
	svc := categoryService()
	_, err := svc.FindPageByCriteria(context.Background(), nil, domain.PageRequest{
		Limit: 5,
		Sort:  []domain.Order{{Field: "productId", Direction: domain.Asc}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownField))
}

func TestNilCriteriaMatchesAll(t *testing.T) {
	svc := categoryService()
	items, err := svc.FindByCriteria(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	for i, it := range items {
		assert.Equal(t, int64(i+1), it.ID, "unpaged results are ordered by primary key")
	}
}

func TestCountMany(t *testing.T) {
	svc := categoryService()
	def := svc.Entity()
	counts, err := svc.CountMany(context.Background(), []*criteria.Criteria{
		criteria.New(def).MustSet("status", filter.Eq("AVAILABLE")),
		criteria.New(def).MustSet("productId", filter.IsSpecified(false)),
		nil,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2, 5}, counts)
}

func TestHooksSeeACopy(t *testing.T) {
	svc := categoryService()
	svc.Hooks().OnBeforeQuery(func(ctx context.Context, c *criteria.Criteria) error {
		return c.Set("status", filter.Ne("DISABLED"))
	})

	c, err := criteria.Parse(svc.Entity(), url.Values{"parentId.specified": {"false"}})
	require.NoError(t, err)
	items, err := svc.FindByCriteria(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)

	_, touched := c.Get("status")
	assert.False(t, touched)
}

type failingStore struct{}

func (failingStore) Find(context.Context, query.Query, *domain.PageRequest) ([]shop.Category, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) Count(context.Context, query.Query) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestStoreErrorsAreWrappedOnce(t *testing.T) {
	svc := domain.NewQueryService(domain.QueryServiceConfig[shop.Category]{
		Entity: shop.CategoryDef(),
		Store:  failingStore{},
	})
	_, err := svc.CountByCriteria(context.Background(), nil)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeStore, appErr.Code)
	assert.EqualError(t, errors.Unwrap(err), "connection reset")

	_, err = svc.FindPageByCriteria(context.Background(), nil, domain.PageRequest{Limit: 1})
	assert.True(t, apperror.HasCode(err, apperror.CodeStore))
}

func TestUnsatisfiableQuerySkipsStore(t *testing.T) {
	svc := domain.NewQueryService(domain.QueryServiceConfig[shop.Category]{
		Entity: shop.CategoryDef(),
		Store:  failingStore{},
	})
	c := criteria.New(svc.Entity()).MustSet("id", filter.In[int64]())
	n, err := svc.CountByCriteria(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWrongEntity(t *testing.T) {
	categories, _, _, _ := newShopStores()
	q, err := query.Compile(shop.ProductDef(), nil)
	require.NoError(t, err)
	_, err = categories.Count(context.Background(), q)
	assert.Error(t, err)
}

func TestWithRelationOverride(t *testing.T) {
	type tag struct {
		ID int64 `db:"id" json:"id"`
	}
	def := shop.CategoryDef()
	def.Name, def.Table, def.Relations = "Tag", "tag", def.Relations[:1]
	store := New[tag](def, WithRelation("parentId", func(t tag) []any {
		if t.ID == 2 {
			return []any{int64(1)}
		}
		return nil
	}))
	store.Insert(tag{ID: 1}, tag{ID: 2})

	c := criteria.New(def).MustSet("parentId", filter.Eq[int64](1))
	q, err := query.Compile(def, c)
	require.NoError(t, err)
	items, err := store.Find(context.Background(), q, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
}

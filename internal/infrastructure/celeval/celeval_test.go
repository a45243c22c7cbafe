package celeval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/domain/query"
	"metaquery/internal/domain/shop"
	"metaquery/internal/domain/shop/shoptest"
	"metaquery/internal/infrastructure/storage/memory"
	"metaquery/internal/metadata"
)

func celStores(e *Evaluator) shoptest.Backend {
	data := shop.SampleData()
	categories := memory.New(shop.CategoryDef(), memory.WithEvaluator[shop.Category](e))
	categories.Insert(data.Categories...)
	products := memory.New(shop.ProductDef(), memory.WithEvaluator[shop.Product](e))
	products.Insert(data.Products...)
	customers := memory.New(shop.CustomerDef(), memory.WithEvaluator[shop.Customer](e))
	customers.Insert(data.Customers...)
	addresses := memory.New(shop.AddressDef(), memory.WithEvaluator[shop.Address](e))
	addresses.Insert(data.Addresses...)
	return shoptest.Stores(categories, products, customers, addresses)
}

func TestScenarios(t *testing.T) {
	shoptest.RunAll(t, celStores(New()), false)
}

func compileParams(t *testing.T, def metadata.EntityDef, params map[string][]string, opts ...query.Option) query.Query {
	t.Helper()
	c, err := criteria.Parse(def, params)
	require.NoError(t, err)
	q, err := query.Compile(def, c, opts...)
	require.NoError(t, err)
	return q
}

func TestProgram_Source(t *testing.T) {
	tests := []struct {
		name   string
		params map[string][]string
		opts   []query.Option
		want   string
	}{
		{
			name:   "unconstrained",
			params: map[string][]string{},
			want:   "true",
		},
		{
			name:   "equals",
			params: map[string][]string{"id.equals": {"3"}},
			want:   `(r["id"] != null && r["id"] == p0)`,
		},
		{
			name:   "notIn guards the operand",
			params: map[string][]string{"sortOrder.notIn": {"2"}},
			want:   `(r["sortOrder"] != null && !(r["sortOrder"] in p0))`,
		},
		{
			name:   "notEquals",
			params: map[string][]string{"sortOrder.notEquals": {"2"}},
			want:   `(r["sortOrder"] != null && r["sortOrder"] != p0)`,
		},
		{
			name:   "specified",
			params: map[string][]string{"dateAdded.specified": {"false"}},
			want:   `r["dateAdded"] == null`,
		},
		{
			name:   "fold case",
			params: map[string][]string{"description.contains": {"elec"}},
			opts:   []query.Option{query.WithFoldCase()},
			want:   `(r["description"] != null && r["description"].upperAscii().contains(p0))`,
		},
		{
			name:   "relation",
			params: map[string][]string{"parentId.equals": {"1"}},
			want:   `r["parentId"].exists(x, (x != null && x == p0))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := compileParams(t, shop.CategoryDef(), tt.params, tt.opts...)
			p, err := New().Program(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Source)
		})
	}
}

func TestProgram_IsCached(t *testing.T) {
	e := New()
	q := compileParams(t, shop.CategoryDef(), map[string][]string{"description.contains": {"Elec"}})

	first, err := e.Program(q)
	require.NoError(t, err)
	second, err := e.Program(q)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEvaluator_CacheIsBounded(t *testing.T) {
	e := New(WithCacheSize(2))
	def := shop.CategoryDef()

	first, err := e.Program(compileParams(t, def, map[string][]string{"id.equals": {"1"}}))
	require.NoError(t, err)
	for _, id := range []string{"2", "3", "4", "5"} {
		_, err := e.Program(compileParams(t, def, map[string][]string{"id.equals": {id}}))
		require.NoError(t, err)
		assert.LessOrEqual(t, e.Cached(), 2)
	}

	again, err := e.Program(compileParams(t, def, map[string][]string{"id.equals": {"1"}}))
	require.NoError(t, err)
	assert.NotSame(t, first, again, "least recently used program is evicted")
	assert.Equal(t, 2, e.Cached())
}

// fieldRow serves values by field name.
type fieldRow map[string]any

func (r fieldRow) Value(f predicate.FieldRef) (any, bool) {
	v, ok := r[f.Name]
	return v, ok && v != nil
}

func (r fieldRow) Related(metadata.RelationDef) []any { return nil }

func TestProgram_NonIdentifierFieldNames(t *testing.T) {
	def := metadata.EntityDef{
		Name:  "Line",
		Table: "line",
		Fields: []metadata.FieldDef{
			{Name: "id", Type: filter.TypeLong, Column: "id"},
			{Name: "unit-price", Type: filter.TypeLong, Column: "unit_price"},
			{Name: "in", Type: filter.TypeString, Column: "in_code"},
		},
	}
	c := criteria.New(def).
		MustSet("unit-price", filter.Gt[int64](10)).
		MustSet("in", filter.Contains("EU"))
	q, err := query.Compile(def, c)
	require.NoError(t, err)

	p, err := New().Program(q)
	require.NoError(t, err)
	assert.Contains(t, p.Source, `r["unit-price"] > p`)
	assert.Contains(t, p.Source, `r["in"].contains(p`)

	tests := []struct {
		name string
		row  fieldRow
		want bool
	}{
		{name: "both match", row: fieldRow{"id": int64(1), "unit-price": int64(12), "in": "EU-1"}, want: true},
		{name: "price too low", row: fieldRow{"id": int64(2), "unit-price": int64(9), "in": "EU-1"}, want: false},
		{name: "absent price", row: fieldRow{"id": int64(3), "in": "EU-1"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Eval(q, tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesAgreesWithNativeEvaluator(t *testing.T) {
	e := New()
	params := []map[string][]string{
		{"sortOrder.greaterThan": {"1"}, "sortOrder.lessThanOrEqual": {"3"}},
		{"status.notIn": {"AVAILABLE", "DELETED"}},
		{"description.doesNotContain": {"o"}},
		{"productId.notEquals": {"1"}},
		{"parentId.specified": {"false"}},
		{"dateAdded.greaterThanOrEqual": {"2020-01-01"}},
	}

	data := shop.SampleData()
	def := shop.CategoryDef()
	store := memory.New[shop.Category](def)
	store.Insert(data.Categories...)
	native, err := store.Count(context.Background(), query.Query{Entity: def.Normalize(), Where: predicate.True()})
	require.NoError(t, err)
	require.Equal(t, int64(len(data.Categories)), native)

	for _, p := range params {
		q := compileParams(t, def, p)
		withCEL := memory.New(def, memory.WithEvaluator[shop.Category](e))
		withCEL.Insert(data.Categories...)

		want, err := store.Find(context.Background(), q, nil)
		require.NoError(t, err)
		got, err := withCEL.Find(context.Background(), q, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%v", p)
	}
}

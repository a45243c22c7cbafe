package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/domain/shop"
)

func TestCompile_Where(t *testing.T) {
	def := shop.CategoryDef()

	tests := []struct {
		name     string
		criteria *criteria.Criteria
		want     string
	}{
		{
			name:     "nil criteria",
			criteria: nil,
			want:     "TRUE",
		},
		{
			name:     "single equals",
			criteria: criteria.New(def).MustSet("id", filter.Eq[int64](1)),
			want:     "id = 1",
		},
		{
			name: "operations of one key in canonical order",
			criteria: criteria.New(def).MustSet("sortOrder",
				filter.Lt[int32](5).And(filter.NotIn[int32](2)).And(filter.IsSpecified(true))),
			want: "(NOT sortOrder IN (2) AND sortOrder IS NOT NULL AND sortOrder < 5)",
		},
		{
			name: "keys in declaration order",
			criteria: criteria.New(def).
				MustSet("status", filter.Ne("DISABLED")).
				MustSet("description", filter.NotContains("x")),
			want: `(NOT description CONTAINS "x" AND status <> "DISABLED")`,
		},
		{
			name:     "empty in matches nothing",
			criteria: criteria.New(def).MustSet("id", filter.In[int64]()).MustSet("description", filter.Eq("a")),
			want:     "FALSE",
		},
		{
			name:     "empty notIn places no constraint",
			criteria: criteria.New(def).MustSet("id", filter.NotIn[int64]()),
			want:     "TRUE",
		},
		{
			name:     "specified=false",
			criteria: criteria.New(def).MustSet("sortOrder", filter.IsSpecified(false)),
			want:     "sortOrder IS NULL",
		},
		{
			name: "all operations of a relation share one join",
			criteria: criteria.New(def).MustSet("productId",
				filter.Gt[int64](1).And(filter.Lt[int64](3))),
			want: "EXISTS productId[(product.id > 1 AND product.id < 3)]",
		},
		{
			name:     "relation with empty in needs no join",
			criteria: criteria.New(def).MustSet("productId", filter.In[int64]()),
			want:     "FALSE",
		},
		{
			name:     "relation absence",
			criteria: criteria.New(def).MustSet("parentId", filter.IsSpecified(false)),
			want:     "EXISTS parentId[parent.id IS NULL]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compile(def, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Where.String())
		})
	}
}

func TestCompile_FoldCase(t *testing.T) {
	def := shop.CategoryDef()
	c := criteria.New(def).MustSet("description", filter.Contains("lap"))

	q, err := Compile(def, c)
	require.NoError(t, err)
	like, ok := q.Where.(predicate.Like)
	require.True(t, ok)
	assert.False(t, like.FoldCase)

	q, err = Compile(def, c, WithFoldCase())
	require.NoError(t, err)
	assert.Equal(t, `description ICONTAINS "lap"`, q.Where.String())
}

func TestCompile_EntityMismatch(t *testing.T) {
	c := criteria.New(shop.ProductDef()).MustSet("id", filter.Eq[int64](1))
	_, err := Compile(shop.CategoryDef(), c)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestQuery_Distinct(t *testing.T) {
	def := shop.CategoryDef()

	tests := []struct {
		name     string
		criteria *criteria.Criteria
		want     bool
	}{
		{"no joins", criteria.New(def).MustSet("id", filter.Eq[int64](1)), false},
		{"requested", criteria.New(def).SetDistinct(true), true},
		{"many-to-one join", criteria.New(def).MustSet("parentId", filter.Eq[int64](1)), false},
		{"many-to-many join", criteria.New(def).MustSet("productId", filter.Eq[int64](1)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compile(def, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.NeedsDistinct())
		})
	}
}

func TestQuery_Relations(t *testing.T) {
	def := shop.CategoryDef()
	c := criteria.New(def).
		MustSet("productId", filter.Eq[int64](1)).
		MustSet("parentId", filter.IsSpecified(true))
	q, err := Compile(def, c)
	require.NoError(t, err)

	rels := q.Relations()
	require.Len(t, rels, 2)
	assert.Equal(t, "parentId", rels[0].Name)
	assert.Equal(t, "productId", rels[1].Name)
	assert.False(t, q.MatchesAll())
	assert.False(t, q.MatchesNone())
}

func TestQuery_Fingerprint(t *testing.T) {
	def := shop.CategoryDef()
	a, err := Compile(def, criteria.New(def).
		MustSet("id", filter.Gte[int64](2)).
		MustSet("status", filter.In("AVAILABLE")))
	require.NoError(t, err)
	b, err := Compile(def, criteria.New(def).
		MustSet("status", filter.In("AVAILABLE")).
		MustSet("id", filter.Gte[int32](2)))
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := Compile(def, criteria.New(def).MustSet("id", filter.Gte[int64](2)).SetDistinct(true))
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	p, err := Compile(shop.ProductDef(), criteria.New(shop.ProductDef()).MustSet("id", filter.Gte[int64](2)))
	require.NoError(t, err)
	d, err := Compile(def, criteria.New(def).MustSet("id", filter.Gte[int64](2)))
	require.NoError(t, err)
	assert.NotEqual(t, p.Fingerprint(), d.Fingerprint())
}

package criteria

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/filter"
	"metaquery/internal/metadata"
)

func categoryDef() metadata.EntityDef {
	return metadata.EntityDef{
		Name:  "Category",
		Table: "category",
		Fields: []metadata.FieldDef{
			{Name: "id", Type: filter.TypeLong},
			{Name: "description", Type: filter.TypeString},
			{Name: "sortOrder", Type: filter.TypeInt},
			{Name: "dateAdded", Type: filter.TypeDate},
			{Name: "status", Type: filter.TypeEnum, Options: []string{"AVAILABLE", "RESTRICTED"}},
		},
		Relations: []metadata.RelationDef{
			metadata.ManyToManyRelation("productId", "Product", "product", "rel_category__product", "category_id", "product_id"),
		},
	}.Normalize()
}

func TestParse(t *testing.T) {
	def := categoryDef()

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, c *Criteria)
	}{
		{
			name:  "range operations combine on one key",
			query: "id.greaterThanOrEqual=2&id.lessThan=10",
			check: func(t *testing.T, c *Criteria) {
				f, ok := c.Get("id")
				require.True(t, ok)
				assert.Equal(t, int64(2), f.GreaterThanOrEqual)
				assert.Equal(t, int64(10), f.LessThan)
			},
		},
		{
			name:  "in list splits on commas and repeats",
			query: "sortOrder.in=1,2&sortOrder.in=3",
			check: func(t *testing.T, c *Criteria) {
				f, _ := c.Get("sortOrder")
				assert.Equal(t, []any{int32(1), int32(2), int32(3)}, f.In)
			},
		},
		{
			name:  "empty in is the empty set",
			query: "id.in=",
			check: func(t *testing.T, c *Criteria) {
				f, ok := c.Get("id")
				require.True(t, ok)
				assert.NotNil(t, f.In)
				assert.Empty(t, f.In)
			},
		},
		{
			name:  "date operand",
			query: "dateAdded.lessThan=2024-02-17",
			check: func(t *testing.T, c *Criteria) {
				f, _ := c.Get("dateAdded")
				assert.Equal(t, time.Date(2024, 2, 17, 0, 0, 0, 0, time.UTC), f.LessThan)
			},
		},
		{
			name:  "doesNotContain alias",
			query: "description.doesNotContain=x",
			check: func(t *testing.T, c *Criteria) {
				f, _ := c.Get("description")
				require.NotNil(t, f.NotContains)
				assert.Equal(t, "x", *f.NotContains)
			},
		},
		{
			name:  "relation key and distinct flag",
			query: "productId.specified=false&distinct=true",
			check: func(t *testing.T, c *Criteria) {
				f, _ := c.Get("productId")
				require.NotNil(t, f.Specified)
				assert.False(t, *f.Specified)
				d, set := c.Distinct()
				assert.True(t, d)
				assert.True(t, set)
			},
		},
		{
			name:  "paging parameters are ignored",
			query: "page=2&size=20&sort=id,desc",
			check: func(t *testing.T, c *Criteria) {
				assert.True(t, c.IsEmpty())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			c, err := Parse(def, params)
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	def := categoryDef()

	tests := []struct {
		query string
		code  string
	}{
		{"name.equals=x", apperror.CodeUnknownField},
		{"id", apperror.CodeUnknownField},
		{"id.between=1", apperror.CodeInvalidFilter},
		{"id.contains=1", apperror.CodeInvalidFilter},
		{"status.greaterThan=AVAILABLE", apperror.CodeInvalidFilter},
		{"id.equals=abc", apperror.CodeTypeMismatch},
		{"sortOrder.equals=4294967296", apperror.CodeTypeMismatch},
		{"dateAdded.equals=17/02/2024", apperror.CodeTypeMismatch},
		{"id.specified=maybe", apperror.CodeTypeMismatch},
		{"id.equals=1&id.equals=2", apperror.CodeInvalidFilter},
		{"status.equals=DELETED", apperror.CodeInvalidFilter},
		{"distinct=yes", apperror.CodeTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			_, err = Parse(def, params)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestValues_RoundTrip(t *testing.T) {
	def := categoryDef()
	queries := []string{
		"id.greaterThan=1&id.notIn=4,5",
		"description.contains=Lap&description.notContains=Pro",
		"dateAdded.greaterThanOrEqual=2024-02-01&status.in=AVAILABLE,RESTRICTED",
		"productId.equals=3&distinct=false",
		"sortOrder.specified=true",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			params, err := url.ParseQuery(q)
			require.NoError(t, err)
			c, err := Parse(def, params)
			require.NoError(t, err)

			again, err := Parse(def, c.Values())
			require.NoError(t, err)
			assert.True(t, c.Equal(again), "%s != %s", c, again)
		})
	}
}

func TestSet(t *testing.T) {
	def := categoryDef()
	c := New(def)

	err := c.Set("name", filter.Eq("x"))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownField))

	err = c.Set("sortOrder", filter.Eq("one"))
	assert.True(t, apperror.HasCode(err, apperror.CodeTypeMismatch))

	require.NoError(t, c.Set("sortOrder", filter.Eq[int64](1)))
	f, _ := c.Get("sortOrder")
	assert.Equal(t, int32(1), f.Equals, "operands are stored in canonical form")

	require.NoError(t, c.Set("sortOrder", filter.Filter{}))
	assert.True(t, c.IsEmpty())
}

func TestKeysFollowDeclarationOrder(t *testing.T) {
	c := New(categoryDef()).
		MustSet("productId", filter.Eq[int64](1)).
		MustSet("status", filter.Eq("AVAILABLE")).
		MustSet("id", filter.Gt[int64](0))
	assert.Equal(t, []string{"id", "status", "productId"}, c.Keys())
}

func TestCopyAndEqual(t *testing.T) {
	c := New(categoryDef()).MustSet("sortOrder", filter.In[int32](1, 2)).SetDistinct(true)
	cp := c.Copy()
	assert.True(t, c.Equal(cp))

	cp.MustSet("sortOrder", filter.In[int32](1))
	assert.False(t, c.Equal(cp))
	f, _ := c.Get("sortOrder")
	assert.Len(t, f.In, 2)

	assert.False(t, New(categoryDef()).Equal(New(categoryDef()).SetDistinct(false)))
	assert.True(t, (*Criteria)(nil).Equal(nil))
}

func TestString(t *testing.T) {
	c := New(categoryDef()).
		MustSet("id", filter.Eq[int64](1)).
		MustSet("description", filter.Contains("a")).
		SetDistinct(true)
	assert.Equal(t, `CategoryCriteria{id=[equals=1], description=[contains="a"], distinct=true}`, c.String())
	assert.Equal(t, "CategoryCriteria{}", New(categoryDef()).String())
}

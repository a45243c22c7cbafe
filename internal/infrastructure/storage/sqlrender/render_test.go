package sqlrender

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/domain"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/query"
	"metaquery/internal/domain/shop"
)

func compile(t *testing.T, c *criteria.Criteria, opts ...query.Option) query.Query {
	t.Helper()
	q, err := query.Compile(c.Entity(), c, opts...)
	require.NoError(t, err)
	return q
}

func TestWhere(t *testing.T) {
	def := shop.CategoryDef()

	tests := []struct {
		name     string
		criteria *criteria.Criteria
		opts     []query.Option
		dialect  Dialect
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "equals",
			criteria: criteria.New(def).MustSet("id", filter.Eq[int64](1)),
			dialect:  Postgres,
			wantSQL:  "category.id = ?",
			wantArgs: []any{int64(1)},
		},
		{
			name:     "range",
			criteria: criteria.New(def).MustSet("sortOrder", filter.Gte[int32](2).And(filter.Lt[int32](5))),
			dialect:  Postgres,
			wantSQL:  "(category.sort_order >= ? AND category.sort_order < ?)",
			wantArgs: []any{int32(2), int32(5)},
		},
		{
			name:     "in and not in",
			criteria: criteria.New(def).MustSet("id", filter.In[int64](1, 2).And(filter.NotIn[int64](3))),
			dialect:  Postgres,
			wantSQL:  "(category.id IN (?,?) AND NOT (category.id IN (?)))",
			wantArgs: []any{int64(1), int64(2), int64(3)},
		},
		{
			name:     "specified",
			criteria: criteria.New(def).MustSet("status", filter.IsSpecified(false)),
			dialect:  Postgres,
			wantSQL:  "category.status IS NULL",
		},
		{
			name:     "date",
			criteria: criteria.New(def).MustSet("dateAdded", filter.Lt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))),
			dialect:  Postgres,
			wantSQL:  "category.date_added < ?",
			wantArgs: []any{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:     "postgres contains escapes wildcards",
			criteria: criteria.New(def).MustSet("description", filter.Contains(`100%_\`)),
			dialect:  Postgres,
			wantSQL:  "category.description LIKE ?",
			wantArgs: []any{`%100\%\_\\%`},
		},
		{
			name:     "postgres folded not contains",
			criteria: criteria.New(def).MustSet("description", filter.NotContains("lap")),
			opts:     []query.Option{query.WithFoldCase()},
			dialect:  Postgres,
			wantSQL:  "NOT (category.description ILIKE ?)",
			wantArgs: []any{"%lap%"},
		},
		{
			name:     "sqlite contains",
			criteria: criteria.New(def).MustSet("description", filter.Contains("100%")),
			dialect:  SQLite,
			wantSQL:  "instr(category.description, ?) > 0",
			wantArgs: []any{"100%"},
		},
		{
			name:     "sqlite folded contains",
			criteria: criteria.New(def).MustSet("description", filter.Contains("Lap")),
			opts:     []query.Option{query.WithFoldCase()},
			dialect:  SQLite,
			wantSQL:  "instr(UPPER(category.description), ?) > 0",
			wantArgs: []any{"LAP"},
		},
		{
			name:     "mysql contains",
			criteria: criteria.New(def).MustSet("description", filter.Contains("Lap")),
			dialect:  MySQL,
			wantSQL:  "INSTR(CAST(category.description AS BINARY), CAST(? AS BINARY)) > 0",
			wantArgs: []any{"Lap"},
		},
		{
			name:     "mysql folded not contains",
			criteria: criteria.New(def).MustSet("description", filter.NotContains("lap")),
			opts:     []query.Option{query.WithFoldCase()},
			dialect:  MySQL,
			wantSQL:  "NOT (INSTR(UPPER(category.description), UPPER(?)) > 0)",
			wantArgs: []any{"lap"},
		},
		{
			name:     "relation columns use the join alias",
			criteria: criteria.New(def).MustSet("productId", filter.Gt[int64](1).And(filter.Lt[int64](3))),
			dialect:  Postgres,
			wantSQL:  "(product.id > ? AND product.id < ?)",
			wantArgs: []any{int64(1), int64(3)},
		},
		{
			name:     "self relation",
			criteria: criteria.New(def).MustSet("parentId", filter.Ne[int64](1)),
			dialect:  Postgres,
			wantSQL:  "parent.id <> ?",
			wantArgs: []any{int64(1)},
		},
		{
			name:     "empty in",
			criteria: criteria.New(def).MustSet("id", filter.In[int64]()),
			dialect:  Postgres,
			wantSQL:  "1 = 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, err := New(tt.dialect).Where(compile(t, tt.criteria, tt.opts...))
			require.NoError(t, err)
			require.NotNil(t, where)
			sql, args, err := where.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestWhere_Unconstrained(t *testing.T) {
	where, err := New(Postgres).Where(compile(t, criteria.New(shop.CategoryDef())))
	require.NoError(t, err)
	assert.Nil(t, where)
}

func TestJoins(t *testing.T) {
	def := shop.CategoryDef()
	q := compile(t, criteria.New(def).
		MustSet("parentId", filter.IsSpecified(true)).
		MustSet("productId", filter.Eq[int64](2)))

	assert.Equal(t, []string{
		"category parent ON parent.id = category.parent_id",
		"rel_category__product product_link ON product_link.category_id = category.id",
		"product product ON product.id = product_link.product_id",
	}, Joins(q))

	q = compile(t, criteria.New(shop.CustomerDef()).MustSet("addressId", filter.Eq[int64](1)))
	assert.Equal(t, []string{"address address ON address.customer_id = customer.id"}, Joins(q))
}

func TestSelect(t *testing.T) {
	def := shop.ProductDef()
	q := compile(t, criteria.New(def).MustSet("categoryId", filter.Eq[int64](3)))

	sb, err := New(Postgres).Select(q, nil, &domain.PageRequest{
		Offset: 10,
		Limit:  5,
		Sort:   []domain.Order{{Field: "rating", Direction: domain.Desc}},
	})
	require.NoError(t, err)
	sql, args, err := sb.ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT DISTINCT product.id AS id, product.title AS title, product.keywords AS keywords, "+
		"product.description AS description, product.rating AS rating, product.date_added AS date_added, "+
		"product.date_modified AS date_modified FROM product "+
		"LEFT JOIN rel_category__product category_link ON category_link.product_id = product.id "+
		"LEFT JOIN category category ON category.id = category_link.category_id "+
		"WHERE category.id = $1 ORDER BY rating DESC NULLS LAST, id LIMIT 5 OFFSET 10", sql)
	assert.Equal(t, []any{int64(3)}, args)
}

func TestSelect_OffsetWithoutLimit(t *testing.T) {
	q := compile(t, criteria.New(shop.AddressDef()))
	page := &domain.PageRequest{Offset: 2}

	tests := []struct {
		dialect Dialect
		suffix  string
	}{
		{dialect: Postgres, suffix: "ORDER BY id OFFSET 2"},
		{dialect: SQLite, suffix: "ORDER BY id LIMIT 9223372036854775807 OFFSET 2"},
		{dialect: MySQL, suffix: "ORDER BY id LIMIT 9223372036854775807 OFFSET 2"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			sb, err := New(tt.dialect).Select(q, nil, page)
			require.NoError(t, err)
			sql, _, err := sb.ToSql()
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, tt.suffix), sql)
		})
	}

	_, ok := New(SQLite).Limit(&domain.PageRequest{})
	assert.False(t, ok)
}

func TestSelect_Unpaged(t *testing.T) {
	q := compile(t, criteria.New(shop.AddressDef()))
	sb, err := New(SQLite).Select(q, nil, nil)
	require.NoError(t, err)
	sql, args, err := sb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT address.id AS id, address.address1 AS address1, address.address2 AS address2, "+
		"address.city AS city, address.postcode AS postcode, address.country AS country FROM address ORDER BY id", sql)
	assert.Empty(t, args)
}

func TestCount(t *testing.T) {
	def := shop.CategoryDef()

	q := compile(t, criteria.New(def).MustSet("status", filter.Eq("AVAILABLE")))
	sb, err := New(SQLite).Count(q)
	require.NoError(t, err)
	sql, args, err := sb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM category WHERE category.status = ?", sql)
	assert.Equal(t, []any{"AVAILABLE"}, args)

	q = compile(t, criteria.New(def).MustSet("productId", filter.IsSpecified(false)))
	sb, err = New(MySQL).Count(q)
	require.NoError(t, err)
	sql, _, err = sb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(DISTINCT category.id) FROM category "+
		"LEFT JOIN rel_category__product product_link ON product_link.category_id = category.id "+
		"LEFT JOIN product product ON product.id = product_link.product_id "+
		"WHERE product.id IS NULL", sql)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, EscapeLike(`a%b_c\d`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}

func TestDialectByName(t *testing.T) {
	for name, want := range map[string]string{"pgx": "postgres", "SQLite3": "sqlite", "mysql": "mysql"} {
		d, err := DialectByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name)
	}
	_, err := DialectByName("oracle")
	assert.Error(t, err)
}

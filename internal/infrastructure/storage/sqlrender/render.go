package sqlrender

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"metaquery/internal/domain"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/domain/query"
	"metaquery/internal/metadata"
)

// Renderer turns compiled queries into SQL for one dialect.
type Renderer struct {
	dialect Dialect
}

// New creates a renderer for d.
func New(d Dialect) *Renderer {
	return &Renderer{dialect: d}
}

// Dialect returns the renderer's dialect.
func (r *Renderer) Dialect() Dialect {
	return r.dialect
}

// Builder returns a squirrel builder with the dialect's placeholder format.
func (r *Renderer) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(r.dialect.Placeholder)
}

// Columns qualifies cols with table as "table.column AS column".
func Columns(table string, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, table+"."+c+" AS "+c)
	}
	return out
}

// FieldColumns returns the columns of def's filterable fields.
func FieldColumns(def metadata.EntityDef) []string {
	cols := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Joins returns the LEFT JOIN clauses (without the keyword) for every
// relation q uses, each joined once.
func Joins(q query.Query) []string {
	root := q.Entity.Table
	var joins []string
	for _, rel := range q.Relations() {
		switch rel.Cardinality {
		case metadata.ManyToMany:
			link := rel.LinkAlias()
			joins = append(joins,
				fmt.Sprintf("%s %s ON %s.%s = %s.%s", rel.Through, link, link, rel.ThroughLocal, root, rel.LocalColumn),
				fmt.Sprintf("%s %s ON %s.%s = %s.%s", rel.Table, rel.Alias, rel.Alias, rel.RemoteColumn, link, rel.ThroughRemote),
			)
		default:
			joins = append(joins,
				fmt.Sprintf("%s %s ON %s.%s = %s.%s", rel.Table, rel.Alias, rel.Alias, rel.RemoteColumn, root, rel.LocalColumn))
		}
	}
	return joins
}

// Where renders q.Where. It returns nil when the query places no constraint.
func (r *Renderer) Where(q query.Query) (squirrel.Sqlizer, error) {
	if q.MatchesAll() {
		return nil, nil
	}
	return r.predicate(q.Entity.Table, q.Where)
}

func (r *Renderer) predicate(root string, p predicate.Predicate) (squirrel.Sqlizer, error) {
	switch n := p.(type) {
	case predicate.Const:
		if n.Value {
			return squirrel.Expr("1 = 1"), nil
		}
		return squirrel.Expr("1 = 0"), nil

	case predicate.And:
		and := make(squirrel.And, 0, len(n.Terms))
		for _, t := range n.Terms {
			s, err := r.predicate(root, t)
			if err != nil {
				return nil, err
			}
			and = append(and, s)
		}
		return and, nil

	case predicate.Not:
		s, err := r.predicate(root, n.Term)
		if err != nil {
			return nil, err
		}
		return not{s}, nil

	case predicate.Compare:
		col, v := column(root, n.Field), bind(n.Value)
		switch n.Op {
		case predicate.OpEq:
			return squirrel.Eq{col: v}, nil
		case predicate.OpNe:
			return squirrel.NotEq{col: v}, nil
		case predicate.OpLt:
			return squirrel.Lt{col: v}, nil
		case predicate.OpLte:
			return squirrel.LtOrEq{col: v}, nil
		case predicate.OpGt:
			return squirrel.Gt{col: v}, nil
		case predicate.OpGte:
			return squirrel.GtOrEq{col: v}, nil
		}
		return nil, fmt.Errorf("unsupported comparison %q", n.Op)

	case predicate.In:
		values := make([]any, len(n.Values))
		for i, v := range n.Values {
			values[i] = bind(v)
		}
		return squirrel.Eq{column(root, n.Field): values}, nil

	case predicate.Null:
		if n.IsNull {
			return squirrel.Eq{column(root, n.Field): nil}, nil
		}
		return squirrel.NotEq{column(root, n.Field): nil}, nil

	case predicate.Like:
		return r.dialect.contains(column(root, n.Field), n), nil

	case predicate.Exists:
		// The relation is LEFT JOINed; its columns are tested in place.
		return r.predicate(root, n.Where)
	}
	return nil, fmt.Errorf("unsupported predicate %T", p)
}

// Select builds the listing statement over cols, or over the entity's field
// columns when cols is empty. A nil page lists every record in primary key order.
func (r *Renderer) Select(q query.Query, cols []string, page *domain.PageRequest) (squirrel.SelectBuilder, error) {
	if len(cols) == 0 {
		cols = FieldColumns(q.Entity)
	}
	sb := r.Builder().Select(Columns(q.Entity.Table, cols)...).From(q.Entity.Table)
	if q.NeedsDistinct() {
		sb = sb.Distinct()
	}
	sb, err := r.filtered(sb, q)
	if err != nil {
		return sb, err
	}

	var orders []domain.Order
	if page != nil {
		orders = page.Sort
	}
	orderBy, err := r.OrderBy(q.Entity, orders)
	if err != nil {
		return sb, err
	}
	sb = sb.OrderBy(orderBy...)

	if limit, ok := r.Limit(page); ok {
		sb = sb.Limit(limit)
	}
	if page != nil && page.Offset > 0 {
		sb = sb.Offset(uint64(page.Offset))
	}
	return sb, nil
}

// Limit returns the LIMIT to apply for page. A zero limit means no limit; it
// still yields an unbounded LIMIT when an offset is set and the dialect
// requires one.
func (r *Renderer) Limit(page *domain.PageRequest) (uint64, bool) {
	switch {
	case page == nil:
		return 0, false
	case page.Limit > 0:
		return uint64(page.Limit), true
	case page.Offset > 0 && r.dialect.offsetNeedsLimit:
		return unboundedLimit, true
	}
	return 0, false
}

// Count builds the counting statement.
func (r *Renderer) Count(q query.Query) (squirrel.SelectBuilder, error) {
	expr := "COUNT(*)"
	if q.NeedsDistinct() {
		expr = fmt.Sprintf("COUNT(DISTINCT %s.%s)", q.Entity.Table, q.Entity.PrimaryKeyField().Column)
	}
	return r.filtered(r.Builder().Select(expr).From(q.Entity.Table), q)
}

func (r *Renderer) filtered(sb squirrel.SelectBuilder, q query.Query) (squirrel.SelectBuilder, error) {
	for _, j := range Joins(q) {
		sb = sb.LeftJoin(j)
	}
	where, err := r.Where(q)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	return sb, nil
}

// OrderBy returns ORDER BY items for orders followed by the primary key.
// Items name output columns so they stay valid under SELECT DISTINCT.
func (r *Renderer) OrderBy(def metadata.EntityDef, orders []domain.Order) ([]string, error) {
	pk := def.PrimaryKeyField()
	items := make([]string, 0, len(orders)+1)
	seenPK := false
	for _, o := range orders {
		f, ok := def.Field(o.Field)
		if !ok {
			return nil, fmt.Errorf("cannot sort %s by %q", def.Name, o.Field)
		}
		item := f.Column
		if o.Direction == domain.Desc {
			item += " DESC"
			if r.dialect.nullsFirst {
				item += " NULLS LAST"
			}
		} else if r.dialect.nullsFirst {
			item += " NULLS FIRST"
		}
		items = append(items, item)
		seenPK = seenPK || f.Name == pk.Name
	}
	if !seenPK {
		items = append(items, pk.Column)
	}
	return items, nil
}

func column(root string, f predicate.FieldRef) string {
	if f.Relation != "" {
		return f.Relation + "." + f.Column
	}
	return root + "." + f.Column
}

// bind converts canonical values the drivers do not all accept natively.
func bind(v any) any {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

type not struct{ inner squirrel.Sqlizer }

func (n not) ToSql() (string, []any, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + strings.TrimSpace(sql) + ")", args, nil
}

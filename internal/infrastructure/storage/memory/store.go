// Package memory is an in-process record store that evaluates compiled
// queries natively. It follows the same outer-join semantics as the SQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"metaquery/internal/domain"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/domain/query"
	"metaquery/internal/metadata"
)

// Compile-time check that Store implements domain.QueryStore.
var _ domain.QueryStore[struct{}] = (*Store[struct{}])(nil)

// Relater is implemented by records that can list their related values.
type Relater interface {
	Related(relation string) []any
}

// Evaluator decides whether a row is selected by a query.
type Evaluator interface {
	Matches(q query.Query, row predicate.Row) (bool, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(q query.Query, row predicate.Row) (bool, error)

func (f EvaluatorFunc) Matches(q query.Query, row predicate.Row) (bool, error) { return f(q, row) }

// Native evaluates the predicate tree directly.
var Native Evaluator = EvaluatorFunc(func(q query.Query, row predicate.Row) (bool, error) {
	return predicate.Matches(q.Where, row)
})

// Store holds records of one entity. It is safe for concurrent use.
type Store[R any] struct {
	mu      sync.RWMutex
	def     metadata.EntityDef
	records []R
	eval    Evaluator
	related map[string]func(R) []any
}

// Option configures a Store.
type Option[R any] func(*Store[R])

// WithEvaluator replaces the native evaluator, e.g. with a CEL one.
func WithEvaluator[R any](e Evaluator) Option[R] {
	return func(s *Store[R]) { s.eval = e }
}

// WithRelation supplies the related values of a relation for records that do
// not implement Relater.
func WithRelation[R any](name string, fn func(R) []any) Option[R] {
	return func(s *Store[R]) { s.related[name] = fn }
}

// New creates an empty store for def.
func New[R any](def metadata.EntityDef, opts ...Option[R]) *Store[R] {
	s := &Store[R]{
		def:     def.Normalize(),
		eval:    Native,
		related: make(map[string]func(R) []any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert appends records.
func (s *Store[R]) Insert(records ...R) {
	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
}

// Len returns the number of stored records.
func (s *Store[R]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Find returns matching records, ordered by page.Sort then primary key.
func (s *Store[R]) Find(ctx context.Context, q query.Query, page *domain.PageRequest) ([]R, error) {
	matched, err := s.match(ctx, q)
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	if page != nil {
		orders = page.Sort
	}
	if err := s.sortRows(matched, orders); err != nil {
		return nil, err
	}

	items := make([]R, 0, len(matched))
	for _, m := range matched {
		items = append(items, m.record)
	}
	if page == nil {
		return items, nil
	}
	if page.Offset >= len(items) {
		return []R{}, nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items, nil
}

// Count returns the number of matching records.
func (s *Store[R]) Count(ctx context.Context, q query.Query) (int64, error) {
	matched, err := s.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

type matchedRow[R any] struct {
	record R
	row    *recordRow
}

func (s *Store[R]) match(ctx context.Context, q query.Query) ([]matchedRow[R], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Entity.Name != s.def.Name {
		return nil, fmt.Errorf("memory store for %s cannot run a query on %s", s.def.Name, q.Entity.Name)
	}

	s.mu.RLock()
	records := append([]R(nil), s.records...)
	s.mu.RUnlock()

	out := make([]matchedRow[R], 0, len(records))
	for i, rec := range records {
		row, err := s.rowOf(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ok, err := s.eval.Matches(q, row)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if ok {
			out = append(out, matchedRow[R]{record: rec, row: row})
		}
	}
	return out, nil
}

func (s *Store[R]) sortRows(rows []matchedRow[R], orders []domain.Order) error {
	pk := s.def.PrimaryKeyField()
	keys := make([]predicate.FieldRef, 0, len(orders)+1)
	desc := make([]bool, 0, len(orders)+1)
	for _, o := range orders {
		f, ok := s.def.Field(o.Field)
		if !ok {
			return fmt.Errorf("cannot sort %s by %q", s.def.Name, o.Field)
		}
		keys = append(keys, predicate.FieldRef{Name: f.Name, Column: f.Column, Type: f.Type})
		desc = append(desc, o.Direction == domain.Desc)
	}
	keys = append(keys, predicate.FieldRef{Name: pk.Name, Column: pk.Column, Type: pk.Type})
	desc = append(desc, false)

	sort.SliceStable(rows, func(i, j int) bool {
		for k, ref := range keys {
			c := compareValues(rows[i].row, rows[j].row, ref)
			if c == 0 {
				continue
			}
			if desc[k] {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

// compareValues orders absent values before present ones.
func compareValues(a, b *recordRow, ref predicate.FieldRef) int {
	av, aok := a.Value(ref)
	bv, bok := b.Value(ref)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	if c, ok := filter.Compare(av, bv); ok {
		return c
	}
	if ab, ok := av.(bool); ok {
		bb, _ := bv.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}
	return 0
}

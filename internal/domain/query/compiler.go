// Package query compiles criteria into a backend-neutral Query.
package query

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/metadata"
)

// Query is the compiled form of criteria for one entity.
type Query struct {
	Entity   metadata.EntityDef
	Where    predicate.Predicate
	Distinct bool
}

// Relations returns the relations the query joins.
func (q Query) Relations() []metadata.RelationDef {
	return predicate.Relations(q.Where)
}

// NeedsDistinct reports whether result rows must be de-duplicated: either the
// caller asked for it or a to-many join can repeat root records.
func (q Query) NeedsDistinct() bool {
	if q.Distinct {
		return true
	}
	for _, r := range q.Relations() {
		if r.Cardinality.ToMany() {
			return true
		}
	}
	return false
}

// MatchesAll reports whether the query places no constraint on records.
func (q Query) MatchesAll() bool {
	return predicate.IsTrue(q.Where)
}

// MatchesNone reports whether the query can never select a record.
func (q Query) MatchesNone() bool {
	return predicate.IsFalse(q.Where)
}

// Fingerprint identifies the query's semantics. Equal criteria compile to
// equal fingerprints.
func (q Query) Fingerprint() string {
	h := xxhash.New()
	_, _ = h.WriteString(q.Entity.Name)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.FormatBool(q.Distinct))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(q.Where.String())
	return strconv.FormatUint(h.Sum64(), 16)
}

func (q Query) String() string {
	return fmt.Sprintf("%s WHERE %s (distinct=%t)", q.Entity.Name, q.Where, q.Distinct)
}

// Options tune compilation.
type Options struct {
	// FoldCase makes contains and notContains case-insensitive.
	FoldCase bool
}

type Option func(*Options)

// WithFoldCase makes contains and notContains case-insensitive.
func WithFoldCase() Option {
	return func(o *Options) { o.FoldCase = true }
}

// Compile translates c into a Query on def. Each constrained key contributes
// one conjunct per set operation, in declaration order of the keys; all
// operations on a relation key form a single Exists node so they are tested
// against the same related record. Nil or empty criteria match every record.
func Compile(def metadata.EntityDef, c *criteria.Criteria, opts ...Option) (Query, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	q := Query{Entity: def.Normalize(), Where: predicate.True()}
	if c == nil {
		return q, nil
	}
	if c.Entity().Name != q.Entity.Name {
		return Query{}, apperror.NewValidation(
			fmt.Sprintf("criteria for %s cannot be compiled against %s", c.Entity().Name, q.Entity.Name))
	}
	q.Distinct, _ = c.Distinct()

	terms := make([]predicate.Predicate, 0, len(c.Keys()))
	for _, key := range c.Keys() {
		f, _ := c.Get(key)
		var (
			term predicate.Predicate
			err  error
		)
		if fd, ok := q.Entity.Field(key); ok {
			ref := predicate.FieldRef{Name: fd.Name, Column: fd.Column, Type: fd.Type}
			term, err = compileFilter(ref, f, o)
		} else if rel, ok := q.Entity.Relation(key); ok {
			term, err = compileRelation(rel, f, o)
		} else {
			err = apperror.NewUnknownField(q.Entity.Name, key)
		}
		if err != nil {
			return Query{}, err
		}
		terms = append(terms, term)
	}
	q.Where = predicate.AllOf(terms...)
	return q, nil
}

// compileFilter turns every set operation of f into a conjunct on ref.
func compileFilter(ref predicate.FieldRef, f filter.Filter, o Options) (predicate.Predicate, error) {
	f, err := f.Normalize(ref.Name, ref.Type)
	if err != nil {
		return nil, err
	}

	terms := basicTerms(ref, f)
	switch kind := ref.Type.Kind(); kind {
	case filter.KindBasic:
	case filter.KindRange:
		terms = append(terms, rangeTerms(ref, f)...)
	case filter.KindString:
		terms = append(terms, stringTerms(ref, f, o)...)
	default:
		return nil, fmt.Errorf("unsupported filter kind %s", kind)
	}
	return predicate.AllOf(terms...), nil
}

func basicTerms(ref predicate.FieldRef, f filter.Filter) []predicate.Predicate {
	var terms []predicate.Predicate
	if f.Equals != nil {
		terms = append(terms, predicate.Compare{Field: ref, Op: predicate.OpEq, Value: f.Equals})
	}
	if f.NotEquals != nil {
		terms = append(terms, predicate.Compare{Field: ref, Op: predicate.OpNe, Value: f.NotEquals})
	}
	if f.In != nil {
		if len(f.In) == 0 {
			terms = append(terms, predicate.False())
		} else {
			terms = append(terms, predicate.In{Field: ref, Values: f.In})
		}
	}
	if f.NotIn != nil && len(f.NotIn) > 0 {
		terms = append(terms, predicate.Negate(predicate.In{Field: ref, Values: f.NotIn}))
	}
	if f.Specified != nil {
		terms = append(terms, predicate.Null{Field: ref, IsNull: !*f.Specified})
	}
	return terms
}

func rangeTerms(ref predicate.FieldRef, f filter.Filter) []predicate.Predicate {
	var terms []predicate.Predicate
	if f.GreaterThan != nil {
		terms = append(terms, predicate.Compare{Field: ref, Op: predicate.OpGt, Value: f.GreaterThan})
	}
	if f.GreaterThanOrEqual != nil {
		terms = append(terms, predicate.Compare{Field: ref, Op: predicate.OpGte, Value: f.GreaterThanOrEqual})
	}
	if f.LessThan != nil {
		terms = append(terms, predicate.Compare{Field: ref, Op: predicate.OpLt, Value: f.LessThan})
	}
	if f.LessThanOrEqual != nil {
		terms = append(terms, predicate.Compare{Field: ref, Op: predicate.OpLte, Value: f.LessThanOrEqual})
	}
	return terms
}

func stringTerms(ref predicate.FieldRef, f filter.Filter, o Options) []predicate.Predicate {
	var terms []predicate.Predicate
	if f.Contains != nil {
		terms = append(terms, predicate.Like{Field: ref, Substring: *f.Contains, FoldCase: o.FoldCase})
	}
	if f.NotContains != nil {
		terms = append(terms, predicate.Negate(predicate.Like{Field: ref, Substring: *f.NotContains, FoldCase: o.FoldCase}))
	}
	return terms
}

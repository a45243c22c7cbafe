package predicate

import (
	"fmt"
	"strings"

	"metaquery/internal/domain/filter"
	"metaquery/internal/metadata"
)

// Truth is a three-valued logic result. Comparisons against an absent value
// are Unknown, and Unknown never selects a record, the way SQL treats NULL.
type Truth uint8

const (
	TruthFalse Truth = iota
	TruthTrue
	TruthUnknown
)

func (t Truth) String() string {
	switch t {
	case TruthTrue:
		return "true"
	case TruthFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Row exposes one record to the evaluator. Values must be canonical for the
// field's type (see filter.Coerce).
type Row interface {
	// Value returns the field's value, or false when it is absent.
	Value(field FieldRef) (any, bool)
	// Related returns the values of rel's target field over all related records.
	Related(rel metadata.RelationDef) []any
}

// Matches reports whether p selects row.
func Matches(p Predicate, row Row) (bool, error) {
	t, err := Eval(p, row)
	return t == TruthTrue, err
}

// Eval evaluates p against row.
func Eval(p Predicate, row Row) (Truth, error) {
	switch n := p.(type) {
	case Const:
		if n.Value {
			return TruthTrue, nil
		}
		return TruthFalse, nil

	case And:
		result := TruthTrue
		for _, term := range n.Terms {
			t, err := Eval(term, row)
			if err != nil {
				return TruthUnknown, err
			}
			if t == TruthFalse {
				return TruthFalse, nil
			}
			if t == TruthUnknown {
				result = TruthUnknown
			}
		}
		return result, nil

	case Not:
		t, err := Eval(n.Term, row)
		if err != nil {
			return TruthUnknown, err
		}
		switch t {
		case TruthTrue:
			return TruthFalse, nil
		case TruthFalse:
			return TruthTrue, nil
		default:
			return TruthUnknown, nil
		}

	case Compare:
		v, ok := row.Value(n.Field)
		if !ok {
			return TruthUnknown, nil
		}
		return evalCompare(n, v)

	case In:
		v, ok := row.Value(n.Field)
		if !ok {
			return TruthUnknown, nil
		}
		for _, candidate := range n.Values {
			if filter.Equal(v, candidate) {
				return TruthTrue, nil
			}
		}
		return TruthFalse, nil

	case Null:
		_, ok := row.Value(n.Field)
		return truth(ok != n.IsNull), nil

	case Like:
		v, ok := row.Value(n.Field)
		if !ok {
			return TruthUnknown, nil
		}
		s, isString := v.(string)
		if !isString {
			return TruthUnknown, fmt.Errorf("%s: contains needs a string value, got %T", n.Field, v)
		}
		sub := n.Substring
		if n.FoldCase {
			s, sub = strings.ToUpper(s), strings.ToUpper(sub)
		}
		return truth(strings.Contains(s, sub)), nil

	case Exists:
		values := row.Related(n.Relation)
		if len(values) == 0 {
			values = []any{nil}
		}
		for _, v := range values {
			t, err := Eval(n.Where, relatedRow{Row: row, alias: n.Relation.Alias, value: v})
			if err != nil {
				return TruthUnknown, err
			}
			if t == TruthTrue {
				return TruthTrue, nil
			}
		}
		return TruthFalse, nil
	}
	return TruthUnknown, fmt.Errorf("unsupported predicate %T", p)
}

func evalCompare(n Compare, v any) (Truth, error) {
	switch n.Op {
	case OpEq:
		return truth(filter.Equal(v, n.Value)), nil
	case OpNe:
		return truth(!filter.Equal(v, n.Value)), nil
	}
	c, ok := filter.Compare(v, n.Value)
	if !ok {
		return TruthUnknown, fmt.Errorf("%s: cannot order %T against %T", n.Field, v, n.Value)
	}
	switch n.Op {
	case OpLt:
		return truth(c < 0), nil
	case OpLte:
		return truth(c <= 0), nil
	case OpGt:
		return truth(c > 0), nil
	case OpGte:
		return truth(c >= 0), nil
	}
	return TruthUnknown, fmt.Errorf("unsupported comparison %q", n.Op)
}

func truth(b bool) Truth {
	if b {
		return TruthTrue
	}
	return TruthFalse
}

// relatedRow is one joined record: fields under alias resolve to value,
// everything else to the root row.
type relatedRow struct {
	Row
	alias string
	value any
}

func (r relatedRow) Value(f FieldRef) (any, bool) {
	if f.Relation == r.alias {
		return r.value, r.value != nil
	}
	return r.Row.Value(f)
}

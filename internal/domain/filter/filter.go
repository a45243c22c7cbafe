package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"metaquery/internal/core/apperror"
)

// Filter is the set of operations requested on one field. A zero-valued
// operation is unset. For In and NotIn, nil means unset and a non-nil empty
// slice means an explicitly empty set.
//
// Operands may be any Go value convertible to the field's ValueType; Normalize
// turns them into canonical values.
type Filter struct {
	Equals             any
	NotEquals          any
	In                 []any
	NotIn              []any
	Specified          *bool
	GreaterThan        any
	GreaterThanOrEqual any
	LessThan           any
	LessThanOrEqual    any
	Contains           *string
	NotContains        *string
}

// Ops returns the operations that are set, in canonical order.
func (f Filter) Ops() []Op {
	ops := make([]Op, 0, 2)
	for _, op := range allOps {
		if _, ok := f.Get(op); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// IsEmpty reports whether no operation is set.
func (f Filter) IsEmpty() bool {
	return len(f.Ops()) == 0
}

// Get returns the operand of op. In/NotIn operands are []any, Specified is
// bool and Contains/NotContains are string.
func (f Filter) Get(op Op) (any, bool) {
	switch op {
	case OpEquals:
		return f.Equals, f.Equals != nil
	case OpNotEquals:
		return f.NotEquals, f.NotEquals != nil
	case OpIn:
		return f.In, f.In != nil
	case OpNotIn:
		return f.NotIn, f.NotIn != nil
	case OpSpecified:
		if f.Specified == nil {
			return nil, false
		}
		return *f.Specified, true
	case OpGreaterThan:
		return f.GreaterThan, f.GreaterThan != nil
	case OpGreaterThanOrEqual:
		return f.GreaterThanOrEqual, f.GreaterThanOrEqual != nil
	case OpLessThan:
		return f.LessThan, f.LessThan != nil
	case OpLessThanOrEqual:
		return f.LessThanOrEqual, f.LessThanOrEqual != nil
	case OpContains:
		if f.Contains == nil {
			return nil, false
		}
		return *f.Contains, true
	case OpNotContains:
		if f.NotContains == nil {
			return nil, false
		}
		return *f.NotContains, true
	}
	return nil, false
}

// Set stores operand v under op, replacing any previous operand.
func (f *Filter) Set(op Op, v any) error {
	switch op {
	case OpEquals:
		f.Equals = v
	case OpNotEquals:
		f.NotEquals = v
	case OpIn, OpNotIn:
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s expects a list, got %T", op, v)
		}
		if list == nil {
			list = []any{}
		}
		if op == OpIn {
			f.In = list
		} else {
			f.NotIn = list
		}
	case OpSpecified:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("specified expects a bool, got %T", v)
		}
		f.Specified = &b
	case OpGreaterThan:
		f.GreaterThan = v
	case OpGreaterThanOrEqual:
		f.GreaterThanOrEqual = v
	case OpLessThan:
		f.LessThan = v
	case OpLessThanOrEqual:
		f.LessThanOrEqual = v
	case OpContains, OpNotContains:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s expects a string, got %T", op, v)
		}
		if op == OpContains {
			f.Contains = &s
		} else {
			f.NotContains = &s
		}
	default:
		return fmt.Errorf("unknown filter operation %q", op)
	}
	return nil
}

// Clone returns a deep copy of f.
func (f Filter) Clone() Filter {
	out := f
	if f.In != nil {
		out.In = slices.Clone(f.In)
	}
	if f.NotIn != nil {
		out.NotIn = slices.Clone(f.NotIn)
	}
	if f.Specified != nil {
		b := *f.Specified
		out.Specified = &b
	}
	if f.Contains != nil {
		s := *f.Contains
		out.Contains = &s
	}
	if f.NotContains != nil {
		s := *f.NotContains
		out.NotContains = &s
	}
	return out
}

// And returns f with every operation set on g added. An operation set on
// both takes g's operand.
func (f Filter) And(g Filter) Filter {
	out := f.Clone()
	g = g.Clone()
	for _, op := range g.Ops() {
		v, _ := g.Get(op)
		_ = out.Set(op, v)
	}
	return out
}

// Normalize checks every operation against a field of type t and returns a
// copy whose operands are canonical values. field is used in error details.
func (f Filter) Normalize(field string, t ValueType) (Filter, error) {
	if !t.Valid() {
		return Filter{}, apperror.NewInvalidFilter(field, "", fmt.Sprintf("field %s has unsupported type %q", field, t))
	}
	kind := t.Kind()
	var out Filter
	for _, op := range f.Ops() {
		if !kind.Allows(op) {
			return Filter{}, apperror.NewInvalidFilter(field, string(op),
				fmt.Sprintf("operation %s is not applicable to %s field %s", op, t, field))
		}
		v, _ := f.Get(op)
		switch op {
		case OpSpecified, OpContains, OpNotContains:
			_ = out.Set(op, v)
		case OpIn, OpNotIn:
			list := v.([]any)
			norm := make([]any, 0, len(list))
			for _, item := range list {
				nv, err := normalizeOperand(field, op, t, item)
				if err != nil {
					return Filter{}, err
				}
				norm = append(norm, nv)
			}
			_ = out.Set(op, norm)
		default:
			nv, err := normalizeOperand(field, op, t, v)
			if err != nil {
				return Filter{}, err
			}
			_ = out.Set(op, nv)
		}
	}
	return out, nil
}

func normalizeOperand(field string, op Op, t ValueType, v any) (any, error) {
	nv, ok, err := Coerce(t, v)
	switch {
	case errors.Is(err, ErrTypeMismatch):
		return nil, apperror.NewTypeMismatch(field, string(op), string(t), v).WithCause(err)
	case err != nil:
		return nil, apperror.NewInvalidFilter(field, string(op), err.Error()).WithCause(err)
	case !ok:
		return nil, apperror.NewInvalidFilter(field, string(op), fmt.Sprintf("%s.%s does not accept null", field, op))
	}
	return nv, nil
}

// Equal reports whether f and g request the same operations with equal operands.
func (f Filter) Equal(g Filter) bool {
	fo, gops := f.Ops(), g.Ops()
	if !slices.Equal(fo, gops) {
		return false
	}
	for _, op := range fo {
		a, _ := f.Get(op)
		b, _ := g.Get(op)
		if la, ok := a.([]any); ok {
			lb := b.([]any)
			if !slices.EqualFunc(la, lb, Equal) {
				return false
			}
			continue
		}
		if !Equal(a, b) {
			return false
		}
	}
	return true
}

// String renders f as "[op=value, ...]".
func (f Filter) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, op := range f.Ops() {
		if i > 0 {
			b.WriteString(", ")
		}
		v, _ := f.Get(op)
		b.WriteString(string(op))
		b.WriteByte('=')
		if list, ok := v.([]any); ok {
			b.WriteByte('[')
			for j, item := range list {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString(Format(item))
			}
			b.WriteByte(']')
			continue
		}
		b.WriteString(Format(v))
	}
	b.WriteByte(']')
	return b.String()
}

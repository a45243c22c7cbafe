package filter

// Constructors for single-operation filters. Combine them with And:
//
//	filter.Gte[int32](1).And(filter.Lt[int32](10))

// Eq matches values equal to v.
func Eq[T Operand](v T) Filter { return Filter{Equals: v} }

// Ne matches values different from v.
func Ne[T Operand](v T) Filter { return Filter{NotEquals: v} }

// In matches values that are members of vs. In() with no arguments matches nothing.
func In[T Operand](vs ...T) Filter { return Filter{In: toAny(vs)} }

// NotIn matches values that are not members of vs.
func NotIn[T Operand](vs ...T) Filter { return Filter{NotIn: toAny(vs)} }

// IsSpecified matches present values when b is true and absent values otherwise.
func IsSpecified(b bool) Filter { return Filter{Specified: &b} }

func Gt[T Ordered](v T) Filter  { return Filter{GreaterThan: v} }
func Gte[T Ordered](v T) Filter { return Filter{GreaterThanOrEqual: v} }
func Lt[T Ordered](v T) Filter  { return Filter{LessThan: v} }
func Lte[T Ordered](v T) Filter { return Filter{LessThanOrEqual: v} }

// Contains matches strings containing s.
func Contains(s string) Filter { return Filter{Contains: &s} }

// NotContains matches strings not containing s.
func NotContains(s string) Filter { return Filter{NotContains: &s} }

func toAny[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// Package filter defines per-field filters: the set of optional operations a
// caller can put on one field, and the value types those operations act on.
package filter

import "fmt"

// Op is the name of one filter operation as it appears in query parameters.
type Op string

const (
	OpEquals             Op = "equals"
	OpNotEquals          Op = "notEquals"
	OpIn                 Op = "in"
	OpNotIn              Op = "notIn"
	OpSpecified          Op = "specified"
	OpGreaterThan        Op = "greaterThan"
	OpGreaterThanOrEqual Op = "greaterThanOrEqual"
	OpLessThan           Op = "lessThan"
	OpLessThanOrEqual    Op = "lessThanOrEqual"
	OpContains           Op = "contains"
	OpNotContains        Op = "notContains"
)

// allOps lists operations in the order they are compiled and printed.
var allOps = []Op{
	OpEquals, OpNotEquals, OpIn, OpNotIn, OpSpecified,
	OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
	OpContains, OpNotContains,
}

// ParseOp resolves an operation name. "doesNotContain" is accepted as an
// alias of notContains.
func ParseOp(s string) (Op, error) {
	if s == "doesNotContain" {
		return OpNotContains, nil
	}
	for _, op := range allOps {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown filter operation %q", s)
}

// Kind selects which operations a filter supports.
type Kind uint8

const (
	// KindBasic supports equals, notEquals, in, notIn and specified.
	KindBasic Kind = iota
	// KindRange adds the four ordering comparisons.
	KindRange
	// KindString adds contains and notContains.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindRange:
		return "range"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Allows reports whether op is applicable to filters of kind k.
func (k Kind) Allows(op Op) bool {
	switch op {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpSpecified:
		return k <= KindString
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return k == KindRange
	case OpContains, OpNotContains:
		return k == KindString
	default:
		return false
	}
}

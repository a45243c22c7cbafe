// Package predicate is the backend-neutral boolean expression a compiled
// query is made of. Storage backends either render it (SQL, CEL) or
// evaluate it natively with Eval.
package predicate

import (
	"fmt"
	"strings"

	"metaquery/internal/domain/filter"
	"metaquery/internal/metadata"
)

// Predicate is a node of the expression tree. The set of nodes is closed.
type Predicate interface {
	isPredicate()
	String() string
}

// FieldRef names a value a predicate tests. Relation is empty for fields of
// the queried entity and holds the join alias for fields of related records.
type FieldRef struct {
	Name     string
	Column   string
	Type     filter.ValueType
	Relation string
}

func (f FieldRef) String() string {
	if f.Relation != "" {
		return f.Relation + "." + f.Name
	}
	return f.Name
}

// Const is a literal truth value.
type Const struct{ Value bool }

// And holds when every term holds. An empty And holds.
type And struct{ Terms []Predicate }

// Not negates its term.
type Not struct{ Term Predicate }

// CompareOp is a binary comparison.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNe  CompareOp = "<>"
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// Compare tests Field against a canonical operand.
type Compare struct {
	Field FieldRef
	Op    CompareOp
	Value any
}

// In holds when Field equals one of Values.
type In struct {
	Field  FieldRef
	Values []any
}

// Null tests presence: IsNull holds for absent values, !IsNull for present ones.
type Null struct {
	Field  FieldRef
	IsNull bool
}

// Like holds when the string Field contains Substring. FoldCase compares
// upper-cased forms of both.
type Like struct {
	Field     FieldRef
	Substring string
	FoldCase  bool
}

// Exists holds when at least one record reachable through Relation satisfies
// Where. A root record with no related records is tested once with every
// related field absent.
type Exists struct {
	Relation metadata.RelationDef
	Where    Predicate
}

func (Const) isPredicate()   {}
func (And) isPredicate()     {}
func (Not) isPredicate()     {}
func (Compare) isPredicate() {}
func (In) isPredicate()      {}
func (Null) isPredicate()    {}
func (Like) isPredicate()    {}
func (Exists) isPredicate()  {}

var (
	trueConst  = Const{Value: true}
	falseConst = Const{Value: false}
)

// True returns the predicate that always holds.
func True() Predicate { return trueConst }

// False returns the predicate that never holds.
func False() Predicate { return falseConst }

// IsTrue reports whether p is the constant true.
func IsTrue(p Predicate) bool {
	c, ok := p.(Const)
	return ok && c.Value
}

// IsFalse reports whether p is the constant false.
func IsFalse(p Predicate) bool {
	c, ok := p.(Const)
	return ok && !c.Value
}

// AllOf conjoins terms. Nested Ands are flattened, constant true terms are
// dropped and any constant false term makes the result false. No remaining
// terms yield true and a single term is returned as is.
func AllOf(terms ...Predicate) Predicate {
	flat := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil:
			continue
		case Const:
			if !v.Value {
				return falseConst
			}
		case And:
			inner := AllOf(v.Terms...)
			if IsFalse(inner) {
				return falseConst
			}
			if a, ok := inner.(And); ok {
				flat = append(flat, a.Terms...)
			} else if !IsTrue(inner) {
				flat = append(flat, inner)
			}
		default:
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return trueConst
	case 1:
		return flat[0]
	default:
		return And{Terms: flat}
	}
}

// Negate returns Not{p}, folding constants and double negation.
func Negate(p Predicate) Predicate {
	switch v := p.(type) {
	case Const:
		return Const{Value: !v.Value}
	case Not:
		return v.Term
	default:
		return Not{Term: p}
	}
}

func (c Const) String() string {
	if c.Value {
		return "TRUE"
	}
	return "FALSE"
}

func (a And) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (n Not) String() string { return "NOT " + n.Term.String() }

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, filter.Format(c.Value))
}

func (in In) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = filter.Format(v)
	}
	return fmt.Sprintf("%s IN (%s)", in.Field, strings.Join(parts, ", "))
}

func (n Null) String() string {
	if n.IsNull {
		return n.Field.String() + " IS NULL"
	}
	return n.Field.String() + " IS NOT NULL"
}

func (l Like) String() string {
	op := "CONTAINS"
	if l.FoldCase {
		op = "ICONTAINS"
	}
	return fmt.Sprintf("%s %s %q", l.Field, op, l.Substring)
}

func (e Exists) String() string {
	return fmt.Sprintf("EXISTS %s[%s]", e.Relation.Name, e.Where)
}

// Walk calls fn for p and every node below it, depth first.
func Walk(p Predicate, fn func(Predicate)) {
	fn(p)
	switch v := p.(type) {
	case And:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case Not:
		Walk(v.Term, fn)
	case Exists:
		Walk(v.Where, fn)
	}
}

// Relations returns the relations p joins, in order of first use.
func Relations(p Predicate) []metadata.RelationDef {
	var out []metadata.RelationDef
	seen := make(map[string]bool)
	Walk(p, func(n Predicate) {
		if e, ok := n.(Exists); ok && !seen[e.Relation.Name] {
			seen[e.Relation.Name] = true
			out = append(out, e.Relation)
		}
	})
	return out
}

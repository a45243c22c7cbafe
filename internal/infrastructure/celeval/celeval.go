// Package celeval evaluates compiled queries as CEL programs. It is an
// alternative to the native evaluator of the memory store and produces the
// same selections.
//
// A record is exposed as the map variable r: fields of the entity map to their
// value or null, relations map to the list of related values, or [null] when
// there are none. Keys are indexed as r["name"], so field names need not be CEL
// identifiers. Operands are bound as variables p0, p1, ...
package celeval

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/cel-go/ext"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"metaquery/internal/domain/predicate"
	"metaquery/internal/domain/query"
)

// Program is a query translated to CEL with its bound operands.
type Program struct {
	Source string
	prg    cel.Program
	params map[string]any
}

// DefaultCacheSize is the number of programs an Evaluator keeps by default.
const DefaultCacheSize = 1024

// Evaluator compiles queries to CEL programs, caching them by query fingerprint.
// The cache keeps the most recently used programs. It is safe for concurrent use.
type Evaluator struct {
	programs *lru.Cache[string, *Program]
}

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	cacheSize int
}

// WithCacheSize bounds the program cache. Non-positive sizes keep the default.
func WithCacheSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// New creates an evaluator with an empty program cache.
func New(opts ...Option) *Evaluator {
	cfg := config{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	// lru.New fails only for non-positive sizes.
	programs, _ := lru.New[string, *Program](cfg.cacheSize)
	return &Evaluator{programs: programs}
}

// Program returns the CEL program for q.
func (e *Evaluator) Program(q query.Query) (*Program, error) {
	fp := q.Fingerprint()
	if p, ok := e.programs.Get(fp); ok {
		return p, nil
	}

	p, err := compile(q)
	if err != nil {
		return nil, err
	}
	e.programs.Add(fp, p)
	return p, nil
}

// Cached reports how many programs are held.
func (e *Evaluator) Cached() int {
	return e.programs.Len()
}

// Matches reports whether row is selected by q.
func (e *Evaluator) Matches(q query.Query, row predicate.Row) (bool, error) {
	p, err := e.Program(q)
	if err != nil {
		return false, err
	}
	return p.Eval(q, row)
}

// Eval runs the program against row.
func (p *Program) Eval(q query.Query, row predicate.Row) (bool, error) {
	r := make(map[string]any, len(q.Entity.Fields))
	for _, f := range q.Entity.Fields {
		v, ok := row.Value(predicate.FieldRef{Name: f.Name, Column: f.Column, Type: f.Type})
		if ok {
			r[f.Name] = toCEL(v)
		} else {
			r[f.Name] = nil
		}
	}
	for _, rel := range q.Relations() {
		values := row.Related(rel)
		list := make([]any, 0, max(len(values), 1))
		for _, v := range values {
			list = append(list, toCEL(v))
		}
		if len(list) == 0 {
			list = append(list, nil)
		}
		r[rel.Name] = list
	}

	vars := make(map[string]any, len(p.params)+1)
	for k, v := range p.params {
		vars[k] = v
	}
	vars["r"] = r

	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate %s: %w", p.Source, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %s: result is %T, not bool", p.Source, out.Value())
	}
	return b, nil
}

func compile(q query.Query) (*Program, error) {
	t := &translator{params: make(map[string]any)}
	src, err := t.expr(q.Where, "")
	if err != nil {
		return nil, err
	}

	opts := []cel.EnvOption{
		cel.Variable("r", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	}
	for name := range t.params {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile %s: %w", src, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", src, err)
	}
	return &Program{Source: src, prg: prg, params: t.params}, nil
}

type translator struct {
	params map[string]any
}

func (t *translator) bind(v any) string {
	name := fmt.Sprintf("p%d", len(t.params))
	t.params[name] = v
	return name
}

// expr renders p so that it yields true exactly when p evaluates to true under
// three-valued logic. elem names the comprehension variable holding the
// related value inside an Exists.
func (t *translator) expr(p predicate.Predicate, elem string) (string, error) {
	switch n := p.(type) {
	case predicate.Const:
		if n.Value {
			return "true", nil
		}
		return "false", nil

	case predicate.And:
		parts := make([]string, 0, len(n.Terms))
		for _, term := range n.Terms {
			s, err := t.expr(term, elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " && ") + ")", nil

	case predicate.Not:
		// Negating an atom is safe once its operand is known to be present:
		// an absent operand leaves both the atom and its negation unknown.
		v, cond, err := t.atom(n.Term, elem)
		if err != nil {
			return "", fmt.Errorf("cannot negate %s: %w", n.Term, err)
		}
		return fmt.Sprintf("(%s != null && !(%s))", v, cond), nil

	case predicate.Null:
		v := t.value(n.Field, elem)
		if n.IsNull {
			return v + " == null", nil
		}
		return v + " != null", nil

	case predicate.Exists:
		inner, err := t.expr(n.Where, "x")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.exists(x, %s)", key(n.Relation.Name), inner), nil
	}

	v, cond, err := t.atom(p, elem)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s != null && %s)", v, cond), nil
}

// atom renders a comparison on one value, returning the value expression and
// the condition assuming the value is present.
func (t *translator) atom(p predicate.Predicate, elem string) (value, cond string, err error) {
	switch n := p.(type) {
	case predicate.Compare:
		v := t.value(n.Field, elem)
		op := string(n.Op)
		switch n.Op {
		case predicate.OpEq:
			op = "=="
		case predicate.OpNe:
			op = "!="
		}
		return v, fmt.Sprintf("%s %s %s", v, op, t.bind(toCEL(n.Value))), nil

	case predicate.In:
		v := t.value(n.Field, elem)
		list := make([]any, len(n.Values))
		for i, x := range n.Values {
			list[i] = toCEL(x)
		}
		return v, fmt.Sprintf("%s in %s", v, t.bind(list)), nil

	case predicate.Like:
		v := t.value(n.Field, elem)
		if n.FoldCase {
			return v, fmt.Sprintf("%s.upperAscii().contains(%s)", v, t.bind(strings.ToUpper(n.Substring))), nil
		}
		return v, fmt.Sprintf("%s.contains(%s)", v, t.bind(n.Substring)), nil
	}
	return "", "", fmt.Errorf("unsupported predicate %T", p)
}

func (t *translator) value(f predicate.FieldRef, elem string) string {
	if f.Relation != "" {
		return elem
	}
	return key(f.Name)
}

// key indexes r by name. Go's quoting yields a valid CEL string literal.
func key(name string) string {
	return fmt.Sprintf("r[%q]", name)
}

// toCEL maps canonical values onto CEL's types: int32 widens to int, decimals
// become doubles and UUIDs strings.
func toCEL(v any) any {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x.UTC()
	}
	return v
}

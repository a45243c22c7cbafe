// Package criteria holds the per-entity set of field filters a caller wants
// applied to a listing, plus the distinct flag.
package criteria

import (
	"fmt"
	"slices"
	"strings"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/filter"
	"metaquery/internal/metadata"
)

// Criteria maps criteria keys of one entity to filters. Keys are the entity's
// field names and relation names. An absent key is unconstrained.
// The zero value is not usable; create one with New.
type Criteria struct {
	def      metadata.EntityDef
	filters  map[string]filter.Filter
	distinct *bool
}

// New creates empty criteria for def.
func New(def metadata.EntityDef) *Criteria {
	return &Criteria{
		def:     def.Normalize(),
		filters: make(map[string]filter.Filter),
	}
}

// Entity returns the definition the criteria were built for.
func (c *Criteria) Entity() metadata.EntityDef {
	return c.def
}

// Set validates f against the type of key and stores its normalized form,
// replacing any previous filter on key. An empty filter removes key.
func (c *Criteria) Set(key string, f filter.Filter) error {
	t, ok := c.def.TypeOf(key)
	if !ok {
		return apperror.NewUnknownField(c.def.Name, key)
	}
	norm, err := f.Normalize(key, t)
	if err != nil {
		return err
	}
	if fd, ok := c.def.Field(key); ok && t == filter.TypeEnum && len(fd.Options) > 0 {
		if err := checkOptions(key, fd.Options, norm); err != nil {
			return err
		}
	}
	if norm.IsEmpty() {
		delete(c.filters, key)
		return nil
	}
	c.filters[key] = norm
	return nil
}

// MustSet is Set for statically known filters. It panics on error.
func (c *Criteria) MustSet(key string, f filter.Filter) *Criteria {
	if err := c.Set(key, f); err != nil {
		panic(err)
	}
	return c
}

func checkOptions(key string, options []string, f filter.Filter) error {
	for _, op := range f.Ops() {
		v, _ := f.Get(op)
		values, ok := v.([]any)
		if !ok {
			values = []any{v}
		}
		for _, item := range values {
			s, ok := item.(string)
			if ok && !slices.Contains(options, s) {
				return apperror.NewInvalidFilter(key, string(op),
					fmt.Sprintf("%q is not a value of %s (allowed: %s)", s, key, strings.Join(options, ", "))).
					WithDetail("value", s)
			}
		}
	}
	return nil
}

// Get returns the filter on key.
func (c *Criteria) Get(key string) (filter.Filter, bool) {
	f, ok := c.filters[key]
	return f, ok
}

// Remove drops any filter on key.
func (c *Criteria) Remove(key string) {
	delete(c.filters, key)
}

// Keys returns the constrained keys in the entity's declaration order.
func (c *Criteria) Keys() []string {
	keys := make([]string, 0, len(c.filters))
	for _, k := range c.def.Keys() {
		if _, ok := c.filters[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// SetDistinct sets the distinct flag.
func (c *Criteria) SetDistinct(b bool) *Criteria {
	c.distinct = &b
	return c
}

// Distinct returns the distinct flag and whether it was set. Unset reads as false.
func (c *Criteria) Distinct() (value, set bool) {
	if c.distinct == nil {
		return false, false
	}
	return *c.distinct, true
}

// IsEmpty reports whether no key is constrained. The distinct flag does not count.
func (c *Criteria) IsEmpty() bool {
	return len(c.filters) == 0
}

// Copy returns an independent deep copy.
func (c *Criteria) Copy() *Criteria {
	out := &Criteria{
		def:     c.def,
		filters: make(map[string]filter.Filter, len(c.filters)),
	}
	for k, f := range c.filters {
		out.filters[k] = f.Clone()
	}
	if c.distinct != nil {
		d := *c.distinct
		out.distinct = &d
	}
	return out
}

// Equal reports whether both criteria target the same entity with the same
// filters and the same distinct flag.
func (c *Criteria) Equal(o *Criteria) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.def.Name != o.def.Name || len(c.filters) != len(o.filters) {
		return false
	}
	if (c.distinct == nil) != (o.distinct == nil) || (c.distinct != nil && *c.distinct != *o.distinct) {
		return false
	}
	for k, f := range c.filters {
		g, ok := o.filters[k]
		if !ok || !f.Equal(g) {
			return false
		}
	}
	return true
}

// String renders the criteria as "CategoryCriteria{id=[equals=1], distinct=true}".
func (c *Criteria) String() string {
	var b strings.Builder
	b.WriteString(c.def.Name)
	b.WriteString("Criteria{")
	for i, k := range c.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c.filters[k].String())
	}
	if d, ok := c.Distinct(); ok {
		if len(c.filters) > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "distinct=%t", d)
	}
	b.WriteByte('}')
	return b.String()
}

// Package metadata describes queryable entities: their filterable fields,
// their relations to other entities and how both map onto storage.
package metadata

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/filter"
)

// EntityDef describes a queryable entity.
type EntityDef struct {
	Name       string        `json:"name" yaml:"name"`
	Label      string        `json:"label,omitempty" yaml:"label,omitempty"`
	Table      string        `json:"table" yaml:"table"`
	PrimaryKey string        `json:"primaryKey" yaml:"primaryKey"` // field name, defaults to "id"
	Fields     []FieldDef    `json:"fields" yaml:"fields"`
	Relations  []RelationDef `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// FieldDef describes a filterable scalar field of the entity itself.
type FieldDef struct {
	Name    string           `json:"name" yaml:"name"`
	Label   string           `json:"label,omitempty" yaml:"label,omitempty"`
	Type    filter.ValueType `json:"type" yaml:"type"`
	Column  string           `json:"column" yaml:"column"`
	Options []string         `json:"options,omitempty" yaml:"options,omitempty"` // allowed enum values
}

// Field finds a scalar field by name.
func (d EntityDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Relation finds a relation by its criteria key.
func (d EntityDef) Relation(name string) (RelationDef, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationDef{}, false
}

// PrimaryKeyField returns the field holding the entity's identity.
func (d EntityDef) PrimaryKeyField() FieldDef {
	name := d.PrimaryKey
	if name == "" {
		name = "id"
	}
	f, ok := d.Field(name)
	if !ok {
		return FieldDef{Name: name, Type: filter.TypeLong, Column: name}
	}
	return f
}

// Keys lists every criteria key in declaration order: fields first, then relations.
func (d EntityDef) Keys() []string {
	keys := make([]string, 0, len(d.Fields)+len(d.Relations))
	for _, f := range d.Fields {
		keys = append(keys, f.Name)
	}
	for _, r := range d.Relations {
		keys = append(keys, r.Name)
	}
	return keys
}

// Position returns the declaration index of a criteria key, or -1.
func (d EntityDef) Position(key string) int {
	return slices.Index(d.Keys(), key)
}

// TypeOf resolves the value type filtered under a criteria key.
func (d EntityDef) TypeOf(key string) (filter.ValueType, bool) {
	if f, ok := d.Field(key); ok {
		return f.Type, true
	}
	if r, ok := d.Relation(key); ok {
		return r.Type, true
	}
	return "", false
}

// WithRelation returns d with r appended.
func (d EntityDef) WithRelation(r RelationDef) EntityDef {
	d.Relations = append(slices.Clone(d.Relations), r)
	return d
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks names, types and storage identifiers. Column and table
// names end up in SQL verbatim, so they must be plain identifiers.
func (d EntityDef) Validate() error {
	if d.Name == "" {
		return apperror.NewValidation("entity name is required")
	}
	if !identRe.MatchString(d.Table) {
		return apperror.NewValidation(fmt.Sprintf("entity %s: invalid table %q", d.Name, d.Table))
	}
	seen := make(map[string]bool, len(d.Fields)+len(d.Relations))
	for _, f := range d.Fields {
		if f.Name == "" || seen[f.Name] {
			return apperror.NewValidation(fmt.Sprintf("entity %s: duplicate or empty field name %q", d.Name, f.Name))
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return apperror.NewValidation(fmt.Sprintf("entity %s: field %s has unknown type %q", d.Name, f.Name, f.Type))
		}
		if !identRe.MatchString(f.Column) {
			return apperror.NewValidation(fmt.Sprintf("entity %s: field %s has invalid column %q", d.Name, f.Name, f.Column))
		}
	}
	if _, ok := d.Field(d.PrimaryKeyField().Name); !ok {
		return apperror.NewValidation(fmt.Sprintf("entity %s: primary key %q is not a declared field", d.Name, d.PrimaryKeyField().Name))
	}
	for _, r := range d.Relations {
		if r.Name == "" || seen[r.Name] {
			return apperror.NewValidation(fmt.Sprintf("entity %s: duplicate or empty relation name %q", d.Name, r.Name))
		}
		seen[r.Name] = true
		if err := r.validate(d); err != nil {
			return err
		}
	}
	return nil
}

// Registry stores entity definitions. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityDef
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]EntityDef),
	}
}

// Register normalizes and validates def and stores it, replacing an earlier
// definition of the same name.
func (r *Registry) Register(def EntityDef) error {
	def = def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.entities[def.Name] = def
	r.mu.Unlock()
	return nil
}

// MustRegister is Register for definitions built into the binary.
func (r *Registry) MustRegister(defs ...EntityDef) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Get(name string) (EntityDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entities[name]
	return d, ok
}

// Lookup is Get that reports a missing entity as a NOT_FOUND AppError.
// Names are matched exactly first and then case-insensitively.
func (r *Registry) Lookup(name string) (EntityDef, error) {
	if d, ok := r.Get(name); ok {
		return d, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for n, d := range r.entities {
		if strings.EqualFold(n, name) {
			return d, nil
		}
	}
	return EntityDef{}, apperror.NewNotFound("entity", name)
}

// List returns all definitions sorted by name.
func (r *Registry) List() []EntityDef {
	r.mu.RLock()
	list := make([]EntityDef, 0, len(r.entities))
	for _, def := range r.entities {
		list = append(list, def)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

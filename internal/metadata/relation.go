package metadata

import (
	"fmt"
	"strings"
	"unicode"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/filter"
)

// Cardinality of a relation seen from the owning entity.
type Cardinality string

const (
	ManyToOne  Cardinality = "many_to_one"
	OneToMany  Cardinality = "one_to_many"
	ManyToMany Cardinality = "many_to_many"
)

// ToMany reports whether one root record can join several target records.
func (c Cardinality) ToMany() bool {
	return c == OneToMany || c == ManyToMany
}

// RelationDef makes a field of a related entity filterable from the owning
// entity, e.g. Category.productId filters on Product.id.
//
// Direct relations join {Table}.{RemoteColumn} = root.{LocalColumn}.
// Many-to-many relations go through a link table:
// {Through}.{ThroughLocal} = root.{LocalColumn} and
// {Table}.{RemoteColumn} = {Through}.{ThroughRemote}.
type RelationDef struct {
	Name          string           `json:"name" yaml:"name"`
	Target        string           `json:"target" yaml:"target"`
	Field         string           `json:"field" yaml:"field"`
	Type          filter.ValueType `json:"type" yaml:"type"`
	Cardinality   Cardinality      `json:"cardinality" yaml:"cardinality"`
	Table         string           `json:"table" yaml:"table"`
	Column        string           `json:"column" yaml:"column"`
	LocalColumn   string           `json:"localColumn,omitempty" yaml:"localColumn,omitempty"`
	RemoteColumn  string           `json:"remoteColumn,omitempty" yaml:"remoteColumn,omitempty"`
	Through       string           `json:"through,omitempty" yaml:"through,omitempty"`
	ThroughLocal  string           `json:"throughLocal,omitempty" yaml:"throughLocal,omitempty"`
	ThroughRemote string           `json:"throughRemote,omitempty" yaml:"throughRemote,omitempty"`
	Alias         string           `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// LinkAlias is the alias of the many-to-many link table.
func (r RelationDef) LinkAlias() string {
	return r.Alias + "_link"
}

// ManyToOneRelation declares a reference held by the root in localColumn,
// filtered on the target's id.
func ManyToOneRelation(name, target, table, localColumn string) RelationDef {
	return RelationDef{
		Name: name, Target: target, Field: "id", Type: filter.TypeLong, Cardinality: ManyToOne,
		Table: table, Column: "id", LocalColumn: localColumn, RemoteColumn: "id",
	}
}

// OneToManyRelation declares target records pointing back at the root
// through remoteColumn, filtered on the target's id.
func OneToManyRelation(name, target, table, remoteColumn string) RelationDef {
	return RelationDef{
		Name: name, Target: target, Field: "id", Type: filter.TypeLong, Cardinality: OneToMany,
		Table: table, Column: "id", RemoteColumn: remoteColumn,
	}
}

// ManyToManyRelation declares a link table between root and target,
// filtered on the target's id.
func ManyToManyRelation(name, target, table, through, throughLocal, throughRemote string) RelationDef {
	return RelationDef{
		Name: name, Target: target, Field: "id", Type: filter.TypeLong, Cardinality: ManyToMany,
		Table: table, Column: "id", RemoteColumn: "id",
		Through: through, ThroughLocal: throughLocal, ThroughRemote: throughRemote,
	}
}

func (r RelationDef) withDefaults(root EntityDef) RelationDef {
	if r.Field == "" {
		r.Field = "id"
	}
	if r.Type == "" {
		r.Type = filter.TypeLong
	}
	if r.Column == "" {
		r.Column = toSnake(r.Field)
	}
	if r.LocalColumn == "" {
		if r.Cardinality == ManyToOne {
			r.LocalColumn = toSnake(r.Name)
		} else {
			r.LocalColumn = root.PrimaryKeyField().Column
		}
	}
	if r.RemoteColumn == "" && r.Cardinality != OneToMany {
		r.RemoteColumn = r.Column
	}
	if r.Alias == "" {
		r.Alias = strings.TrimSuffix(toSnake(r.Name), "_id")
		if r.Alias == root.Table {
			r.Alias += "_rel"
		}
	}
	return r
}

func (r RelationDef) validate(root EntityDef) error {
	fail := func(msg string) error {
		return apperror.NewValidation(fmt.Sprintf("entity %s: relation %s: %s", root.Name, r.Name, msg))
	}
	switch r.Cardinality {
	case ManyToOne, OneToMany, ManyToMany:
	default:
		return fail(fmt.Sprintf("unknown cardinality %q", r.Cardinality))
	}
	if !r.Type.Valid() {
		return fail(fmt.Sprintf("unknown type %q", r.Type))
	}
	idents := map[string]string{
		"table": r.Table, "column": r.Column, "localColumn": r.LocalColumn,
		"remoteColumn": r.RemoteColumn, "alias": r.Alias,
	}
	if r.Cardinality == ManyToMany {
		idents["through"] = r.Through
		idents["throughLocal"] = r.ThroughLocal
		idents["throughRemote"] = r.ThroughRemote
	}
	for name, v := range idents {
		if !identRe.MatchString(v) {
			return fail(fmt.Sprintf("invalid %s %q", name, v))
		}
	}
	if r.Alias == root.Table {
		return fail("alias collides with the root table")
	}
	return nil
}

// Normalize fills defaulted storage names: primary key "id", field columns in
// snake_case and relation join columns and aliases.
func (d EntityDef) Normalize() EntityDef {
	if d.PrimaryKey == "" {
		d.PrimaryKey = "id"
	}
	if d.Table == "" {
		d.Table = toSnake(d.Name)
	}
	fields := make([]FieldDef, len(d.Fields))
	for i, f := range d.Fields {
		if f.Column == "" {
			f.Column = toSnake(f.Name)
		}
		fields[i] = f
	}
	d.Fields = fields
	d.Relations = append([]RelationDef(nil), d.Relations...)
	for i, r := range d.Relations {
		d.Relations[i] = r.withDefaults(d)
	}
	return d
}

func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

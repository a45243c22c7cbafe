package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"metaquery/internal/domain/filter"
)

// Inspect analyzes a struct and returns its EntityDef. Every exported field
// with a "db" tag becomes filterable; the "json" tag gives its criteria name.
// A "filter" tag refines the mapping:
//
//	Status    CategoryStatus `db:"status" json:"status" filter:"type=enum,options=AVAILABLE|RESTRICTED"`
//	DateAdded time.Time      `db:"date_added" json:"dateAdded" filter:"type=date"`
//	Secret    string         `db:"secret" filter:"-"`
//
// Relations cannot be inferred from the struct; add them with WithRelation.
func Inspect(entity any, name, table string) EntityDef {
	t := reflect.TypeOf(entity)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if name == "" {
		name = t.Name()
	}

	def := EntityDef{
		Name:   name,
		Label:  guessLabel(name),
		Table:  table,
		Fields: make([]FieldDef, 0, t.NumField()),
	}

	inspectStruct(t, &def)

	return def.Normalize()
}

func inspectStruct(t reflect.Type, def *EntityDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.PkgPath != "" { // unexported
			continue
		}

		// Handle embedded structs (flattening)
		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			inspectStruct(ft, def)
			continue
		}

		column := dbColumn(field)
		if column == "" {
			continue
		}
		opts := parseFilterTag(field.Tag.Get("filter"))
		if opts.skip {
			continue
		}

		fDef := FieldDef{
			Name:    jsonName(field),
			Label:   guessLabel(field.Name),
			Column:  column,
			Type:    opts.typ,
			Options: opts.options,
		}
		if fDef.Type == "" {
			fDef.Type = mapFieldType(field.Type)
		}
		if fDef.Type == "" || fDef.Name == "-" {
			continue
		}

		def.Fields = append(def.Fields, fDef)
	}
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

// mapFieldType returns "" for Go types that cannot be filtered.
func mapFieldType(t reflect.Type) filter.ValueType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return filter.TypeInstant
	case decimalType:
		return filter.TypeDecimal
	case uuidType:
		return filter.TypeUUID
	}

	switch t.Kind() {
	case reflect.String:
		return filter.TypeString
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return filter.TypeInt
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return filter.TypeLong
	case reflect.Float32, reflect.Float64:
		return filter.TypeFloat
	case reflect.Bool:
		return filter.TypeBool
	default:
		return ""
	}
}

type filterTag struct {
	skip    bool
	typ     filter.ValueType
	options []string
}

func parseFilterTag(tag string) filterTag {
	var out filterTag
	if tag == "-" {
		out.skip = true
		return out
	}
	for _, part := range strings.Split(tag, ",") {
		key, val, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "type":
			out.typ = filter.ValueType(val)
		case "options":
			out.options = strings.Split(val, "|")
		}
	}
	return out
}

func dbColumn(field reflect.StructField) string {
	tag, ok := field.Tag.Lookup("db")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			return parts[0]
		}
	}
	// Fallback: camelCase
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	if len(runes) > 1 && string(runes[len(runes)-2:]) == "ID" {
		runes[len(runes)-1] = 'd'
	}
	return string(runes)
}

// guessLabel splits a CamelCase name into words: "SortOrder" -> "Sort Order".
func guessLabel(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i == 0 {
			r = unicode.ToUpper(r)
		} else if unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

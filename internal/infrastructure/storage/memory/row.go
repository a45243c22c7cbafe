package memory

import (
	"fmt"

	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/metadata"
)

// recordRow exposes one record to the evaluator with canonical values.
type recordRow struct {
	values  map[string]any
	related map[string][]any
}

var _ predicate.Row = (*recordRow)(nil)

func (s *Store[R]) rowOf(rec R) (*recordRow, error) {
	raw := metadata.RowMap(rec)
	row := &recordRow{
		values:  make(map[string]any, len(s.def.Fields)),
		related: make(map[string][]any, len(s.def.Relations)),
	}
	for _, f := range s.def.Fields {
		v, ok, err := filter.Coerce(f.Type, raw[f.Column])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if ok {
			row.values[f.Name] = v
		}
	}

	relater, isRelater := any(rec).(Relater)
	for _, rel := range s.def.Relations {
		var values []any
		if fn, ok := s.related[rel.Name]; ok {
			values = fn(rec)
		} else if isRelater {
			values = relater.Related(rel.Name)
		}
		norm := make([]any, 0, len(values))
		for _, v := range values {
			nv, ok, err := filter.Coerce(rel.Type, v)
			if err != nil {
				return nil, fmt.Errorf("relation %s: %w", rel.Name, err)
			}
			if ok {
				norm = append(norm, nv)
			}
		}
		row.related[rel.Name] = norm
	}
	return row, nil
}

func (r *recordRow) Value(f predicate.FieldRef) (any, bool) {
	if f.Relation != "" {
		return nil, false
	}
	v, ok := r.values[f.Name]
	return v, ok
}

func (r *recordRow) Related(rel metadata.RelationDef) []any {
	return r.related[rel.Name]
}

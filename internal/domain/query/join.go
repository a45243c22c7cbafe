package query

import (
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/predicate"
	"metaquery/internal/metadata"
)

// compileRelation filters on the target field of rel. The entity is selected
// when at least one related record passes every operation of f; a record
// without related records is tested once against an absent value, so
// specified=false selects exactly the records with no related record.
func compileRelation(rel metadata.RelationDef, f filter.Filter, o Options) (predicate.Predicate, error) {
	ref := predicate.FieldRef{
		Name:     rel.Field,
		Column:   rel.Column,
		Type:     rel.Type,
		Relation: rel.Alias,
	}
	where, err := compileFilter(ref, f, o)
	if err != nil {
		return nil, err
	}
	// The outer join always yields at least one row per record, so constant
	// conditions need no join at all.
	if c, ok := where.(predicate.Const); ok {
		return c, nil
	}
	return predicate.Exists{Relation: rel, Where: where}, nil
}

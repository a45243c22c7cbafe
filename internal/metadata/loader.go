package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"metaquery/internal/core/apperror"
)

// schemaDocument is the top level of an entity descriptor file.
type schemaDocument struct {
	Entities []EntityDef `yaml:"entities"`
}

// LoadYAML reads entity descriptors. Unknown keys are rejected. Every
// definition is normalized and validated, and relations whose target is
// declared in the same document must name an existing target field of the
// same type.
func LoadYAML(r io.Reader) ([]EntityDef, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc schemaDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, apperror.NewValidation("invalid entity descriptor").WithCause(err)
	}

	byName := make(map[string]EntityDef, len(doc.Entities))
	defs := make([]EntityDef, 0, len(doc.Entities))
	for _, def := range doc.Entities {
		def = def.Normalize()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[def.Name]; dup {
			return nil, apperror.NewValidation(fmt.Sprintf("entity %s declared twice", def.Name))
		}
		byName[def.Name] = def
		defs = append(defs, def)
	}

	for _, def := range defs {
		for _, rel := range def.Relations {
			target, ok := byName[rel.Target]
			if !ok {
				continue
			}
			f, ok := target.Field(rel.Field)
			if !ok {
				return nil, apperror.NewValidation(fmt.Sprintf("entity %s: relation %s: %s has no field %s",
					def.Name, rel.Name, rel.Target, rel.Field))
			}
			if f.Type != rel.Type {
				return nil, apperror.NewValidation(fmt.Sprintf("entity %s: relation %s: type %s does not match %s.%s (%s)",
					def.Name, rel.Name, rel.Type, rel.Target, f.Name, f.Type))
			}
		}
	}
	return defs, nil
}

// LoadFile reads entity descriptors from a YAML file.
func LoadFile(path string) ([]EntityDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Load registers every entity described in r.
func (r *Registry) Load(src io.Reader) error {
	defs, err := LoadYAML(src)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

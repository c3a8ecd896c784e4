// Package record defines the data records a filter is evaluated against and
// adapters that expose GeoJSON features, STAC items, MessagePack documents and
// Arrow record batches as records.
package record

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
)

// ErrUnknownProperty is returned when a path does not name a property the
// record type declares. A declared property without a value is not an error:
// it resolves to nil.
var ErrUnknownProperty = errors.New("record: unknown property")

// Record is a single data item with an identifier and named properties.
//
// Property values are nil (absent), string, bool, any Go integer or float
// type, time.Time, []byte (WKB or raw bytes), orb.Geometry, or a nested
// map[string]any for complex properties.
type Record interface {
	// ID returns the record identifier.
	ID() string

	// Property resolves a property path. It returns ErrUnknownProperty
	// (possibly wrapped) when the path is not declared by the record type.
	Property(p Path) (any, error)

	// DefaultGeometry returns the record's first geometry property. ok is
	// false when the record type declares no geometry property at all; an
	// absent value is a nil geometry. err reports a value that is not a
	// geometry or WKB that does not decode.
	DefaultGeometry() (g orb.Geometry, ok bool, err error)
}

// PropertyDef declares a property of a Schema.
type PropertyDef struct {
	Name     string
	Geometry bool
}

// Schema describes a record type: its name and declared properties.
type Schema struct {
	Name       string
	Properties []PropertyDef

	index map[string]int
}

// NewSchema creates a schema. Property names must be unique.
func NewSchema(name string, props ...PropertyDef) (*Schema, error) {
	s := &Schema{Name: name, Properties: props, index: make(map[string]int, len(props))}
	for i, p := range props {
		if p.Name == "" {
			return nil, fmt.Errorf("record: schema %s: property %d has no name", name, i)
		}
		if _, dup := s.index[p.Name]; dup {
			return nil, fmt.Errorf("record: schema %s: duplicate property %q", name, p.Name)
		}
		s.index[p.Name] = i
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(name string, props ...PropertyDef) *Schema {
	s, err := NewSchema(name, props...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the declaration of the named property.
func (s *Schema) Lookup(name string) (PropertyDef, bool) {
	i, ok := s.index[name]
	if !ok {
		return PropertyDef{}, false
	}
	return s.Properties[i], true
}

// DefaultGeometry returns the name of the first geometry property.
func (s *Schema) DefaultGeometry() (string, bool) {
	for _, p := range s.Properties {
		if p.Geometry {
			return p.Name, true
		}
	}
	return "", false
}

// resolve maps a path to the declared top level property and the remaining
// nested steps. A leading step naming the schema itself is skipped, so both
// "app:Road/app:name" and "app:name" address the same property.
func (s *Schema) resolve(p Path) (PropertyDef, []Step, error) {
	steps := p.steps
	if len(steps) > 1 && steps[0].Local == s.Name && !steps[0].Attribute {
		steps = steps[1:]
	}
	if len(steps) == 0 {
		return PropertyDef{}, nil, fmt.Errorf("%w: empty path", ErrUnknownProperty)
	}
	def, ok := s.Lookup(steps[0].Local)
	if !ok && steps[0].Prefix != "" {
		// Keys such as "eo:cloud_cover" carry their prefix in the name.
		def, ok = s.Lookup(steps[0].Prefix + ":" + steps[0].Local)
	}
	if !ok {
		return PropertyDef{}, nil, fmt.Errorf("%w: %s on %s", ErrUnknownProperty, p, s.Name)
	}
	return def, steps[1:], nil
}

// Feature is an in-memory Record backed by a map of property values.
type Feature struct {
	id     string
	schema *Schema
	values map[string]any
}

// NewFeature creates a feature of the given schema. Values for undeclared
// properties are kept but cannot be addressed by paths.
func NewFeature(schema *Schema, id string, values map[string]any) *Feature {
	if values == nil {
		values = map[string]any{}
	}
	return &Feature{id: id, schema: schema, values: values}
}

// ID returns the feature identifier.
func (f *Feature) ID() string { return f.id }

// Schema returns the feature schema.
func (f *Feature) Schema() *Schema { return f.schema }

// Values returns the raw property values. The map must not be modified.
func (f *Feature) Values() map[string]any { return f.values }

// Property implements Record.
func (f *Feature) Property(p Path) (any, error) {
	def, rest, err := f.schema.resolve(p)
	if err != nil {
		return nil, err
	}
	return descend(f.values[def.Name], rest), nil
}

// DefaultGeometry implements Record.
func (f *Feature) DefaultGeometry() (orb.Geometry, bool, error) {
	name, ok := f.schema.DefaultGeometry()
	if !ok {
		return nil, false, nil
	}
	g, err := asGeometry(name, f.values[name])
	return g, true, err
}

// asGeometry converts a geometry property value. WKB bytes are decoded.
func asGeometry(name string, v any) (orb.Geometry, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case orb.Geometry:
		return x, nil
	case []byte:
		g, err := geometry.DecodeWKB(x)
		if err != nil {
			return nil, fmt.Errorf("record: property %s: %w", name, err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("record: property %s is %T, not a geometry", name, v)
	}
}

// descend follows nested steps into map values. Missing keys resolve to nil.
func descend(v any, steps []Step) any {
	for _, s := range steps {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[s.Local]
	}
	return v
}

// Package msgpack provides the MessagePack record dump format read and
// written by fesctl: a typed document holding features with WKB geometries.
package msgpack

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/record"
)

// Document is a batch of features of one record type.
type Document struct {
	Type     string    `msgpack:"type"`
	Features []Feature `msgpack:"features"`
}

// Feature is a single encoded feature. Geometry holds WKB.
type Feature struct {
	ID         string         `msgpack:"id"`
	Geometry   []byte         `msgpack:"geometry,omitempty"`
	Properties map[string]any `msgpack:"properties"`
}

// Decode deserializes MessagePack data into a Go value.
// The v parameter should be a pointer to the target structure.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return nil
}

// Encode serializes a Go value into MessagePack format.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return data, nil
}

// DecodeRecords decodes a Document into records sharing one schema derived
// from the union of property keys.
func DecodeRecords(data []byte) ([]record.Record, error) {
	var doc Document
	if err := Decode(data, &doc); err != nil {
		return nil, err
	}
	if doc.Type == "" {
		doc.Type = "feature"
	}

	seen := map[string]bool{}
	props := []record.PropertyDef{{Name: record.GeometryProperty, Geometry: true}}
	for _, f := range doc.Features {
		for k := range f.Properties {
			if !seen[k] && k != record.GeometryProperty {
				seen[k] = true
				props = append(props, record.PropertyDef{Name: k})
			}
		}
	}
	schema, err := record.NewSchema(doc.Type, props...)
	if err != nil {
		return nil, err
	}

	out := make([]record.Record, 0, len(doc.Features))
	for i, f := range doc.Features {
		values := make(map[string]any, len(f.Properties)+1)
		for k, v := range f.Properties {
			values[k] = v
		}
		if len(f.Geometry) > 0 {
			g, err := geometry.DecodeWKB(f.Geometry)
			if err != nil {
				return nil, fmt.Errorf("feature %d (%s): %w", i, f.ID, err)
			}
			values[record.GeometryProperty] = g
		}
		out = append(out, record.NewFeature(schema, f.ID, values))
	}
	return out, nil
}

// EncodeFeatures encodes features as a Document.
func EncodeFeatures(typeName string, features []*record.Feature) ([]byte, error) {
	doc := Document{Type: typeName, Features: make([]Feature, 0, len(features))}
	for _, f := range features {
		enc := Feature{ID: f.ID(), Properties: map[string]any{}}
		for _, def := range f.Schema().Properties {
			v, ok := f.Values()[def.Name]
			if !ok {
				continue
			}
			if def.Geometry {
				g, _ := v.(orb.Geometry)
				if g == nil {
					continue
				}
				wkb, err := geometry.EncodeWKB(g)
				if err != nil {
					return nil, fmt.Errorf("feature %s: %w", f.ID(), err)
				}
				enc.Geometry = wkb
				continue
			}
			enc.Properties[def.Name] = v
		}
		doc.Features = append(doc.Features, enc)
	}
	return Encode(doc)
}

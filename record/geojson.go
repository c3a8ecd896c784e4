package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	stac "github.com/planetlabs/go-stac"
)

// GeometryProperty is the property name under which GeoJSON and STAC
// geometries are exposed.
const GeometryProperty = "geometry"

// InferSchema derives a schema from the union of the property keys of a
// feature collection. The geometry property is always declared first.
func InferSchema(name string, fc *geojson.FeatureCollection) *Schema {
	keys := map[string]struct{}{}
	for _, f := range fc.Features {
		for k := range f.Properties {
			keys[k] = struct{}{}
		}
	}
	return schemaFromKeys(name, keys)
}

func schemaFromKeys(name string, keys map[string]struct{}) *Schema {
	delete(keys, GeometryProperty)
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	props := make([]PropertyDef, 0, len(names)+1)
	props = append(props, PropertyDef{Name: GeometryProperty, Geometry: true})
	for _, n := range names {
		props = append(props, PropertyDef{Name: n})
	}
	return MustSchema(name, props...)
}

// FromGeoJSON converts a GeoJSON feature into a Feature of the given schema.
func FromGeoJSON(schema *Schema, f *geojson.Feature) *Feature {
	values := make(map[string]any, len(f.Properties)+1)
	for k, v := range f.Properties {
		values[k] = v
	}
	values[GeometryProperty] = f.Geometry
	return NewFeature(schema, featureID(f.ID), values)
}

// FeatureCollection converts every feature of a collection, inferring the
// schema from the collection itself.
func FeatureCollection(name string, fc *geojson.FeatureCollection) []Record {
	schema := InferSchema(name, fc)
	out := make([]Record, len(fc.Features))
	for i, f := range fc.Features {
		out[i] = FromGeoJSON(schema, f)
	}
	return out
}

// ReadFeatureCollection decodes GeoJSON bytes into records.
func ReadFeatureCollection(name string, data []byte) ([]Record, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("record: decode feature collection: %w", err)
	}
	return FeatureCollection(name, fc), nil
}

// ToGeoJSON converts a feature back into a GeoJSON feature. Only schema
// properties are kept.
func ToGeoJSON(f *Feature) *geojson.Feature {
	g, _, _ := f.DefaultGeometry()
	if g == nil {
		g = orb.Collection{}
	}
	out := geojson.NewFeature(g)
	out.ID = f.ID()
	for _, def := range f.schema.Properties {
		if def.Geometry {
			continue
		}
		if v, ok := f.values[def.Name]; ok {
			out.Properties[def.Name] = v
		}
	}
	return out
}

// FromSTACItem converts a STAC item into a Feature. STAC geometries arrive as
// decoded GeoJSON objects and are re-read through orb.
func FromSTACItem(schema *Schema, item *stac.Item) (*Feature, error) {
	values := make(map[string]any, len(item.Properties)+1)
	for k, v := range item.Properties {
		values[k] = v
	}
	if item.Geometry != nil {
		g, err := decodeGeoJSONGeometry(item.Geometry)
		if err != nil {
			return nil, fmt.Errorf("record: item %s: %w", item.Id, err)
		}
		values[GeometryProperty] = g
	}
	return NewFeature(schema, item.Id, values), nil
}

// STACItems converts items into records sharing one inferred schema.
func STACItems(name string, items []*stac.Item) ([]Record, error) {
	keys := map[string]struct{}{}
	for _, it := range items {
		for k := range it.Properties {
			keys[k] = struct{}{}
		}
	}
	schema := schemaFromKeys(name, keys)

	out := make([]Record, 0, len(items))
	for _, it := range items {
		f, err := FromSTACItem(schema, it)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeGeoJSONGeometry(v any) (orb.Geometry, error) {
	if g, ok := v.(orb.Geometry); ok {
		return g, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return g.Geometry(), nil
}

func featureID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

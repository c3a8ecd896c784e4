// Package geometry implements the geometry collaborator of the filter engine
// on top of github.com/paulmach/orb: planar predicates, geometry categories,
// GML 2/3 reading and writing, and WKB/WKT helpers.
package geometry

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ErrInvalidGeometry is wrapped by every validation failure.
var ErrInvalidGeometry = errors.New("geometry: invalid")

// EncodeWKB converts a geometry to WKB. Bounds are written as polygons.
func EncodeWKB(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: cannot encode nil geometry", ErrInvalidGeometry)
	}
	if b, ok := g.(orb.Bound); ok {
		g = b.ToPolygon()
	}
	return wkb.Marshal(g)
}

// DecodeWKB converts WKB bytes to a geometry.
func DecodeWKB(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty WKB data", ErrInvalidGeometry)
	}
	return wkb.Unmarshal(data)
}

// WKT renders a geometry as well-known text. Bounds are written as polygons.
func WKT(g orb.Geometry) string {
	if b, ok := g.(orb.Bound); ok {
		g = b.ToPolygon()
	}
	return wkt.MarshalString(g)
}

// ParseWKT parses well-known text.
func ParseWKT(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("geometry: parse WKT: %w", err)
	}
	return g, nil
}

// Validate checks a geometry for structural validity.
func Validate(g orb.Geometry) error {
	if g == nil {
		return fmt.Errorf("%w: geometry is nil", ErrInvalidGeometry)
	}

	switch g := g.(type) {
	case orb.Point:
		return nil

	case orb.MultiPoint:
		if len(g) == 0 {
			return fmt.Errorf("%w: multipoint is empty", ErrInvalidGeometry)
		}
		return nil

	case orb.LineString:
		if len(g) < 2 {
			return fmt.Errorf("%w: linestring must have at least 2 points, has %d", ErrInvalidGeometry, len(g))
		}
		return nil

	case orb.MultiLineString:
		if len(g) == 0 {
			return fmt.Errorf("%w: multilinestring is empty", ErrInvalidGeometry)
		}
		for i, ls := range g {
			if len(ls) < 2 {
				return fmt.Errorf("%w: multilinestring[%d] must have at least 2 points, has %d", ErrInvalidGeometry, i, len(ls))
			}
		}
		return nil

	case orb.Ring:
		return validateRing("ring", g)

	case orb.Polygon:
		if len(g) == 0 {
			return fmt.Errorf("%w: polygon has no rings", ErrInvalidGeometry)
		}
		if err := validateRing("polygon exterior", g[0]); err != nil {
			return err
		}
		for i, r := range g[1:] {
			if err := validateRing(fmt.Sprintf("polygon interior[%d]", i), r); err != nil {
				return err
			}
		}
		return nil

	case orb.MultiPolygon:
		if len(g) == 0 {
			return fmt.Errorf("%w: multipolygon is empty", ErrInvalidGeometry)
		}
		for i, p := range g {
			if err := Validate(p); err != nil {
				return fmt.Errorf("multipolygon[%d]: %w", i, err)
			}
		}
		return nil

	case orb.Collection:
		if len(g) == 0 {
			return fmt.Errorf("%w: geometry collection is empty", ErrInvalidGeometry)
		}
		for i, m := range g {
			if err := Validate(m); err != nil {
				return fmt.Errorf("collection[%d]: %w", i, err)
			}
		}
		return nil

	case orb.Bound:
		if g.Min.X() > g.Max.X() || g.Min.Y() > g.Max.Y() {
			return fmt.Errorf("%w: envelope lower corner exceeds upper corner", ErrInvalidGeometry)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown geometry type %T", ErrInvalidGeometry, g)
	}
}

func validateRing(what string, r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("%w: %s must have at least 4 points, has %d", ErrInvalidGeometry, what, len(r))
	}
	if !r[0].Equal(r[len(r)-1]) {
		return fmt.Errorf("%w: %s is not closed", ErrInvalidGeometry, what)
	}
	return nil
}

// TypeName returns the simple feature type name of a geometry.
func TypeName(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point:
		return "Point"
	case orb.MultiPoint:
		return "MultiPoint"
	case orb.LineString:
		return "LineString"
	case orb.Ring:
		return "LinearRing"
	case orb.MultiLineString:
		return "MultiLineString"
	case orb.Polygon:
		return "Polygon"
	case orb.MultiPolygon:
		return "MultiPolygon"
	case orb.Collection:
		return "GeometryCollection"
	case orb.Bound:
		return "Envelope"
	default:
		return "Unknown"
	}
}

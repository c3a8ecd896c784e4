package geometry

import "github.com/paulmach/orb"

// Category is the coarse family of a geometry used by instance-of checks.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryPoint
	CategoryCurve
	CategorySurface
)

func (c Category) String() string {
	switch c {
	case CategoryPoint:
		return "point"
	case CategoryCurve:
		return "curve"
	case CategorySurface:
		return "surface"
	default:
		return "unknown"
	}
}

// CategoryOf returns the family of g. Heterogeneous collections are unknown.
func CategoryOf(g orb.Geometry) Category {
	switch g := g.(type) {
	case orb.Point, orb.MultiPoint:
		return CategoryPoint
	case orb.LineString, orb.MultiLineString, orb.Ring:
		return CategoryCurve
	case orb.Polygon, orb.MultiPolygon, orb.Bound:
		return CategorySurface
	case orb.Collection:
		if len(g) == 0 {
			return CategoryUnknown
		}
		c := CategoryOf(g[0])
		for _, m := range g[1:] {
			if CategoryOf(m) != c {
				return CategoryUnknown
			}
		}
		return c
	default:
		return CategoryUnknown
	}
}

// BoundFromPolygon returns the envelope equivalent of an axis-aligned
// rectangular polygon without holes.
func BoundFromPolygon(p orb.Polygon) (orb.Bound, bool) {
	if len(p) != 1 || len(p[0]) != 5 || !p[0][0].Equal(p[0][4]) {
		return orb.Bound{}, false
	}
	b := p.Bound()
	for _, pt := range p[0] {
		onX := pt.X() == b.Min.X() || pt.X() == b.Max.X()
		onY := pt.Y() == b.Min.Y() || pt.Y() == b.Max.Y()
		if !onX || !onY {
			return orb.Bound{}, false
		}
	}
	return b, true
}

package geometry

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Predicates are planar and operate on coordinates as given; no reprojection
// is applied. Envelopes behave as rectangular polygons.

type segment [2]orb.Point

// parts is a geometry decomposed into primitives.
type parts struct {
	points   []orb.Point
	segments []segment
	polygons []orb.Polygon
}

func decompose(g orb.Geometry) parts {
	var p parts
	p.add(g)
	return p
}

func (p *parts) add(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		p.points = append(p.points, g)
	case orb.MultiPoint:
		p.points = append(p.points, g...)
	case orb.LineString:
		p.addLine(g)
	case orb.Ring:
		p.addLine(orb.LineString(g))
	case orb.MultiLineString:
		for _, ls := range g {
			p.addLine(ls)
		}
	case orb.Polygon:
		if len(g) > 0 && len(g[0]) > 0 {
			p.polygons = append(p.polygons, g)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			p.add(poly)
		}
	case orb.Bound:
		p.polygons = append(p.polygons, g.ToPolygon())
	case orb.Collection:
		for _, m := range g {
			p.add(m)
		}
	}
}

func (p *parts) addLine(ls orb.LineString) {
	if len(ls) == 1 {
		p.points = append(p.points, ls[0])
		return
	}
	for i := 1; i < len(ls); i++ {
		p.segments = append(p.segments, segment{ls[i-1], ls[i]})
	}
}

func (p parts) empty() bool {
	return len(p.points) == 0 && len(p.segments) == 0 && len(p.polygons) == 0
}

// edges returns every linear boundary: segments plus polygon ring edges.
func (p parts) edges() []segment {
	out := append([]segment(nil), p.segments...)
	for _, poly := range p.polygons {
		out = append(out, polygonEdges(poly)...)
	}
	return out
}

func polygonEdges(poly orb.Polygon) []segment {
	var out []segment
	for _, r := range poly {
		for i := 1; i < len(r); i++ {
			out = append(out, segment{r[i-1], r[i]})
		}
		if len(r) > 1 && !r[0].Equal(r[len(r)-1]) {
			out = append(out, segment{r[len(r)-1], r[0]})
		}
	}
	return out
}

// Intersects reports whether a and b share at least one point.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	return partsIntersect(decompose(a), decompose(b))
}

// Disjoint is the negation of Intersects.
func Disjoint(a, b orb.Geometry) bool {
	return !Intersects(a, b)
}

func partsIntersect(pa, pb parts) bool {
	for _, p := range pa.points {
		if pb.covers(p) {
			return true
		}
	}
	for _, p := range pb.points {
		if pa.covers(p) {
			return true
		}
	}
	ea, eb := pa.edges(), pb.edges()
	for _, s := range ea {
		for _, t := range eb {
			if segmentsIntersect(s, t) {
				return true
			}
		}
	}
	// Remaining case: one linear or areal part lies entirely inside a polygon.
	for _, s := range pa.segments {
		if pb.coversArea(s[0]) {
			return true
		}
	}
	for _, s := range pb.segments {
		if pa.coversArea(s[0]) {
			return true
		}
	}
	for _, poly := range pa.polygons {
		if pb.coversArea(poly[0][0]) {
			return true
		}
	}
	for _, poly := range pb.polygons {
		if pa.coversArea(poly[0][0]) {
			return true
		}
	}
	return false
}

// covers reports whether point p lies on any primitive of the parts.
func (p parts) covers(pt orb.Point) bool {
	for _, q := range p.points {
		if q.Equal(pt) {
			return true
		}
	}
	for _, s := range p.segments {
		if onSegment(pt, s) {
			return true
		}
	}
	return p.coversArea(pt)
}

func (p parts) coversArea(pt orb.Point) bool {
	for _, poly := range p.polygons {
		if polygonCovers(poly, pt) {
			return true
		}
	}
	return false
}

func polygonCovers(poly orb.Polygon, pt orb.Point) bool {
	for _, e := range polygonEdges(poly) {
		if onSegment(pt, e) {
			return true
		}
	}
	return planar.PolygonContains(poly, pt)
}

// Contains reports whether every point of b lies in a.
func Contains(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	pa, pb := decompose(a), decompose(b)
	if pa.empty() || pb.empty() {
		return false
	}
	if !boundContains(a.Bound(), b.Bound()) {
		return false
	}
	if len(pb.polygons) > 0 && len(pa.polygons) == 0 {
		return false
	}

	for _, p := range pb.points {
		if !pa.covers(p) {
			return false
		}
	}
	aEdges := pa.edges()
	for _, s := range pb.edges() {
		if !segmentCovered(pa, aEdges, s) {
			return false
		}
	}
	// A hole or boundary of a strictly inside a polygon of b leaves part of b
	// uncovered.
	for _, poly := range pb.polygons {
		for _, e := range aEdges {
			for _, pt := range []orb.Point{e[0], midpoint(e[0], e[1])} {
				if planar.PolygonContains(poly, pt) && !onBoundary(poly, pt) && !pa.interiorAround(pt) {
					return false
				}
			}
		}
	}
	return true
}

// Within reports whether a lies entirely in b.
func Within(a, b orb.Geometry) bool {
	return Contains(b, a)
}

// interiorAround reports whether a point on an edge of the parts is still
// surrounded by area, as happens on a shared edge between adjacent polygons.
func (p parts) interiorAround(pt orb.Point) bool {
	const d = 1e-9
	for _, off := range []orb.Point{{d, 0}, {-d, 0}, {0, d}, {0, -d}} {
		if !p.coversArea(orb.Point{pt.X() + off.X(), pt.Y() + off.Y()}) {
			return false
		}
	}
	return true
}

func onBoundary(poly orb.Polygon, pt orb.Point) bool {
	for _, e := range polygonEdges(poly) {
		if onSegment(pt, e) {
			return true
		}
	}
	return false
}

// segmentCovered splits s at every crossing with the edges of a and checks
// that each piece lies in a.
func segmentCovered(a parts, aEdges []segment, s segment) bool {
	ts := []float64{0, 1}
	for _, e := range aEdges {
		ts = append(ts, crossingParams(s, e)...)
	}
	sort.Float64s(ts)
	if !a.covers(s[0]) || !a.covers(s[1]) {
		return false
	}
	for i := 1; i < len(ts); i++ {
		if ts[i]-ts[i-1] < 1e-12 {
			continue
		}
		if !a.covers(pointAt(s, (ts[i-1]+ts[i])/2)) {
			return false
		}
	}
	return true
}

// crossingParams returns the positions along s (0..1) where e meets it.
func crossingParams(s, e segment) []float64 {
	if !segmentsIntersect(s, e) {
		return nil
	}
	r := orb.Point{s[1].X() - s[0].X(), s[1].Y() - s[0].Y()}
	q := orb.Point{e[1].X() - e[0].X(), e[1].Y() - e[0].Y()}
	denom := cross(r, q)
	if denom != 0 {
		w := orb.Point{e[0].X() - s[0].X(), e[0].Y() - s[0].Y()}
		return []float64{clamp01(cross(w, q) / denom)}
	}
	// Collinear overlap: project the endpoints of e onto s.
	rr := r.X()*r.X() + r.Y()*r.Y()
	if rr == 0 {
		return nil
	}
	var out []float64
	for _, p := range e {
		t := ((p.X()-s[0].X())*r.X() + (p.Y()-s[0].Y())*r.Y()) / rr
		if t > 0 && t < 1 {
			out = append(out, t)
		}
	}
	return out
}

// Equals reports topological equality.
func Equals(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if orb.Equal(a, b) {
		return true
	}
	return Contains(a, b) && Contains(b, a)
}

// Distance returns the minimum planar distance between a and b.
func Distance(a, b orb.Geometry) float64 {
	if Intersects(a, b) {
		return 0
	}
	pa, pb := decompose(a), decompose(b)
	ea, eb := pa.edges(), pb.edges()
	best := math.Inf(1)
	for _, p := range pa.points {
		for _, q := range pb.points {
			best = math.Min(best, planar.Distance(p, q))
		}
		for _, e := range eb {
			best = math.Min(best, planar.DistanceFromSegment(e[0], e[1], p))
		}
	}
	for _, q := range pb.points {
		for _, e := range ea {
			best = math.Min(best, planar.DistanceFromSegment(e[0], e[1], q))
		}
	}
	for _, s := range ea {
		for _, t := range eb {
			best = math.Min(best, segmentDistance(s, t))
		}
	}
	return best
}

// WithinDistance reports whether a and b are at most d apart.
func WithinDistance(a, b orb.Geometry, d float64) bool {
	if a == nil || b == nil {
		return false
	}
	return Distance(a, b) <= d
}

func segmentDistance(s, t segment) float64 {
	if segmentsIntersect(s, t) {
		return 0
	}
	return math.Min(
		math.Min(planar.DistanceFromSegment(t[0], t[1], s[0]), planar.DistanceFromSegment(t[0], t[1], s[1])),
		math.Min(planar.DistanceFromSegment(s[0], s[1], t[0]), planar.DistanceFromSegment(s[0], s[1], t[1])),
	)
}

func segmentsIntersect(s, t segment) bool {
	d1 := orient(t[0], t[1], s[0])
	d2 := orient(t[0], t[1], s[1])
	d3 := orient(s[0], s[1], t[0])
	d4 := orient(s[0], s[1], t[1])
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return onSegment(s[0], t) || onSegment(s[1], t) || onSegment(t[0], s) || onSegment(t[1], s)
}

func onSegment(p orb.Point, s segment) bool {
	return planar.DistanceFromSegment(s[0], s[1], p) <= tolerance(s)
}

func tolerance(s segment) float64 {
	return 1e-9 * math.Max(1, planar.Distance(s[0], s[1]))
}

func orient(a, b, c orb.Point) float64 {
	return (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
}

func cross(a, b orb.Point) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}

func pointAt(s segment, t float64) orb.Point {
	return orb.Point{s[0].X() + t*(s[1].X()-s[0].X()), s[0].Y() + t*(s[1].Y()-s[0].Y())}
}

func midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a.X() + b.X()) / 2, (a.Y() + b.Y()) / 2}
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

func boundContains(outer, inner orb.Bound) bool {
	return inner.Min.X() >= outer.Min.X() && inner.Min.Y() >= outer.Min.Y() &&
		inner.Max.X() <= outer.Max.X() && inner.Max.Y() <= outer.Max.Y()
}

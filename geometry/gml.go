package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
)

// NamespaceGML is the GML namespace shared by GML 2 and GML 3.
const NamespaceGML = "http://www.opengis.net/gml"

// GMLVersion selects the GML encoding generation.
type GMLVersion int

const (
	// GML2 writes gml:coordinates, gml:Box and outer/innerBoundaryIs.
	GML2 GMLVersion = 2
	// GML3 writes gml:pos/gml:posList, gml:Envelope and exterior/interior.
	GML3 GMLVersion = 3
)

// ReadGML decodes a GML 2 or GML 3 geometry element. Both generations are
// accepted regardless of the dialect a document otherwise uses.
func ReadGML(el *etree.Element) (orb.Geometry, error) {
	switch el.Tag {
	case "Point":
		pts, err := readPoints(el)
		if err != nil {
			return nil, err
		}
		if len(pts) != 1 {
			return nil, gmlErr(el, "point requires exactly one position, got %d", len(pts))
		}
		return pts[0], nil

	case "LineString":
		pts, err := readPoints(el)
		if err != nil {
			return nil, err
		}
		if len(pts) < 2 {
			return nil, gmlErr(el, "linestring requires at least two positions")
		}
		return orb.LineString(pts), nil

	case "LinearRing":
		return readRing(el)

	case "Polygon":
		return readPolygon(el)

	case "Box", "Envelope":
		return readEnvelope(el)

	case "MultiPoint":
		var out orb.MultiPoint
		err := eachMember(el, func(m *etree.Element) error {
			g, err := ReadGML(m)
			if err != nil {
				return err
			}
			p, ok := g.(orb.Point)
			if !ok {
				return gmlErr(m, "multipoint member is not a point")
			}
			out = append(out, p)
			return nil
		})
		return out, err

	case "MultiLineString", "MultiCurve":
		var out orb.MultiLineString
		err := eachMember(el, func(m *etree.Element) error {
			g, err := ReadGML(m)
			if err != nil {
				return err
			}
			ls, ok := g.(orb.LineString)
			if !ok {
				return gmlErr(m, "multicurve member is not a linestring")
			}
			out = append(out, ls)
			return nil
		})
		return out, err

	case "MultiPolygon", "MultiSurface":
		var out orb.MultiPolygon
		err := eachMember(el, func(m *etree.Element) error {
			g, err := ReadGML(m)
			if err != nil {
				return err
			}
			p, ok := g.(orb.Polygon)
			if !ok {
				return gmlErr(m, "multisurface member is not a polygon")
			}
			out = append(out, p)
			return nil
		})
		return out, err

	case "MultiGeometry":
		var out orb.Collection
		err := eachMember(el, func(m *etree.Element) error {
			g, err := ReadGML(m)
			if err != nil {
				return err
			}
			out = append(out, g)
			return nil
		})
		return out, err

	default:
		return nil, gmlErr(el, "unsupported geometry element")
	}
}

func gmlErr(el *etree.Element, format string, args ...any) error {
	return fmt.Errorf("gml %s: %s", el.Tag, fmt.Sprintf(format, args...))
}

// eachMember visits the geometries wrapped by *Member and *Members children.
func eachMember(el *etree.Element, fn func(*etree.Element) error) error {
	for _, c := range el.ChildElements() {
		if !strings.HasSuffix(c.Tag, "Member") && !strings.HasSuffix(c.Tag, "Members") {
			return gmlErr(el, "unexpected child %s", c.Tag)
		}
		for _, g := range c.ChildElements() {
			if err := fn(g); err != nil {
				return err
			}
		}
	}
	return nil
}

func readRing(el *etree.Element) (orb.Ring, error) {
	pts, err := readPoints(el)
	if err != nil {
		return nil, err
	}
	if len(pts) < 4 {
		return nil, gmlErr(el, "linear ring requires at least four positions, got %d", len(pts))
	}
	if !pts[0].Equal(pts[len(pts)-1]) {
		return nil, gmlErr(el, "linear ring is not closed")
	}
	return orb.Ring(pts), nil
}

func readPolygon(el *etree.Element) (orb.Polygon, error) {
	var exterior orb.Ring
	var interiors []orb.Ring
	for _, c := range el.ChildElements() {
		var ring *etree.Element
		if rs := c.ChildElements(); len(rs) == 1 && rs[0].Tag == "LinearRing" {
			ring = rs[0]
		} else {
			return nil, gmlErr(c, "boundary requires a single LinearRing")
		}
		r, err := readRing(ring)
		if err != nil {
			return nil, err
		}
		switch c.Tag {
		case "outerBoundaryIs", "exterior":
			if exterior != nil {
				return nil, gmlErr(el, "polygon has more than one exterior")
			}
			exterior = r
		case "innerBoundaryIs", "interior":
			interiors = append(interiors, r)
		default:
			return nil, gmlErr(el, "unexpected child %s", c.Tag)
		}
	}
	if exterior == nil {
		return nil, gmlErr(el, "polygon has no exterior")
	}
	return append(orb.Polygon{exterior}, interiors...), nil
}

func readEnvelope(el *etree.Element) (orb.Bound, error) {
	var pts []orb.Point
	lower, upper := el.SelectElement("lowerCorner"), el.SelectElement("upperCorner")
	if lower != nil || upper != nil {
		if lower == nil || upper == nil {
			return orb.Bound{}, gmlErr(el, "envelope requires both lowerCorner and upperCorner")
		}
		for _, c := range []*etree.Element{lower, upper} {
			p, err := parsePosList(c.Text(), 0)
			if err != nil {
				return orb.Bound{}, gmlErr(c, "%v", err)
			}
			if len(p) != 1 {
				return orb.Bound{}, gmlErr(c, "corner requires exactly one position")
			}
			pts = append(pts, p[0])
		}
	} else {
		var err error
		if pts, err = readPoints(el); err != nil {
			return orb.Bound{}, err
		}
	}
	if len(pts) != 2 {
		return orb.Bound{}, gmlErr(el, "envelope requires two corners, got %d", len(pts))
	}
	b := orb.Bound{Min: pts[0], Max: pts[1]}
	if err := Validate(b); err != nil {
		return orb.Bound{}, gmlErr(el, "%v", err)
	}
	return b, nil
}

// readPoints reads the position children of a primitive in any of the
// supported encodings: coordinates, coord, pos and posList.
func readPoints(el *etree.Element) ([]orb.Point, error) {
	var pts []orb.Point
	dim := srsDimension(el)
	for _, c := range el.ChildElements() {
		switch c.Tag {
		case "coordinates":
			p, err := parseCoordinates(c)
			if err != nil {
				return nil, gmlErr(el, "%v", err)
			}
			pts = append(pts, p...)
		case "coord":
			x, y := c.SelectElement("X"), c.SelectElement("Y")
			if x == nil || y == nil {
				return nil, gmlErr(el, "coord requires X and Y")
			}
			p, err := parsePoint(x.Text(), y.Text())
			if err != nil {
				return nil, gmlErr(el, "%v", err)
			}
			pts = append(pts, p)
		case "pos":
			p, err := parsePosList(c.Text(), 0)
			if err != nil {
				return nil, gmlErr(el, "%v", err)
			}
			pts = append(pts, p...)
		case "posList":
			d := dim
			if v := c.SelectAttrValue("srsDimension", ""); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 2 {
					return nil, gmlErr(el, "invalid srsDimension %q", v)
				}
				d = n
			}
			p, err := parsePosList(c.Text(), d)
			if err != nil {
				return nil, gmlErr(el, "%v", err)
			}
			pts = append(pts, p...)
		case "pointMember", "pointProperty":
			// GML 3 curves may list their vertices as point properties.
			for _, m := range c.ChildElements() {
				g, err := ReadGML(m)
				if err != nil {
					return nil, err
				}
				if p, ok := g.(orb.Point); ok {
					pts = append(pts, p)
				}
			}
		}
	}
	if len(pts) == 0 {
		return nil, gmlErr(el, "no positions")
	}
	return pts, nil
}

func srsDimension(el *etree.Element) int {
	for e := el; e != nil; e = e.Parent() {
		if v := e.SelectAttrValue("srsDimension", ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 2 {
				return n
			}
		}
	}
	return 2
}

func parseCoordinates(el *etree.Element) ([]orb.Point, error) {
	decimal := el.SelectAttrValue("decimal", ".")
	cs := el.SelectAttrValue("cs", ",")
	ts := el.SelectAttrValue("ts", " ")

	text := strings.TrimSpace(el.Text())
	var tuples []string
	if strings.TrimSpace(ts) == "" {
		tuples = strings.Fields(text)
	} else {
		tuples = strings.Split(text, ts)
	}

	pts := make([]orb.Point, 0, len(tuples))
	for _, t := range tuples {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		vals := strings.Split(t, cs)
		if len(vals) < 2 {
			return nil, fmt.Errorf("coordinate tuple %q has fewer than two values", t)
		}
		if decimal != "." {
			for i := range vals {
				vals[i] = strings.ReplaceAll(vals[i], decimal, ".")
			}
		}
		p, err := parsePoint(vals[0], vals[1])
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// parsePosList reads whitespace separated ordinates. dim 0 means a single
// position of any dimension.
func parsePosList(text string, dim int) ([]orb.Point, error) {
	fields := strings.Fields(text)
	if dim == 0 {
		if len(fields) < 2 {
			return nil, fmt.Errorf("position %q has fewer than two values", text)
		}
		p, err := parsePoint(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		return []orb.Point{p}, nil
	}
	if len(fields)%dim != 0 {
		return nil, fmt.Errorf("position list length %d is not a multiple of %d", len(fields), dim)
	}
	pts := make([]orb.Point, 0, len(fields)/dim)
	for i := 0; i < len(fields); i += dim {
		p, err := parsePoint(fields[i], fields[i+1])
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func parsePoint(xs, ys string) (orb.Point, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid ordinate %q", xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid ordinate %q", ys)
	}
	return orb.Point{x, y}, nil
}

// WriteGML appends g to parent as a GML element of the given generation and
// returns it. When declareNS is set the element carries its own gml
// namespace declaration.
func WriteGML(parent *etree.Element, g orb.Geometry, v GMLVersion, declareNS bool) *etree.Element {
	w := gmlWriter{v: v}
	el := w.write(parent, g)
	if declareNS {
		el.CreateAttr("xmlns:gml", NamespaceGML)
	}
	return el
}

type gmlWriter struct {
	v GMLVersion
}

func (w gmlWriter) write(parent *etree.Element, g orb.Geometry) *etree.Element {
	switch g := g.(type) {
	case orb.Point:
		el := parent.CreateElement("gml:Point")
		w.positions(el, []orb.Point{g}, true)
		return el

	case orb.LineString:
		el := parent.CreateElement("gml:LineString")
		w.positions(el, g, false)
		return el

	case orb.Ring:
		el := parent.CreateElement("gml:LinearRing")
		w.positions(el, g, false)
		return el

	case orb.Polygon:
		el := parent.CreateElement("gml:Polygon")
		outer, inner := "gml:exterior", "gml:interior"
		if w.v == GML2 {
			outer, inner = "gml:outerBoundaryIs", "gml:innerBoundaryIs"
		}
		for i, r := range g {
			name := inner
			if i == 0 {
				name = outer
			}
			w.positions(el.CreateElement(name).CreateElement("gml:LinearRing"), r, false)
		}
		return el

	case orb.Bound:
		if w.v == GML2 {
			el := parent.CreateElement("gml:Box")
			w.positions(el, []orb.Point{g.Min, g.Max}, false)
			return el
		}
		el := parent.CreateElement("gml:Envelope")
		el.CreateElement("gml:lowerCorner").SetText(formatPos(g.Min))
		el.CreateElement("gml:upperCorner").SetText(formatPos(g.Max))
		return el

	case orb.MultiPoint:
		el := parent.CreateElement("gml:MultiPoint")
		for _, p := range g {
			w.write(el.CreateElement("gml:pointMember"), p)
		}
		return el

	case orb.MultiLineString:
		name, member := "gml:MultiCurve", "gml:curveMember"
		if w.v == GML2 {
			name, member = "gml:MultiLineString", "gml:lineStringMember"
		}
		el := parent.CreateElement(name)
		for _, ls := range g {
			w.write(el.CreateElement(member), ls)
		}
		return el

	case orb.MultiPolygon:
		name, member := "gml:MultiSurface", "gml:surfaceMember"
		if w.v == GML2 {
			name, member = "gml:MultiPolygon", "gml:polygonMember"
		}
		el := parent.CreateElement(name)
		for _, p := range g {
			w.write(el.CreateElement(member), p)
		}
		return el

	case orb.Collection:
		el := parent.CreateElement("gml:MultiGeometry")
		for _, m := range g {
			w.write(el.CreateElement("gml:geometryMember"), m)
		}
		return el

	default:
		// Unknown geometries degrade to an empty collection.
		return parent.CreateElement("gml:MultiGeometry")
	}
}

func (w gmlWriter) positions(el *etree.Element, pts []orb.Point, single bool) {
	if w.v == GML2 {
		tuples := make([]string, len(pts))
		for i, p := range pts {
			tuples[i] = formatFloat(p.X()) + "," + formatFloat(p.Y())
		}
		el.CreateElement("gml:coordinates").SetText(strings.Join(tuples, " "))
		return
	}
	if single {
		el.CreateElement("gml:pos").SetText(formatPos(pts[0]))
		return
	}
	vals := make([]string, len(pts))
	for i, p := range pts {
		vals[i] = formatPos(p)
	}
	el.CreateElement("gml:posList").SetText(strings.Join(vals, " "))
}

func formatPos(p orb.Point) string {
	return formatFloat(p.X()) + " " + formatFloat(p.Y())
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

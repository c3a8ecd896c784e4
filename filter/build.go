package filter

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/record"
)

// BuildOptions configures building a filter from a document.
type BuildOptions struct {
	// Version selects version specific attribute names. OPTIONAL: defaults
	// to 1.1.0.
	Version Version

	// Functions resolves Function elements. OPTIONAL: without a registry
	// every Function element is a construction error.
	Functions *Registry
}

// Parse reads a filter document and builds the filter rooted at its
// document element.
func Parse(data []byte, opts BuildOptions) (Filter, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, wrapConstruction("", err, "read document")
	}
	root := doc.Root()
	if root == nil {
		return nil, constructionErr("", "document has no root element")
	}
	return Build(root, opts)
}

// Build converts a Filter element into a Filter. Any structural mismatch
// fails the whole build with a *ConstructionError.
func Build(el *etree.Element, opts BuildOptions) (Filter, error) {
	d, err := DialectFor(opts.Version)
	if err != nil {
		return nil, err
	}
	b := &builder{dialect: d, functions: opts.Functions}
	return b.filter(el)
}

// BuildOperation converts a single operation element.
func BuildOperation(el *etree.Element, opts BuildOptions) (Operation, error) {
	d, err := DialectFor(opts.Version)
	if err != nil {
		return nil, err
	}
	b := &builder{dialect: d, functions: opts.Functions}
	return b.operation(el)
}

// BuildExpression converts a single expression element.
func BuildExpression(el *etree.Element, opts BuildOptions) (Expression, error) {
	d, err := DialectFor(opts.Version)
	if err != nil {
		return nil, err
	}
	b := &builder{dialect: d, functions: opts.Functions}
	return b.expression(el)
}

type builder struct {
	dialect   Dialect
	functions *Registry
}

func (b *builder) filter(el *etree.Element) (Filter, error) {
	if el.Tag != "Filter" {
		return nil, constructionErr(el.Tag, "root element must be Filter")
	}
	children := el.ChildElements()
	if len(children) == 0 {
		return nil, constructionErr("Filter", "requires an operation or identifier elements")
	}

	if isIDElement(children[0]) {
		ids := make([]string, 0, len(children))
		for _, c := range children {
			id, err := b.identifier(c)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return &IDFilter{IDs: ids}, nil
	}

	if len(children) != 1 {
		return nil, constructionErr("Filter", "requires exactly one operation, has %d children", len(children))
	}
	op, err := b.operation(children[0])
	if err != nil {
		return nil, err
	}
	return &OperationFilter{Root: op}, nil
}

func isIDElement(el *etree.Element) bool {
	return el.Tag == "FeatureId" || el.Tag == "GmlObjectId"
}

func (b *builder) identifier(el *etree.Element) (string, error) {
	switch el.Tag {
	case "FeatureId":
		id := el.SelectAttrValue("fid", "")
		if id == "" {
			return "", constructionErr(el.Tag, "missing fid attribute")
		}
		return id, nil
	case "GmlObjectId":
		for _, a := range el.Attr {
			if a.Key == "id" && a.Space != "" && a.Space != "xmlns" {
				if a.Value == "" {
					break
				}
				return a.Value, nil
			}
		}
		return "", constructionErr(el.Tag, "missing namespaced id attribute")
	default:
		return "", constructionErr(el.Tag, "identifier filters cannot be mixed with operations")
	}
}

func (b *builder) operation(el *etree.Element) (Operation, error) {
	op, ok := LookupOperator(el.Tag)
	if !ok {
		return nil, constructionErr(el.Tag, "unknown operator")
	}
	switch op.Family() {
	case FamilyLogical:
		return b.logical(op, el)
	case FamilyComparison:
		return b.comparison(op, el)
	case FamilySpatial:
		return b.spatial(op, el)
	default:
		return nil, constructionErr(el.Tag, "unknown operator family")
	}
}

func (b *builder) logical(op Operator, el *etree.Element) (Operation, error) {
	children := el.ChildElements()
	switch op {
	case OpNot:
		if len(children) != 1 {
			return nil, constructionErr(el.Tag, "requires exactly one child, has %d", len(children))
		}
	default:
		if len(children) < 2 {
			return nil, constructionErr(el.Tag, "requires at least two children, has %d", len(children))
		}
	}

	ops := make([]Operation, 0, len(children))
	for _, c := range children {
		o, err := b.operation(c)
		if err != nil {
			return nil, err
		}
		ops = append(ops, o)
	}
	return &LogicalOperation{Op: op, Children: ops}, nil
}

func (b *builder) comparison(op Operator, el *etree.Element) (Operation, error) {
	children := el.ChildElements()
	switch {
	case op.IsBinaryComparison():
		if len(children) != 2 {
			return nil, constructionErr(el.Tag, "requires exactly two expressions, has %d", len(children))
		}
		matchCase, err := matchCaseAttr(el)
		if err != nil {
			return nil, err
		}
		left, err := b.expression(children[0])
		if err != nil {
			return nil, err
		}
		right, err := b.expression(children[1])
		if err != nil {
			return nil, err
		}
		return &BinaryComparison{Op: op, Left: left, Right: right, MatchCase: matchCase}, nil

	case op == OpLike:
		return b.like(el, children)

	case op == OpBetween:
		return b.between(el, children)

	case op == OpIsNull:
		if len(children) != 1 {
			return nil, constructionErr(el.Tag, "requires exactly one PropertyName, has %d children", len(children))
		}
		p, err := b.propertyName(children[0])
		if err != nil {
			return nil, err
		}
		return &NullOperation{Property: p}, nil

	case op == OpIsInstanceOf:
		if len(children) != 2 {
			return nil, constructionErr(el.Tag, "requires a PropertyName and a Literal, has %d children", len(children))
		}
		p, err := b.propertyName(children[0])
		if err != nil {
			return nil, err
		}
		lit, err := b.literal(children[1])
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(lit.Text)
		if _, ok := instanceCategories[name]; !ok {
			return nil, wrapConstruction(el.Tag, ErrUnsupportedTypeName, "type name %q", name)
		}
		return &InstanceOfOperation{Property: p, TypeName: name}, nil

	default:
		return nil, constructionErr(el.Tag, "unknown comparison operator")
	}
}

func (b *builder) like(el *etree.Element, children []*etree.Element) (Operation, error) {
	if len(children) != 2 {
		return nil, constructionErr(el.Tag, "requires a PropertyName and a Literal, has %d children", len(children))
	}
	wild, err := charAttr(el, "wildCard")
	if err != nil {
		return nil, err
	}
	single, err := charAttr(el, "singleChar")
	if err != nil {
		return nil, err
	}
	esc, err := charAttr(el, b.dialect.EscapeAttr)
	if err != nil {
		return nil, err
	}
	matchCase, err := matchCaseAttr(el)
	if err != nil {
		return nil, err
	}
	p, err := b.propertyName(children[0])
	if err != nil {
		return nil, err
	}
	lit, err := b.literal(children[1])
	if err != nil {
		return nil, err
	}
	return &LikeOperation{
		Property:   p,
		Pattern:    lit,
		WildCard:   wild,
		SingleChar: single,
		Escape:     esc,
		MatchCase:  matchCase,
	}, nil
}

func (b *builder) between(el *etree.Element, children []*etree.Element) (Operation, error) {
	if len(children) != 3 {
		return nil, constructionErr(el.Tag, "requires PropertyName, LowerBoundary and UpperBoundary, has %d children", len(children))
	}
	p, err := b.propertyName(children[0])
	if err != nil {
		return nil, err
	}
	lower, err := b.boundary(children[1], "LowerBoundary")
	if err != nil {
		return nil, err
	}
	upper, err := b.boundary(children[2], "UpperBoundary")
	if err != nil {
		return nil, err
	}
	return &BetweenOperation{Property: p, Lower: lower, Upper: upper}, nil
}

func (b *builder) boundary(el *etree.Element, name string) (Expression, error) {
	if el.Tag != name {
		return nil, constructionErr(el.Tag, "expected %s", name)
	}
	children := el.ChildElements()
	if len(children) != 1 {
		return nil, constructionErr(name, "requires exactly one expression, has %d", len(children))
	}
	return b.expression(children[0])
}

func (b *builder) spatial(op Operator, el *etree.Element) (Operation, error) {
	children := el.ChildElements()
	s := &SpatialOperation{Op: op}

	var geomEl *etree.Element
	switch {
	case op == OpBBox:
		switch len(children) {
		case 1:
			geomEl = children[0]
		case 2:
			p, err := b.propertyName(children[0])
			if err != nil {
				return nil, err
			}
			s.Property, geomEl = p, children[1]
		default:
			return nil, constructionErr(el.Tag, "requires an optional PropertyName and an envelope, has %d children", len(children))
		}

	case op.HasDistance():
		if len(children) != 3 {
			return nil, constructionErr(el.Tag, "requires PropertyName, geometry and Distance, has %d children", len(children))
		}
		p, err := b.propertyName(children[0])
		if err != nil {
			return nil, err
		}
		d, err := distance(children[2])
		if err != nil {
			return nil, err
		}
		s.Property, geomEl, s.Distance = p, children[1], d

	default:
		if len(children) != 2 {
			return nil, constructionErr(el.Tag, "requires PropertyName and geometry, has %d children", len(children))
		}
		p, err := b.propertyName(children[0])
		if err != nil {
			return nil, err
		}
		s.Property, geomEl = p, children[1]
	}

	g, err := geometry.ReadGML(geomEl)
	if err != nil {
		return nil, wrapConstruction(el.Tag, err, "geometry operand")
	}
	if op == OpBBox {
		bound, ok := envelopeOf(g)
		if !ok {
			return nil, constructionErr(el.Tag, "operand %s is not an envelope", geomEl.Tag)
		}
		g = bound
	}
	s.Geometry = g
	return s, nil
}

// envelopeOf accepts envelopes and polygons that are axis-aligned rectangles.
func envelopeOf(g orb.Geometry) (orb.Bound, bool) {
	switch g := g.(type) {
	case orb.Bound:
		return g, true
	case orb.Polygon:
		return geometry.BoundFromPolygon(g)
	}
	return orb.Bound{}, false
}

func distance(el *etree.Element) (*Distance, error) {
	if el.Tag != "Distance" {
		return nil, constructionErr(el.Tag, "expected Distance")
	}
	v, ok := parseNumber(textContent(el))
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, constructionErr("Distance", "invalid value %q", strings.TrimSpace(textContent(el)))
	}
	if v < 0 {
		return nil, constructionErr("Distance", "must not be negative, got %v", v)
	}
	return &Distance{Value: v, Units: el.SelectAttrValue("units", "")}, nil
}

func (b *builder) expression(el *etree.Element) (Expression, error) {
	switch el.Tag {
	case "PropertyName":
		return b.propertyName(el)

	case "Literal":
		return b.literal(el)

	case "Add", "Sub", "Mul", "Div":
		children := el.ChildElements()
		if len(children) != 2 {
			return nil, constructionErr(el.Tag, "requires exactly two expressions, has %d", len(children))
		}
		left, err := b.expression(children[0])
		if err != nil {
			return nil, err
		}
		right, err := b.expression(children[1])
		if err != nil {
			return nil, err
		}
		return &ArithmeticExpression{Op: ExpressionType(el.Tag), Left: left, Right: right}, nil

	case "Function":
		name := el.SelectAttrValue("name", "")
		if name == "" {
			return nil, constructionErr(el.Tag, "missing name attribute")
		}
		children := el.ChildElements()
		if len(children) == 0 {
			return nil, constructionErr(el.Tag, "%s requires at least one argument", name)
		}
		args := make([]Expression, 0, len(children))
		for _, c := range children {
			a, err := b.expression(c)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return b.functions.NewFunction(name, args...)

	default:
		return nil, constructionErr(el.Tag, "unknown expression")
	}
}

func (b *builder) propertyName(el *etree.Element) (*PropertyName, error) {
	if el.Tag != "PropertyName" {
		return nil, constructionErr(el.Tag, "expected PropertyName")
	}
	if len(el.ChildElements()) > 0 {
		return nil, constructionErr(el.Tag, "must contain text only")
	}
	p, err := record.ParsePath(textContent(el))
	if err != nil {
		return nil, wrapConstruction(el.Tag, err, "invalid path")
	}
	return &PropertyName{Path: p}, nil
}

func (b *builder) literal(el *etree.Element) (*Literal, error) {
	if el.Tag != "Literal" {
		return nil, constructionErr(el.Tag, "expected Literal")
	}
	if len(el.ChildElements()) > 0 {
		return nil, constructionErr(el.Tag, "element content is not supported")
	}
	return &Literal{Text: textContent(el)}, nil
}

// textContent joins the character data of el, skipping comments and
// processing instructions between the runs.
func textContent(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

func charAttr(el *etree.Element, name string) (rune, error) {
	a := el.SelectAttr(name)
	if a == nil {
		return 0, constructionErr(el.Tag, "missing %s attribute", name)
	}
	if utf8.RuneCountInString(a.Value) != 1 {
		return 0, constructionErr(el.Tag, "%s must be a single character, got %q", name, a.Value)
	}
	r, _ := utf8.DecodeRuneInString(a.Value)
	return r, nil
}

func matchCaseAttr(el *etree.Element) (bool, error) {
	a := el.SelectAttr("matchCase")
	if a == nil {
		return true, nil
	}
	switch strings.TrimSpace(a.Value) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, constructionErr(el.Tag, "invalid matchCase %q", a.Value)
	}
}

package filter

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
)

// DuckDBEncoder encodes filters to DuckDB SQL syntax.
//
// Columns are compared through TRY_CAST so that values which do not convert
// behave as non-matching instead of failing the query. Spatial operations
// use the functions of the DuckDB spatial extension.
type DuckDBEncoder struct {
	opts *EncoderOptions
}

// NewDuckDBEncoder creates a new DuckDB SQL encoder.
// If opts is nil, default options are used.
func NewDuckDBEncoder(opts *EncoderOptions) *DuckDBEncoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &DuckDBEncoder{opts: opts}
}

var _ Encoder = (*DuckDBEncoder)(nil)

// EncodeFilter converts f to a WHERE clause body.
// Returns the condition portion without "WHERE" keyword.
// Returns empty string if nothing can be encoded.
func (e *DuckDBEncoder) EncodeFilter(f Filter) (string, bool) {
	switch f := f.(type) {
	case *IDFilter:
		return e.encodeIDs(f)
	case *OperationFilter:
		return e.Encode(f.Root)
	default:
		return "", false
	}
}

func (e *DuckDBEncoder) encodeIDs(f *IDFilter) (string, bool) {
	if e.opts.IDColumn == "" || len(f.IDs) == 0 || !e.opts.TextColumns[e.opts.IDColumn] {
		return "", false
	}
	values := make([]string, len(f.IDs))
	for i, id := range f.IDs {
		values[i] = quoteLiteral(id)
	}
	return "CAST(" + QuoteIdentifier(e.opts.IDColumn) + " AS VARCHAR) IN (" + strings.Join(values, ", ") + ")", true
}

// Encode converts a single operation to SQL.
// Returns empty string if the operation is unsupported.
func (e *DuckDBEncoder) Encode(op Operation) (string, bool) {
	if op == nil {
		return "", false
	}

	switch o := op.(type) {
	case *LogicalOperation:
		return e.encodeLogical(o)
	case *BinaryComparison:
		return e.encodeComparison(o)
	case *LikeOperation:
		return e.encodeLike(o)
	case *BetweenOperation:
		return e.encodeBetween(o)
	case *NullOperation:
		col, ok := e.column(o.Property)
		if !ok {
			return "", false
		}
		return col + " IS NULL", true
	case *InstanceOfOperation:
		return e.encodeInstanceOf(o)
	case *SpatialOperation:
		return e.encodeSpatial(o)
	default:
		return "", false
	}
}

// encodeLogical encodes And, Or and Not.
//   - For And: skips unsupported children, keeps others
//   - For Or: if any child is unsupported, skips the entire Or
//   - For Not: requires an exactly encoded child
func (e *DuckDBEncoder) encodeLogical(l *LogicalOperation) (string, bool) {
	if l.Op == OpNot {
		if len(l.Children) != 1 {
			return "", false
		}
		child, exact := e.Encode(l.Children[0])
		if child == "" || !exact {
			return "", false
		}
		return "NOT COALESCE(" + child + ", FALSE)", true
	}

	exact := true
	var parts []string
	for _, c := range l.Children {
		encoded, ok := e.Encode(c)
		if encoded == "" {
			if l.Op == OpOr {
				return "", false
			}
			exact = false
			continue
		}
		exact = exact && ok
		parts = append(parts, encoded)
	}

	if len(parts) == 0 {
		return "", false
	}
	if len(parts) == 1 {
		return parts[0], exact
	}

	sep := " AND "
	if l.Op == OpOr {
		sep = " OR "
	}
	return "(" + strings.Join(parts, sep) + ")", exact
}

// encodeComparison handles a property compared with a literal, in either
// order. Numeric literals compare the column as DOUBLE, text literals as
// VARCHAR.
func (e *DuckDBEncoder) encodeComparison(c *BinaryComparison) (string, bool) {
	op := c.Op
	prop, lp := c.Left.(*PropertyName)
	lit, ll := c.Right.(*Literal)
	if !lp || !ll {
		prop, lp = c.Right.(*PropertyName)
		lit, ll = c.Left.(*Literal)
		if !lp || !ll {
			return "", false
		}
		op = flipComparison(op)
	}

	col, ok := e.column(prop)
	if !ok {
		return "", false
	}
	sqlOp, ok := comparisonOperators[op]
	if !ok {
		return "", false
	}

	if n, ok := sqlNumber(lit.Text); ok {
		num := "TRY_CAST(" + col + " AS DOUBLE)"
		if op == OpNotEqualTo {
			// Values that are not numbers differ from every number.
			return "COALESCE(" + num + " <> " + n + ", " + col + " IS NOT NULL)", true
		}
		return num + " " + sqlOp + " " + n, true
	}

	if op != OpEqualTo && op != OpNotEqualTo {
		// Ordering on text never matches.
		return "", false
	}
	if !e.textColumn(prop) {
		return "", false
	}
	text := "CAST(" + col + " AS VARCHAR)"
	value := quoteLiteral(lit.Text)
	if !c.MatchCase {
		text, value = "lower("+text+")", "lower("+value+")"
	}
	return text + " " + sqlOp + " " + value, true
}

var comparisonOperators = map[Operator]string{
	OpEqualTo:              "=",
	OpNotEqualTo:           "<>",
	OpLessThan:             "<",
	OpGreaterThan:          ">",
	OpLessThanOrEqualTo:    "<=",
	OpGreaterThanOrEqualTo: ">=",
}

func flipComparison(op Operator) Operator {
	switch op {
	case OpLessThan:
		return OpGreaterThan
	case OpGreaterThan:
		return OpLessThan
	case OpLessThanOrEqualTo:
		return OpGreaterThanOrEqualTo
	case OpGreaterThanOrEqualTo:
		return OpLessThanOrEqualTo
	default:
		return op
	}
}

// encodeLike translates the pattern to SQL wildcards with '\' as escape.
func (e *DuckDBEncoder) encodeLike(l *LikeOperation) (string, bool) {
	col, ok := e.column(l.Property)
	if !ok || l.Pattern == nil || !e.textColumn(l.Property) {
		return "", false
	}
	kw := " LIKE "
	if !l.MatchCase {
		kw = " ILIKE "
	}
	pattern := likePattern(l.Pattern.Text, l.WildCard, l.SingleChar, l.Escape)
	return "CAST(" + col + " AS VARCHAR)" + kw + quoteLiteral(pattern) + ` ESCAPE '\'`, true
}

func likePattern(pattern string, wild, single, esc rune) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == esc:
			if i+1 < len(runes) {
				i++
				writeLikeLiteral(&b, runes[i])
			}
		case c == wild:
			b.WriteByte('%')
		case c == single:
			b.WriteByte('_')
		default:
			writeLikeLiteral(&b, c)
		}
	}
	return b.String()
}

func writeLikeLiteral(b *strings.Builder, c rune) {
	if c == '%' || c == '_' || c == '\\' {
		b.WriteByte('\\')
	}
	b.WriteRune(c)
}

func (e *DuckDBEncoder) encodeBetween(b *BetweenOperation) (string, bool) {
	col, ok := e.column(b.Property)
	if !ok {
		return "", false
	}
	lo, lok := b.Lower.(*Literal)
	hi, hok := b.Upper.(*Literal)
	if !lok || !hok {
		return "", false
	}
	lower, lok := sqlNumber(lo.Text)
	upper, hok := sqlNumber(hi.Text)
	if !lok || !hok {
		return "", false
	}
	return "TRY_CAST(" + col + " AS DOUBLE) BETWEEN " + lower + " AND " + upper, true
}

var instanceGeometryTypes = map[string]string{
	InstancePoint:   "'POINT', 'MULTIPOINT'",
	InstanceCurve:   "'LINESTRING', 'MULTILINESTRING'",
	InstanceSurface: "'POLYGON', 'MULTIPOLYGON'",
}

func (e *DuckDBEncoder) encodeInstanceOf(o *InstanceOfOperation) (string, bool) {
	if !e.opts.Spatial {
		return "", false
	}
	types, ok := instanceGeometryTypes[o.TypeName]
	if !ok {
		return "", false
	}
	g, ok := e.geometryColumn(o.Property)
	if !ok {
		return "", false
	}
	return "CAST(ST_GeometryType(" + g + ") AS VARCHAR) IN (" + types + ")", false
}

var spatialFunctions = map[Operator]string{
	OpBBox:       "ST_Intersects",
	OpIntersects: "ST_Intersects",
	OpDisjoint:   "ST_Disjoint",
	OpEquals:     "ST_Equals",
	OpWithin:     "ST_Within",
	OpContains:   "ST_Contains",
	OpDWithin:    "ST_DWithin",
}

// encodeSpatial never reports an exact encoding: planar predicates
// evaluated in process and by the spatial extension may disagree on
// boundary cases.
func (e *DuckDBEncoder) encodeSpatial(s *SpatialOperation) (string, bool) {
	if !e.opts.Spatial || s.Geometry == nil {
		return "", false
	}
	fn, ok := spatialFunctions[s.Op]
	if !ok {
		return "", false
	}
	g, ok := e.geometryColumn(s.Property)
	if !ok {
		return "", false
	}

	var operand string
	if b, ok := s.Geometry.(orb.Bound); ok {
		operand = "ST_MakeEnvelope(" + strings.Join([]string{
			formatNumber(b.Min.X()), formatNumber(b.Min.Y()),
			formatNumber(b.Max.X()), formatNumber(b.Max.Y()),
		}, ", ") + ")"
	} else {
		operand = "ST_GeomFromText(" + quoteLiteral(geometry.WKT(s.Geometry)) + ")"
	}

	if s.Op == OpDWithin {
		if s.Distance == nil {
			return "", false
		}
		return fn + "(" + g + ", " + operand + ", " + formatNumber(s.Distance.Value) + ")", false
	}
	return fn + "(" + g + ", " + operand + ")", false
}

// column resolves a property to a column reference. Nested and attribute
// paths only encode through an explicit mapping.
func (e *DuckDBEncoder) column(p *PropertyName) (string, bool) {
	if p == nil || p.Path.IsZero() {
		return "", false
	}
	full := p.Path.String()
	local := p.Path.Local()

	// Check for expression mapping first (takes precedence)
	for _, key := range []string{full, local} {
		if expr, ok := e.opts.ColumnExpressions[key]; ok {
			return expr, true
		}
	}
	for _, key := range []string{full, local} {
		if mapped, ok := e.opts.ColumnMapping[key]; ok {
			return QuoteIdentifier(mapped), true
		}
	}

	if p.Path.Len() != 1 || p.Path.Last().Attribute {
		return "", false
	}
	return QuoteIdentifier(local), true
}

// textColumn reports whether p is declared as a text column, either by its
// property name or by the column it maps to.
func (e *DuckDBEncoder) textColumn(p *PropertyName) bool {
	for _, key := range []string{p.Path.String(), p.Path.Local()} {
		if e.opts.TextColumns[key] {
			return true
		}
		if mapped, ok := e.opts.ColumnMapping[key]; ok && e.opts.TextColumns[mapped] {
			return true
		}
	}
	return false
}

func (e *DuckDBEncoder) geometryColumn(p *PropertyName) (string, bool) {
	var col string
	if p == nil {
		if e.opts.GeometryColumn == "" {
			return "", false
		}
		col = QuoteIdentifier(e.opts.GeometryColumn)
	} else {
		c, ok := e.column(p)
		if !ok {
			return "", false
		}
		col = c
	}
	if e.opts.GeometryAsWKB {
		return "ST_GeomFromWKB(" + col + ")", true
	}
	return col, true
}

func sqlNumber(text string) (string, bool) {
	f, ok := parseNumber(text)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return formatNumber(f), true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

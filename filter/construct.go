package filter

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/record"
)

// ErrInvalidFilter is returned by Validate and the constructors for trees
// that violate arity or operand rules.
var ErrInvalidFilter = errors.New("filter: invalid")

// NewAnd combines at least two operations.
func NewAnd(children ...Operation) (*LogicalOperation, error) {
	return newLogical(OpAnd, children)
}

// NewOr combines at least two operations.
func NewOr(children ...Operation) (*LogicalOperation, error) {
	return newLogical(OpOr, children)
}

// NewNot negates one operation.
func NewNot(child Operation) (*LogicalOperation, error) {
	return newLogical(OpNot, []Operation{child})
}

func newLogical(op Operator, children []Operation) (*LogicalOperation, error) {
	l := &LogicalOperation{Op: op, Children: append([]Operation(nil), children...)}
	if err := validateOperation(l); err != nil {
		return nil, err
	}
	return l, nil
}

// NewOperationFilter wraps a validated operation tree.
func NewOperationFilter(root Operation) (*OperationFilter, error) {
	f := &OperationFilter{Root: root}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// NewIDFilter selects records by identifier.
func NewIDFilter(ids ...string) (*IDFilter, error) {
	f := &IDFilter{IDs: append([]string(nil), ids...)}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// NewProperty references a property by its textual path.
func NewProperty(path string) (*PropertyName, error) {
	p, err := record.ParsePath(path)
	if err != nil {
		return nil, err
	}
	return &PropertyName{Path: p}, nil
}

// NewComparison builds one of the binary comparison operators.
func NewComparison(op Operator, left, right Expression, matchCase bool) (*BinaryComparison, error) {
	c := &BinaryComparison{Op: op, Left: left, Right: right, MatchCase: matchCase}
	if err := validateOperation(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewBBox builds a bounding box test. A nil property tests the default
// geometry.
func NewBBox(property *PropertyName, bound orb.Bound) *SpatialOperation {
	return &SpatialOperation{Op: OpBBox, Property: property, Geometry: bound}
}

// NewSpatial builds a spatial operator without a distance.
func NewSpatial(op Operator, property *PropertyName, g orb.Geometry) (*SpatialOperation, error) {
	s := &SpatialOperation{Op: op, Property: property, Geometry: g}
	if err := validateOperation(s); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDWithin builds a distance test.
func NewDWithin(property *PropertyName, g orb.Geometry, distance float64, units string) (*SpatialOperation, error) {
	s := &SpatialOperation{
		Op:       OpDWithin,
		Property: property,
		Geometry: g,
		Distance: &Distance{Value: distance, Units: units},
	}
	if err := validateOperation(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that a hand built tree satisfies the same rules the
// builder enforces on documents.
func Validate(f Filter) error {
	switch f := f.(type) {
	case *IDFilter:
		if len(f.IDs) == 0 {
			return fmt.Errorf("%w: identifier filter without identifiers", ErrInvalidFilter)
		}
		for i, id := range f.IDs {
			if id == "" {
				return fmt.Errorf("%w: empty identifier at %d", ErrInvalidFilter, i)
			}
		}
		return nil
	case *OperationFilter:
		if f.Root == nil {
			return fmt.Errorf("%w: missing root operation", ErrInvalidFilter)
		}
		return validateOperation(f.Root)
	case nil:
		return fmt.Errorf("%w: nil filter", ErrInvalidFilter)
	default:
		return fmt.Errorf("%w: unknown filter %T", ErrInvalidFilter, f)
	}
}

func invalid(op Operator, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidFilter, op, fmt.Sprintf(format, args...))
}

func validateOperation(op Operation) error {
	switch o := op.(type) {
	case *LogicalOperation:
		switch o.Op {
		case OpNot:
			if len(o.Children) != 1 {
				return invalid(o.Op, "requires exactly one child, has %d", len(o.Children))
			}
		case OpAnd, OpOr:
			if len(o.Children) < 2 {
				return invalid(o.Op, "requires at least two children, has %d", len(o.Children))
			}
		default:
			return invalid(o.Op, "not a logical operator")
		}
		for _, c := range o.Children {
			if c == nil {
				return invalid(o.Op, "nil child")
			}
			if err := validateOperation(c); err != nil {
				return err
			}
		}

	case *BinaryComparison:
		if !o.Op.IsBinaryComparison() {
			return invalid(o.Op, "not a binary comparison")
		}
		if err := validateExpression(o.Left); err != nil {
			return err
		}
		return validateExpression(o.Right)

	case *LikeOperation:
		if o.Property == nil || o.Pattern == nil {
			return invalid(OpLike, "requires a property and a pattern")
		}
		if o.WildCard == 0 || o.SingleChar == 0 || o.Escape == 0 {
			return invalid(OpLike, "wildcard, single character and escape are required")
		}
		for _, r := range []rune{o.WildCard, o.SingleChar, o.Escape} {
			if !utf8.ValidRune(r) {
				return invalid(OpLike, "invalid character %U", r)
			}
		}

	case *BetweenOperation:
		if o.Property == nil {
			return invalid(OpBetween, "requires a property")
		}
		if err := validateExpression(o.Lower); err != nil {
			return err
		}
		return validateExpression(o.Upper)

	case *NullOperation:
		if o.Property == nil {
			return invalid(OpIsNull, "requires a property")
		}

	case *InstanceOfOperation:
		if o.Property == nil {
			return invalid(OpIsInstanceOf, "requires a property")
		}
		if _, ok := instanceCategories[o.TypeName]; !ok {
			return fmt.Errorf("%w: %w %q", ErrInvalidFilter, ErrUnsupportedTypeName, o.TypeName)
		}

	case *SpatialOperation:
		if o.Op.Family() != FamilySpatial {
			return invalid(o.Op, "not a spatial operator")
		}
		if o.Geometry == nil {
			return invalid(o.Op, "missing geometry operand")
		}
		if err := geometry.Validate(o.Geometry); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidFilter, o.Op, err)
		}
		if o.Property == nil && o.Op != OpBBox {
			return invalid(o.Op, "requires a property")
		}
		if o.Op == OpBBox {
			if _, ok := o.Geometry.(orb.Bound); !ok {
				return invalid(o.Op, "operand must be an envelope, got %s", o.Geometry.GeoJSONType())
			}
		}
		switch {
		case o.Op.HasDistance() && o.Distance == nil:
			return invalid(o.Op, "requires a distance")
		case !o.Op.HasDistance() && o.Distance != nil:
			return invalid(o.Op, "does not take a distance")
		case o.Distance != nil && (o.Distance.Value < 0 || math.IsNaN(o.Distance.Value)):
			return invalid(o.Op, "distance must be a non-negative number, got %v", o.Distance.Value)
		}

	case nil:
		return fmt.Errorf("%w: nil operation", ErrInvalidFilter)

	default:
		return fmt.Errorf("%w: unknown operation %T", ErrInvalidFilter, op)
	}
	return nil
}

func validateExpression(e Expression) error {
	switch x := e.(type) {
	case *Literal:
		if x == nil {
			return fmt.Errorf("%w: nil literal", ErrInvalidFilter)
		}
	case *PropertyName:
		if x == nil || x.Path.IsZero() {
			return fmt.Errorf("%w: empty property path", ErrInvalidFilter)
		}
	case *ArithmeticExpression:
		if !x.Op.IsArithmetic() {
			return fmt.Errorf("%w: %s is not arithmetic", ErrInvalidFilter, x.Op)
		}
		if err := validateExpression(x.Left); err != nil {
			return err
		}
		return validateExpression(x.Right)
	case *FunctionExpression:
		if x.Fn == nil {
			return fmt.Errorf("%w: function %q has no implementation", ErrInvalidFilter, x.Name)
		}
		for _, a := range x.Args {
			if err := validateExpression(a); err != nil {
				return err
			}
		}
	case nil:
		return fmt.Errorf("%w: nil expression", ErrInvalidFilter)
	default:
		return fmt.Errorf("%w: unknown expression %T", ErrInvalidFilter, e)
	}
	return nil
}

package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/internal/recovery"
	"github.com/hugr-lab/ogc-filter/record"
)

// Evaluator evaluates filters against records. It holds no per-evaluation
// state and is safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an evaluator. The logger receives panics recovered
// from function implementations; nil means slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

var defaultEvaluator = &Evaluator{}

// Evaluate reports whether rec satisfies f using the default evaluator.
func Evaluate(f Filter, rec record.Record) (bool, error) {
	return defaultEvaluator.Filter(f, rec)
}

// EvaluateOperation evaluates a single operation using the default evaluator.
func EvaluateOperation(op Operation, rec record.Record) (bool, error) {
	return defaultEvaluator.Operation(op, rec)
}

// EvaluateExpression evaluates a single expression using the default evaluator.
func EvaluateExpression(e Expression, rec record.Record) (Value, error) {
	return defaultEvaluator.Expression(e, rec)
}

func (ev *Evaluator) log() *slog.Logger {
	if ev.logger != nil {
		return ev.logger
	}
	return slog.Default()
}

// Filter reports whether rec satisfies f.
func (ev *Evaluator) Filter(f Filter, rec record.Record) (bool, error) {
	switch f := f.(type) {
	case *IDFilter:
		return f.Contains(rec.ID()), nil
	case *OperationFilter:
		return ev.Operation(f.Root, rec)
	case nil:
		return false, &EvaluationError{Op: "Filter", Err: errors.New("nil filter")}
	default:
		return false, &EvaluationError{Op: "Filter", Err: fmt.Errorf("unsupported filter %T", f)}
	}
}

// Operation evaluates op against rec.
func (ev *Evaluator) Operation(op Operation, rec record.Record) (bool, error) {
	switch o := op.(type) {
	case *LogicalOperation:
		return ev.logical(o, rec)
	case *BinaryComparison:
		return ev.binaryComparison(o, rec)
	case *LikeOperation:
		return ev.like(o, rec)
	case *BetweenOperation:
		return ev.between(o, rec)
	case *NullOperation:
		v, err := ev.Expression(o.Property, rec)
		if err != nil {
			return false, err
		}
		return v.IsNull(), nil
	case *InstanceOfOperation:
		return ev.instanceOf(o, rec)
	case *SpatialOperation:
		return ev.spatial(o, rec)
	case nil:
		return false, &EvaluationError{Op: "Operation", Err: errors.New("nil operation")}
	default:
		return false, &EvaluationError{Op: "Operation", Err: fmt.Errorf("unsupported operation %T", op)}
	}
}

// Expression evaluates e against rec.
func (ev *Evaluator) Expression(e Expression, rec record.Record) (Value, error) {
	switch x := e.(type) {
	case *Literal:
		return literalValue(x.Text), nil

	case *PropertyName:
		raw, err := rec.Property(x.Path)
		if err != nil {
			return Value{}, evalErr("PropertyName "+x.Path.String(), err)
		}
		v, err := ValueOf(raw)
		if err != nil {
			return Value{}, evalErr("PropertyName "+x.Path.String(), err)
		}
		return v, nil

	case *ArithmeticExpression:
		return ev.arithmetic(x, rec)

	case *FunctionExpression:
		if x.Fn == nil {
			return Value{}, &EvaluationError{Op: "Function " + x.Name, Err: errors.New("function is not bound")}
		}
		call := &CallContext{Name: x.Name, Args: x.Args, Record: rec, ev: ev}
		v, err := recovery.RecoverToValue(ev.log(), "function "+x.Name, func() (Value, error) {
			return x.Fn.Call(call)
		})
		if err != nil {
			return Value{}, evalErr("Function "+x.Name, err)
		}
		return v, nil

	case nil:
		return Value{}, &EvaluationError{Op: "Expression", Err: errors.New("nil expression")}
	default:
		return Value{}, &EvaluationError{Op: "Expression", Err: fmt.Errorf("unsupported expression %T", e)}
	}
}

// arithmetic propagates Null operands; any other non-numeric operand is an
// error. Division by zero yields IEEE infinities or NaN.
func (ev *Evaluator) arithmetic(a *ArithmeticExpression, rec record.Record) (Value, error) {
	l, err := ev.Expression(a.Left, rec)
	if err != nil {
		return Value{}, err
	}
	r, err := ev.Expression(a.Right, rec)
	if err != nil {
		return Value{}, err
	}
	if l.IsNull() || r.IsNull() {
		return Null(), nil
	}
	x, okx := l.ToNumber()
	y, oky := r.ToNumber()
	if !okx || !oky {
		return Value{}, evalErrf(string(a.Op), ErrTypeMismatch, "operands %s and %s are not numbers", l.Kind, r.Kind)
	}
	switch a.Op {
	case TypeAdd:
		return NumberValue(x + y), nil
	case TypeSub:
		return NumberValue(x - y), nil
	case TypeMul:
		return NumberValue(x * y), nil
	case TypeDiv:
		return NumberValue(x / y), nil
	default:
		return Value{}, &EvaluationError{Op: string(a.Op), Err: errors.New("unknown arithmetic operator")}
	}
}

func (ev *Evaluator) logical(l *LogicalOperation, rec record.Record) (bool, error) {
	switch l.Op {
	case OpAnd:
		for _, c := range l.Children {
			ok, err := ev.Operation(c, rec)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, c := range l.Children {
			ok, err := ev.Operation(c, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		if len(l.Children) != 1 {
			return false, &EvaluationError{Op: "Not", Err: fmt.Errorf("requires one child, has %d", len(l.Children))}
		}
		ok, err := ev.Operation(l.Children[0], rec)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, &EvaluationError{Op: string(l.Op), Err: errors.New("unknown logical operator")}
	}
}

func (ev *Evaluator) binaryComparison(c *BinaryComparison, rec record.Record) (bool, error) {
	l, err := ev.Expression(c.Left, rec)
	if err != nil {
		return false, err
	}
	r, err := ev.Expression(c.Right, rec)
	if err != nil {
		return false, err
	}
	return compareValues(c.Op, l, r, c.MatchCase)
}

// compareValues applies the comparison coercion rules. When one side is text
// and the other a number, the text is parsed as a number; if that fails both
// sides are compared as text, the number rendered through Value.String.
func compareValues(op Operator, a, b Value, matchCase bool) (bool, error) {
	if a.IsNull() || b.IsNull() {
		return false, nil
	}

	if a.Kind == KindGeometry || b.Kind == KindGeometry {
		ga, oka := a.Geometry()
		gb, okb := b.Geometry()
		if oka && okb && (op == OpEqualTo || op == OpNotEqualTo) {
			return geometry.Equals(ga, gb) == (op == OpEqualTo), nil
		}
		return false, evalErrf(string(op), ErrTypeMismatch, "cannot compare %s with %s", a.Kind, b.Kind)
	}
	if a.Kind == KindBoolean {
		a = TextValue(a.String())
	}
	if b.Kind == KindBoolean {
		b = TextValue(b.String())
	}

	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		x, _ := a.Number()
		y, _ := b.Number()
		return compareNumbers(op, x, y)
	case a.Kind == KindText && b.Kind == KindNumber:
		s, _ := a.Text()
		if x, ok := parseNumber(s); ok {
			y, _ := b.Number()
			return compareNumbers(op, x, y)
		}
		return compareText(op, s, b.String(), matchCase)
	case a.Kind == KindNumber && b.Kind == KindText:
		s, _ := b.Text()
		if y, ok := parseNumber(s); ok {
			x, _ := a.Number()
			return compareNumbers(op, x, y)
		}
		return compareText(op, a.String(), s, matchCase)
	default:
		return compareText(op, a.String(), b.String(), matchCase)
	}
}

func compareNumbers(op Operator, x, y float64) (bool, error) {
	switch op {
	case OpEqualTo:
		return x == y, nil
	case OpNotEqualTo:
		return x != y, nil
	case OpLessThan:
		return x < y, nil
	case OpGreaterThan:
		return x > y, nil
	case OpLessThanOrEqualTo:
		return x <= y, nil
	case OpGreaterThanOrEqualTo:
		return x >= y, nil
	default:
		return false, &EvaluationError{Op: string(op), Err: errors.New("not a comparison operator")}
	}
}

func compareText(op Operator, x, y string, matchCase bool) (bool, error) {
	eq := x == y
	if !matchCase {
		eq = strings.EqualFold(x, y)
	}
	switch op {
	case OpEqualTo:
		return eq, nil
	case OpNotEqualTo:
		return !eq, nil
	default:
		return false, evalErrf(string(op), ErrTypeMismatch, "ordering is not supported on strings (%q, %q)", x, y)
	}
}

func (ev *Evaluator) like(l *LikeOperation, rec record.Record) (bool, error) {
	v, err := ev.Expression(l.Property, rec)
	if err != nil {
		return false, err
	}
	patternNull := l.Pattern == nil
	switch {
	case v.IsNull() && patternNull:
		return true, nil
	case v.IsNull() || patternNull:
		return false, nil
	}
	if v.Kind == KindGeometry {
		return false, evalErrf(string(OpLike), ErrTypeMismatch, "cannot match a geometry")
	}

	if !l.MatchCase {
		return MatchLikeFold(l.Pattern.Text, v.String(), l.WildCard, l.SingleChar, l.Escape), nil
	}
	return MatchLike(l.Pattern.Text, v.String(), l.WildCard, l.SingleChar, l.Escape), nil
}

func (ev *Evaluator) between(b *BetweenOperation, rec record.Record) (bool, error) {
	var vals [3]float64
	for i, e := range []Expression{b.Lower, b.Property, b.Upper} {
		v, err := ev.Expression(e, rec)
		if err != nil {
			return false, err
		}
		if v.IsNull() {
			return false, nil
		}
		f, ok := v.ToNumber()
		if !ok {
			return false, evalErrf(string(OpBetween), ErrTypeMismatch, "%s value %q is not a number", v.Kind, v.String())
		}
		vals[i] = f
	}
	return vals[0] <= vals[1] && vals[1] <= vals[2], nil
}

var instanceCategories = map[string]geometry.Category{
	InstancePoint:   geometry.CategoryPoint,
	InstanceCurve:   geometry.CategoryCurve,
	InstanceSurface: geometry.CategorySurface,
}

func (ev *Evaluator) instanceOf(o *InstanceOfOperation, rec record.Record) (bool, error) {
	want, ok := instanceCategories[o.TypeName]
	if !ok {
		return false, evalErrf(string(OpIsInstanceOf), ErrUnsupportedTypeName, "%q", o.TypeName)
	}
	v, err := ev.Expression(o.Property, rec)
	if err != nil {
		return false, err
	}
	g, ok := v.Geometry()
	if !ok {
		return false, nil
	}
	return geometry.CategoryOf(g) == want, nil
}

func (ev *Evaluator) spatial(s *SpatialOperation, rec record.Record) (bool, error) {
	switch s.Op {
	case OpTouches, OpCrosses, OpOverlaps, OpBeyond:
		return false, evalErrf(string(s.Op), ErrNotImplemented, "spatial operator %s", s.Op)
	}

	target, err := ev.targetGeometry(s, rec)
	if err != nil || target == nil {
		return false, err
	}

	lit := s.Geometry
	switch s.Op {
	case OpEquals:
		return geometry.Equals(target, lit), nil
	case OpDisjoint:
		return !geometry.Intersects(target, lit), nil
	case OpWithin:
		return geometry.Contains(lit, target), nil
	case OpContains:
		return geometry.Contains(target, lit), nil
	case OpIntersects, OpBBox:
		return geometry.Intersects(target, lit), nil
	case OpDWithin:
		if s.Distance == nil {
			return false, &EvaluationError{Op: string(s.Op), Err: errors.New("missing distance")}
		}
		return geometry.WithinDistance(target, lit, s.Distance.Value), nil
	default:
		return false, &EvaluationError{Op: string(s.Op), Err: errors.New("unknown spatial operator")}
	}
}

// targetGeometry resolves the record side of a spatial operation. A nil
// geometry with a nil error means the value is absent.
func (ev *Evaluator) targetGeometry(s *SpatialOperation, rec record.Record) (orb.Geometry, error) {
	if s.Property == nil {
		g, ok, err := rec.DefaultGeometry()
		if !ok {
			return nil, evalErrf(string(s.Op), ErrNoDefaultGeometry, "record %s", rec.ID())
		}
		if err != nil {
			return nil, evalErrf(string(s.Op), ErrTypeMismatch, "record %s: %v", rec.ID(), err)
		}
		return g, nil
	}
	v, err := ev.Expression(s.Property, rec)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	g, ok := v.Geometry()
	if !ok {
		return nil, evalErrf(string(s.Op), ErrTypeMismatch, "property %s is %s, not a geometry", s.Property.Path, v.Kind)
	}
	return g, nil
}

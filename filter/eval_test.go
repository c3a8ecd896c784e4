package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/internal/recovery"
	"github.com/hugr-lab/ogc-filter/record"
)

var roadSchema = record.MustSchema("Road",
	record.PropertyDef{Name: "geometry", Geometry: true},
	record.PropertyDef{Name: "name"},
	record.PropertyDef{Name: "lanes"},
	record.PropertyDef{Name: "width"},
	record.PropertyDef{Name: "code"},
	record.PropertyDef{Name: "surface"},
	record.PropertyDef{Name: "paved"},
	record.PropertyDef{Name: "meta"},
)

func testRoad() *record.Feature {
	return record.NewFeature(roadSchema, "road.1", map[string]any{
		"geometry": orb.LineString{{0, 0}, {10, 0}},
		"name":     "Main Street",
		"lanes":    4,
		"width":    "5.0",
		"code":     "abc",
		"paved":    true,
		"meta":     map[string]any{"owner": "city"},
	})
}

// erroringOperation fails when evaluated and counts its evaluations.
func erroringOperation(calls *int) Operation {
	fn := &FunctionExpression{Name: "fail", Fn: FunctionFunc(func(*CallContext) (Value, error) {
		*calls++
		return Value{}, errors.New("evaluated")
	})}
	return cmpOp(OpEqualTo, fn, lit("1"))
}

func TestEvaluateExpression(t *testing.T) {
	rec := testRoad()
	tests := []struct {
		name string
		expr Expression
		want Value
	}{
		{"numeric literal", lit("42"), NumberValue(42)},
		{"text literal", lit("forty"), TextValue("forty")},
		{"number property", prop("lanes"), NumberValue(4)},
		{"text property", prop("name"), TextValue("Main Street")},
		{"absent property", prop("surface"), Null()},
		{"nested property", prop("meta/owner"), TextValue("city")},
		{"qualified by type", prop("Road/name"), TextValue("Main Street")},
		{"add", &ArithmeticExpression{Op: TypeAdd, Left: prop("lanes"), Right: lit("1")}, NumberValue(5)},
		{"sub", &ArithmeticExpression{Op: TypeSub, Left: lit("1"), Right: prop("lanes")}, NumberValue(-3)},
		{"mul numeric text", &ArithmeticExpression{Op: TypeMul, Left: prop("width"), Right: lit("2")}, NumberValue(10)},
		{"div", &ArithmeticExpression{Op: TypeDiv, Left: prop("lanes"), Right: lit("8")}, NumberValue(0.5)},
		{"null operand", &ArithmeticExpression{Op: TypeAdd, Left: prop("surface"), Right: lit("1")}, Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateExpression(tt.expr, rec)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got.Kind != tt.want.Kind || got.Data != tt.want.Data {
				t.Errorf("EvaluateExpression() = %v (%s), want %v (%s)", got.Data, got.Kind, tt.want.Data, tt.want.Kind)
			}
		})
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	v, err := EvaluateExpression(&ArithmeticExpression{Op: TypeDiv, Left: lit("1"), Right: lit("0")}, testRoad())
	if err != nil {
		t.Fatalf("division by zero must not fail: %v", err)
	}
	if f, _ := v.Number(); !math.IsInf(f, 1) {
		t.Errorf("1/0 = %v, want +Inf", f)
	}
}

func TestEvaluateExpressionErrors(t *testing.T) {
	rec := testRoad()
	tests := []struct {
		name string
		expr Expression
		is   error
	}{
		{"unknown property", prop("speed"), record.ErrUnknownProperty},
		{"non-numeric operand", &ArithmeticExpression{Op: TypeAdd, Left: prop("code"), Right: lit("1")}, ErrTypeMismatch},
		{"panicking function", &FunctionExpression{Name: "panic", Fn: FunctionFunc(func(*CallContext) (Value, error) {
			panic("boom")
		})}, recovery.ErrPanic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateExpression(tt.expr, rec)
			var ee *EvaluationError
			if !errors.As(err, &ee) {
				t.Fatalf("expected *EvaluationError, got %v", err)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("expected %v in chain, got %v", tt.is, err)
			}
		})
	}
}

func TestEvaluateComparison(t *testing.T) {
	rec := testRoad()
	tests := []struct {
		name string
		op   Operation
		want bool
	}{
		{"number equal", cmpOp(OpEqualTo, prop("lanes"), lit("4")), true},
		{"number less", cmpOp(OpLessThan, prop("lanes"), lit("10")), true},
		{"number greater or equal", cmpOp(OpGreaterThanOrEqualTo, prop("lanes"), lit("4.5")), false},
		{"numeric text coerced", cmpOp(OpEqualTo, prop("width"), lit("5")), true},
		{"numeric text ordering", cmpOp(OpGreaterThan, prop("width"), lit("4")), true},
		{"text fallback equal", cmpOp(OpEqualTo, prop("code"), lit("5")), false},
		{"text fallback not equal", cmpOp(OpNotEqualTo, prop("code"), lit("5")), true},
		{"text equal", cmpOp(OpEqualTo, prop("name"), lit("Main Street")), true},
		{"text case sensitive", cmpOp(OpEqualTo, prop("name"), lit("main street")), false},
		{"text case insensitive", &BinaryComparison{Op: OpEqualTo, Left: prop("name"), Right: lit("main street")}, true},
		{"boolean as text", cmpOp(OpEqualTo, prop("paved"), lit("true")), true},
		{"null is false", cmpOp(OpEqualTo, prop("surface"), lit("x")), false},
		{"null not equal is false", cmpOp(OpNotEqualTo, prop("surface"), lit("x")), false},
		{"literal on left", cmpOp(OpLessThan, lit("3"), prop("lanes")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateOperation(tt.op, rec)
			if err != nil {
				t.Fatalf("EvaluateOperation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateOperation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoercionFallback(t *testing.T) {
	// Text "abc" against number 5 compares "abc" with "5".
	eq, err := compareValues(OpEqualTo, TextValue("abc"), NumberValue(5), true)
	if err != nil || eq {
		t.Errorf("abc = 5: got %v, %v; want false, nil", eq, err)
	}
	eq, err = compareValues(OpEqualTo, TextValue("5"), literalValue("5"), true)
	if err != nil || !eq {
		t.Errorf("5 = 5: got %v, %v; want true, nil", eq, err)
	}
	eq, err = compareValues(OpEqualTo, TextValue("5.0"), NumberValue(5), true)
	if err != nil || !eq {
		t.Errorf("5.0 = 5: got %v, %v; want true, nil", eq, err)
	}
	// The fallback compares against the literal's own spelling.
	eq, err = compareValues(OpEqualTo, TextValue("5.0x"), literalValue("5.0"), true)
	if err != nil || eq {
		t.Errorf("5.0x = 5.0: got %v, %v; want false, nil", eq, err)
	}
	_, err = compareValues(OpLessThan, TextValue("abc"), NumberValue(5), true)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("abc < 5: expected ErrTypeMismatch, got %v", err)
	}
}

func TestEvaluateCaseSensitivity(t *testing.T) {
	foo := record.NewFeature(record.MustSchema("T", record.PropertyDef{Name: "v"}), "1", map[string]any{"v": "Foo"})
	for _, matchCase := range []bool{true, false} {
		op := &BinaryComparison{Op: OpEqualTo, Left: prop("v"), Right: lit("foo"), MatchCase: matchCase}
		got, err := EvaluateOperation(op, foo)
		if err != nil {
			t.Fatal(err)
		}
		if got == matchCase {
			t.Errorf("matchCase=%v: Foo = foo evaluated %v", matchCase, got)
		}
	}
}

func TestEvaluateTextOrdering(t *testing.T) {
	_, err := EvaluateOperation(cmpOp(OpLessThan, prop("name"), lit("Z")), testRoad())
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	var ee *EvaluationError
	if !errors.As(err, &ee) || ee.Op != string(OpLessThan) {
		t.Errorf("expected EvaluationError for %s, got %v", OpLessThan, err)
	}
}

func TestShortCircuit(t *testing.T) {
	rec := testRoad()
	isTrue := cmpOp(OpEqualTo, lit("1"), lit("1"))
	isFalse := cmpOp(OpEqualTo, lit("1"), lit("2"))

	t.Run("or stops at true", func(t *testing.T) {
		calls := 0
		or := &LogicalOperation{Op: OpOr, Children: []Operation{isTrue, erroringOperation(&calls)}}
		got, err := EvaluateOperation(or, rec)
		if err != nil || !got {
			t.Errorf("Or = %v, %v; want true, nil", got, err)
		}
		if calls != 0 {
			t.Errorf("second child evaluated %d times", calls)
		}
	})

	t.Run("and stops at false", func(t *testing.T) {
		calls := 0
		and := &LogicalOperation{Op: OpAnd, Children: []Operation{isFalse, erroringOperation(&calls)}}
		got, err := EvaluateOperation(and, rec)
		if err != nil || got {
			t.Errorf("And = %v, %v; want false, nil", got, err)
		}
		if calls != 0 {
			t.Errorf("second child evaluated %d times", calls)
		}
	})

	t.Run("error surfaces otherwise", func(t *testing.T) {
		calls := 0
		and := &LogicalOperation{Op: OpAnd, Children: []Operation{isTrue, erroringOperation(&calls)}}
		if _, err := EvaluateOperation(and, rec); err == nil {
			t.Error("expected error from second child")
		}
		if calls != 1 {
			t.Errorf("second child evaluated %d times, want 1", calls)
		}
	})

	t.Run("not", func(t *testing.T) {
		got, err := EvaluateOperation(&LogicalOperation{Op: OpNot, Children: []Operation{isFalse}}, rec)
		if err != nil || !got {
			t.Errorf("Not = %v, %v; want true, nil", got, err)
		}
	})
}

func TestEvaluateBetween(t *testing.T) {
	schema := record.MustSchema("T", record.PropertyDef{Name: "v"})
	between := &BetweenOperation{Property: prop("v"), Lower: lit("5"), Upper: lit("10")}

	tests := []struct {
		value any
		want  bool
	}{
		{5, true},
		{10, true},
		{7.5, true},
		{"6", true},
		{4.999999, false},
		{10.0000001, false},
		{nil, false},
	}

	for _, tt := range tests {
		rec := record.NewFeature(schema, "1", map[string]any{"v": tt.value})
		got, err := EvaluateOperation(between, rec)
		if err != nil {
			t.Fatalf("Between(%v) error = %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Between(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}

	rec := record.NewFeature(schema, "1", map[string]any{"v": 7})
	nullBound := &BetweenOperation{Property: prop("v"), Lower: lit("5"), Upper: &ArithmeticExpression{Op: TypeAdd, Left: lit("1"), Right: prop("v/missing")}}
	if got, err := EvaluateOperation(nullBound, rec); err != nil || got {
		t.Errorf("null boundary = %v, %v; want false, nil", got, err)
	}

	rec = record.NewFeature(schema, "1", map[string]any{"v": "high"})
	if _, err := EvaluateOperation(between, rec); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("non-numeric target: expected ErrTypeMismatch, got %v", err)
	}
}

func TestEvaluateLike(t *testing.T) {
	rec := testRoad()
	like := func(pattern string, matchCase bool, p string) *LikeOperation {
		return &LikeOperation{Property: prop(p), Pattern: lit(pattern), WildCard: '*', SingleChar: '?', Escape: '\\', MatchCase: matchCase}
	}
	tests := []struct {
		name string
		op   *LikeOperation
		want bool
	}{
		{"prefix", like("Main*", true, "name"), true},
		{"single", like("Main?Street", true, "name"), true},
		{"case sensitive", like("main*", true, "name"), false},
		{"case insensitive", like("main*", false, "name"), true},
		{"number as text", like("4", true, "lanes"), true},
		{"null subject", like("*", true, "surface"), false},
		{"letter wildcard ignoring case", &LikeOperation{Property: prop("name"), Pattern: lit("mainW"), WildCard: 'W', SingleChar: 'X', Escape: 'E', MatchCase: false}, true},
		{"letter single ignoring case", &LikeOperation{Property: prop("name"), Pattern: lit("mainXstreet"), WildCard: 'W', SingleChar: 'X', Escape: 'E', MatchCase: false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateOperation(tt.op, rec)
			if err != nil {
				t.Fatalf("EvaluateOperation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateOperation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateNullAndInstanceOf(t *testing.T) {
	rec := testRoad()
	tests := []struct {
		name string
		op   Operation
		want bool
	}{
		{"null", &NullOperation{Property: prop("surface")}, true},
		{"not null", &NullOperation{Property: prop("name")}, false},
		{"curve", &InstanceOfOperation{Property: prop("geometry"), TypeName: InstanceCurve}, true},
		{"not point", &InstanceOfOperation{Property: prop("geometry"), TypeName: InstancePoint}, false},
		{"not a geometry", &InstanceOfOperation{Property: prop("name"), TypeName: InstanceSurface}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateOperation(tt.op, rec)
			if err != nil {
				t.Fatalf("EvaluateOperation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateOperation() = %v, want %v", got, tt.want)
			}
		})
	}

	_, err := EvaluateOperation(&InstanceOfOperation{Property: prop("geometry"), TypeName: "gml:Solid"}, rec)
	if !errors.Is(err, ErrUnsupportedTypeName) {
		t.Errorf("expected ErrUnsupportedTypeName, got %v", err)
	}
}

func TestEvaluateSpatial(t *testing.T) {
	rec := testRoad()
	square := orb.Polygon{{{-1, -1}, {11, -1}, {11, 1}, {-1, 1}, {-1, -1}}}

	tests := []struct {
		name string
		op   *SpatialOperation
		want bool
	}{
		{"bbox default geometry", NewBBox(nil, orb.Bound{Min: orb.Point{2, -1}, Max: orb.Point{3, 1}}), true},
		{"bbox miss", NewBBox(prop("geometry"), orb.Bound{Min: orb.Point{2, 5}, Max: orb.Point{3, 6}}), false},
		{"intersects", &SpatialOperation{Op: OpIntersects, Property: prop("geometry"), Geometry: orb.Point{5, 0}}, true},
		{"disjoint", &SpatialOperation{Op: OpDisjoint, Property: prop("geometry"), Geometry: orb.Point{5, 5}}, true},
		{"within", &SpatialOperation{Op: OpWithin, Property: prop("geometry"), Geometry: square}, true},
		{"contains is reversed within", &SpatialOperation{Op: OpContains, Property: prop("geometry"), Geometry: square}, false},
		{"contains point", &SpatialOperation{Op: OpContains, Property: prop("geometry"), Geometry: orb.Point{5, 0}}, true},
		{"equals", &SpatialOperation{Op: OpEquals, Property: prop("geometry"), Geometry: orb.LineString{{0, 0}, {10, 0}}}, true},
		{"dwithin", &SpatialOperation{Op: OpDWithin, Property: prop("geometry"), Geometry: orb.Point{5, 3}, Distance: &Distance{Value: 3}}, true},
		{"dwithin too far", &SpatialOperation{Op: OpDWithin, Property: prop("geometry"), Geometry: orb.Point{5, 3}, Distance: &Distance{Value: 2.9}}, false},
		{"absent geometry", &SpatialOperation{Op: OpIntersects, Property: prop("surface"), Geometry: orb.Point{5, 0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateOperation(tt.op, rec)
			if err != nil {
				t.Fatalf("EvaluateOperation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateOperation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateSpatialErrors(t *testing.T) {
	rec := testRoad()
	for _, op := range []Operator{OpTouches, OpCrosses, OpOverlaps} {
		_, err := EvaluateOperation(&SpatialOperation{Op: op, Property: prop("geometry"), Geometry: orb.Point{0, 0}}, rec)
		if !errors.Is(err, ErrNotImplemented) {
			t.Errorf("%s: expected ErrNotImplemented, got %v", op, err)
		}
	}
	_, err := EvaluateOperation(&SpatialOperation{Op: OpBeyond, Property: prop("geometry"), Geometry: orb.Point{0, 0}, Distance: &Distance{Value: 1}}, rec)
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Beyond: expected ErrNotImplemented, got %v", err)
	}

	plain := record.NewFeature(record.MustSchema("Plain", record.PropertyDef{Name: "name"}), "p.1", nil)
	_, err = EvaluateOperation(NewBBox(nil, orb.Bound{Max: orb.Point{1, 1}}), plain)
	if !errors.Is(err, ErrNoDefaultGeometry) {
		t.Errorf("expected ErrNoDefaultGeometry, got %v", err)
	}

	_, err = EvaluateOperation(&SpatialOperation{Op: OpIntersects, Property: prop("name"), Geometry: orb.Point{0, 0}}, rec)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestEvaluateSpatialWKB(t *testing.T) {
	schema := record.MustSchema("Site", record.PropertyDef{Name: "geom", Geometry: true})
	wkb, err := geometry.EncodeWKB(orb.Point{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	rec := record.NewFeature(schema, "site.1", map[string]any{"geom": wkb})
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}

	for _, op := range []*SpatialOperation{NewBBox(prop("geom"), bound), NewBBox(nil, bound)} {
		got, err := EvaluateOperation(op, rec)
		if err != nil || !got {
			t.Errorf("BBOX(property %v) = %v, %v; want true, nil", op.Property != nil, got, err)
		}
	}

	broken := record.NewFeature(schema, "site.2", map[string]any{"geom": []byte{0x01, 0x02}})
	_, err = EvaluateOperation(NewBBox(nil, bound), broken)
	var ee *EvaluationError
	if !errors.As(err, &ee) || !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("undecodable default geometry: expected EvaluationError, got %v", err)
	}
}

func TestEvaluateIDFilter(t *testing.T) {
	f := &IDFilter{IDs: []string{"road.2", "road.1"}}
	got, err := Evaluate(f, testRoad())
	if err != nil || !got {
		t.Errorf("Evaluate() = %v, %v; want true, nil", got, err)
	}
	got, _ = Evaluate(&IDFilter{IDs: []string{"road.3"}}, testRoad())
	if got {
		t.Error("Evaluate() matched an absent id")
	}
}

func TestFunctionCallContext(t *testing.T) {
	sum := FunctionFunc(func(c *CallContext) (Value, error) {
		vals, err := c.Values()
		if err != nil {
			return Value{}, err
		}
		total := 0.0
		for _, v := range vals {
			f, _ := v.ToNumber()
			total += f
		}
		return NumberValue(total), nil
	})
	reg := NewRegistry(map[string]Factory{
		"sum": func([]Expression) (Function, error) { return sum, nil },
	})
	fn, err := reg.NewFunction("sum", prop("lanes"), lit("2"), prop("width"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := EvaluateExpression(fn, testRoad())
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := v.Number(); f != 11 {
		t.Errorf("sum = %v, want 11", f)
	}

	if _, err := reg.NewFunction("missing"); err == nil {
		t.Error("expected error for unknown function")
	}
}

package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestConstructors(t *testing.T) {
	a := &NullOperation{Property: prop("a")}
	b := &NullOperation{Property: prop("b")}

	if _, err := NewAnd(a); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewAnd with one child: expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewOr(a, b); err != nil {
		t.Errorf("NewOr() error = %v", err)
	}
	if _, err := NewNot(nil); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewNot(nil): expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewComparison(OpLike, prop("a"), lit("1"), true); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewComparison(Like): expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewDWithin(prop("g"), orb.Point{}, -1, ""); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewDWithin(-1): expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewDWithin(prop("g"), orb.Point{}, math.NaN(), ""); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewDWithin(NaN): expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewSpatial(OpIntersects, nil, orb.Point{}); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewSpatial without property: expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewIDFilter(); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("NewIDFilter(): expected ErrInvalidFilter, got %v", err)
	}
	if _, err := NewProperty("a//b"); err == nil {
		t.Error("NewProperty: expected error for empty step")
	}

	d, err := NewDWithin(prop("g"), orb.Point{1, 1}, 2, "m")
	if err != nil {
		t.Fatal(err)
	}
	and, err := NewAnd(a, d)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewOperationFilter(and); err != nil {
		t.Errorf("NewOperationFilter() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		f       Filter
		wantErr bool
	}{
		{"nil", nil, true},
		{"ids", &IDFilter{IDs: []string{"a"}}, false},
		{"empty id", &IDFilter{IDs: []string{""}}, true},
		{"missing root", &OperationFilter{}, true},
		{"bbox default geometry", &OperationFilter{Root: NewBBox(nil, orb.Bound{})}, false},
		{"bbox needs envelope", &OperationFilter{Root: &SpatialOperation{Op: OpBBox, Geometry: orb.Point{}}}, true},
		{"distance on intersects", &OperationFilter{Root: &SpatialOperation{Op: OpIntersects, Property: prop("g"), Geometry: orb.Point{}, Distance: &Distance{Value: 1}}}, true},
		{"degenerate line", &OperationFilter{Root: &SpatialOperation{Op: OpIntersects, Property: prop("g"), Geometry: orb.LineString{{0, 0}}}}, true},
		{"beyond without distance", &OperationFilter{Root: &SpatialOperation{Op: OpBeyond, Property: prop("g"), Geometry: orb.Point{}}}, true},
		{"like missing escape", &OperationFilter{Root: &LikeOperation{Property: prop("a"), Pattern: lit("x"), WildCard: '*', SingleChar: '?'}}, true},
		{"between", &OperationFilter{Root: &BetweenOperation{Property: prop("a"), Lower: lit("1"), Upper: lit("2")}}, false},
		{"between missing bound", &OperationFilter{Root: &BetweenOperation{Property: prop("a"), Lower: lit("1")}}, true},
		{"unsupported type name", &OperationFilter{Root: &InstanceOfOperation{Property: prop("g"), TypeName: "gml:Solid"}}, true},
		{"unbound function", &OperationFilter{Root: cmpOp(OpEqualTo, &FunctionExpression{Name: "f"}, lit("1"))}, true},
		{"bad arithmetic", &OperationFilter{Root: cmpOp(OpEqualTo, &ArithmeticExpression{Op: TypeLiteral, Left: lit("1"), Right: lit("2")}, lit("1"))}, true},
		{"nested not arity", &OperationFilter{Root: &LogicalOperation{Op: OpAnd, Children: []Operation{
			&NullOperation{Property: prop("a")},
			&LogicalOperation{Op: OpNot},
		}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.f)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidFilter", err)
			}
		})
	}
}

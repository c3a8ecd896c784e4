package filter

import (
	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/record"
)

// ExpressionType identifies the kind of an expression node.
type ExpressionType string

const (
	TypeLiteral      ExpressionType = "Literal"
	TypePropertyName ExpressionType = "PropertyName"
	TypeFunction     ExpressionType = "Function"

	// Arithmetic operators
	TypeAdd ExpressionType = "Add"
	TypeSub ExpressionType = "Sub"
	TypeMul ExpressionType = "Mul"
	TypeDiv ExpressionType = "Div"
)

// IsArithmetic reports whether t is one of Add, Sub, Mul or Div.
func (t ExpressionType) IsArithmetic() bool {
	switch t {
	case TypeAdd, TypeSub, TypeMul, TypeDiv:
		return true
	}
	return false
}

// Expression is the interface implemented by all scalar and geometry
// expressions. Use type switches to access specific expression data.
type Expression interface {
	// Type returns the expression kind (e.g., Literal, Add).
	Type() ExpressionType

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// Literal is a constant carried as text. Evaluation attempts numeric
// coercion first.
type Literal struct {
	Text string
}

func (*Literal) Type() ExpressionType { return TypeLiteral }
func (*Literal) expressionMarker()    {}

// PropertyName references a record property by path.
type PropertyName struct {
	Path record.Path
}

func (*PropertyName) Type() ExpressionType { return TypePropertyName }
func (*PropertyName) expressionMarker()    {}

// ArithmeticExpression combines two numeric operands.
type ArithmeticExpression struct {
	Op    ExpressionType
	Left  Expression
	Right Expression
}

func (a *ArithmeticExpression) Type() ExpressionType { return a.Op }
func (*ArithmeticExpression) expressionMarker()      {}

// FunctionExpression is a call to a registered function. Fn is the
// implementation bound at construction time.
type FunctionExpression struct {
	Name string
	Args []Expression
	Fn   Function
}

func (*FunctionExpression) Type() ExpressionType { return TypeFunction }
func (*FunctionExpression) expressionMarker()    {}

// Operation is the interface implemented by spatial, comparison and logical
// operations. Every operation evaluates to a boolean.
type Operation interface {
	// Operator returns the operator (e.g., PropertyIsEqualTo, And).
	Operator() Operator

	// operationMarker is a marker method to prevent external implementation.
	operationMarker()
}

// Distance is the buffer distance of DWithin and Beyond.
type Distance struct {
	Value float64
	Units string
}

// SpatialOperation tests a record geometry against a literal geometry.
// Property is nil only for BBOX against the record's default geometry.
// Distance is set only for DWithin and Beyond.
type SpatialOperation struct {
	Op       Operator
	Property *PropertyName
	Geometry orb.Geometry
	Distance *Distance
}

func (s *SpatialOperation) Operator() Operator { return s.Op }
func (*SpatialOperation) operationMarker()     {}

// BinaryComparison is one of the equality or ordering comparisons.
type BinaryComparison struct {
	Op        Operator
	Left      Expression
	Right     Expression
	MatchCase bool
}

func (c *BinaryComparison) Operator() Operator { return c.Op }
func (*BinaryComparison) operationMarker()     {}

// LikeOperation matches a property against a wildcard pattern.
type LikeOperation struct {
	Property   *PropertyName
	Pattern    *Literal
	WildCard   rune
	SingleChar rune
	Escape     rune
	MatchCase  bool
}

func (*LikeOperation) Operator() Operator { return OpLike }
func (*LikeOperation) operationMarker()   {}

// BetweenOperation tests lower <= property <= upper numerically.
type BetweenOperation struct {
	Property *PropertyName
	Lower    Expression
	Upper    Expression
}

func (*BetweenOperation) Operator() Operator { return OpBetween }
func (*BetweenOperation) operationMarker()   {}

// NullOperation tests whether a property has no value.
type NullOperation struct {
	Property *PropertyName
}

func (*NullOperation) Operator() Operator { return OpIsNull }
func (*NullOperation) operationMarker()   {}

// InstanceOfOperation tests the geometry family of a property value.
type InstanceOfOperation struct {
	Property *PropertyName
	TypeName string
}

func (*InstanceOfOperation) Operator() Operator { return OpIsInstanceOf }
func (*InstanceOfOperation) operationMarker()   {}

// LogicalOperation combines child operations. And and Or carry two or more
// children, Not exactly one.
type LogicalOperation struct {
	Op       Operator
	Children []Operation
}

func (l *LogicalOperation) Operator() Operator { return l.Op }
func (*LogicalOperation) operationMarker()     {}

// Filter is the root of a parsed filter document: either an IDFilter or an
// OperationFilter.
type Filter interface {
	filterMarker()
}

// IDFilter accepts records whose identifier is in IDs.
type IDFilter struct {
	IDs []string
}

func (*IDFilter) filterMarker() {}

// Contains reports whether id is accepted.
func (f *IDFilter) Contains(id string) bool {
	for _, v := range f.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// OperationFilter wraps exactly one root operation.
type OperationFilter struct {
	Root Operation
}

func (*OperationFilter) filterMarker() {}

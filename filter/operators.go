package filter

// Family classifies operators.
type Family string

const (
	FamilySpatial    Family = "spatial"
	FamilyComparison Family = "comparison"
	FamilyLogical    Family = "logical"
)

// Operator is the element name of an operation.
type Operator string

const (
	// Spatial operators
	OpBBox       Operator = "BBOX"
	OpEquals     Operator = "Equals"
	OpDisjoint   Operator = "Disjoint"
	OpTouches    Operator = "Touches"
	OpWithin     Operator = "Within"
	OpOverlaps   Operator = "Overlaps"
	OpCrosses    Operator = "Crosses"
	OpIntersects Operator = "Intersects"
	OpContains   Operator = "Contains"
	OpDWithin    Operator = "DWithin"
	OpBeyond     Operator = "Beyond"

	// Comparison operators
	OpEqualTo              Operator = "PropertyIsEqualTo"
	OpNotEqualTo           Operator = "PropertyIsNotEqualTo"
	OpLessThan             Operator = "PropertyIsLessThan"
	OpGreaterThan          Operator = "PropertyIsGreaterThan"
	OpLessThanOrEqualTo    Operator = "PropertyIsLessThanOrEqualTo"
	OpGreaterThanOrEqualTo Operator = "PropertyIsGreaterThanOrEqualTo"
	OpLike                 Operator = "PropertyIsLike"
	OpBetween              Operator = "PropertyIsBetween"
	OpIsNull               Operator = "PropertyIsNull"
	OpIsInstanceOf         Operator = "PropertyIsInstanceOf"

	// Logical operators
	OpAnd Operator = "And"
	OpOr  Operator = "Or"
	OpNot Operator = "Not"
)

type operatorInfo struct {
	family Family
	code   int
}

// operatorTable maps each operator name to its family and numeric code.
var operatorTable = map[Operator]operatorInfo{
	OpBBox:       {FamilySpatial, 0},
	OpEquals:     {FamilySpatial, 1},
	OpDisjoint:   {FamilySpatial, 2},
	OpTouches:    {FamilySpatial, 3},
	OpWithin:     {FamilySpatial, 4},
	OpOverlaps:   {FamilySpatial, 5},
	OpCrosses:    {FamilySpatial, 6},
	OpIntersects: {FamilySpatial, 7},
	OpContains:   {FamilySpatial, 8},
	OpDWithin:    {FamilySpatial, 9},
	OpBeyond:     {FamilySpatial, 10},

	OpEqualTo:              {FamilyComparison, 100},
	OpLessThan:             {FamilyComparison, 101},
	OpGreaterThan:          {FamilyComparison, 102},
	OpLessThanOrEqualTo:    {FamilyComparison, 103},
	OpGreaterThanOrEqualTo: {FamilyComparison, 104},
	OpLike:                 {FamilyComparison, 105},
	OpIsNull:               {FamilyComparison, 106},
	OpBetween:              {FamilyComparison, 107},
	OpNotEqualTo:           {FamilyComparison, 108},
	OpIsInstanceOf:         {FamilyComparison, 150},

	OpAnd: {FamilyLogical, 200},
	OpOr:  {FamilyLogical, 201},
	OpNot: {FamilyLogical, 202},
}

// LookupOperator resolves an element local name.
func LookupOperator(name string) (Operator, bool) {
	op := Operator(name)
	_, ok := operatorTable[op]
	return op, ok
}

// Family returns the operator family, or "" for unknown operators.
func (o Operator) Family() Family {
	return operatorTable[o].family
}

// Code returns the numeric operator code, or -1 for unknown operators.
func (o Operator) Code() int {
	info, ok := operatorTable[o]
	if !ok {
		return -1
	}
	return info.code
}

// IsBinaryComparison reports whether o is an equality or ordering operator.
func (o Operator) IsBinaryComparison() bool {
	switch o {
	case OpEqualTo, OpNotEqualTo, OpLessThan, OpGreaterThan, OpLessThanOrEqualTo, OpGreaterThanOrEqualTo:
		return true
	}
	return false
}

// HasDistance reports whether o takes a Distance operand.
func (o Operator) HasDistance() bool {
	return o == OpDWithin || o == OpBeyond
}

// Supported geometry type names of PropertyIsInstanceOf.
const (
	InstancePoint   = "gml:Point"
	InstanceCurve   = "gml:_Curve"
	InstanceSurface = "gml:_Surface"
)

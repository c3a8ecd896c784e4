package filter

import (
	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/record"
)

// Spatial extraction descends only through And. Spatial operations below Or
// or Not are never reported.

// FirstBoundingBox returns the first BBox operation reachable from the root
// through And operations, in depth-first order.
func FirstBoundingBox(f Filter) (*SpatialOperation, bool) {
	of, ok := f.(*OperationFilter)
	if !ok {
		return nil, false
	}
	return firstBBox(of.Root)
}

func firstBBox(op Operation) (*SpatialOperation, bool) {
	switch o := op.(type) {
	case *SpatialOperation:
		if o.Op == OpBBox {
			return o, true
		}
	case *LogicalOperation:
		if o.Op != OpAnd {
			return nil, false
		}
		for _, c := range o.Children {
			if s, ok := firstBBox(c); ok {
				return s, true
			}
		}
	}
	return nil, false
}

// BoundingBox returns the envelope of the first And-reachable BBox.
func BoundingBox(f Filter) (orb.Bound, bool) {
	s, ok := FirstBoundingBox(f)
	if !ok {
		return orb.Bound{}, false
	}
	b, ok := s.Geometry.(orb.Bound)
	if !ok {
		return s.Geometry.Bound(), true
	}
	return b, true
}

// ExtractBoundingBox splits f into its first And-reachable BBox and the
// residual filter that must still be evaluated. An And left with a single
// child collapses into that child. The residual is nil when f consisted of
// the BBox alone. f itself is not modified.
func ExtractBoundingBox(f Filter) (*SpatialOperation, Filter) {
	s, ok := FirstBoundingBox(f)
	if !ok {
		return nil, f
	}
	rest := withoutOperation(f.(*OperationFilter).Root, s)
	if rest == nil {
		return s, nil
	}
	return s, &OperationFilter{Root: rest}
}

func withoutOperation(op, target Operation) Operation {
	if op == target {
		return nil
	}
	l, ok := op.(*LogicalOperation)
	if !ok || l.Op != OpAnd {
		return op
	}
	for i, c := range l.Children {
		r := withoutOperation(c, target)
		if r == c {
			continue
		}
		children := make([]Operation, 0, len(l.Children))
		children = append(children, l.Children[:i]...)
		if r != nil {
			children = append(children, r)
		}
		children = append(children, l.Children[i+1:]...)
		return collapseAnd(children)
	}
	return op
}

func collapseAnd(children []Operation) Operation {
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return &LogicalOperation{Op: OpAnd, Children: children}
	}
}

// SpatialOperations returns every spatial operation reachable from the root
// through And operations. The result says nothing about how they combine
// when f also contains Or or Not.
func SpatialOperations(f Filter) []*SpatialOperation {
	of, ok := f.(*OperationFilter)
	if !ok {
		return nil
	}
	return spatialOps(of.Root, nil)
}

func spatialOps(op Operation, acc []*SpatialOperation) []*SpatialOperation {
	switch o := op.(type) {
	case *SpatialOperation:
		return append(acc, o)
	case *LogicalOperation:
		if o.Op != OpAnd {
			return acc
		}
		for _, c := range o.Children {
			acc = spatialOps(c, acc)
		}
	}
	return acc
}

// PropertyNames returns every property reference in f in document order,
// including duplicates and references below Or and Not.
func PropertyNames(f Filter) []*PropertyName {
	of, ok := f.(*OperationFilter)
	if !ok {
		return nil
	}
	return OperationPropertyNames(of.Root)
}

// OperationPropertyNames returns every property reference below op.
func OperationPropertyNames(op Operation) []*PropertyName {
	return operationProps(op, nil)
}

// ExpressionPropertyNames returns every property reference below e.
func ExpressionPropertyNames(e Expression) []*PropertyName {
	return expressionProps(e, nil)
}

func operationProps(op Operation, acc []*PropertyName) []*PropertyName {
	switch o := op.(type) {
	case *LogicalOperation:
		for _, c := range o.Children {
			acc = operationProps(c, acc)
		}
	case *BinaryComparison:
		acc = expressionProps(o.Left, acc)
		acc = expressionProps(o.Right, acc)
	case *LikeOperation:
		acc = appendProp(acc, o.Property)
	case *BetweenOperation:
		acc = appendProp(acc, o.Property)
		acc = expressionProps(o.Lower, acc)
		acc = expressionProps(o.Upper, acc)
	case *NullOperation:
		acc = appendProp(acc, o.Property)
	case *InstanceOfOperation:
		acc = appendProp(acc, o.Property)
	case *SpatialOperation:
		acc = appendProp(acc, o.Property)
	}
	return acc
}

func expressionProps(e Expression, acc []*PropertyName) []*PropertyName {
	switch x := e.(type) {
	case *PropertyName:
		acc = appendProp(acc, x)
	case *ArithmeticExpression:
		acc = expressionProps(x.Left, acc)
		acc = expressionProps(x.Right, acc)
	case *FunctionExpression:
		for _, a := range x.Args {
			acc = expressionProps(a, acc)
		}
	}
	return acc
}

func appendProp(acc []*PropertyName, p *PropertyName) []*PropertyName {
	if p == nil {
		return acc
	}
	return append(acc, p)
}

// UniquePaths returns the distinct paths of props in first-seen order.
func UniquePaths(props []*PropertyName) []record.Path {
	seen := make(map[string]struct{}, len(props))
	var out []record.Path
	for _, p := range props {
		key := p.Path.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p.Path)
	}
	return out
}

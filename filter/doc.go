// Package filter implements OGC Filter Encoding documents as typed trees.
//
// A Filter is either an IDFilter selecting records by identifier or an
// OperationFilter holding one root Operation. Operations come in three
// families (spatial, comparison and logical) and reference Expressions:
// literals, property names, arithmetic and registered functions.
//
// # Basic Usage
//
// Build a filter from a document and evaluate it against records:
//
//	f, err := filter.Parse(doc, filter.BuildOptions{Version: filter.Version110})
//	if err != nil {
//	    return err // *filter.ConstructionError
//	}
//
//	ok, err := filter.Evaluate(f, rec)
//	if err != nil {
//	    return err // *filter.EvaluationError
//	}
//
// Building never partially succeeds. Evaluation errors are returned to the
// caller, which decides whether they mean "no match".
//
// # Evaluation Rules
//
//   - A Null operand makes comparisons false; Like is true only when both
//     sides are Null; Between is false when any of its three values is Null.
//   - Text compared with a number is parsed as a number; when that fails
//     both sides are compared as text.
//   - Ordering operators reject text operands.
//   - And and Or stop at the first child that decides the result.
//   - Touches, Crosses, Overlaps and Beyond fail with ErrNotImplemented.
//
// # Serialization
//
// ToText writes a filter in either dialect. The two versions differ only
// in a few names, carried by a Dialect value:
//
//	text, err := filter.ToText(f, filter.Version100)
//
// Reading accepts GML 2 and GML 3 geometries and both identifier forms in
// either version.
//
// # Push-down
//
// FirstBoundingBox, SpatialOperations and ExtractBoundingBox descend only
// through And, so a BBox below Or or Not is never reported. PropertyNames
// reports every referenced property.
//
// DuckDBEncoder converts the encodable part of a filter to a WHERE clause:
//   - For And: skips unsupported children, keeps others
//   - For Or: if any child is unsupported, skips the entire Or
//   - For Not: requires an exactly encoded child
//
// The clause is never narrower than the filter. When the encoder reports
// an inexact encoding the filter must still be evaluated on the result.
// Text comparisons are encoded only for columns listed in TextColumns,
// since DuckDB renders numbers and timestamps differently as text.
//
//	enc := filter.NewDuckDBEncoder(&filter.EncoderOptions{
//	    ColumnMapping:  map[string]string{"app:name": "name"},
//	    TextColumns:    map[string]bool{"name": true},
//	    Spatial:        true,
//	    GeometryColumn: "geom",
//	})
//	where, exact := enc.EncodeFilter(f)
package filter

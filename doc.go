// Package ogcfilter evaluates OGC Filter Encoding documents against records.
//
// The Engine ties together the pieces of this module:
//   - filter: the expression and operation model, the document builder,
//     the evaluator, both document dialects and SQL push-down
//   - record: the Record interface with in-memory, GeoJSON, STAC,
//     MessagePack and Arrow adapters
//   - function: the registry of functions callable from filters
//   - duckstore: a DuckDB record source that pushes filters into SQL
//
// # Quick Start
//
//	engine, err := ogcfilter.New(ogcfilter.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := engine.Parse([]byte(`
//	    <ogc:Filter xmlns:ogc="http://www.opengis.net/ogc">
//	        <ogc:PropertyIsGreaterThan>
//	            <ogc:PropertyName>lanes</ogc:PropertyName>
//	            <ogc:Literal>2</ogc:Literal>
//	        </ogc:PropertyIsGreaterThan>
//	    </ogc:Filter>`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	records, _ := record.ReadFeatureCollection("road", geojsonData)
//	matched, err := engine.Select(ctx, f, records)
//
// # Error Policy
//
// A malformed document fails Parse with a *filter.ConstructionError. A
// record that cannot be evaluated (an unknown property, a type mismatch, an
// operator that is not implemented) yields a *filter.EvaluationError. Match
// returns it to the caller. Select and FilterArrow exclude the record and
// log the failure, or abort when Config.Strict is set.
//
// # Concurrency
//
// Engine, filters and registries are immutable after construction and may
// be shared between goroutines. Config.Workers bounds the parallelism of
// Select and FilterArrow; results always keep input order.
package ogcfilter

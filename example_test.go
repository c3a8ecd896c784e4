package ogcfilter_test

import (
	"context"
	"fmt"
	"log"

	ogcfilter "github.com/hugr-lab/ogc-filter"
	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/record"
)

const roads = `{"type": "FeatureCollection", "features": [
	{"type": "Feature", "id": "main", "geometry": {"type": "LineString", "coordinates": [[0, 0], [10, 0]]},
	 "properties": {"name": "Main Street", "lanes": 4}},
	{"type": "Feature", "id": "side", "geometry": {"type": "LineString", "coordinates": [[0, 5], [0, 15]]},
	 "properties": {"name": "Side Street", "lanes": 2}},
	{"type": "Feature", "id": "harbor", "geometry": {"type": "LineString", "coordinates": [[40, 40], [50, 50]]},
	 "properties": {"name": "Harbor Road", "lanes": 6}}
]}`

const wideStreets = `
<ogc:Filter xmlns:ogc="http://www.opengis.net/ogc" xmlns:gml="http://www.opengis.net/gml">
	<ogc:And>
		<ogc:PropertyIsLike wildCard="*" singleChar="?" escapeChar="\">
			<ogc:PropertyName>name</ogc:PropertyName>
			<ogc:Literal>* Street</ogc:Literal>
		</ogc:PropertyIsLike>
		<ogc:PropertyIsGreaterThan>
			<ogc:PropertyName>lanes</ogc:PropertyName>
			<ogc:Literal>2</ogc:Literal>
		</ogc:PropertyIsGreaterThan>
	</ogc:And>
</ogc:Filter>`

func ExampleEngine_Select() {
	engine, err := ogcfilter.New(ogcfilter.Config{})
	if err != nil {
		log.Fatal(err)
	}
	f, err := engine.Parse([]byte(wideStreets))
	if err != nil {
		log.Fatal(err)
	}
	records, err := record.ReadFeatureCollection("road", []byte(roads))
	if err != nil {
		log.Fatal(err)
	}

	matched, err := engine.Select(context.Background(), f, records)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range matched {
		fmt.Println(r.ID())
	}
	// Output:
	// main
}

func ExampleEngine_Parse_pushDown() {
	engine, err := ogcfilter.New(ogcfilter.Config{})
	if err != nil {
		log.Fatal(err)
	}
	f, err := engine.Parse([]byte(wideStreets))
	if err != nil {
		log.Fatal(err)
	}

	enc := filter.NewDuckDBEncoder(&filter.EncoderOptions{
		TextColumns: map[string]bool{"name": true},
	})
	where, exact := enc.EncodeFilter(f)
	fmt.Println(where)
	fmt.Println(exact)
	// Output:
	// (CAST(name AS VARCHAR) LIKE '% Street' ESCAPE '\' AND TRY_CAST(lanes AS DOUBLE) > 2)
	// true
}

package msgpack

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/record"
)

func TestRecordsRoundTrip(t *testing.T) {
	schema := record.MustSchema("Road",
		record.PropertyDef{Name: "geometry", Geometry: true},
		record.PropertyDef{Name: "name"},
		record.PropertyDef{Name: "lanes"},
	)
	in := []*record.Feature{
		record.NewFeature(schema, "r1", map[string]any{
			"geometry": orb.LineString{{0, 0}, {1, 1}},
			"name":     "Main",
			"lanes":    int64(2),
		}),
		record.NewFeature(schema, "r2", map[string]any{"name": "Side"}),
	}

	data, err := EncodeFeatures("Road", in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeRecords(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].ID() != "r1" || out[1].ID() != "r2" {
		t.Errorf("ids = %s, %s", out[0].ID(), out[1].ID())
	}

	g, ok, err := out[0].DefaultGeometry()
	if err != nil || !ok || !orb.Equal(g, orb.LineString{{0, 0}, {1, 1}}) {
		t.Errorf("geometry = %v, %v, %v", g, ok, err)
	}
	if g, ok, err := out[1].DefaultGeometry(); err != nil || !ok || g != nil {
		t.Errorf("missing geometry = %v, %v", g, ok)
	}

	name, err := out[0].Property(record.MustParsePath("name"))
	if err != nil || name != "Main" {
		t.Errorf("name = %v, %v", name, err)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := DecodeRecords(nil); err == nil {
		t.Error("expected error for empty data")
	}
}

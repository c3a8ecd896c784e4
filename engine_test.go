package ogcfilter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/internal/serialize"
	"github.com/hugr-lab/ogc-filter/record"
)

const greaterThan49 = `
<ogc:Filter xmlns:ogc="http://www.opengis.net/ogc">
	<ogc:PropertyIsGreaterThan>
		<ogc:PropertyName>n</ogc:PropertyName>
		<ogc:Literal>49</ogc:Literal>
	</ogc:PropertyIsGreaterThan>
</ogc:Filter>`

var pointSchema = record.MustSchema("point",
	record.PropertyDef{Name: "geometry", Geometry: true},
	record.PropertyDef{Name: "n"},
)

func testRecords(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.NewFeature(pointSchema, strconv.Itoa(i), map[string]any{
			"geometry": orb.Point{float64(i), float64(i)},
			"n":        i,
		})
	}
	return out
}

func newEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	e, err := New(config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

// TestNewDefaults tests that optional fields get defaults.
func TestNewDefaults(t *testing.T) {
	e := newEngine(t, Config{})
	if e.Version() != filter.Version110 {
		t.Errorf("Version() = %s, want %s", e.Version(), filter.Version110)
	}
	if e.Functions() == nil || len(e.Functions().Names()) == 0 {
		t.Error("expected the default function registry")
	}
}

// TestNewInvalidConfig tests config validation.
func TestNewInvalidConfig(t *testing.T) {
	for _, config := range []Config{
		{Workers: -1},
		{Version: "2.0.0"},
	} {
		if _, err := New(config); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New(%+v): expected ErrInvalidConfig, got %v", config, err)
		}
	}
}

// TestParseCompressed tests that zstd documents are accepted.
func TestParseCompressed(t *testing.T) {
	c, err := serialize.NewCompressor()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	data, err := c.Compress([]byte(greaterThan49))
	if err != nil {
		t.Fatal(err)
	}

	e := newEngine(t, Config{})
	f, err := e.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	ok, err := e.Match(f, testRecords(60)[55])
	if err != nil || !ok {
		t.Errorf("Match() = %v, %v; want true", ok, err)
	}
}

// TestSelect tests that selection keeps input order for any worker count.
func TestSelect(t *testing.T) {
	records := testRecords(100)
	for _, workers := range []int{0, 1, 3, 16, 200} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			e := newEngine(t, Config{Workers: workers})
			f, err := e.Parse([]byte(greaterThan49))
			if err != nil {
				t.Fatal(err)
			}
			got, err := e.Select(context.Background(), f, records)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if len(got) != 50 {
				t.Fatalf("Select() returned %d records, want 50", len(got))
			}
			for i, r := range got {
				if want := strconv.Itoa(50 + i); r.ID() != want {
					t.Fatalf("record %d has id %s, want %s", i, r.ID(), want)
				}
			}
		})
	}
}

// failingOnOdd builds a filter whose function fails for odd identifiers.
func failingOnOdd(t *testing.T) (*filter.Registry, filter.Filter) {
	t.Helper()
	reg := filter.NewRegistry(map[string]filter.Factory{
		"even": func([]filter.Expression) (filter.Function, error) {
			return filter.FunctionFunc(func(c *filter.CallContext) (filter.Value, error) {
				n, _ := strconv.Atoi(c.Record.ID())
				if n%2 == 1 {
					return filter.Value{}, errors.New("odd record")
				}
				return filter.NumberValue(1), nil
			}), nil
		},
	})
	fn, err := reg.NewFunction("even")
	if err != nil {
		t.Fatal(err)
	}
	cmp, err := filter.NewComparison(filter.OpEqualTo, fn, &filter.Literal{Text: "1"}, true)
	if err != nil {
		t.Fatal(err)
	}
	f, err := filter.NewOperationFilter(cmp)
	if err != nil {
		t.Fatal(err)
	}
	return reg, f
}

// TestSelectErrorPolicy tests lenient and strict evaluation failures.
func TestSelectErrorPolicy(t *testing.T) {
	reg, f := failingOnOdd(t)
	records := testRecords(10)

	lenient := newEngine(t, Config{Functions: reg, Workers: 2})
	got, err := lenient.Select(context.Background(), f, records)
	if err != nil {
		t.Fatalf("lenient Select() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("lenient Select() returned %d records, want 5", len(got))
	}

	for _, workers := range []int{0, 2} {
		strict := newEngine(t, Config{Functions: reg, Strict: true, Workers: workers})
		_, err = strict.Select(context.Background(), f, records)
		var ee *filter.EvaluationError
		if !errors.As(err, &ee) {
			t.Errorf("strict Select(workers=%d): expected EvaluationError, got %v", workers, err)
		}
	}
}

// TestSelectCanceled tests that a canceled context stops selection.
func TestSelectCanceled(t *testing.T) {
	e := newEngine(t, Config{Workers: 4})
	f, err := e.Parse([]byte(greaterThan49))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Select(ctx, f, testRecords(100)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := e.Select(context.Background(), nil, testRecords(1)); !errors.Is(err, ErrNilFilter) {
		t.Errorf("expected ErrNilFilter, got %v", err)
	}
}

// TestEncode tests serialization in the engine and explicit dialects.
func TestEncode(t *testing.T) {
	f, err := filter.NewIDFilter("road.1")
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, Config{Version: filter.Version100})

	tests := []struct {
		version filter.Version
		want    string
	}{
		{"", `fid="road.1"`},
		{filter.Version110, `gml:id="road.1"`},
	}
	for _, tt := range tests {
		text, err := e.Encode(f, tt.version)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", tt.version, err)
		}
		if !strings.Contains(text, tt.want) {
			t.Errorf("Encode(%q) = %s, want it to contain %s", tt.version, text, tt.want)
		}
	}
}

// TestFilterArrow tests filtering an Arrow record batch.
func TestFilterArrow(t *testing.T) {
	alloc := memory.NewGoAllocator()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "n", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"a", "b", "c", "d"}, nil)
	b.Field(1).(*array.Int64Builder).AppendValues([]int64{10, 60, 30, 90}, nil)
	batch := b.NewRecord()
	defer batch.Release()

	e := newEngine(t, Config{Allocator: alloc, Workers: 2})
	f, err := e.Parse([]byte(greaterThan49))
	if err != nil {
		t.Fatal(err)
	}

	out, err := e.FilterArrow(context.Background(), f, batch, record.ArrowOptions{IDColumn: "id"})
	if err != nil {
		t.Fatalf("FilterArrow() error = %v", err)
	}
	defer out.Release()

	if out.NumRows() != 2 {
		t.Fatalf("FilterArrow() returned %d rows, want 2", out.NumRows())
	}
	ids := out.Column(0).(*array.String)
	if ids.Value(0) != "b" || ids.Value(1) != "d" {
		t.Errorf("unexpected ids %s, %s", ids.Value(0), ids.Value(1))
	}
}

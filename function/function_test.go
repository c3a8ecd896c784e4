package function

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/record"
)

func TestLoadConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
functions:
  - name: lower
    impl: strings.lower
  - name: len
    impl: strings.length
`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if len(c.Functions) != 2 || c.Functions[1] != (Binding{Name: "len", Impl: "strings.length"}) {
		t.Errorf("unexpected config %+v", c)
	}

	for _, bad := range []string{
		"functions:\n  - name: x\n",
		"functions:\n  - name: x\n    impl: y\n    extra: z\n",
		"functions: 3\n",
	} {
		if _, err := ParseConfig([]byte(bad)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseConfig(%q): expected ErrInvalidConfig, got %v", bad, err)
		}
	}

	if c, err := ParseConfig(nil); err != nil || len(c.Functions) != 0 {
		t.Errorf("empty document = %+v, %v", c, err)
	}
}

func TestMerge(t *testing.T) {
	base := Config{Functions: []Binding{{"a", "x.a"}, {"b", "x.b"}}}
	override := Config{Functions: []Binding{{"c", "y.c"}, {"a", "y.a"}}}

	got := Merge(base, override)
	want := []Binding{{"a", "y.a"}, {"b", "x.b"}, {"c", "y.c"}}
	if len(got) != len(want) {
		t.Fatalf("Merge() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Merge()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBaseBindingsResolve(t *testing.T) {
	base, err := Base()
	if err != nil {
		t.Fatal(err)
	}
	impls := Builtins()
	for _, b := range base.Functions {
		if _, ok := impls[b.Impl]; !ok {
			t.Errorf("%s: unknown implementation %s", b.Name, b.Impl)
		}
	}
}

func TestNewRegistryUnknownImpl(t *testing.T) {
	_, err := NewRegistry([]Binding{{"f", "nowhere.f"}}, Builtins())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions.yaml")
	data := "functions:\n  - name: strLength\n    impl: strings.upper\n  - name: shout\n    impl: strings.upper\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := reg.Lookup("shout"); !ok {
		t.Error("override added no binding")
	}
	v := call(t, reg, "strLength", &filter.Literal{Text: "abc"})
	if s, _ := v.Text(); s != "ABC" {
		t.Errorf("overridden strLength = %v, want ABC", v.Data)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing override file")
	}
}

func TestDefaultConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	regs := make([]*filter.Registry, 8)
	for i := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := Default()
			if err != nil {
				t.Error(err)
			}
			regs[i] = r
		}()
	}
	wg.Wait()
	for _, r := range regs[1:] {
		if r != regs[0] {
			t.Fatal("Default() built more than one registry")
		}
	}
	if len(regs[0].Names()) == 0 {
		t.Error("default registry is empty")
	}
}

var testSchema = record.MustSchema("T",
	record.PropertyDef{Name: "geom", Geometry: true},
	record.PropertyDef{Name: "name"},
	record.PropertyDef{Name: "missing"},
)

func call(t *testing.T, reg *filter.Registry, name string, args ...filter.Expression) filter.Value {
	t.Helper()
	fn, err := reg.NewFunction(name, args...)
	if err != nil {
		t.Fatalf("NewFunction(%s) error = %v", name, err)
	}
	rec := record.NewFeature(testSchema, "1", map[string]any{
		"geom": orb.Polygon{{{0, 0}, {4, 0}, {4, 3}, {0, 3}, {0, 0}}},
		"name": "  Main Street ",
	})
	v, err := filter.EvaluateExpression(fn, rec)
	if err != nil {
		t.Fatalf("%s error = %v", name, err)
	}
	return v
}

func TestBuiltins(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	name := &filter.PropertyName{Path: record.MustParsePath("name")}
	geom := &filter.PropertyName{Path: record.MustParsePath("geom")}
	missing := &filter.PropertyName{Path: record.MustParsePath("missing")}
	num := func(s string) filter.Expression { return &filter.Literal{Text: s} }

	tests := []struct {
		fn   string
		args []filter.Expression
		want any
	}{
		{"strToLowerCase", []filter.Expression{name}, "  main street "},
		{"strToUpperCase", []filter.Expression{name}, "  MAIN STREET "},
		{"strTrim", []filter.Expression{name}, "Main Street"},
		{"strLength", []filter.Expression{name}, 14.0},
		{"strConcat", []filter.Expression{num("a"), missing, num("b")}, "ab"},
		{"abs", []filter.Expression{num("-2.5")}, 2.5},
		{"floor", []filter.Expression{num("2.7")}, 2.0},
		{"ceil", []filter.Expression{num("2.1")}, 3.0},
		{"round", []filter.Expression{num("2.5")}, 3.0},
		{"sqrt", []filter.Expression{num("16")}, 4.0},
		{"min", []filter.Expression{num("3"), num("-1"), num("2")}, -1.0},
		{"max", []filter.Expression{num("3"), num("-1"), num("2")}, 3.0},
		{"area", []filter.Expression{geom}, 12.0},
		{"geomLength", []filter.Expression{geom}, 14.0},
		{"strToUpperCase", []filter.Expression{missing}, nil},
		{"max", []filter.Expression{num("1"), missing}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			v := call(t, reg, tt.fn, tt.args...)
			if tt.want == nil {
				if !v.IsNull() {
					t.Errorf("%s = %v, want null", tt.fn, v.Data)
				}
				return
			}
			if f, ok := v.Data.(float64); ok && math.Abs(f-tt.want.(float64)) < 1e-9 {
				return
			}
			if v.Data != tt.want {
				t.Errorf("%s = %v (%s), want %v", tt.fn, v.Data, v.Kind, tt.want)
			}
		})
	}
}

func TestBuiltinArity(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	_, err = reg.NewFunction("abs", &filter.Literal{Text: "1"}, &filter.Literal{Text: "2"})
	var ce *filter.ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConstructionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "expects 1") {
		t.Errorf("unexpected message %v", err)
	}
}

func TestBuiltinTypeErrors(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	fn, err := reg.NewFunction("sqrt", &filter.Literal{Text: "four"})
	if err != nil {
		t.Fatal(err)
	}
	rec := record.NewFeature(testSchema, "1", nil)
	_, err = filter.EvaluateExpression(fn, rec)
	var ee *filter.EvaluationError
	if !errors.As(err, &ee) || !errors.Is(err, errNotNumber) {
		t.Errorf("expected EvaluationError wrapping errNotNumber, got %v", err)
	}
}

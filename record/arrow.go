package record

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
)

// ArrowOptions configures how an Arrow record batch is exposed as records.
type ArrowOptions struct {
	// Name is the record type name. OPTIONAL: defaults to "feature".
	Name string

	// IDColumn names the identifier column. OPTIONAL: when empty the row
	// index is used as identifier.
	IDColumn string

	// GeometryColumns lists binary columns to decode as WKB in addition to
	// columns carrying the geoarrow.wkb extension.
	GeometryColumns []string
}

// ArrowRows exposes the rows of an Arrow record batch as Records. The batch
// must stay alive (retained) while rows are in use.
type ArrowRows struct {
	batch    arrow.Record
	schema   *Schema
	columns  map[string]int
	idColumn int
	geometry map[int]bool
}

// NewArrowRows indexes the batch schema.
func NewArrowRows(batch arrow.Record, opts ArrowOptions) (*ArrowRows, error) {
	if opts.Name == "" {
		opts.Name = "feature"
	}
	extra := make(map[string]bool, len(opts.GeometryColumns))
	for _, c := range opts.GeometryColumns {
		extra[c] = true
	}

	fields := batch.Schema().Fields()
	r := &ArrowRows{
		batch:    batch,
		columns:  make(map[string]int, len(fields)),
		idColumn: -1,
		geometry: map[int]bool{},
	}
	props := make([]PropertyDef, 0, len(fields))
	for i, f := range fields {
		geom := isGeometryField(f) || extra[f.Name]
		if geom {
			r.geometry[i] = true
		}
		r.columns[f.Name] = i
		props = append(props, PropertyDef{Name: f.Name, Geometry: geom})
	}
	schema, err := NewSchema(opts.Name, props...)
	if err != nil {
		return nil, err
	}
	r.schema = schema

	if opts.IDColumn != "" {
		i, ok := r.columns[opts.IDColumn]
		if !ok {
			return nil, fmt.Errorf("record: id column %q not found", opts.IDColumn)
		}
		r.idColumn = i
	}
	for _, c := range opts.GeometryColumns {
		if _, ok := r.columns[c]; !ok {
			return nil, fmt.Errorf("record: geometry column %q not found", c)
		}
	}
	return r, nil
}

// Len returns the number of rows.
func (r *ArrowRows) Len() int { return int(r.batch.NumRows()) }

// Schema returns the schema derived from the batch.
func (r *ArrowRows) Schema() *Schema { return r.schema }

// Row returns row i as a Record.
func (r *ArrowRows) Row(i int) Record {
	return &arrowRow{rows: r, i: i}
}

type arrowRow struct {
	rows *ArrowRows
	i    int
}

func (a *arrowRow) ID() string {
	if a.rows.idColumn < 0 {
		return fmt.Sprint(a.i)
	}
	v, err := a.rows.value(a.rows.idColumn, a.i)
	if err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (a *arrowRow) Property(p Path) (any, error) {
	def, rest, err := a.rows.schema.resolve(p)
	if err != nil {
		return nil, err
	}
	v, err := a.rows.value(a.rows.columns[def.Name], a.i)
	if err != nil {
		return nil, err
	}
	return descend(v, rest), nil
}

func (a *arrowRow) DefaultGeometry() (orb.Geometry, bool, error) {
	name, ok := a.rows.schema.DefaultGeometry()
	if !ok {
		return nil, false, nil
	}
	v, err := a.rows.value(a.rows.columns[name], a.i)
	if err != nil {
		return nil, true, err
	}
	g, err := asGeometry(name, v)
	return g, true, err
}

// value converts a single cell into a record property value.
func (r *ArrowRows) value(col, row int) (any, error) {
	arr := r.batch.Column(col)
	if arr.IsNull(row) {
		return nil, nil
	}
	if ext, ok := arr.(array.ExtensionArray); ok {
		arr = ext.Storage()
	}
	if r.geometry[col] {
		var data []byte
		switch a := arr.(type) {
		case *array.Binary:
			data = a.Value(row)
		case *array.LargeBinary:
			data = a.Value(row)
		default:
			return nil, fmt.Errorf("record: geometry column %s has storage %s", r.batch.ColumnName(col), arr.DataType())
		}
		g, err := geometry.DecodeWKB(data)
		if err != nil {
			return nil, fmt.Errorf("record: column %s: %w", r.batch.ColumnName(col), err)
		}
		return g, nil
	}
	return cellValue(arr, row)
}

func cellValue(arr arrow.Array, row int) (any, error) {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(row), nil
	case *array.Int8:
		return a.Value(row), nil
	case *array.Int16:
		return a.Value(row), nil
	case *array.Int32:
		return a.Value(row), nil
	case *array.Int64:
		return a.Value(row), nil
	case *array.Uint8:
		return a.Value(row), nil
	case *array.Uint16:
		return a.Value(row), nil
	case *array.Uint32:
		return a.Value(row), nil
	case *array.Uint64:
		return a.Value(row), nil
	case *array.Float32:
		return a.Value(row), nil
	case *array.Float64:
		return a.Value(row), nil
	case *array.String:
		return a.Value(row), nil
	case *array.LargeString:
		return a.Value(row), nil
	case *array.Binary:
		return a.Value(row), nil
	case *array.LargeBinary:
		return a.Value(row), nil
	case *array.Date32:
		return a.Value(row).ToTime(), nil
	case *array.Date64:
		return a.Value(row).ToTime(), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(row).ToTime(unit), nil
	default:
		return nil, fmt.Errorf("record: unsupported arrow type %s", arr.DataType())
	}
}

// Package duckstore serves records from a DuckDB table. Queries push the
// encodable part of a filter into the WHERE clause and evaluate the full
// filter on the returned rows when the SQL is not an exact translation.
package duckstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/record"
)

// ErrInvalidOptions indicates Options validation failed.
var ErrInvalidOptions = errors.New("duckstore: invalid options")

// Options configures a Store.
type Options struct {
	// Table is the queried table, optionally schema qualified.
	// REQUIRED.
	Table string

	// IDColumn supplies record identifiers and serves identifier filters.
	// OPTIONAL: If empty, the row position is the identifier and identifier
	// filters are evaluated in process.
	IDColumn string

	// GeometryColumns lists BLOB columns holding WKB or VARCHAR columns
	// holding WKT. The first one is the default geometry. Spatial push-down
	// expects WKB.
	GeometryColumns []string

	// Spatial loads the DuckDB spatial extension and pushes spatial
	// predicates into SQL.
	Spatial bool

	// TextColumns lists VARCHAR columns. Text equality, Like and identifier
	// filters are pushed into SQL only for these columns.
	// OPTIONAL: If empty, such filters are evaluated in process.
	TextColumns []string

	// Encoder overrides the SQL encoder.
	// OPTIONAL: Uses a filter.DuckDBEncoder derived from the fields above.
	Encoder filter.Encoder

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Store queries one table.
type Store struct {
	db        *sql.DB
	owned     bool
	opts      Options
	encoder   filter.Encoder
	evaluator *filter.Evaluator
	logger    *slog.Logger
	geometry  map[string]bool
}

// Open opens a DuckDB database. An empty dsn opens an in-memory database.
// The store closes the database on Close.
func Open(dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckstore: open: %w", err)
	}
	s, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New creates a store over an existing connection pool. The caller keeps
// ownership of db.
func New(db *sql.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", ErrInvalidOptions)
	}
	if strings.TrimSpace(opts.Table) == "" {
		return nil, fmt.Errorf("%w: table is required", ErrInvalidOptions)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Spatial {
		if _, err := db.Exec("INSTALL spatial; LOAD spatial;"); err != nil {
			return nil, fmt.Errorf("duckstore: load spatial extension: %w", err)
		}
	}

	encoder := opts.Encoder
	if encoder == nil {
		eo := &filter.EncoderOptions{
			Spatial:       opts.Spatial,
			IDColumn:      opts.IDColumn,
			GeometryAsWKB: true,
			TextColumns:   make(map[string]bool, len(opts.TextColumns)),
		}
		for _, c := range opts.TextColumns {
			eo.TextColumns[c] = true
		}
		if len(opts.GeometryColumns) > 0 {
			eo.GeometryColumn = opts.GeometryColumns[0]
		}
		encoder = filter.NewDuckDBEncoder(eo)
	}

	geom := make(map[string]bool, len(opts.GeometryColumns))
	for _, c := range opts.GeometryColumns {
		geom[c] = true
	}

	return &Store{
		db:        db,
		opts:      opts,
		encoder:   encoder,
		evaluator: filter.NewEvaluator(logger),
		logger:    logger,
		geometry:  geom,
	}, nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Where returns the WHERE clause body for f and whether it is exact.
func (s *Store) Where(f filter.Filter) (string, bool) {
	return s.encoder.EncodeFilter(f)
}

// Query returns the records of the table satisfying f. A nil filter
// returns every row.
func (s *Store) Query(ctx context.Context, f filter.Filter) ([]record.Record, error) {
	query := "SELECT * FROM " + quoteTable(s.opts.Table)
	exact := f == nil
	if f != nil {
		var where string
		where, exact = s.Where(f)
		if where != "" {
			query += " WHERE " + where
		}
		s.logger.Debug("Filter pushed down", "table", s.opts.Table, "where", where, "exact", exact)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckstore: query %s: %w", s.opts.Table, err)
	}
	defer rows.Close()

	records, err := s.scan(rows)
	if err != nil {
		return nil, err
	}
	if exact {
		return records, nil
	}

	out := records[:0]
	for _, rec := range records {
		ok, err := s.evaluator.Filter(f, rec)
		if err != nil {
			s.logger.Debug("Record evaluation failed", "table", s.opts.Table, "id", rec.ID(), "error", err)
			continue
		}
		if ok {
			out = append(out, rec)
		}
	}
	s.logger.Debug("Filter evaluated in process", "table", s.opts.Table, "rows", len(records), "matched", len(out))
	return out, nil
}

func (s *Store) scan(rows *sql.Rows) ([]record.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("duckstore: columns: %w", err)
	}

	props := make([]record.PropertyDef, 0, len(columns))
	idIndex := -1
	for i, c := range columns {
		if c == s.opts.IDColumn {
			idIndex = i
		}
		props = append(props, record.PropertyDef{Name: c, Geometry: s.geometry[c]})
	}
	if s.opts.IDColumn != "" && idIndex < 0 {
		return nil, fmt.Errorf("%w: id column %q not in %s", ErrInvalidOptions, s.opts.IDColumn, s.opts.Table)
	}
	schema, err := record.NewSchema(s.opts.Table, props...)
	if err != nil {
		return nil, err
	}

	var out []record.Record
	cells := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for n := 0; rows.Next(); n++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("duckstore: scan: %w", err)
		}
		values := make(map[string]any, len(columns))
		for i, c := range columns {
			v, err := s.value(c, cells[i])
			if err != nil {
				return nil, fmt.Errorf("duckstore: row %d: %w", n, err)
			}
			values[c] = v
		}
		id := fmt.Sprint(n)
		if idIndex >= 0 {
			id = fmt.Sprint(cells[idIndex])
		}
		out = append(out, record.NewFeature(schema, id, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckstore: rows: %w", err)
	}
	return out, nil
}

// value converts a scanned cell into a record property value.
func (s *Store) value(column string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		if !s.geometry[column] {
			return string(x), nil
		}
		g, err := geometry.DecodeWKB(x)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		return g, nil
	case string:
		if !s.geometry[column] {
			return x, nil
		}
		g, err := geometry.ParseWKT(x)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		return g, nil
	case duckdb.Decimal:
		return x.Float64(), nil
	default:
		return x, nil
	}
}

func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = filter.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/urfave/cli/v3"

	ogcfilter "github.com/hugr-lab/ogc-filter"
	"github.com/hugr-lab/ogc-filter/duckstore"
	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/geometry"
	"github.com/hugr-lab/ogc-filter/internal/serialize"
	"github.com/hugr-lab/ogc-filter/record"
)

func newEvalCommand() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Select the records matching a filter",
		ArgsUsage: "<records.geojson|records.msgpack|records.arrow>",
		Flags: []cli.Flag{
			newFilterFlag(),
			&cli.StringFlag{Name: "type", Usage: "record type name", Value: "feature"},
			&cli.StringFlag{Name: "id-column", Usage: "identifier column of Arrow input"},
			&cli.StringSliceFlag{Name: "geometry-column", Usage: "WKB geometry column of Arrow input (repeatable)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file, .msgpack writes a record dump (default stdout)"},
			&cli.BoolFlag{Name: "stac", Usage: "read the input as a STAC item collection"},
			&cli.BoolFlag{Name: "strict", Usage: "fail on the first evaluation error"},
			&cli.IntFlag{Name: "workers", Usage: "parallel evaluation workers"},
			&cli.BoolFlag{Name: "ids", Usage: "print matching identifiers only"},
		},
		Action: evalAction,
	}
}

func evalAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: records file")
	}
	engine, err := engineFromCommand(cmd, cmd.Bool("strict"), int(cmd.Int("workers")))
	if err != nil {
		return err
	}
	f, err := readFilter(cmd, engine)
	if err != nil {
		return err
	}
	if recordFormat(cmd.Args().First()) == "arrow" {
		return evalArrow(ctx, cmd, engine, f)
	}
	records, err := loadRecords(cmd, cmd.Args().First(), cmd.String("type"), cmd.Bool("stac"))
	if err != nil {
		return err
	}

	matched, err := engine.Select(ctx, f, records)
	if err != nil {
		return err
	}
	if cmd.Bool("ids") {
		return writeIDs(cmd.Root().Writer, matched)
	}
	if path := cmd.String("output"); path != "" {
		return writeRecordFile(path, cmd.String("type"), matched)
	}
	return writeFeatures(cmd.Root().Writer, matched)
}

// evalArrow filters every batch of an Arrow IPC stream and writes the
// matching rows as a stream with the same schema.
func evalArrow(ctx context.Context, cmd *cli.Command, engine *ogcfilter.Engine, f filter.Filter) error {
	data, err := readInput(cmd, cmd.Args().First())
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	schema, batches, err := serialize.ReadIPC(data, memory.DefaultAllocator)
	if err != nil {
		return err
	}
	defer releaseAll(batches)

	opts := record.ArrowOptions{
		Name:            cmd.String("type"),
		IDColumn:        cmd.String("id-column"),
		GeometryColumns: cmd.StringSlice("geometry-column"),
	}
	filtered := make([]arrow.Record, 0, len(batches))
	defer func() { releaseAll(filtered) }()
	for _, batch := range batches {
		out, err := engine.FilterArrow(ctx, f, batch, opts)
		if err != nil {
			return err
		}
		filtered = append(filtered, out)
	}

	encoded, err := serialize.WriteIPC(schema, filtered, memory.DefaultAllocator)
	if err != nil {
		return err
	}
	if path := cmd.String("output"); path != "" {
		return os.WriteFile(path, encoded, 0o644)
	}
	_, err = cmd.Root().Writer.Write(encoded)
	return err
}

func releaseAll(batches []arrow.Record) {
	for _, b := range batches {
		b.Release()
	}
}

func newConvertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Rewrite a filter document in another version",
		Flags: []cli.Flag{
			newFilterFlag(),
			&cli.StringFlag{Name: "to", Usage: "target version", Value: string(filter.Version110)},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
			&cli.BoolFlag{Name: "zstd", Usage: "compress the output"},
		},
		Action: convertAction,
	}
}

func convertAction(_ context.Context, cmd *cli.Command) error {
	engine, err := engineFromCommand(cmd, false, 0)
	if err != nil {
		return err
	}
	f, err := readFilter(cmd, engine)
	if err != nil {
		return err
	}
	to, err := filter.ParseVersion(cmd.String("to"))
	if err != nil {
		return err
	}
	text, err := engine.Encode(f, to)
	if err != nil {
		return err
	}

	data := []byte(text + "\n")
	if cmd.Bool("zstd") {
		c, err := serialize.NewCompressor()
		if err != nil {
			return err
		}
		defer c.Close()
		if data, err = c.Compress(data); err != nil {
			return err
		}
	}
	if path := cmd.String("output"); path != "" {
		return os.WriteFile(path, data, 0o644)
	}
	_, err = cmd.Root().Writer.Write(data)
	return err
}

func newSQLCommand() *cli.Command {
	return &cli.Command{
		Name:  "sql",
		Usage: "Print the DuckDB WHERE clause pushed down for a filter",
		Flags: []cli.Flag{
			newFilterFlag(),
			&cli.StringFlag{Name: "id-column", Usage: "column matched by identifier filters"},
			&cli.StringFlag{Name: "geometry-column", Usage: "default geometry column"},
			&cli.BoolFlag{Name: "wkb", Usage: "geometry columns hold WKB"},
			&cli.BoolFlag{Name: "spatial", Usage: "push spatial predicates down"},
			&cli.StringSliceFlag{Name: "map", Usage: "property=column mapping (repeatable)"},
			&cli.StringSliceFlag{Name: "text-column", Usage: "VARCHAR column compared as text (repeatable)"},
		},
		Action: sqlAction,
	}
}

func sqlAction(_ context.Context, cmd *cli.Command) error {
	engine, err := engineFromCommand(cmd, false, 0)
	if err != nil {
		return err
	}
	f, err := readFilter(cmd, engine)
	if err != nil {
		return err
	}

	opts := &filter.EncoderOptions{
		IDColumn:       cmd.String("id-column"),
		GeometryColumn: cmd.String("geometry-column"),
		GeometryAsWKB:  cmd.Bool("wkb"),
		Spatial:        cmd.Bool("spatial"),
		TextColumns:    map[string]bool{},
	}
	for _, c := range cmd.StringSlice("text-column") {
		opts.TextColumns[c] = true
	}
	for _, m := range cmd.StringSlice("map") {
		prop, col, ok := strings.Cut(m, "=")
		if !ok || prop == "" || col == "" {
			return fmt.Errorf("invalid mapping %q, want property=column", m)
		}
		if opts.ColumnMapping == nil {
			opts.ColumnMapping = map[string]string{}
		}
		opts.ColumnMapping[prop] = col
	}

	where, exact := filter.NewDuckDBEncoder(opts).EncodeFilter(f)
	if where == "" {
		where = "TRUE"
	}
	w := cmd.Root().Writer
	if _, err := fmt.Fprintln(w, where); err != nil {
		return err
	}
	if !exact {
		_, err = fmt.Fprintln(w, "-- inexact: evaluate the filter on the selected rows")
	}
	return err
}

// summary describes the structure of a filter.
type summary struct {
	Kind       string         `json:"kind"`
	IDs        []string       `json:"ids,omitempty"`
	BBox       []float64      `json:"bbox,omitempty"`
	Spatial    []spatialEntry `json:"spatial,omitempty"`
	Properties []string       `json:"properties,omitempty"`
}

type spatialEntry struct {
	Operator string   `json:"operator"`
	Property string   `json:"property,omitempty"`
	Geometry string   `json:"geometry"`
	Distance *float64 `json:"distance,omitempty"`
	Units    string   `json:"units,omitempty"`
}

func newInspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Describe the bounding box, spatial operations and properties of a filter",
		Flags:  []cli.Flag{newFilterFlag()},
		Action: inspectAction,
	}
}

func inspectAction(_ context.Context, cmd *cli.Command) error {
	engine, err := engineFromCommand(cmd, false, 0)
	if err != nil {
		return err
	}
	f, err := readFilter(cmd, engine)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(summarize(f), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, string(data))
	return err
}

func summarize(f filter.Filter) summary {
	if ids, ok := f.(*filter.IDFilter); ok {
		return summary{Kind: "ids", IDs: ids.IDs}
	}

	s := summary{Kind: "operation"}
	if b, ok := filter.BoundingBox(f); ok {
		s.BBox = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	}
	for _, op := range filter.SpatialOperations(f) {
		e := spatialEntry{Operator: string(op.Op), Geometry: geometry.TypeName(op.Geometry)}
		if op.Property != nil {
			e.Property = op.Property.Path.String()
		}
		if op.Distance != nil {
			d := op.Distance.Value
			e.Distance = &d
			e.Units = op.Distance.Units
		}
		s.Spatial = append(s.Spatial, e)
	}
	for _, p := range filter.UniquePaths(filter.PropertyNames(f)) {
		s.Properties = append(s.Properties, p.String())
	}
	return s
}

func newQueryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Select the rows of a DuckDB table matching a filter",
		ArgsUsage: "<table>",
		Flags: []cli.Flag{
			newFilterFlag(),
			&cli.StringFlag{Name: "db", Usage: "DuckDB database file (default in-memory)"},
			&cli.StringFlag{Name: "id-column", Usage: "identifier column"},
			&cli.StringSliceFlag{Name: "geometry-column", Usage: "WKB geometry column (repeatable)"},
			&cli.BoolFlag{Name: "spatial", Usage: "load the spatial extension and push spatial predicates down"},
			&cli.StringSliceFlag{Name: "text-column", Usage: "VARCHAR column compared as text (repeatable)"},
			&cli.BoolFlag{Name: "ids", Usage: "print matching identifiers only"},
		},
		Action: queryAction,
	}
}

func queryAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: table")
	}
	engine, err := engineFromCommand(cmd, false, 0)
	if err != nil {
		return err
	}
	f, err := readFilter(cmd, engine)
	if err != nil {
		return err
	}

	store, err := duckstore.Open(cmd.String("db"), duckstore.Options{
		Table:           cmd.Args().First(),
		IDColumn:        cmd.String("id-column"),
		GeometryColumns: cmd.StringSlice("geometry-column"),
		Spatial:         cmd.Bool("spatial"),
		TextColumns:     cmd.StringSlice("text-column"),
		Logger:          loggerFromCommand(cmd),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(ctx, f)
	if err != nil {
		return err
	}
	if cmd.Bool("ids") {
		return writeIDs(cmd.Root().Writer, records)
	}
	return writeFeatures(cmd.Root().Writer, records)
}

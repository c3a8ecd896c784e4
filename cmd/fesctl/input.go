package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	stac "github.com/planetlabs/go-stac"
	"github.com/urfave/cli/v3"

	ogcfilter "github.com/hugr-lab/ogc-filter"
	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/internal/msgpack"
	"github.com/hugr-lab/ogc-filter/internal/serialize"
	"github.com/hugr-lab/ogc-filter/record"
)

// readInput reads path, or the command input for "-", and removes a
// ZStandard frame if present.
func readInput(cmd *cli.Command, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.Root().Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return serialize.Unwrap(data)
}

func readFilter(cmd *cli.Command, engine *ogcfilter.Engine) (filter.Filter, error) {
	path := cmd.String(filterFlag)
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, fmt.Errorf("read filter: %w", err)
	}
	f, err := engine.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// recordFormat picks a decoder by file extension, ignoring a trailing .zst.
func recordFormat(path string) string {
	path = strings.TrimSuffix(path, ".zst")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return "msgpack"
	case ".arrow", ".arrows", ".ipc":
		return "arrow"
	default:
		return "geojson"
	}
}

type itemCollection struct {
	Features []*stac.Item `json:"features"`
}

// loadRecords decodes a GeoJSON feature collection, a STAC item collection
// or a MessagePack record dump.
func loadRecords(cmd *cli.Command, path, typeName string, asSTAC bool) ([]record.Record, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if recordFormat(path) == "msgpack" {
		return msgpack.DecodeRecords(data)
	}
	if asSTAC {
		var c itemCollection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode STAC items: %w", err)
		}
		return record.STACItems(typeName, c.Features)
	}
	return record.ReadFeatureCollection(typeName, data)
}

// writeFeatures writes records as a GeoJSON feature collection.
func writeFeatures(w io.Writer, records []record.Record) error {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		f, ok := r.(*record.Feature)
		if !ok {
			return fmt.Errorf("record %s cannot be written as GeoJSON", r.ID())
		}
		fc.Append(record.ToGeoJSON(f))
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeRecordFile writes records as a MessagePack dump or a GeoJSON feature
// collection, chosen by the file extension.
func writeRecordFile(path, typeName string, records []record.Record) error {
	var buf bytes.Buffer
	if recordFormat(path) != "msgpack" {
		if err := writeFeatures(&buf, records); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0o644)
	}

	features := make([]*record.Feature, 0, len(records))
	for _, r := range records {
		f, ok := r.(*record.Feature)
		if !ok {
			return fmt.Errorf("record %s cannot be written as MessagePack", r.ID())
		}
		features = append(features, f)
	}
	data, err := msgpack.EncodeFeatures(typeName, features)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeIDs(w io.Writer, records []record.Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.ID()); err != nil {
			return err
		}
	}
	return nil
}

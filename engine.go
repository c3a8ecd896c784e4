package ogcfilter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/ogc-filter/filter"
	"github.com/hugr-lab/ogc-filter/function"
	"github.com/hugr-lab/ogc-filter/internal/recovery"
	"github.com/hugr-lab/ogc-filter/internal/serialize"
	"github.com/hugr-lab/ogc-filter/record"
)

// Engine parses, evaluates and encodes filters with one configuration.
// It is safe for concurrent use.
type Engine struct {
	dialect   filter.Dialect
	functions *filter.Registry
	allocator memory.Allocator
	logger    *slog.Logger
	evaluator *filter.Evaluator
	strict    bool
	workers   int
}

// New validates config and creates an Engine.
func New(config Config) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	dialect, err := filter.DialectFor(config.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	functions := config.Functions
	if functions == nil {
		functions, err = function.Default()
		if err != nil {
			return nil, fmt.Errorf("%w: functions: %v", ErrInvalidConfig, err)
		}
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	logger := config.Logger
	if logger == nil {
		if config.LogLevel != nil {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
		} else {
			logger = slog.Default()
		}
	}

	logger.Debug("Filter engine created",
		"version", dialect.Version,
		"functions", len(functions.Names()),
		"strict", config.Strict,
		"workers", config.Workers,
	)

	return &Engine{
		dialect:   dialect,
		functions: functions,
		allocator: allocator,
		logger:    logger,
		evaluator: filter.NewEvaluator(logger),
		strict:    config.Strict,
		workers:   config.Workers,
	}, nil
}

func validateConfig(config Config) error {
	if config.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", config.Workers)
	}
	return nil
}

// Version returns the engine's dialect version.
func (e *Engine) Version() filter.Version { return e.dialect.Version }

// Functions returns the registry used to build filters.
func (e *Engine) Functions() *filter.Registry { return e.functions }

// Parse builds a filter from a document. ZStandard-compressed documents are
// decompressed first.
func (e *Engine) Parse(data []byte) (filter.Filter, error) {
	data, err := serialize.Unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("decompress filter: %w", err)
	}
	return filter.Parse(data, filter.BuildOptions{
		Version:   e.dialect.Version,
		Functions: e.functions,
	})
}

// Match reports whether rec satisfies f.
func (e *Engine) Match(f filter.Filter, rec record.Record) (bool, error) {
	return e.evaluator.Filter(f, rec)
}

// Encode serializes f in dialect v. The empty version selects the engine's
// own dialect.
func (e *Engine) Encode(f filter.Filter, v filter.Version) (string, error) {
	if v == "" {
		return e.dialect.ToText(f)
	}
	return filter.ToText(f, v)
}

// Select returns the records satisfying f in input order.
func (e *Engine) Select(ctx context.Context, f filter.Filter, records []record.Record) ([]record.Record, error) {
	matched, err := e.matchAll(ctx, f, len(records), func(i int) record.Record { return records[i] })
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(records))
	for i, ok := range matched {
		if ok {
			out = append(out, records[i])
		}
	}
	e.logger.Debug("Filter selected records", "records", len(records), "matched", len(out))
	return out, nil
}

// FilterArrow evaluates f against every row of batch and returns a new
// batch holding the matching rows. The caller releases the result.
func (e *Engine) FilterArrow(ctx context.Context, f filter.Filter, batch arrow.Record, opts record.ArrowOptions) (arrow.Record, error) {
	rows, err := record.NewArrowRows(batch, opts)
	if err != nil {
		return nil, err
	}
	matched, err := e.matchAll(ctx, f, rows.Len(), rows.Row)
	if err != nil {
		return nil, err
	}

	b := array.NewBooleanBuilder(e.allocator)
	defer b.Release()
	b.AppendValues(matched, nil)
	mask := b.NewBooleanArray()
	defer mask.Release()

	ctx = compute.WithAllocator(ctx, e.allocator)
	out, err := compute.FilterRecordBatch(ctx, batch, mask, compute.DefaultFilterOptions())
	if err != nil {
		return nil, fmt.Errorf("filter record batch: %w", err)
	}
	e.logger.Debug("Filter applied to batch", "rows", rows.Len(), "matched", out.NumRows())
	return out, nil
}

// matchAll evaluates f for n rows. With more than one worker the rows are
// split into ranges evaluated concurrently; results keep row order.
func (e *Engine) matchAll(ctx context.Context, f filter.Filter, n int, row func(int) record.Record) ([]bool, error) {
	if f == nil {
		return nil, ErrNilFilter
	}
	matched := make([]bool, n)
	var failed atomic.Int64

	eval := func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if (i-lo)%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			ok, err := e.evaluator.Filter(f, row(i))
			if err != nil {
				if e.strict {
					return fmt.Errorf("record %d: %w", i, err)
				}
				failed.Add(1)
				e.logger.Debug("Record evaluation failed", "record", i, "error", err)
				continue
			}
			matched[i] = ok
		}
		return nil
	}

	var err error
	if e.workers <= 1 || n < 2 {
		err = eval(ctx, 0, n)
	} else {
		err = e.parallel(ctx, n, eval)
	}
	if err != nil {
		return nil, err
	}
	if c := failed.Load(); c > 0 {
		e.logger.Warn("Records failed evaluation and were excluded", "failed", c, "records", n)
	}
	return matched, nil
}

func (e *Engine) parallel(ctx context.Context, n int, eval func(ctx context.Context, lo, hi int) error) error {
	chunk := (n + e.workers*4 - 1) / (e.workers * 4)
	if chunk < 1 {
		chunk = 1
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for lo := 0; lo < n; lo += chunk {
		if egCtx.Err() != nil {
			break
		}
		hi := min(lo+chunk, n)
		eg.Go(func() error {
			return recovery.RecoverToError(e.logger, "select worker", func() error {
				return eval(egCtx, lo, hi)
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

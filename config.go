package ogcfilter

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/ogc-filter/filter"
)

// Config contains configuration for an Engine.
type Config struct {
	// Version selects the dialect used to read documents and the default
	// dialect for Encode.
	// OPTIONAL: If empty, uses filter.Version110.
	Version filter.Version

	// Functions resolves Function elements while building filters.
	// OPTIONAL: Uses function.Default() if nil.
	Functions *filter.Registry

	// Allocator for Arrow memory management in FilterArrow.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// Strict makes Select and FilterArrow fail on the first evaluation
	// error. When false, a record whose evaluation fails does not match
	// and the failure is logged.
	Strict bool

	// Workers bounds the goroutines used by Select and FilterArrow.
	// OPTIONAL: If 0, records are evaluated on the calling goroutine.
	Workers int
}

// Standard errors returned by the ogcfilter package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid engine config")

	// ErrNilFilter is returned when an operation receives no filter.
	ErrNilFilter = errors.New("nil filter")
)

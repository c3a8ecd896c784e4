// Package recovery provides panic recovery around user-provided code such as
// registered filter functions, so a faulty implementation cannot crash the
// evaluating process.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic is wrapped by every error produced from a recovered panic.
var ErrPanic = errors.New("panic recovered")

// RecoverToError wraps a function call with panic recovery.
// If the function panics, the panic is logged and returned as an error.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "select worker", func() error {
//	    return matchRange(lo, hi)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%s: %w: %v", operation, ErrPanic, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns the zero value and an error.
//
// Example:
//
//	v, err := recovery.RecoverToValue(logger, "function strConcat", func() (Value, error) {
//	    return fn.Call(call)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			var zero T
			result = zero
			err = fmt.Errorf("%s: %w: %v", operation, ErrPanic, r)
		}
	}()

	return fn()
}

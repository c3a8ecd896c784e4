package filter

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by EvaluationError.
var (
	// ErrNotImplemented is returned for spatial operators without an
	// evaluation rule: Touches, Crosses, Overlaps and Beyond.
	ErrNotImplemented = errors.New("not implemented")

	// ErrTypeMismatch is returned when operands cannot be coerced to the
	// type an operation requires.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNoDefaultGeometry is returned when a spatial operation without a
	// property runs against a record type that has no geometry property.
	ErrNoDefaultGeometry = errors.New("record has no default geometry")

	// ErrUnsupportedTypeName is returned for instance-of type names outside
	// the supported set.
	ErrUnsupportedTypeName = errors.New("unsupported geometry type name")
)

// ConstructionError reports a malformed filter document. Building never
// partially succeeds: any ConstructionError aborts the whole build.
type ConstructionError struct {
	// Element is the local name of the offending element, if known.
	Element string
	Msg     string
	Err     error
}

func (e *ConstructionError) Error() string {
	var s string
	if e.Element != "" {
		s = "filter: build " + e.Element + ": " + e.Msg
	} else {
		s = "filter: build: " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ConstructionError) Unwrap() error { return e.Err }

func constructionErr(element, format string, args ...any) error {
	return &ConstructionError{Element: element, Msg: fmt.Sprintf(format, args...)}
}

func wrapConstruction(element string, err error, format string, args ...any) error {
	return &ConstructionError{Element: element, Msg: fmt.Sprintf(format, args...), Err: err}
}

// EvaluationError reports a failure to evaluate an operation or expression
// against a record. The caller decides whether it means "no match".
type EvaluationError struct {
	// Op names the operator or expression being evaluated.
	Op  string
	Err error
}

func (e *EvaluationError) Error() string {
	return "filter: evaluate " + e.Op + ": " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func evalErr(op string, err error) error {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return err
	}
	return &EvaluationError{Op: op, Err: err}
}

func evalErrf(op string, sentinel error, format string, args ...any) error {
	return &EvaluationError{Op: op, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

package function

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/hugr-lab/ogc-filter/filter"
)

var errNotNumber = errors.New("argument is not a number")

// Builtins returns the builtin implementations keyed by locator. The map is
// a fresh copy and may be extended before building a registry.
func Builtins() map[string]filter.Factory {
	return map[string]filter.Factory{
		"strings.lower":   exactly(1, textFunc(strings.ToLower)),
		"strings.upper":   exactly(1, textFunc(strings.ToUpper)),
		"strings.trim":    exactly(1, textFunc(strings.TrimSpace)),
		"strings.length":  exactly(1, strLength),
		"strings.concat":  atLeast(2, strConcat),
		"math.abs":        exactly(1, numberFunc(math.Abs)),
		"math.floor":      exactly(1, numberFunc(math.Floor)),
		"math.ceil":       exactly(1, numberFunc(math.Ceil)),
		"math.round":      exactly(1, numberFunc(math.Round)),
		"math.sqrt":       exactly(1, numberFunc(math.Sqrt)),
		"math.min":        atLeast(2, reduceNumbers(math.Min)),
		"math.max":        atLeast(2, reduceNumbers(math.Max)),
		"geometry.area":   exactly(1, geometryFunc(planar.Area)),
		"geometry.length": exactly(1, geometryFunc(planar.Length)),
	}
}

func exactly(n int, fn filter.FunctionFunc) filter.Factory {
	return func(args []filter.Expression) (filter.Function, error) {
		if len(args) != n {
			return nil, fmt.Errorf("expects %d argument(s), got %d", n, len(args))
		}
		return fn, nil
	}
}

func atLeast(n int, fn filter.FunctionFunc) filter.Factory {
	return func(args []filter.Expression) (filter.Function, error) {
		if len(args) < n {
			return nil, fmt.Errorf("expects at least %d arguments, got %d", n, len(args))
		}
		return fn, nil
	}
}

// textFunc applies fn to the text form of its argument. Null stays Null.
func textFunc(fn func(string) string) filter.FunctionFunc {
	return func(c *filter.CallContext) (filter.Value, error) {
		v, err := c.Arg(0)
		if err != nil || v.IsNull() {
			return v, err
		}
		return filter.TextValue(fn(v.String())), nil
	}
}

func strLength(c *filter.CallContext) (filter.Value, error) {
	v, err := c.Arg(0)
	if err != nil || v.IsNull() {
		return v, err
	}
	return filter.NumberValue(float64(utf8.RuneCountInString(v.String()))), nil
}

// strConcat treats Null arguments as empty text.
func strConcat(c *filter.CallContext) (filter.Value, error) {
	vals, err := c.Values()
	if err != nil {
		return filter.Value{}, err
	}
	var b strings.Builder
	for _, v := range vals {
		b.WriteString(v.String())
	}
	return filter.TextValue(b.String()), nil
}

func numberFunc(fn func(float64) float64) filter.FunctionFunc {
	return func(c *filter.CallContext) (filter.Value, error) {
		v, err := c.Arg(0)
		if err != nil || v.IsNull() {
			return v, err
		}
		f, ok := v.ToNumber()
		if !ok {
			return filter.Value{}, fmt.Errorf("%s: %w: %q", c.Name, errNotNumber, v.String())
		}
		return filter.NumberValue(fn(f)), nil
	}
}

// reduceNumbers folds its arguments; any Null argument makes the result Null.
func reduceNumbers(fn func(a, b float64) float64) filter.FunctionFunc {
	return func(c *filter.CallContext) (filter.Value, error) {
		vals, err := c.Values()
		if err != nil {
			return filter.Value{}, err
		}
		var acc float64
		for i, v := range vals {
			if v.IsNull() {
				return filter.Null(), nil
			}
			f, ok := v.ToNumber()
			if !ok {
				return filter.Value{}, fmt.Errorf("%s: %w: %q", c.Name, errNotNumber, v.String())
			}
			if i == 0 {
				acc = f
				continue
			}
			acc = fn(acc, f)
		}
		return filter.NumberValue(acc), nil
	}
}

func geometryFunc(fn func(g orb.Geometry) float64) filter.FunctionFunc {
	return func(c *filter.CallContext) (filter.Value, error) {
		v, err := c.Arg(0)
		if err != nil || v.IsNull() {
			return v, err
		}
		g, ok := v.Geometry()
		if !ok {
			return filter.Value{}, fmt.Errorf("%s: argument is %s, not a geometry", c.Name, v.Kind)
		}
		return filter.NumberValue(fn(g)), nil
	}
}

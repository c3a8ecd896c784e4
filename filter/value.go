package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/hugr-lab/ogc-filter/geometry"
)

// Kind identifies the runtime type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindGeometry
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindGeometry:
		return "geometry"
	case KindBoolean:
		return "boolean"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the result of evaluating an expression. Data holds a float64,
// string, orb.Geometry or bool according to Kind.
type Value struct {
	Kind Kind
	Data any

	// source keeps the original text of numbers parsed from literals.
	source string
}

// Null returns the absent value.
func Null() Value { return Value{Kind: KindNull} }

// NumberValue wraps a number.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Data: f} }

// TextValue wraps a string.
func TextValue(s string) Value { return Value{Kind: KindText, Data: s} }

// BoolValue wraps an operation result.
func BoolValue(b bool) Value { return Value{Kind: KindBoolean, Data: b} }

// GeometryValue wraps a geometry. A nil geometry is Null.
func GeometryValue(g orb.Geometry) Value {
	if g == nil {
		return Null()
	}
	return Value{Kind: KindGeometry, Data: g}
}

// IsNull reports whether v is absent.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Number returns the numeric payload.
func (v Value) Number() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok && v.Kind == KindNumber
}

// Text returns the text payload.
func (v Value) Text() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok && v.Kind == KindText
}

// Geometry returns the geometry payload.
func (v Value) Geometry() (orb.Geometry, bool) {
	g, ok := v.Data.(orb.Geometry)
	return g, ok && v.Kind == KindGeometry
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok && v.Kind == KindBoolean
}

// String renders the value as text. Numbers parsed from text keep their
// original spelling.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindNumber:
		if v.source != "" {
			return v.source
		}
		return strconv.FormatFloat(v.Data.(float64), 'g', -1, 64)
	case KindText:
		return v.Data.(string)
	case KindBoolean:
		return strconv.FormatBool(v.Data.(bool))
	case KindGeometry:
		return geometry.WKT(v.Data.(orb.Geometry))
	default:
		return fmt.Sprint(v.Data)
	}
}

// ToNumber returns v as a number, parsing text when needed.
func (v Value) ToNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Data.(float64), true
	case KindText:
		return parseNumber(v.Data.(string))
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// literalValue evaluates literal text: a number when it parses as one,
// text otherwise.
func literalValue(text string) Value {
	if f, ok := parseNumber(text); ok {
		return Value{Kind: KindNumber, Data: f, source: strings.TrimSpace(text)}
	}
	return TextValue(text)
}

// ValueOf converts a record property value. Strings stay text; coercion is
// left to the operations.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case string:
		return TextValue(v), nil
	case bool:
		return TextValue(strconv.FormatBool(v)), nil
	case float64:
		return NumberValue(v), nil
	case float32:
		return NumberValue(float64(v)), nil
	case int:
		return NumberValue(float64(v)), nil
	case int8:
		return NumberValue(float64(v)), nil
	case int16:
		return NumberValue(float64(v)), nil
	case int32:
		return NumberValue(float64(v)), nil
	case int64:
		return NumberValue(float64(v)), nil
	case uint:
		return NumberValue(float64(v)), nil
	case uint8:
		return NumberValue(float64(v)), nil
	case uint16:
		return NumberValue(float64(v)), nil
	case uint32:
		return NumberValue(float64(v)), nil
	case uint64:
		return NumberValue(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return TextValue(v.String()), nil
		}
		return NumberValue(f), nil
	case time.Time:
		return TextValue(v.Format(time.RFC3339Nano)), nil
	case []byte:
		if g, err := geometry.DecodeWKB(v); err == nil {
			return GeometryValue(g), nil
		}
		return TextValue(string(v)), nil
	case orb.Geometry:
		return GeometryValue(v), nil
	case fmt.Stringer:
		return TextValue(v.String()), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported property value %T", ErrTypeMismatch, x)
	}
}

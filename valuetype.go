package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/govalues/decimal"
	"github.com/rickb777/date/v2"
)

// ValueType converts raw stipulated values, usually strings read from a data
// source, into the Go type a feature declares, and renders them back.
type ValueType interface {
	Name() string
	Coerce(raw any) (any, error)
	Format(value any) string
}

var (
	Float   ValueType = floatType{}
	Int     ValueType = intType{}
	Int64   ValueType = int64Type{}
	String  ValueType = stringType{}
	Bool    ValueType = boolType{}
	Date    ValueType = dateType{}
	Decimal ValueType = decimalType{}
)

var errNotNumber = errors.New("value is not a number")

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Coerce(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return nil, errNotNumber
	}
}

// Format always keeps a decimal point so 3 renders as 3.0.
func (floatType) Format(value any) string {
	f, ok := value.(float64)
	if !ok {
		return fmt.Sprint(value)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Coerce(raw any) (any, error) {
	n, err := coerceInt64(raw)
	if err != nil {
		return nil, err
	}
	return int(n), nil
}

func (intType) Format(value any) string { return fmt.Sprint(value) }

type int64Type struct{}

func (int64Type) Name() string { return "int64" }

func (int64Type) Coerce(raw any) (any, error) {
	return coerceInt64(raw)
}

func (int64Type) Format(value any) string { return fmt.Sprint(value) }

func coerceInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	default:
		return 0, errNotNumber
	}
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Coerce(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return nil, errors.New("value is not a string")
	}
}

func (stringType) Format(value any) string { return fmt.Sprint(value) }

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Coerce(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case bool:
		return v, nil
	default:
		return nil, errors.New("value is not a boolean")
	}
}

func (boolType) Format(value any) string { return fmt.Sprint(value) }

// dateType parses ISO-8601 calendar dates (2006-01-02).
type dateType struct{}

func (dateType) Name() string { return "date" }

func (dateType) Coerce(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return date.ParseISO(strings.TrimSpace(v))
	case date.Date:
		return v, nil
	default:
		return nil, errors.New("value is not a date")
	}
}

func (dateType) Format(value any) string {
	if d, ok := value.(date.Date); ok {
		return d.String()
	}
	return fmt.Sprint(value)
}

type decimalType struct{}

func (decimalType) Name() string { return "decimal" }

func (decimalType) Coerce(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return decimal.Parse(strings.TrimSpace(v))
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.New(int64(v), 0)
	case int64:
		return decimal.New(v, 0)
	case float64:
		return decimal.NewFromFloat64(v)
	default:
		return nil, errNotNumber
	}
}

func (decimalType) Format(value any) string {
	if d, ok := value.(decimal.Decimal); ok {
		return d.String()
	}
	return fmt.Sprint(value)
}

type passthroughType[T any] struct{}

// Passthrough accepts values that already have type T and rejects anything
// else. It is the default value type for features whose type has no parser.
func Passthrough[T any]() ValueType {
	return passthroughType[T]{}
}

func (passthroughType[T]) Name() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func (passthroughType[T]) Coerce(raw any) (any, error) {
	v, ok := raw.(T)
	if !ok {
		return nil, fmt.Errorf("expected %T, got %T", *new(T), raw)
	}
	return v, nil
}

func (passthroughType[T]) Format(value any) string { return fmt.Sprint(value) }

// valueTypeFor picks the built-in value type matching T.
func valueTypeFor[T any]() ValueType {
	var zero T
	switch any(zero).(type) {
	case float64:
		return Float
	case int:
		return Int
	case int64:
		return Int64
	case string:
		return String
	case bool:
		return Bool
	case date.Date:
		return Date
	case decimal.Decimal:
		return Decimal
	default:
		return Passthrough[T]()
	}
}

// coerce runs vt and wraps failures with the feature name.
func coerce(feature AnyFeature, raw any) (any, error) {
	vt := feature.ValueType()
	v, err := vt.Coerce(raw)
	if err != nil {
		return nil, &ValueCoercionError{
			Feature:   feature.Name(),
			ValueType: vt.Name(),
			Raw:       raw,
			Cause:     err,
		}
	}
	if typed, ok := feature.(interface{ accepts(any) bool }); ok && !typed.accepts(v) {
		return nil, &ValueCoercionError{
			Feature:   feature.Name(),
			ValueType: vt.Name(),
			Raw:       raw,
			Cause:     fmt.Errorf("value type produced %T", v),
		}
	}
	return v, nil
}

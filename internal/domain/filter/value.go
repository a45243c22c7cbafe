package filter

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValueType is the declared type of a filterable field.
type ValueType string

const (
	TypeBool    ValueType = "bool"
	TypeInt     ValueType = "int"  // int32
	TypeLong    ValueType = "long" // int64
	TypeFloat   ValueType = "float"
	TypeDecimal ValueType = "decimal"
	TypeString  ValueType = "string"
	TypeEnum    ValueType = "enum"
	TypeDate    ValueType = "date"    // calendar date, UTC midnight
	TypeInstant ValueType = "instant" // point in time, UTC
	TypeUUID    ValueType = "uuid"
)

// DateLayout is the wire format of date operands.
const DateLayout = "2006-01-02"

// Valid reports whether t is one of the declared value types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeBool, TypeInt, TypeLong, TypeFloat, TypeDecimal,
		TypeString, TypeEnum, TypeDate, TypeInstant, TypeUUID:
		return true
	}
	return false
}

// Kind returns the filter kind a field of this type gets.
func (t ValueType) Kind() Kind {
	switch t {
	case TypeInt, TypeLong, TypeFloat, TypeDecimal, TypeDate, TypeInstant:
		return KindRange
	case TypeString:
		return KindString
	default:
		return KindBasic
	}
}

// Operand is the set of Go types a filter can be built from.
type Operand interface {
	~bool | ~int32 | ~int64 | ~float64 | ~string | time.Time | decimal.Decimal | uuid.UUID
}

// Ordered is the subset of Operand usable with range operations.
type Ordered interface {
	~int32 | ~int64 | ~float64 | time.Time | decimal.Decimal
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Coerce converts v into the canonical representation of t:
// bool, int32, int64, float64, decimal.Decimal, string, time.Time (UTC) or uuid.UUID.
// Pointers are dereferenced and driver.Valuer implementations are unwrapped.
// A nil value reports ok=false.
func Coerce(t ValueType, v any) (out any, ok bool, err error) {
	if v == nil {
		return nil, false, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		return coerceTime(t, rv.Interface().(time.Time))
	case decimalType:
		return coerceDecimal(t, rv.Interface().(decimal.Decimal))
	case uuidType:
		if t == TypeUUID {
			return rv.Interface().(uuid.UUID), true, nil
		}
		return nil, false, mismatch(t, v)
	}

	if rv.Type().Implements(valuerType) {
		dv, err := rv.Interface().(driver.Valuer).Value()
		if err != nil {
			return nil, false, err
		}
		if dv == nil {
			return nil, false, nil
		}
		return Coerce(t, dv)
	}

	switch rv.Kind() {
	case reflect.Bool:
		if t == TypeBool {
			return rv.Bool(), true, nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return coerceInt(t, rv.Int(), v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, false, fmt.Errorf("value %d overflows %s", u, t)
		}
		return coerceInt(t, int64(u), v)
	case reflect.Float32, reflect.Float64:
		if t == TypeFloat {
			return rv.Float(), true, nil
		}
		if t == TypeDecimal {
			return decimal.NewFromFloat(rv.Float()), true, nil
		}
	case reflect.String:
		switch t {
		case TypeString, TypeEnum:
			return rv.String(), true, nil
		case TypeUUID:
			id, err := uuid.Parse(rv.String())
			if err != nil {
				return nil, false, err
			}
			return id, true, nil
		}
	case reflect.Array:
		if t == TypeUUID && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
			var id uuid.UUID
			reflect.Copy(reflect.ValueOf(id[:]), rv)
			return id, true, nil
		}
	}
	return nil, false, mismatch(t, v)
}

func coerceInt(t ValueType, n int64, orig any) (any, bool, error) {
	switch t {
	case TypeInt:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, false, fmt.Errorf("value %d overflows int", n)
		}
		return int32(n), true, nil
	case TypeLong:
		return n, true, nil
	case TypeFloat:
		return float64(n), true, nil
	case TypeDecimal:
		return decimal.NewFromInt(n), true, nil
	}
	return nil, false, mismatch(t, orig)
}

func coerceTime(t ValueType, v time.Time) (any, bool, error) {
	switch t {
	case TypeDate:
		y, m, d := v.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true, nil
	case TypeInstant:
		return v.UTC(), true, nil
	}
	return nil, false, mismatch(t, v)
}

func coerceDecimal(t ValueType, v decimal.Decimal) (any, bool, error) {
	switch t {
	case TypeDecimal:
		return v, true, nil
	case TypeFloat:
		f, _ := v.Float64()
		return f, true, nil
	}
	return nil, false, mismatch(t, v)
}

// ErrTypeMismatch is wrapped by every Coerce failure caused by an incompatible Go type.
var ErrTypeMismatch = errors.New("type mismatch")

func mismatch(t ValueType, v any) error {
	return fmt.Errorf("%w: %T is not a %s", ErrTypeMismatch, v, t)
}

// ParseValue parses the textual form of a t value.
func ParseValue(t ValueType, s string) (any, error) {
	switch t {
	case TypeBool:
		return strconv.ParseBool(s)
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case TypeLong:
		return strconv.ParseInt(s, 10, 64)
	case TypeFloat:
		return strconv.ParseFloat(s, 64)
	case TypeDecimal:
		return decimal.NewFromString(s)
	case TypeString, TypeEnum:
		return s, nil
	case TypeDate:
		return time.Parse(DateLayout, s)
	case TypeInstant:
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	case TypeUUID:
		return uuid.Parse(s)
	}
	return nil, fmt.Errorf("unsupported value type %q", t)
}

// Equal compares two canonical values.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	default:
		return a == b
	}
}

// Compare orders two canonical values of the same type. ok is false when the
// values are not mutually ordered.
func Compare(a, b any) (cmp int, ok bool) {
	switch x := a.(type) {
	case int32:
		y, ok := b.(int32)
		return compareOrdered(x, y), ok
	case int64:
		y, ok := b.(int64)
		return compareOrdered(x, y), ok
	case float64:
		y, ok := b.(float64)
		if !ok || math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		return compareOrdered(x, y), true
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return x.Cmp(y), ok
	}
	return 0, false
}

func compareOrdered[T int32 | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Format renders a canonical value the way it is written in query parameters.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateLayout)
		}
		return x.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

package bridge

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/native"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Coerce converts a foreign result to the Go representation of type t:
// bool for Z, int8 for B, uint16 for C, int16 for S, int32 for I, int64 for
// J, float32 for F and float64 for D. Conversion is permissive: numbers
// narrow like JVM casts, numeric strings parse and nil becomes the zero value
// of a primitive. Reference types keep nil as null. Other class types accept
// any value the host can represent (objects, strings, boxable numbers) and
// leave the type check to the generated checkcast.
func Coerce(v any, t signature.Type) (any, error) {
	if b, ok := v.(*native.Boxed); ok {
		v = b.Value
	}
	switch {
	case t.IsVoid():
		return nil, nil
	case t.IsPrimitive():
		return coercePrimitive(v, t)
	case t == signature.Object:
		return v, nil
	case v == nil:
		return nil, nil
	case t == signature.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case t.IsArray():
		return coerceArray(v, t)
	}

	if p := native.PrimitiveOf(t.ClassName()); p != "" {
		return coercePrimitive(v, signature.Type(p))
	}
	// the caller's checkcast decides whether the class fits
	switch v.(type) {
	case ObjectRef, *ObjectRef, *vm.JObject, *vm.JArray, string, signature.Handle:
		return v, nil
	}
	if _, ok := native.Box(v); ok {
		return v, nil
	}
	return nil, coerceError(v, t)
}

func coerceError(v any, t signature.Type) error {
	return errors.New(errors.KindDispatch).Value(v).
		Detail("coerce: cannot convert %T to %s", v, t).Build()
}

func coerceArray(v any, t signature.Type) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, coerceError(v, t)
	}
	out := make([]any, rv.Len())
	for i := range out {
		e, err := Coerce(rv.Index(i).Interface(), t.Elem())
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func coercePrimitive(v any, t signature.Type) (any, error) {
	switch x := v.(type) {
	case nil:
		return fromInt(0, t), nil
	case bool:
		if x {
			return fromInt(1, t), nil
		}
		return fromInt(0, t), nil
	case signature.Handle:
		return fromInt(int64(x), t), nil
	case float32:
		return fromFloat(float64(x), t), nil
	case float64:
		return fromFloat(x, t), nil
	case string:
		return parsePrimitive(x, t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt(rv.Int(), t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromInt(int64(rv.Uint()), t), nil
	}
	return nil, coerceError(v, t)
}

func parsePrimitive(s string, t signature.Type) (any, error) {
	trimmed := strings.TrimSpace(s)
	if t == signature.Boolean {
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b, nil
		}
	}
	if t == signature.Char && utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return fromInt(int64(r), t), nil
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return fromInt(n, t), nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return fromFloat(f, t), nil
	}
	return nil, coerceError(s, t)
}

func fromInt(n int64, t signature.Type) any {
	switch t {
	case signature.Boolean:
		return n != 0
	case signature.Byte:
		return int8(n)
	case signature.Char:
		return uint16(n)
	case signature.Short:
		return int16(n)
	case signature.Int:
		return int32(n)
	case signature.Float:
		return float32(n)
	case signature.Double:
		return float64(n)
	}
	return n
}

// fromFloat converts like the JVM's d2i/d2l: NaN is 0 and out of range
// values saturate. Narrower integral types truncate the int result.
func fromFloat(f float64, t signature.Type) any {
	switch t {
	case signature.Boolean:
		return f != 0
	case signature.Float:
		return float32(f)
	case signature.Double:
		return f
	case signature.Long:
		return saturate(f, math.MinInt64, math.MaxInt64)
	}
	return fromInt(int64(int32(saturate(f, math.MinInt32, math.MaxInt32))), t)
}

func saturate(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return int64(f)
}

package native

import "fmt"

// Wrapper classes of the primitive types.
const (
	ClassBoolean   = "java/lang/Boolean"
	ClassByte      = "java/lang/Byte"
	ClassCharacter = "java/lang/Character"
	ClassShort     = "java/lang/Short"
	ClassInteger   = "java/lang/Integer"
	ClassLong      = "java/lang/Long"
	ClassFloat     = "java/lang/Float"
	ClassDouble    = "java/lang/Double"
)

var wrappers = map[string]string{
	"Z": ClassBoolean,
	"B": ClassByte,
	"C": ClassCharacter,
	"S": ClassShort,
	"I": ClassInteger,
	"J": ClassLong,
	"F": ClassFloat,
	"D": ClassDouble,
}

// Boxed represents an instance of a primitive wrapper class such as
// java.lang.Integer. Value holds the Go representation of the primitive:
// bool, int8, uint16 (char), int16, int32, int64, float32 or float64.
type Boxed struct {
	Class string
	Value any
}

func (b *Boxed) String() string {
	if c, ok := b.Value.(uint16); ok {
		return string(rune(c))
	}
	return fmt.Sprint(b.Value)
}

// WrapperClass returns the wrapper class of a primitive descriptor, or "".
func WrapperClass(desc string) string {
	return wrappers[desc]
}

// PrimitiveOf returns the primitive descriptor wrapped by class, or "".
func PrimitiveOf(class string) string {
	for d, c := range wrappers {
		if c == class {
			return d
		}
	}
	return ""
}

// IntegerValueOf creates a java.lang.Integer (boxing).
func IntegerValueOf(v int32) *Boxed {
	return &Boxed{Class: ClassInteger, Value: v}
}

// LongValueOf creates a java.lang.Long.
func LongValueOf(v int64) *Boxed {
	return &Boxed{Class: ClassLong, Value: v}
}

// Box wraps a Go primitive in its wrapper class. Go int is boxed as
// java.lang.Long.
func Box(v any) (*Boxed, bool) {
	switch x := v.(type) {
	case bool:
		return &Boxed{Class: ClassBoolean, Value: x}, true
	case int8:
		return &Boxed{Class: ClassByte, Value: x}, true
	case uint16:
		return &Boxed{Class: ClassCharacter, Value: x}, true
	case int16:
		return &Boxed{Class: ClassShort, Value: x}, true
	case int32:
		return IntegerValueOf(x), true
	case int64:
		return LongValueOf(x), true
	case int:
		return LongValueOf(int64(x)), true
	case float32:
		return &Boxed{Class: ClassFloat, Value: x}, true
	case float64:
		return &Boxed{Class: ClassDouble, Value: x}, true
	}
	return nil, false
}

package signature

import (
	"fmt"
	"strings"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// Type is a JVM field descriptor, or V for a void return.
type Type string

// Common types.
const (
	Void    Type = "V"
	Boolean Type = "Z"
	Byte    Type = "B"
	Char    Type = "C"
	Short   Type = "S"
	Int     Type = "I"
	Long    Type = "J"
	Float   Type = "F"
	Double  Type = "D"
	Object  Type = "Ljava/lang/Object;"
	String  Type = "Ljava/lang/String;"
)

var sourceNames = map[string]Type{
	"void":    Void,
	"boolean": Boolean,
	"byte":    Byte,
	"char":    Char,
	"short":   Short,
	"int":     Int,
	"long":    Long,
	"float":   Float,
	"double":  Double,
}

// ClassType returns the type of instances of the named class.
func ClassType(name string) Type {
	return Type(classfile.ClassDescriptor(InternalName(name)))
}

// ArrayOf returns the array type with elements of t.
func ArrayOf(t Type) Type { return "[" + t }

// ParseType accepts a descriptor (I, Ljava/lang/String;, [J) or a Java
// source spelling (int, java.lang.String, long[]).
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "V" || classfile.ValidFieldDescriptor(s) {
		return Type(s), nil
	}
	dims := 0
	for strings.HasSuffix(s, "[]") {
		dims++
		s = strings.TrimSpace(strings.TrimSuffix(s, "[]"))
	}
	t, ok := sourceNames[s]
	switch {
	case ok && t == Void && dims > 0:
		return "", fmt.Errorf("invalid type: array of void")
	case ok:
	case s == "" || strings.ContainsAny(s, ";[()<> "):
		return "", fmt.Errorf("invalid type %q", s)
	default:
		t = ClassType(s)
	}
	return Type(strings.Repeat("[", dims)) + t, nil
}

// IsVoid reports whether t is the void return type.
func (t Type) IsVoid() bool { return t == Void }

// IsPrimitive reports whether t is a primitive value type.
func (t Type) IsPrimitive() bool { return classfile.IsPrimitive(string(t)) }

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return strings.HasPrefix(string(t), "[") }

// Elem returns the element type of an array type.
func (t Type) Elem() Type { return t[1:] }

// ClassName returns the internal name of a class type, or the descriptor of
// an array type.
func (t Type) ClassName() string { return classfile.ClassNameOf(string(t)) }

// Slots returns the number of local variable slots a value of t occupies.
func (t Type) Slots() int { return classfile.SlotSize(string(t)) }

// Valid reports whether t is a field descriptor.
func (t Type) Valid() bool { return classfile.ValidFieldDescriptor(string(t)) }

// String returns the Java source spelling of the type.
func (t Type) String() string {
	dims := 0
	for strings.HasPrefix(string(t[dims:]), "[") {
		dims++
	}
	base := t[dims:]
	name := ""
	for n, v := range sourceNames {
		if v == base {
			name = n
			break
		}
	}
	if name == "" {
		name = BinaryName(base.ClassName())
	}
	return name + strings.Repeat("[]", dims)
}

// MarshalText implements encoding.TextMarshaler using the source spelling.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Package signature describes the shape of a proxy class before it is
// synthesized: its name, parent, native handle and the constructors and
// methods that forward to the foreign runtime.
//
// The model is plain data. It can be built in code, decoded from JSON, and
// inspected at any point before the class is materialized.
package signature

import (
	"fmt"
	"strings"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// Handle is an opaque 64-bit reference owned by the foreign runtime. It has
// no arithmetic meaning and is never dereferenced on this side.
type Handle int64

// Visibility is the access level of a synthesized member.
type Visibility uint16

const (
	Private   Visibility = classfile.AccPrivate
	Public    Visibility = classfile.AccPublic
	Protected Visibility = classfile.AccProtected
)

// Normalize maps anything other than public or protected to private.
func (v Visibility) Normalize() Visibility {
	switch v {
	case Public, Protected:
		return v
	}
	return Private
}

func (v Visibility) String() string {
	switch v.Normalize() {
	case Public:
		return "public"
	case Protected:
		return "protected"
	}
	return "private"
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown words decode
// as private.
func (v *Visibility) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "public":
		*v = Public
	case "protected":
		*v = Protected
	default:
		*v = Private
	}
	return nil
}

// ConstructorSpec describes a forwarding constructor.
type ConstructorSpec struct {
	Visibility Visibility `json:"visibility"`
	Params     []Type     `json:"params,omitempty"`
}

// Descriptor returns the JVM method descriptor of the constructor.
func (c ConstructorSpec) Descriptor() string {
	return classfile.FormatMethodDescriptor("V", descriptors(c.Params)...)
}

// MethodSpec describes a forwarding method.
type MethodSpec struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Static     bool       `json:"static,omitempty"`
	Return     Type       `json:"return"`
	Params     []Type     `json:"params,omitempty"`
}

// Descriptor returns the JVM method descriptor of the method.
func (m MethodSpec) Descriptor() string {
	ret := m.Return
	if ret == "" {
		ret = Void
	}
	return classfile.FormatMethodDescriptor(string(ret), descriptors(m.Params)...)
}

func (m MethodSpec) String() string {
	kind := ""
	if m.Static {
		kind = "static "
	}
	return fmt.Sprintf("%s %s%s%s", m.Visibility, kind, m.Name, m.Descriptor())
}

// ClassSpec is the complete description of a proxy class.
type ClassSpec struct {
	Name         string            `json:"name"`
	Parent       string            `json:"parent"`
	Abstract     bool              `json:"abstract,omitempty"`
	Handle       Handle            `json:"handle"`
	Constructors []ConstructorSpec `json:"constructors,omitempty"`
	Methods      []MethodSpec      `json:"methods,omitempty"`
}

// InternalName converts a binary class name (java.lang.String) to the
// internal form used in class files (java/lang/String).
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// BinaryName converts an internal class name to its dotted form.
func BinaryName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

func descriptors(ts []Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

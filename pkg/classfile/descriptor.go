package classfile

import (
	"fmt"
	"strings"
)

// MethodDescriptor is a parsed method descriptor such as (IJ)Ljava/lang/Object;.
type MethodDescriptor struct {
	Params []string
	Return string
}

// String formats the descriptor.
func (md *MethodDescriptor) String() string {
	return FormatMethodDescriptor(md.Return, md.Params...)
}

// ArgSlots returns the number of local variable slots the parameters occupy.
func (md *MethodDescriptor) ArgSlots() int {
	n := 0
	for _, p := range md.Params {
		n += SlotSize(p)
	}
	return n
}

// FormatMethodDescriptor builds a method descriptor from field descriptors.
func FormatMethodDescriptor(ret string, params ...string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p)
	}
	b.WriteByte(')')
	b.WriteString(ret)
	return b.String()
}

// ParseMethodDescriptor splits a method descriptor into parameter and return
// field descriptors.
func ParseMethodDescriptor(descriptor string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	md := &MethodDescriptor{}
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		next, err := scanFieldType(descriptor, i)
		if err != nil {
			return nil, fmt.Errorf("invalid method descriptor %s: %w", descriptor, err)
		}
		md.Params = append(md.Params, descriptor[i:next])
		i = next
	}
	if i >= len(descriptor) {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	ret := descriptor[i+1:]
	if ret != "V" {
		if next, err := scanFieldType(ret, 0); err != nil || next != len(ret) {
			return nil, fmt.Errorf("invalid return type in method descriptor: %s", descriptor)
		}
	}
	md.Return = ret
	return md, nil
}

// ValidFieldDescriptor reports whether s is exactly one field descriptor.
func ValidFieldDescriptor(s string) bool {
	next, err := scanFieldType(s, 0)
	return err == nil && next == len(s)
}

// scanFieldType returns the end offset of the field type starting at i.
func scanFieldType(s string, i int) (int, error) {
	start := i
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i-start > 255 {
		return 0, fmt.Errorf("too many array dimensions at offset %d", start)
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated type at offset %d", start)
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("unterminated class type at offset %d", i)
		}
		return i + end + 1, nil
	default:
		return 0, fmt.Errorf("invalid type descriptor char '%c' at offset %d", s[i], i)
	}
}

// SlotSize returns how many local variable or operand stack slots a value of
// the given field type occupies.
func SlotSize(desc string) int {
	switch desc {
	case "J", "D":
		return 2
	case "V", "":
		return 0
	}
	return 1
}

// IsPrimitive reports whether desc names a primitive type.
func IsPrimitive(desc string) bool {
	return len(desc) == 1 && strings.ContainsRune("BCDFIJSZ", rune(desc[0]))
}

// IsReference reports whether desc names a class or array type.
func IsReference(desc string) bool {
	return strings.HasPrefix(desc, "L") || strings.HasPrefix(desc, "[")
}

// ClassNameOf returns the name CONSTANT_Class uses for a reference type:
// the internal name for class types and the descriptor itself for arrays.
func ClassNameOf(desc string) string {
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		return desc[1 : len(desc)-1]
	}
	return desc
}

// ClassDescriptor returns the field descriptor of a class given its internal
// name. Array class names are already descriptors.
func ClassDescriptor(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}

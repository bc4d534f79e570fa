package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Bytes serializes the class file.
func (cf *ClassFile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := cf.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the class file in the JVM binary format.
//
// Fields and methods refer to their names by string, so every name,
// descriptor and attribute name must already be present in the constant pool
// as a Utf8 entry. Code and ConstantValue are encoded from the parsed
// representation when no raw attribute of that name is present.
func (cf *ClassFile) WriteTo(w io.Writer) (int64, error) {
	utf8 := make(map[string]uint16)
	for i, e := range cf.ConstantPool {
		if u, ok := e.(*ConstantUtf8); ok {
			if _, seen := utf8[u.Value]; !seen {
				utf8[u.Value] = uint16(i)
			}
		}
	}
	lookup := func(s string) (uint16, error) {
		i, ok := utf8[s]
		if !ok {
			return 0, fmt.Errorf("Utf8 %q not in constant pool", s)
		}
		return i, nil
	}

	e := &encoder{}
	e.u4(classMagic)
	e.u2(cf.MinorVersion)
	e.u2(cf.MajorVersion)

	if len(cf.ConstantPool) > maxPoolSize {
		return 0, fmt.Errorf("constant pool too large: %d entries", len(cf.ConstantPool))
	}
	e.u2(uint16(len(cf.ConstantPool)))
	for i := 1; i < len(cf.ConstantPool); i++ {
		entry := cf.ConstantPool[i]
		if entry == nil {
			// second slot of a long or double
			continue
		}
		if err := e.constant(entry); err != nil {
			return 0, fmt.Errorf("writing constant pool entry %d: %w", i, err)
		}
	}

	e.u2(cf.AccessFlags)
	e.u2(cf.ThisClass)
	e.u2(cf.SuperClass)
	e.u2(uint16(len(cf.Interfaces)))
	for _, iface := range cf.Interfaces {
		e.u2(iface)
	}

	e.u2(uint16(len(cf.Fields)))
	for i := range cf.Fields {
		f := &cf.Fields[i]
		attrs := f.Attributes
		if f.ConstantValue != 0 && !hasAttribute(attrs, "ConstantValue") {
			data := make([]byte, 2)
			binary.BigEndian.PutUint16(data, f.ConstantValue)
			attrs = append(attrs[:len(attrs):len(attrs)], AttributeInfo{Name: "ConstantValue", Data: data})
		}
		if err := e.member(lookup, f.AccessFlags, f.Name, f.Descriptor, attrs); err != nil {
			return 0, fmt.Errorf("writing field %s: %w", f.Name, err)
		}
	}

	e.u2(uint16(len(cf.Methods)))
	for i := range cf.Methods {
		m := &cf.Methods[i]
		attrs := m.Attributes
		if m.Code != nil && !hasAttribute(attrs, "Code") {
			data, err := encodeCode(m.Code)
			if err != nil {
				return 0, fmt.Errorf("encoding Code for method %s: %w", m.Name, err)
			}
			attrs = append([]AttributeInfo{{Name: "Code", Data: data}}, attrs...)
		}
		if err := e.member(lookup, m.AccessFlags, m.Name, m.Descriptor, attrs); err != nil {
			return 0, fmt.Errorf("writing method %s: %w", m.Name, err)
		}
	}

	if err := e.attributes(lookup, cf.Attributes); err != nil {
		return 0, fmt.Errorf("writing class attributes: %w", err)
	}

	n, err := w.Write(e.buf.Bytes())
	return int64(n), err
}

func hasAttribute(attrs []AttributeInfo, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func encodeCode(code *CodeAttribute) ([]byte, error) {
	if len(code.Code) == 0 || len(code.Code) > math.MaxUint16 {
		return nil, fmt.Errorf("invalid code length %d", len(code.Code))
	}
	e := &encoder{}
	e.u2(code.MaxStack)
	e.u2(code.MaxLocals)
	e.u4(uint32(len(code.Code)))
	e.buf.Write(code.Code)
	e.u2(uint16(len(code.ExceptionHandlers)))
	for _, h := range code.ExceptionHandlers {
		e.u2(h.StartPC)
		e.u2(h.EndPC)
		e.u2(h.HandlerPC)
		e.u2(h.CatchType)
	}
	e.u2(0) // no nested attributes
	return e.buf.Bytes(), nil
}

// ExceptionsAttribute encodes an Exceptions attribute listing the given
// CONSTANT_Class indexes.
func ExceptionsAttribute(classIndexes ...uint16) AttributeInfo {
	e := &encoder{}
	e.u2(uint16(len(classIndexes)))
	for _, i := range classIndexes {
		e.u2(i)
	}
	return AttributeInfo{Name: "Exceptions", Data: e.buf.Bytes()}
}

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u1(v uint8)  { e.buf.WriteByte(v) }
func (e *encoder) u2(v uint16) { e.buf.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (e *encoder) u4(v uint32) { e.buf.Write(binary.BigEndian.AppendUint32(nil, v)) }
func (e *encoder) u8(v uint64) { e.buf.Write(binary.BigEndian.AppendUint64(nil, v)) }

func (e *encoder) constant(entry ConstantPoolEntry) error {
	e.u1(entry.Tag())
	switch c := entry.(type) {
	case *ConstantUtf8:
		if len(c.Value) > math.MaxUint16 {
			return fmt.Errorf("Utf8 too long: %d bytes", len(c.Value))
		}
		e.u2(uint16(len(c.Value)))
		e.buf.WriteString(c.Value)
	case *ConstantInteger:
		e.u4(uint32(c.Value))
	case *ConstantFloat:
		e.u4(math.Float32bits(c.Value))
	case *ConstantLong:
		e.u8(uint64(c.Value))
	case *ConstantDouble:
		e.u8(math.Float64bits(c.Value))
	case *ConstantClass:
		e.u2(c.NameIndex)
	case *ConstantString:
		e.u2(c.StringIndex)
	case *ConstantFieldref:
		e.u2(c.ClassIndex)
		e.u2(c.NameAndTypeIndex)
	case *ConstantMethodref:
		e.u2(c.ClassIndex)
		e.u2(c.NameAndTypeIndex)
	case *ConstantInterfaceMethodref:
		e.u2(c.ClassIndex)
		e.u2(c.NameAndTypeIndex)
	case *ConstantNameAndType:
		e.u2(c.NameIndex)
		e.u2(c.DescriptorIndex)
	default:
		return fmt.Errorf("cannot encode constant with tag %d", entry.Tag())
	}
	return nil
}

func (e *encoder) member(lookup func(string) (uint16, error), flags uint16, name, desc string, attrs []AttributeInfo) error {
	ni, err := lookup(name)
	if err != nil {
		return err
	}
	di, err := lookup(desc)
	if err != nil {
		return err
	}
	e.u2(flags)
	e.u2(ni)
	e.u2(di)
	return e.attributes(lookup, attrs)
}

func (e *encoder) attributes(lookup func(string) (uint16, error), attrs []AttributeInfo) error {
	e.u2(uint16(len(attrs)))
	for _, a := range attrs {
		ni, err := lookup(a.Name)
		if err != nil {
			return err
		}
		e.u2(ni)
		e.u4(uint32(len(a.Data)))
		e.buf.Write(a.Data)
	}
	return nil
}

package vm

import (
	"fmt"
	"sync"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// Class is a resolved class: its parsed file, its super class and the
// storage for its static fields.
type Class struct {
	Name   string
	File   *classfile.ClassFile
	Loader ClassLoader
	Super  *Class

	mu      sync.RWMutex
	statics map[string]Value
}

func newClass(name string, cf *classfile.ClassFile, loader ClassLoader, super *Class) (*Class, error) {
	c := &Class{
		Name:    name,
		File:    cf,
		Loader:  loader,
		Super:   super,
		statics: make(map[string]Value),
	}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		if !f.IsStatic() {
			continue
		}
		v := ZeroValue(f.Descriptor)
		if f.ConstantValue != 0 {
			cv, err := constantValue(cf.ConstantPool, f.ConstantValue)
			if err != nil {
				return nil, fmt.Errorf("class %s: field %s: %w", name, f.Name, err)
			}
			v = cv
		}
		c.statics[f.Name] = v
	}
	return c, nil
}

func constantValue(pool []classfile.ConstantPoolEntry, index uint16) (Value, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, fmt.Errorf("invalid constant pool index %d", index)
	}
	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		return IntValue(c.Value), nil
	case *classfile.ConstantLong:
		return LongValue(c.Value), nil
	case *classfile.ConstantFloat:
		return FloatValue(c.Value), nil
	case *classfile.ConstantDouble:
		return DoubleValue(c.Value), nil
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return Value{}, err
		}
		return RefValue(s), nil
	}
	return Value{}, fmt.Errorf("unsupported constant (tag=%d) at index %d", pool[index].Tag(), index)
}

// FindMethod looks up a method by name and descriptor in the class and its
// super classes, returning the declaring class too.
func (c *Class) FindMethod(name, descriptor string) (*Class, *classfile.MethodInfo) {
	for k := c; k != nil; k = k.Super {
		if m := k.File.FindMethod(name, descriptor); m != nil {
			return k, m
		}
	}
	return nil, nil
}

// FindField looks up a field by name in the class and its super classes.
func (c *Class) FindField(name string) (*Class, *classfile.FieldInfo) {
	for k := c; k != nil; k = k.Super {
		if f := k.File.FindField(name); f != nil {
			return k, f
		}
	}
	return nil, nil
}

// IsSubclassOf reports whether the class is name, extends it or directly
// implements it somewhere in its hierarchy.
func (c *Class) IsSubclassOf(name string) bool {
	if name == ObjectClass {
		return true
	}
	for k := c; k != nil; k = k.Super {
		if k.Name == name {
			return true
		}
		for _, idx := range k.File.Interfaces {
			if iface, err := classfile.GetClassName(k.File.ConstantPool, idx); err == nil && iface == name {
				return true
			}
		}
	}
	return false
}

// Static returns the current value of a static field declared by this class.
func (c *Class) Static(name string) (Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.statics[name]
	return v, ok
}

func (c *Class) setStatic(name string, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statics[name] = v
}

// NewInstance allocates an object with every instance field of the
// hierarchy set to its default value. No constructor runs.
func (c *Class) NewInstance() *JObject {
	obj := &JObject{ClassName: c.Name, Class: c, Fields: make(map[string]Value)}
	for k := c; k != nil; k = k.Super {
		for i := range k.File.Fields {
			f := &k.File.Fields[i]
			if f.IsStatic() {
				continue
			}
			if _, shadowed := obj.Fields[f.Name]; !shadowed {
				obj.Fields[f.Name] = ZeroValue(f.Descriptor)
			}
		}
	}
	return obj
}

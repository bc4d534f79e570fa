package synth

import (
	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/native"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// generator writes the class file of one template.
type generator struct {
	t      *Template
	b      *bridge.Bindings
	pool   *classfile.PoolBuilder
	throws classfile.AttributeInfo
}

func (t *Template) generate(b *bridge.Bindings) (*classfile.ClassFile, error) {
	g := &generator{t: t, b: b, pool: classfile.NewPoolBuilder()}

	flags := uint16(classfile.AccPublic | classfile.AccSuper)
	if t.abstract {
		flags |= classfile.AccAbstract
	}
	cf := &classfile.ClassFile{
		MajorVersion: classfile.MajorVersionJava8,
		AccessFlags:  flags,
		ThisClass:    g.pool.Class(t.name),
		SuperClass:   g.pool.Class(t.parent),
	}

	g.pool.Utf8(bridge.ClassHandleField)
	g.pool.Utf8("J")
	g.pool.Utf8("ConstantValue")
	cf.Fields = []classfile.FieldInfo{{
		AccessFlags:   classfile.AccPublic | classfile.AccStatic | classfile.AccFinal,
		Name:          bridge.ClassHandleField,
		Descriptor:    "J",
		ConstantValue: g.pool.Long(int64(t.handle)),
	}}

	g.pool.Utf8("Exceptions")
	g.throws = classfile.ExceptionsAttribute(g.pool.Class(vm.ThrowableClass))

	for _, c := range t.ctors {
		m, err := g.constructor(c)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, m)
	}
	for _, spec := range t.methods {
		m, err := g.method(spec)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, m)
	}

	entries, err := g.pool.Entries()
	if err != nil {
		return nil, err
	}
	cf.ConstantPool = entries
	return cf, nil
}

func (g *generator) member(flags uint16, name, desc string, code *classfile.CodeAttribute) classfile.MethodInfo {
	g.pool.Utf8(name)
	g.pool.Utf8(desc)
	return classfile.MethodInfo{
		AccessFlags: flags,
		Name:        name,
		Descriptor:  desc,
		Code:        code,
		Attributes:  []classfile.AttributeInfo{g.throws},
	}
}

func (g *generator) constructor(c signature.ConstructorSpec) (classfile.MethodInfo, error) {
	a := classfile.NewAssembler(g.pool)
	a.Load(classfile.ClassDescriptor(g.t.name), 0)
	a.GetStatic(g.t.name, bridge.ClassHandleField, "J")
	locals := g.packArgs(a, c.Params, 1)
	a.Invoke(classfile.OpInvokespecial, g.t.parent, "<init>", bridge.BridgeConstructorDesc)
	a.Return("V")

	code, err := a.Code(locals)
	if err != nil {
		return classfile.MethodInfo{}, err
	}
	return g.member(uint16(c.Visibility), "<init>", c.Descriptor(), code), nil
}

func (g *generator) method(m signature.MethodSpec) (classfile.MethodInfo, error) {
	a := classfile.NewAssembler(g.pool)
	a.PushString(m.Name)

	entry, first := g.b.NormalCall, 1
	flags := uint16(m.Visibility)
	if m.Static {
		entry, first = g.b.StaticCall, 0
		flags |= classfile.AccStatic
		a.GetStatic(g.t.name, bridge.ClassHandleField, "J")
	} else {
		a.Load(classfile.ClassDescriptor(g.t.name), 0)
		a.GetField(g.t.objOwner, bridge.ObjectField, "J")
	}
	locals := g.packArgs(a, m.Params, first)
	a.Invoke(classfile.OpInvokestatic, entry.Class, entry.Name, entry.Descriptor)
	g.coerce(a, m.Return)

	code, err := a.Code(locals)
	if err != nil {
		return classfile.MethodInfo{}, err
	}
	return g.member(flags, m.Name, m.Descriptor(), code), nil
}

// packArgs pushes the argument list: null without parameters, otherwise an
// Object[] holding each parameter boxed, in declaration order. It returns
// the number of local slots the method uses.
func (g *generator) packArgs(a *classfile.Assembler, params []signature.Type, slot int) int {
	if len(params) == 0 {
		a.AconstNull()
		return slot
	}
	a.PushInt(int32(len(params)))
	a.ANewArray(vm.ObjectClass)
	for i, p := range params {
		a.Dup()
		a.PushInt(int32(i))
		a.Load(string(p), slot)
		if p.IsPrimitive() {
			wrapper := native.WrapperClass(string(p))
			a.Invoke(classfile.OpInvokestatic, wrapper, "valueOf",
				classfile.FormatMethodDescriptor(classfile.ClassDescriptor(wrapper), string(p)))
		}
		a.AAStore()
		slot += p.Slots()
	}
	return slot
}

// coerce converts the Object on top of the stack to ret and returns it.
func (g *generator) coerce(a *classfile.Assembler, ret signature.Type) {
	switch {
	case ret.IsVoid():
		a.Pop(string(signature.Object))
	case ret.IsPrimitive():
		u := g.b.Unbox[ret]
		a.Invoke(classfile.OpInvokestatic, u.Class, u.Name, u.Descriptor)
	case ret == signature.Object:
	default:
		a.PushString(string(ret))
		a.Invoke(classfile.OpInvokestatic, g.b.Coerce.Class, g.b.Coerce.Name, g.b.Coerce.Descriptor)
		a.CheckCast(castTarget(ret))
	}
	a.Return(string(ret))
}

// castTarget is the checkcast operand for a reference type: the class name,
// or the descriptor itself for arrays.
func castTarget(t signature.Type) string {
	if t.IsArray() {
		return string(t)
	}
	return t.ClassName()
}

package vm

import (
	"testing"

	"github.com/daimatz/jbridge/pkg/classfile"
)

type testField struct {
	flags    uint16
	name     string
	desc     string
	constant func(pool *classfile.PoolBuilder) uint16
}

type testMethod struct {
	flags     uint16
	name      string
	desc      string
	maxLocals int
	body      func(a *classfile.Assembler)
}

// buildTestClass assembles a public class with the given members.
func buildTestClass(t *testing.T, name, super string, fields []testField, methods ...testMethod) []byte {
	t.Helper()

	pool := classfile.NewPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.MajorVersionJava8,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    pool.Class(name),
		SuperClass:   pool.Class(super),
	}
	for _, f := range fields {
		pool.Utf8(f.name)
		pool.Utf8(f.desc)
		info := classfile.FieldInfo{AccessFlags: f.flags, Name: f.name, Descriptor: f.desc}
		if f.constant != nil {
			pool.Utf8("ConstantValue")
			info.ConstantValue = f.constant(pool)
		}
		cf.Fields = append(cf.Fields, info)
	}
	for _, m := range methods {
		pool.Utf8(m.name)
		pool.Utf8(m.desc)
		info := classfile.MethodInfo{AccessFlags: m.flags, Name: m.name, Descriptor: m.desc}
		if m.body != nil {
			asm := classfile.NewAssembler(pool)
			m.body(asm)
			code, err := asm.Code(m.maxLocals)
			if err != nil {
				t.Fatalf("assembling %s.%s%s: %v", name, m.name, m.desc, err)
			}
			info.Code = code
		}
		cf.Methods = append(cf.Methods, info)
	}

	entries, err := pool.Entries()
	if err != nil {
		t.Fatalf("constant pool of %s: %v", name, err)
	}
	cf.ConstantPool = entries
	data, err := cf.Bytes()
	if err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return data
}

func defineTestClass(t *testing.T, loader Definer, name, super string, fields []testField, methods ...testMethod) {
	t.Helper()
	if _, err := loader.DefineClass(name, buildTestClass(t, name, super, fields, methods...)); err != nil {
		t.Fatalf("DefineClass(%s): %v", name, err)
	}
}

// objectInit is the constructor prologue calling Object.<init>.
func objectInit(a *classfile.Assembler) {
	a.Load("Ljava/lang/Object;", 0)
	a.Invoke(classfile.OpInvokespecial, ObjectClass, "<init>", "()V")
}

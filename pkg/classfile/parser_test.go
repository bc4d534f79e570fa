package classfile

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildAdder assembles a class equivalent to
//
//	public class Adder { public static final long ID = 7L; static int add(int, int) }
//
// whose add body returns its first argument.
func buildAdder(t *testing.T) *ClassFile {
	t.Helper()

	pool := NewPoolBuilder()
	this := pool.Class("Adder")
	super := pool.Class("java/lang/Object")
	pool.Utf8("ID")
	pool.Utf8("J")
	pool.Utf8("ConstantValue")
	id := pool.Long(7)
	pool.Utf8("add")
	pool.Utf8("(II)I")

	asm := NewAssembler(pool)
	asm.Load("I", 0)
	asm.Return("I")
	code, err := asm.Code(2)
	if err != nil {
		t.Fatalf("assembling add: %v", err)
	}

	entries, err := pool.Entries()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return &ClassFile{
		MajorVersion: MajorVersionJava8,
		ConstantPool: entries,
		AccessFlags:  AccPublic | AccSuper,
		ThisClass:    this,
		SuperClass:   super,
		Fields: []FieldInfo{
			{AccessFlags: AccPublic | AccStatic | AccFinal, Name: "ID", Descriptor: "J", ConstantValue: id},
		},
		Methods: []MethodInfo{
			{AccessFlags: AccStatic, Name: "add", Descriptor: "(II)I", Code: code},
		},
	}
}

func TestParseGeneratedClass(t *testing.T) {
	data, err := buildAdder(t).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	cf, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse generated class: %v", err)
	}

	if cf.MajorVersion != MajorVersionJava8 {
		t.Errorf("major version: got %d, want %d", cf.MajorVersion, MajorVersionJava8)
	}

	className, err := GetClassName(cf.ConstantPool, cf.ThisClass)
	if err != nil {
		t.Fatalf("resolving this_class: %v", err)
	}
	if className != "Adder" {
		t.Errorf("this_class: got %q, want %q", className, "Adder")
	}
	if got := cf.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("super_class: got %q, want %q", got, "java/lang/Object")
	}

	add := cf.FindMethod("add", "(II)I")
	if add == nil {
		t.Fatal("add(II)I method not found")
	}
	if add.Code == nil {
		t.Fatal("add method has no Code attribute")
	}
	if diff := cmp.Diff([]byte{OpIload0, OpIreturn}, add.Code.Code); diff != "" {
		t.Errorf("add bytecode mismatch (-want +got):\n%s", diff)
	}
	if add.Code.MaxStack != 1 || add.Code.MaxLocals != 2 {
		t.Errorf("add limits: got stack=%d locals=%d, want 1, 2", add.Code.MaxStack, add.Code.MaxLocals)
	}

	id := cf.FindField("ID")
	if id == nil {
		t.Fatal("field ID not found")
	}
	c, ok := cf.ConstantPool[id.ConstantValue].(*ConstantLong)
	if !ok || c.Value != 7 {
		t.Errorf("ID ConstantValue: got %#v, want Long 7", cf.ConstantPool[id.ConstantValue])
	}
}

func TestWriteParsedClassIsStable(t *testing.T) {
	first, err := buildAdder(t).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	cf, err := ParseBytes(first)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	second, err := cf.Bytes()
	if err != nil {
		t.Fatalf("re-encoding parsed class: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("re-encoded class differs: %d bytes vs %d bytes", len(first), len(second))
	}
}

func TestExceptionsAttribute(t *testing.T) {
	pool := NewPoolBuilder()
	throwable := pool.Class("java/lang/Throwable")
	pool.Utf8("Exceptions")
	m := MethodInfo{Attributes: []AttributeInfo{ExceptionsAttribute(throwable)}}
	entries, err := pool.Entries()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	got, err := m.Exceptions(entries)
	if err != nil {
		t.Fatalf("Exceptions: %v", err)
	}
	if diff := cmp.Diff([]string{"java/lang/Throwable"}, got); diff != "" {
		t.Errorf("exceptions mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInvalidMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	if err == nil {
		t.Error("expected error for invalid magic number, got nil")
	}
}

func TestWriteRejectsUnknownNames(t *testing.T) {
	cf := buildAdder(t)
	cf.Methods[0].Name = "missing"
	if _, err := cf.Bytes(); err == nil {
		t.Error("expected error for method name absent from the constant pool, got nil")
	}
}

func TestFormatConstant(t *testing.T) {
	pool := NewPoolBuilder()
	indexes := map[string]uint16{
		"7":      pool.Integer(7),
		"-3L":    pool.Long(-3),
		`"hi\n"`: pool.String("hi\n"),
	}
	utf8 := pool.Utf8("raw")
	entries, err := pool.Entries()
	if err != nil {
		t.Fatal(err)
	}
	for want, i := range indexes {
		got, err := FormatConstant(entries, i)
		if err != nil {
			t.Errorf("FormatConstant(%d): %v", i, err)
			continue
		}
		if got != want {
			t.Errorf("FormatConstant(%d) = %s, want %s", i, got, want)
		}
	}
	if _, err := FormatConstant(entries, utf8); err == nil {
		t.Error("Utf8 entry formatted as a loadable constant")
	}
}

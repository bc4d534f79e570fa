package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/native"
)

// Well-known class names.
const (
	ObjectClass    = "java/lang/Object"
	StringClass    = "java/lang/String"
	ThrowableClass = "java/lang/Throwable"
)

var (
	bootstrapOnce sync.Once
	bootstrap     *bootstrapLoader
)

// bootstrapLoader serves the classes the interpreter needs when no JDK is
// available: a java/lang/Object whose constructor is native.
type bootstrapLoader struct {
	classes map[string]*classfile.ClassFile
}

// Bootstrap returns the built-in root loader.
func Bootstrap() ClassLoader {
	bootstrapOnce.Do(func() {
		bootstrap = &bootstrapLoader{
			classes: map[string]*classfile.ClassFile{
				ObjectClass: objectClassFile(),
			},
		}
	})
	return bootstrap
}

func (l *bootstrapLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := l.classes[name]; ok {
		return cf, nil
	}
	return nil, fmt.Errorf("bootstrap: %w: %s", ErrClassNotFound, name)
}

func objectClassFile() *classfile.ClassFile {
	pool := classfile.NewPoolBuilder()
	this := pool.Class(ObjectClass)
	pool.Utf8("<init>")
	pool.Utf8("()V")
	entries, err := pool.Entries()
	if err != nil {
		panic(err)
	}
	return &classfile.ClassFile{
		MajorVersion: classfile.MajorVersionJava8,
		ConstantPool: entries,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    this,
		Methods: []classfile.MethodInfo{
			{AccessFlags: classfile.AccPublic | classfile.AccNative, Name: "<init>", Descriptor: "()V"},
		},
	}
}

var unboxMethods = map[string]string{
	"Z": "booleanValue",
	"B": "byteValue",
	"C": "charValue",
	"S": "shortValue",
	"I": "intValue",
	"J": "longValue",
	"F": "floatValue",
	"D": "doubleValue",
}

func (vm *VM) registerBuiltins() {
	vm.RegisterNative(ObjectClass, "<init>", "()V", func(context.Context, []Value) (Value, error) {
		return Value{}, nil
	})

	for desc, unbox := range unboxMethods {
		desc := desc
		class := native.WrapperClass(desc)
		vm.RegisterNative(class, "valueOf", "("+desc+")L"+class+";", func(_ context.Context, args []Value) (Value, error) {
			b, err := Box(desc, args[0])
			if err != nil {
				return Value{}, err
			}
			return RefValue(b), nil
		})
		vm.RegisterNative(class, unbox, "()"+desc, func(_ context.Context, args []Value) (Value, error) {
			b, ok := args[0].Ref.(*native.Boxed)
			if !ok {
				return Value{}, classCast(refClassName(args[0]), class)
			}
			return Unbox(b)
		})
	}
}

// Box converts a primitive Value of the given descriptor into its wrapper
// object.
func Box(desc string, v Value) (*native.Boxed, error) {
	class := native.WrapperClass(desc)
	var x any
	switch desc {
	case "Z":
		x = v.Int != 0
	case "B":
		x = int8(v.Int)
	case "C":
		x = uint16(v.Int)
	case "S":
		x = int16(v.Int)
	case "I":
		x = v.Int
	case "J":
		x = v.Long
	case "F":
		x = v.Float
	case "D":
		x = v.Double
	default:
		return nil, fmt.Errorf("box: %q is not a primitive descriptor", desc)
	}
	return &native.Boxed{Class: class, Value: x}, nil
}

// Unbox converts a wrapper object back into a primitive Value.
func Unbox(b *native.Boxed) (Value, error) {
	switch x := b.Value.(type) {
	case bool:
		if x {
			return IntValue(1), nil
		}
		return IntValue(0), nil
	case int8:
		return IntValue(int32(x)), nil
	case uint16:
		return IntValue(int32(x)), nil
	case int16:
		return IntValue(int32(x)), nil
	case int32:
		return IntValue(x), nil
	case int64:
		return LongValue(x), nil
	case float32:
		return FloatValue(x), nil
	case float64:
		return DoubleValue(x), nil
	}
	return Value{}, fmt.Errorf("unbox: %s holds unsupported %T", b.Class, b.Value)
}

// refClassName names the class of a reference for diagnostics and type checks.
func refClassName(v Value) string {
	switch r := v.Ref.(type) {
	case *JObject:
		return r.ClassName
	case *JArray:
		return "[" + r.Component
	case *native.Boxed:
		return r.Class
	case string:
		return StringClass
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v.Ref)
}

// isAssignable reports whether reference v may be stored in a variable of
// class (or array descriptor) target.
func isAssignable(v Value, target string) bool {
	if v.IsNull() || target == ObjectClass {
		return true
	}
	switch r := v.Ref.(type) {
	case *JObject:
		return r.InstanceOf(target)
	case *JArray:
		if len(target) == 0 || target[0] != '[' {
			return false
		}
		elem := target[1:]
		return r.Component == elem || elem == "Ljava/lang/Object;" && classfile.IsReference(r.Component)
	case *native.Boxed:
		return r.Class == target || (target == "java/lang/Number" && r.Class != native.ClassBoolean && r.Class != native.ClassCharacter)
	case string:
		return target == StringClass || target == "java/lang/CharSequence"
	}
	return false
}

package bridge

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Runtime class and member names.
const (
	DispatcherClass = "jbridge/Dispatcher"
	ObjectClass     = "jbridge/ForeignObject"
	// ObjectField holds the foreign object handle of an instance.
	ObjectField = "obj"
	// ClassHandleField is the constant each synthesized class carries.
	ClassHandleField = "classHandle"
)

const (
	objectArray = "[Ljava/lang/Object;"
	callDesc    = "(Ljava/lang/String;J[Ljava/lang/Object;)Ljava/lang/Object;"
)

// BridgeConstructorDesc is the descriptor of the parent constructor every
// synthesized constructor delegates to.
const BridgeConstructorDesc = "(J[Ljava/lang/Object;)V"

// MethodRef names a method a synthesized class invokes.
type MethodRef struct {
	Class      string
	Name       string
	Descriptor string
}

// Bindings are the entry points generated code calls into, plus the runtime
// classes that declare them.
type Bindings struct {
	StaticCall MethodRef
	NormalCall MethodRef
	NewObject  MethodRef
	// Coerce converts an Object result to a reference type given as a
	// descriptor string.
	Coerce MethodRef
	// Unbox holds the primitive conversions, keyed by primitive descriptor.
	Unbox map[signature.Type]MethodRef

	// Classes maps each runtime class name to its class file bytes.
	Classes map[string][]byte
}

var (
	bindingsOnce sync.Once
	bindings     *Bindings
	bindingsErr  error
)

var unboxNames = map[signature.Type]string{
	signature.Boolean: "toBoolean",
	signature.Byte:    "toByte",
	signature.Char:    "toChar",
	signature.Short:   "toShort",
	signature.Int:     "toInt",
	signature.Long:    "toLong",
	signature.Float:   "toFloat",
	signature.Double:  "toDouble",
}

// EntryPoints returns the process-wide bindings, building them on first use.
func EntryPoints() (*Bindings, error) {
	bindingsOnce.Do(func() {
		bindings, bindingsErr = buildBindings()
	})
	return bindings, bindingsErr
}

func buildBindings() (*Bindings, error) {
	b := &Bindings{
		StaticCall: MethodRef{DispatcherClass, "doStaticCall", callDesc},
		NormalCall: MethodRef{DispatcherClass, "doNormalCall", callDesc},
		NewObject:  MethodRef{DispatcherClass, "newObject", "(J[Ljava/lang/Object;)J"},
		Coerce:     MethodRef{DispatcherClass, "coerce", "(Ljava/lang/Object;Ljava/lang/String;)Ljava/lang/Object;"},
		Unbox:      make(map[signature.Type]MethodRef, len(unboxNames)),
		Classes:    make(map[string][]byte, 2),
	}
	for t, name := range unboxNames {
		b.Unbox[t] = MethodRef{DispatcherClass, name, "(Ljava/lang/Object;)" + string(t)}
	}

	dispatcher, err := b.dispatcherClass()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", DispatcherClass, err)
	}
	object, err := b.objectClass()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", ObjectClass, err)
	}
	b.Classes[DispatcherClass] = dispatcher
	b.Classes[ObjectClass] = object
	return b, nil
}

// natives lists every native entry point of the dispatcher class.
func (b *Bindings) natives() []MethodRef {
	refs := []MethodRef{b.StaticCall, b.NormalCall, b.NewObject, b.Coerce}
	for _, t := range []signature.Type{
		signature.Boolean, signature.Byte, signature.Char, signature.Short,
		signature.Int, signature.Long, signature.Float, signature.Double,
	} {
		refs = append(refs, b.Unbox[t])
	}
	return refs
}

// dispatcherClass builds the final class holding the native entry points.
func (b *Bindings) dispatcherClass() ([]byte, error) {
	pool := classfile.NewPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.MajorVersionJava8,
		AccessFlags:  classfile.AccPublic | classfile.AccFinal | classfile.AccSuper,
		ThisClass:    pool.Class(DispatcherClass),
		SuperClass:   pool.Class(vm.ObjectClass),
	}
	throws := classfile.ExceptionsAttribute(pool.Class(vm.ThrowableClass))
	pool.Utf8("Exceptions")
	for _, ref := range b.natives() {
		pool.Utf8(ref.Name)
		pool.Utf8(ref.Descriptor)
		cf.Methods = append(cf.Methods, classfile.MethodInfo{
			AccessFlags: classfile.AccPublic | classfile.AccStatic | classfile.AccNative,
			Name:        ref.Name,
			Descriptor:  ref.Descriptor,
			Attributes:  []classfile.AttributeInfo{throws},
		})
	}
	return finish(cf, pool)
}

// objectClass builds jbridge/ForeignObject, whose bridging constructor asks
// the foreign runtime for the backing object and keeps its handle in obj.
func (b *Bindings) objectClass() ([]byte, error) {
	pool := classfile.NewPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.MajorVersionJava8,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    pool.Class(ObjectClass),
		SuperClass:   pool.Class(vm.ObjectClass),
	}
	pool.Utf8(ObjectField)
	pool.Utf8("J")
	cf.Fields = []classfile.FieldInfo{
		{AccessFlags: classfile.AccProtected | classfile.AccFinal, Name: ObjectField, Descriptor: "J"},
	}

	pool.Utf8("<init>")
	pool.Utf8(BridgeConstructorDesc)
	pool.Utf8("Exceptions")
	asm := classfile.NewAssembler(pool)
	asm.Load("L"+ObjectClass+";", 0)
	asm.Invoke(classfile.OpInvokespecial, vm.ObjectClass, "<init>", "()V")
	asm.Load("L"+ObjectClass+";", 0)
	asm.Load("J", 1)
	asm.Load(objectArray, 3)
	asm.Invoke(classfile.OpInvokestatic, b.NewObject.Class, b.NewObject.Name, b.NewObject.Descriptor)
	asm.PutField(ObjectClass, ObjectField, "J")
	asm.Return("V")
	code, err := asm.Code(4)
	if err != nil {
		return nil, err
	}
	cf.Methods = []classfile.MethodInfo{{
		AccessFlags: classfile.AccPublic,
		Name:        "<init>",
		Descriptor:  BridgeConstructorDesc,
		Code:        code,
		Attributes:  []classfile.AttributeInfo{classfile.ExceptionsAttribute(pool.Class(vm.ThrowableClass))},
	}}
	return finish(cf, pool)
}

func finish(cf *classfile.ClassFile, pool *classfile.PoolBuilder) ([]byte, error) {
	entries, err := pool.Entries()
	if err != nil {
		return nil, err
	}
	cf.ConstantPool = entries
	return cf.Bytes()
}

// Install makes the bridge runtime available to code loaded through loader:
// the runtime classes are defined there unless already visible, and their
// native methods are bound on machine to d.
func Install(machine *vm.VM, loader vm.Definer, d *Dispatcher) error {
	b, err := EntryPoints()
	if err != nil {
		return errors.New(errors.KindConfiguration).Cause(err).
			Detail("bridge runtime classes unavailable").Build()
	}

	for _, name := range []string{DispatcherClass, ObjectClass} {
		if _, err := loader.LoadClass(name); err == nil {
			continue
		} else if !stderrors.Is(err, vm.ErrClassNotFound) {
			return fmt.Errorf("install %s: %w", name, err)
		}
		if _, err := loader.DefineClass(name, b.Classes[name]); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
	}

	b.bind(machine, d)
	Logger().Debug("bridge runtime installed")
	return nil
}

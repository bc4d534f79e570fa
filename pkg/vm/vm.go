package vm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// defaultMaxFrameDepth is the default maximum number of nested method calls.
const defaultMaxFrameDepth = 1024

// NativeMethod implements a method in Go. For instance methods args[0] is
// the receiver. The returned Value is ignored for void methods.
type NativeMethod func(ctx context.Context, args []Value) (Value, error)

// Option configures a VM.
type Option func(*VM)

// WithMaxFrameDepth limits the nesting of method calls on one invocation.
func WithMaxFrameDepth(n int) Option {
	return func(vm *VM) {
		vm.maxFrameDepth = n
	}
}

// VM is the virtual machine that executes Java bytecode. A VM holds no
// per-call state and may be used from several goroutines at once.
type VM struct {
	maxFrameDepth int

	nativesMu sync.RWMutex
	natives   map[string]NativeMethod

	classesMu sync.Mutex
	classes   map[ClassLoader]map[string]*Class
}

// New creates a VM with the built-in natives registered.
func New(opts ...Option) *VM {
	vm := &VM{
		maxFrameDepth: defaultMaxFrameDepth,
		natives:       make(map[string]NativeMethod),
		classes:       make(map[ClassLoader]map[string]*Class),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.registerBuiltins()
	return vm
}

func nativeKey(class, name, descriptor string) string {
	return class + "." + name + ":" + descriptor
}

// RegisterNative binds fn to class.name:descriptor. It takes precedence over
// any bytecode the class declares for that method.
func (vm *VM) RegisterNative(class, name, descriptor string, fn NativeMethod) {
	vm.nativesMu.Lock()
	defer vm.nativesMu.Unlock()
	vm.natives[nativeKey(class, name, descriptor)] = fn
}

func (vm *VM) native(class, name, descriptor string) NativeMethod {
	vm.nativesMu.RLock()
	defer vm.nativesMu.RUnlock()
	return vm.natives[nativeKey(class, name, descriptor)]
}

// Class resolves name through loader, linking its super classes. Classes are
// cached per loader.
func (vm *VM) Class(loader ClassLoader, name string) (*Class, error) {
	vm.classesMu.Lock()
	if c, ok := vm.classes[loader][name]; ok {
		vm.classesMu.Unlock()
		return c, nil
	}
	vm.classesMu.Unlock()

	cf, err := loader.LoadClass(name)
	if err != nil {
		return nil, err
	}
	var super *Class
	if superName := cf.SuperClassName(); superName != "" {
		if super, err = vm.Class(loader, superName); err != nil {
			return nil, fmt.Errorf("class %s: super class: %w", name, err)
		}
	}
	c, err := newClass(name, cf, loader, super)
	if err != nil {
		return nil, err
	}

	vm.classesMu.Lock()
	defer vm.classesMu.Unlock()
	byName, ok := vm.classes[loader]
	if !ok {
		byName = make(map[string]*Class)
		vm.classes[loader] = byName
	}
	if existing, ok := byName[name]; ok {
		return existing, nil
	}
	byName[name] = c
	Logger().Debug("class linked", zap.String("class", name))
	return c, nil
}

// NewObject instantiates class and runs the constructor with the given
// descriptor.
func (vm *VM) NewObject(ctx context.Context, loader ClassLoader, class, descriptor string, args ...Value) (obj *JObject, err error) {
	defer recoverError(&err)

	c, err := vm.Class(loader, class)
	if err != nil {
		return nil, err
	}
	if c.File.IsAbstract() || c.File.IsInterface() {
		return nil, NewJavaException("java/lang/InstantiationError", "%s", class)
	}
	ctor := c.File.FindMethod("<init>", descriptor)
	if ctor == nil {
		return nil, NewJavaException("java/lang/NoSuchMethodError", "%s.<init>%s", class, descriptor)
	}
	obj = c.NewInstance()
	t := vm.newThread(ctx)
	if _, err := t.call(c, ctor, append([]Value{RefValue(obj)}, args...)); err != nil {
		return nil, err
	}
	return obj, nil
}

// InvokeStatic calls a static method.
func (vm *VM) InvokeStatic(ctx context.Context, loader ClassLoader, class, name, descriptor string, args ...Value) (ret Value, err error) {
	defer recoverError(&err)

	t := vm.newThread(ctx)
	if fn := vm.native(class, name, descriptor); fn != nil {
		return t.callNative(fn, args)
	}
	c, err := vm.Class(loader, class)
	if err != nil {
		return Value{}, err
	}
	owner, m := c.FindMethod(name, descriptor)
	if m == nil {
		return Value{}, NewJavaException("java/lang/NoSuchMethodError", "%s.%s%s", class, name, descriptor)
	}
	if !m.IsStatic() {
		return Value{}, NewJavaException("java/lang/IncompatibleClassChangeError", "%s.%s%s is not static", class, name, descriptor)
	}
	return t.call(owner, m, args)
}

// InvokeVirtual calls an instance method on obj, dispatching on its runtime
// class.
func (vm *VM) InvokeVirtual(ctx context.Context, obj *JObject, name, descriptor string, args ...Value) (ret Value, err error) {
	defer recoverError(&err)

	if obj == nil {
		return Value{}, nullPointer("invokevirtual " + name)
	}
	t := vm.newThread(ctx)
	return t.invokeVirtual(obj.ClassName, name, descriptor, RefValue(obj), args)
}

// GetStatic reads a static field of class (or the super class declaring it).
func (vm *VM) GetStatic(loader ClassLoader, class, name string) (Value, error) {
	c, err := vm.Class(loader, class)
	if err != nil {
		return Value{}, err
	}
	owner, f := c.FindField(name)
	if f == nil || !f.IsStatic() {
		return Value{}, NewJavaException("java/lang/NoSuchFieldError", "%s.%s", class, name)
	}
	v, _ := owner.Static(name)
	return v, nil
}

func recoverError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("vm: %v", r)
	}
}

// thread is the state of one invocation: the VM, its context and the
// current call depth.
type thread struct {
	vm    *VM
	ctx   context.Context
	depth int
}

func (vm *VM) newThread(ctx context.Context) *thread {
	if ctx == nil {
		ctx = context.Background()
	}
	return &thread{vm: vm, ctx: ctx}
}

// call runs method m declared by owner. Natives registered for the method
// win over its bytecode.
func (t *thread) call(owner *Class, m *classfile.MethodInfo, args []Value) (Value, error) {
	if fn := t.vm.native(owner.Name, m.Name, m.Descriptor); fn != nil {
		return t.callNative(fn, args)
	}
	if m.IsNative() {
		return Value{}, NewJavaException("java/lang/UnsatisfiedLinkError", "%s.%s%s", owner.Name, m.Name, m.Descriptor)
	}
	if m.Code == nil {
		return Value{}, NewJavaException("java/lang/AbstractMethodError", "%s.%s%s", owner.Name, m.Name, m.Descriptor)
	}
	return t.executeMethod(owner, m, args)
}

func (t *thread) callNative(fn NativeMethod, args []Value) (Value, error) {
	if err := t.ctx.Err(); err != nil {
		return Value{}, err
	}
	return fn(t.ctx, args)
}

// executeMethod executes a method with the given arguments and returns its return value.
func (t *thread) executeMethod(owner *Class, method *classfile.MethodInfo, args []Value) (Value, error) {
	if err := t.ctx.Err(); err != nil {
		return Value{}, err
	}

	t.depth++
	defer func() { t.depth-- }()
	if t.depth > t.vm.maxFrameDepth {
		return Value{}, NewJavaException("java/lang/StackOverflowError", "frame depth exceeded %d", t.vm.maxFrameDepth)
	}

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Code, owner)

	// long and double arguments take two slots
	slot := 0
	for _, arg := range args {
		frame.SetLocal(slot, arg)
		slot++
		if arg.IsWide() {
			slot++
		}
	}

	// Execution loop
	for frame.PC < len(frame.Code) {
		opcode := frame.Code[frame.PC]
		frame.PC++

		retVal, hasReturn, err := t.executeInstruction(frame, opcode)
		if err != nil {
			return Value{}, err
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return Value{}, nil
}

// popArgs pops the arguments of a method descriptor off the operand stack.
func popArgs(frame *Frame, descriptor string) (*classfile.MethodDescriptor, []Value, error) {
	md, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, nil, err
	}
	args := make([]Value, len(md.Params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return md, args, nil
}

// executeLdc handles the ldc instruction.
func (t *thread) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	v, err := constantValue(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("ldc: %w", err)
	}
	frame.Push(v)
	return Value{}, false, nil
}

// staticField resolves a field reference to the class declaring the static.
func (t *thread) staticField(frame *Frame, op string) (*Class, *classfile.FieldRefInfo, error) {
	index := frame.ReadU16()
	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := t.vm.Class(frame.Class.Loader, fieldRef.ClassName)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	owner, f := c.FindField(fieldRef.FieldName)
	if f == nil || !f.IsStatic() {
		return nil, nil, NewJavaException("java/lang/NoSuchFieldError", "%s.%s", fieldRef.ClassName, fieldRef.FieldName)
	}
	return owner, fieldRef, nil
}

// executeGetstatic handles the getstatic instruction.
func (t *thread) executeGetstatic(frame *Frame) (Value, bool, error) {
	owner, fieldRef, err := t.staticField(frame, "getstatic")
	if err != nil {
		return Value{}, false, err
	}
	v, _ := owner.Static(fieldRef.FieldName)
	frame.Push(v)
	return Value{}, false, nil
}

// executePutstatic handles the putstatic instruction.
func (t *thread) executePutstatic(frame *Frame) (Value, bool, error) {
	owner, fieldRef, err := t.staticField(frame, "putstatic")
	if err != nil {
		return Value{}, false, err
	}
	owner.setStatic(fieldRef.FieldName, frame.Pop())
	return Value{}, false, nil
}

// executeGetfield handles the getfield instruction.
func (t *thread) executeGetfield(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("getfield: %w", err)
	}

	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, nullPointer("getfield " + fieldRef.FieldName)
	}
	obj, ok := objectRef.Ref.(*JObject)
	if !ok {
		return Value{}, false, fmt.Errorf("getfield: receiver is not a JObject")
	}
	frame.Push(obj.GetField(fieldRef.FieldName))
	return Value{}, false, nil
}

// executePutfield handles the putfield instruction.
func (t *thread) executePutfield(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("putfield: %w", err)
	}

	value := frame.Pop()
	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, nullPointer("putfield " + fieldRef.FieldName)
	}
	obj, ok := objectRef.Ref.(*JObject)
	if !ok {
		return Value{}, false, fmt.Errorf("putfield: receiver is not a JObject")
	}
	obj.SetField(fieldRef.FieldName, value)
	return Value{}, false, nil
}

// pushResult pushes the value returned by a call unless the method is void.
func pushResult(frame *Frame, md *classfile.MethodDescriptor, v Value) {
	if md.Return != "V" {
		frame.Push(v)
	}
}

// executeInvokevirtual handles the invokevirtual instruction.
func (t *thread) executeInvokevirtual(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	methodRef, err := classfile.ResolveMethodref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokevirtual: %w", err)
	}
	md, args, err := popArgs(frame, methodRef.Descriptor)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokevirtual: %w", err)
	}
	objectRef := frame.Pop()

	ret, err := t.invokeVirtual(methodRef.ClassName, methodRef.MethodName, methodRef.Descriptor, objectRef, args)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, md, ret)
	return Value{}, false, nil
}

func (t *thread) invokeVirtual(className, name, descriptor string, receiver Value, args []Value) (Value, error) {
	if receiver.IsNull() {
		return Value{}, nullPointer("invokevirtual " + name)
	}
	fullArgs := append([]Value{receiver}, args...)

	obj, ok := receiver.Ref.(*JObject)
	if !ok || obj.Class == nil {
		// boxed values, strings and arrays only have natives
		if fn := t.vm.native(refClassName(receiver), name, descriptor); fn != nil {
			return t.callNative(fn, fullArgs)
		}
		if fn := t.vm.native(className, name, descriptor); fn != nil {
			return t.callNative(fn, fullArgs)
		}
		return Value{}, NewJavaException("java/lang/NoSuchMethodError", "%s.%s%s", refClassName(receiver), name, descriptor)
	}

	owner, m := obj.Class.FindMethod(name, descriptor)
	if m == nil {
		return Value{}, NewJavaException("java/lang/NoSuchMethodError", "%s.%s%s", obj.ClassName, name, descriptor)
	}
	if m.IsStatic() {
		return Value{}, NewJavaException("java/lang/IncompatibleClassChangeError", "%s.%s%s is static", owner.Name, name, descriptor)
	}
	return t.call(owner, m, fullArgs)
}

// executeInvokespecial handles the invokespecial instruction.
func (t *thread) executeInvokespecial(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	methodRef, err := classfile.ResolveMethodref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokespecial: %w", err)
	}
	md, args, err := popArgs(frame, methodRef.Descriptor)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokespecial: %w", err)
	}
	objectRef := frame.Pop() // this
	if objectRef.IsNull() {
		return Value{}, false, nullPointer("invokespecial " + methodRef.MethodName)
	}
	fullArgs := append([]Value{objectRef}, args...)

	if fn := t.vm.native(methodRef.ClassName, methodRef.MethodName, methodRef.Descriptor); fn != nil {
		ret, err := t.callNative(fn, fullArgs)
		if err != nil {
			return Value{}, false, err
		}
		pushResult(frame, md, ret)
		return Value{}, false, nil
	}

	c, err := t.vm.Class(frame.Class.Loader, methodRef.ClassName)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokespecial: %w", err)
	}
	owner, m := c, c.File.FindMethod(methodRef.MethodName, methodRef.Descriptor)
	if m == nil && methodRef.MethodName != "<init>" {
		owner, m = c.FindMethod(methodRef.MethodName, methodRef.Descriptor)
	}
	if m == nil {
		return Value{}, false, NewJavaException("java/lang/NoSuchMethodError", "%s.%s%s", methodRef.ClassName, methodRef.MethodName, methodRef.Descriptor)
	}
	if m.AccessFlags&classfile.AccPrivate != 0 && owner.Name != frame.Class.Name {
		return Value{}, false, NewJavaException("java/lang/IllegalAccessError", "%s.%s%s is private", owner.Name, m.Name, m.Descriptor)
	}
	ret, err := t.call(owner, m, fullArgs)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, md, ret)
	return Value{}, false, nil
}

// executeInvokestatic handles the invokestatic instruction.
func (t *thread) executeInvokestatic(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	methodRef, err := classfile.ResolveMethodref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokestatic: %w", err)
	}
	md, args, err := popArgs(frame, methodRef.Descriptor)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokestatic: %w", err)
	}

	var ret Value
	if fn := t.vm.native(methodRef.ClassName, methodRef.MethodName, methodRef.Descriptor); fn != nil {
		ret, err = t.callNative(fn, args)
	} else {
		var c *Class
		c, err = t.vm.Class(frame.Class.Loader, methodRef.ClassName)
		if err != nil {
			return Value{}, false, fmt.Errorf("invokestatic: %w", err)
		}
		owner, m := c.FindMethod(methodRef.MethodName, methodRef.Descriptor)
		if m == nil {
			return Value{}, false, NewJavaException("java/lang/NoSuchMethodError", "%s.%s%s", methodRef.ClassName, methodRef.MethodName, methodRef.Descriptor)
		}
		if !m.IsStatic() {
			return Value{}, false, NewJavaException("java/lang/IncompatibleClassChangeError", "%s.%s%s is not static", owner.Name, m.Name, m.Descriptor)
		}
		ret, err = t.call(owner, m, args)
	}
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, md, ret)
	return Value{}, false, nil
}

// executeNew handles the new instruction.
func (t *thread) executeNew(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	className, err := classfile.GetClassName(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}
	c, err := t.vm.Class(frame.Class.Loader, className)
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}
	if c.File.IsAbstract() || c.File.IsInterface() {
		return Value{}, false, NewJavaException("java/lang/InstantiationError", "%s", className)
	}
	frame.Push(RefValue(c.NewInstance()))
	return Value{}, false, nil
}

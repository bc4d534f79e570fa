package bridge

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/native"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

func installed(t *testing.T, f Foreign) (*vm.VM, *vm.MemoryClassLoader) {
	t.Helper()
	machine := vm.New()
	loader := vm.NewMemoryClassLoader(nil)
	if err := Install(machine, loader, NewDispatcher(f)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return machine, loader
}

func TestEntryPointsBuiltOnce(t *testing.T) {
	a, err := EntryPoints()
	if err != nil {
		t.Fatalf("EntryPoints: %v", err)
	}
	b, _ := EntryPoints()
	if a != b {
		t.Error("EntryPoints built twice")
	}

	cf, err := classfile.ParseBytes(a.Classes[DispatcherClass])
	if err != nil {
		t.Fatalf("parsing %s: %v", DispatcherClass, err)
	}
	if !cf.IsFinal() {
		t.Errorf("%s is not final", DispatcherClass)
	}
	for _, ref := range a.natives() {
		m := cf.FindMethod(ref.Name, ref.Descriptor)
		if m == nil {
			t.Errorf("missing %s%s", ref.Name, ref.Descriptor)
			continue
		}
		if !m.IsNative() || !m.IsStatic() {
			t.Errorf("%s is not static native", ref.Name)
		}
		throws, err := m.Exceptions(cf.ConstantPool)
		if err != nil {
			t.Fatalf("Exceptions(%s): %v", ref.Name, err)
		}
		if diff := cmp.Diff([]string{vm.ThrowableClass}, throws); diff != "" {
			t.Errorf("%s throws mismatch (-want +got):\n%s", ref.Name, diff)
		}
	}
}

func TestInstallIsRepeatable(t *testing.T) {
	machine, loader := installed(t, Funcs{})
	if err := Install(machine, loader, NewDispatcher(Funcs{})); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	child := loader.NewChild()
	if err := Install(machine, child, NewDispatcher(Funcs{})); err != nil {
		t.Fatalf("Install into child: %v", err)
	}
	if child.(*vm.MemoryClassLoader).Defines(DispatcherClass) {
		t.Error("child redefined a class its parent already provides")
	}
}

func TestStaticCallEntryPoint(t *testing.T) {
	rec := &recorder{reply: func(Request) (any, error) { return int32(12), nil }}
	machine, loader := installed(t, rec)
	b, _ := EntryPoints()

	args := &vm.JArray{Component: string(signature.Object), Elements: []vm.Value{
		vm.RefValue(native.IntegerValueOf(5)),
		vm.RefValue("label"),
		vm.NullValue(),
	}}
	got, err := machine.InvokeStatic(context.Background(), loader, DispatcherClass,
		b.StaticCall.Name, b.StaticCall.Descriptor,
		vm.RefValue("area"), vm.LongValue(7), vm.RefValue(args))
	if err != nil {
		t.Fatalf("doStaticCall: %v", err)
	}

	boxed, ok := got.Ref.(*native.Boxed)
	if !ok || boxed.Value != int32(12) {
		t.Errorf("result = %#v, want boxed 12", got.Ref)
	}
	want := []Request{{Kind: KindStatic, Name: "area", Handle: 7, Args: []any{int32(5), "label", nil}}}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalCallErrorPropagates(t *testing.T) {
	boom := stderrors.New("no such object")
	rec := &recorder{reply: func(Request) (any, error) { return nil, boom }}
	machine, loader := installed(t, rec)
	b, _ := EntryPoints()

	_, err := machine.InvokeStatic(context.Background(), loader, DispatcherClass,
		b.NormalCall.Name, b.NormalCall.Descriptor,
		vm.RefValue("area"), vm.LongValue(7), vm.NullValue())
	if !stderrors.Is(err, boom) || !stderrors.Is(err, errors.ErrDispatch) {
		t.Errorf("got %v, want dispatch error caused by %v", err, boom)
	}
	if rec.calls[0].Args != nil {
		t.Error("null argument list reached the foreign side as a value")
	}
}

func TestUnboxEntryPoints(t *testing.T) {
	machine, loader := installed(t, Funcs{})
	b, _ := EntryPoints()
	ctx := context.Background()

	tests := []struct {
		t    signature.Type
		in   vm.Value
		want vm.Value
	}{
		{signature.Int, vm.RefValue(native.LongValueOf(41)), vm.IntValue(41)},
		{signature.Int, vm.RefValue("42"), vm.IntValue(42)},
		{signature.Boolean, vm.NullValue(), vm.IntValue(0)},
		{signature.Long, vm.RefValue(native.IntegerValueOf(-1)), vm.LongValue(-1)},
		{signature.Double, vm.RefValue("1.5"), vm.DoubleValue(1.5)},
		{signature.Char, vm.RefValue("A"), vm.IntValue('A')},
	}
	for _, tt := range tests {
		ref := b.Unbox[tt.t]
		got, err := machine.InvokeStatic(ctx, loader, ref.Class, ref.Name, ref.Descriptor, tt.in)
		if err != nil {
			t.Errorf("%s(%v): %v", ref.Name, tt.in.Ref, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s(%v) mismatch (-want +got):\n%s", ref.Name, tt.in.Ref, diff)
		}
	}

	ref := b.Unbox[signature.Int]
	if _, err := machine.InvokeStatic(ctx, loader, ref.Class, ref.Name, ref.Descriptor, vm.RefValue("many")); !stderrors.Is(err, errors.ErrDispatch) {
		t.Errorf("toInt(\"many\") = %v, want dispatch error", err)
	}
}

func TestCoerceEntryPoint(t *testing.T) {
	machine, loader := installed(t, Funcs{})
	b, _ := EntryPoints()

	got, err := machine.InvokeStatic(context.Background(), loader, DispatcherClass,
		b.Coerce.Name, b.Coerce.Descriptor,
		vm.RefValue(native.IntegerValueOf(9)), vm.RefValue(string(signature.String)))
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if got.Ref != "9" {
		t.Errorf("coerce to String = %#v, want \"9\"", got.Ref)
	}
}

func TestForeignObjectConstructor(t *testing.T) {
	var seen []any
	f := Funcs{
		New: func(_ context.Context, h signature.Handle, args []any) (signature.Handle, error) {
			seen = args
			return h + 1000, nil
		},
	}
	machine, loader := installed(t, f)

	args := &vm.JArray{Component: string(signature.Object), Elements: []vm.Value{vm.RefValue("w")}}
	obj, err := machine.NewObject(context.Background(), loader, ObjectClass, BridgeConstructorDesc,
		vm.LongValue(3), vm.RefValue(args))
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if h := obj.GetField(ObjectField); h.Long != 1003 {
		t.Errorf("obj = %d, want 1003", h.Long)
	}
	if diff := cmp.Diff([]any{"w"}, seen); diff != "" {
		t.Errorf("constructor args mismatch (-want +got):\n%s", diff)
	}

	ref, err := ToForeign(vm.RefValue(obj))
	if err != nil {
		t.Fatalf("ToForeign: %v", err)
	}
	if r := ref.(ObjectRef); r.Handle != 1003 || r.Class != ObjectClass {
		t.Errorf("ToForeign = %+v", r)
	}
}

func TestToHost(t *testing.T) {
	v, err := ToHost([]any{int32(1), "two", nil}, signature.Object)
	if err != nil {
		t.Fatalf("ToHost: %v", err)
	}
	arr, ok := v.Ref.(*vm.JArray)
	if !ok || len(arr.Elements) != 3 {
		t.Fatalf("ToHost = %#v, want a three element array", v.Ref)
	}
	if b, ok := arr.Elements[0].Ref.(*native.Boxed); !ok || b.Class != native.ClassInteger {
		t.Errorf("element 0 = %#v, want Integer", arr.Elements[0].Ref)
	}
	if !arr.Elements[2].IsNull() {
		t.Error("element 2 is not null")
	}

	if _, err := ToHost(ObjectRef{Class: "demo/W", Handle: 1}, signature.Object); !stderrors.Is(err, errors.ErrDispatch) {
		t.Errorf("ObjectRef without host object: got %v, want dispatch error", err)
	}
	if _, err := ToHost(make(chan int), signature.Object); !stderrors.Is(err, errors.ErrDispatch) {
		t.Errorf("channel: got %v, want dispatch error", err)
	}
}

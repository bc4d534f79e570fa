package synth

import (
	"context"
	"sync"
	"testing"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// fakeForeign records every request and answers with the configured
// functions.
type fakeForeign struct {
	mu       sync.Mutex
	requests []bridge.Request

	result    func(req bridge.Request) (any, error)
	newHandle signature.Handle
}

func (f *fakeForeign) record(req bridge.Request) (any, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.result == nil {
		return nil, nil
	}
	return f.result(req)
}

func (f *fakeForeign) StaticCall(_ context.Context, name string, h signature.Handle, args []any) (any, error) {
	return f.record(bridge.Request{Kind: bridge.KindStatic, Name: name, Handle: h, Args: args})
}

func (f *fakeForeign) NormalCall(_ context.Context, name string, h signature.Handle, args []any) (any, error) {
	return f.record(bridge.Request{Kind: bridge.KindNormal, Name: name, Handle: h, Args: args})
}

func (f *fakeForeign) NewObject(_ context.Context, h signature.Handle, args []any) (signature.Handle, error) {
	f.mu.Lock()
	f.requests = append(f.requests, bridge.Request{Kind: bridge.KindNew, Name: "<init>", Handle: h, Args: args})
	f.mu.Unlock()
	return f.newHandle, nil
}

func (f *fakeForeign) calls() []bridge.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bridge.Request(nil), f.requests...)
}

type env struct {
	machine *vm.VM
	loader  *vm.MemoryClassLoader
	foreign *fakeForeign
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		machine: vm.New(),
		loader:  vm.NewMemoryClassLoader(nil),
		foreign: &fakeForeign{},
	}
	if err := bridge.Install(e.machine, e.loader, bridge.NewDispatcher(e.foreign)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return e
}

func mustBegin(t *testing.T, loader vm.ClassLoader, name, parent string, handle signature.Handle) *Template {
	t.Helper()
	tpl, err := Begin(loader, name, parent, false, handle)
	if err != nil {
		t.Fatalf("Begin(%s): %v", name, err)
	}
	return tpl
}

func mustMaterialize(t *testing.T, tpl *Template, loader vm.Definer) *Loaded {
	t.Helper()
	l, err := tpl.Materialize(loader)
	if err != nil {
		t.Fatalf("Materialize(%s): %v", tpl.Name(), err)
	}
	return l
}

// defineSealedBase defines demo/Sealed, a ForeignObject subclass with a
// final method seal()V.
func defineSealedBase(t *testing.T, loader vm.Definer) {
	t.Helper()
	const name = "demo/Sealed"
	pool := classfile.NewPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.MajorVersionJava8,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    pool.Class(name),
		SuperClass:   pool.Class(bridge.ObjectClass),
	}
	pool.Utf8("seal")
	pool.Utf8("()V")
	cf.Methods = []classfile.MethodInfo{{
		AccessFlags: classfile.AccPublic | classfile.AccFinal | classfile.AccNative,
		Name:        "seal",
		Descriptor:  "()V",
	}}
	entries, err := pool.Entries()
	if err != nil {
		t.Fatal(err)
	}
	cf.ConstantPool = entries
	data, err := cf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loader.DefineClass(name, data); err != nil {
		t.Fatal(err)
	}
}

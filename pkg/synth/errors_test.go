package synth

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

func TestBeginWithoutRuntime(t *testing.T) {
	_, err := Begin(vm.NewMemoryClassLoader(nil), "demo/W", vm.ObjectClass, false, 1)
	if !stderrors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("got %v, want configuration error", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || !strings.Contains(e.Remedy, "bridge.Install") {
		t.Errorf("configuration error lacks a remedy: %v", err)
	}
}

func TestBeginBindingErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name   string
		class  string
		parent string
	}{
		{"existing class", bridge.ObjectClass, vm.ObjectClass},
		{"invalid name", "demo/[W", vm.ObjectClass},
		{"missing parent", "demo/W", "demo/Missing"},
		{"array parent", "demo/W", "[I"},
		{"primitive parent", "demo/W", "I"},
		{"final parent", "demo/W", bridge.DispatcherClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Begin(e.loader, tt.class, tt.parent, false, 1)
			if !stderrors.Is(err, errors.ErrBinding) {
				t.Errorf("Begin(%s, %s) = %v, want binding error", tt.class, tt.parent, err)
			}
		})
	}
}

func TestMemberBindingErrors(t *testing.T) {
	e := newEnv(t)
	tpl := mustBegin(t, e.loader, "demo/Plain", vm.ObjectClass, 1)

	if err := tpl.AddConstructor(signature.Public); !stderrors.Is(err, errors.ErrBinding) {
		t.Errorf("constructor without bridging parent constructor: got %v", err)
	}
	if err := tpl.AddNormalMethod("area", signature.Public, signature.Int); !stderrors.Is(err, errors.ErrBinding) {
		t.Errorf("instance method without obj field: got %v", err)
	}
	if err := tpl.AddStaticMethod("create", signature.Public, signature.Object); err != nil {
		t.Errorf("static method on a plain parent: %v", err)
	}
}

func TestSynthesisErrors(t *testing.T) {
	e := newEnv(t)
	defineSealedBase(t, e.loader)

	longs := make([]signature.Type, 128)
	for i := range longs {
		longs[i] = signature.Long
	}

	tests := []struct {
		name   string
		parent string
		build  func(*Template) error
	}{
		{"duplicate method", "demo/Sealed", func(tpl *Template) error {
			if err := tpl.AddStaticMethod("f", signature.Public, signature.Int); err != nil {
				return err
			}
			return tpl.AddStaticMethod("f", signature.Private, signature.Int)
		}},
		{"duplicate constructor", bridge.ObjectClass, func(tpl *Template) error {
			if err := tpl.AddConstructor(signature.Public, signature.Int); err != nil {
				return err
			}
			return tpl.AddConstructor(signature.Protected, signature.Int)
		}},
		{"invalid method name", "demo/Sealed", func(tpl *Template) error {
			return tpl.AddStaticMethod("a.b", signature.Public, signature.Void)
		}},
		{"constructor name", "demo/Sealed", func(tpl *Template) error {
			return tpl.AddStaticMethod("<init>", signature.Public, signature.Void)
		}},
		{"invalid parameter type", "demo/Sealed", func(tpl *Template) error {
			return tpl.AddStaticMethod("f", signature.Public, signature.Void, signature.Type("Q"))
		}},
		{"void parameter", "demo/Sealed", func(tpl *Template) error {
			return tpl.AddStaticMethod("f", signature.Public, signature.Void, signature.Void)
		}},
		{"too many argument slots", "demo/Sealed", func(tpl *Template) error {
			return tpl.AddNormalMethod("wide", signature.Public, signature.Void, longs...)
		}},
		{"overrides final method", "demo/Sealed", func(tpl *Template) error {
			return tpl.AddNormalMethod("seal", signature.Public, signature.Void)
		}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := mustBegin(t, e.loader, "demo/Bad"+string(rune('A'+i)), tt.parent, 1)
			if err := tt.build(tpl); err != nil {
				t.Fatalf("adding members: %v", err)
			}
			_, err := tpl.Make()
			if !stderrors.Is(err, errors.ErrSynthesis) {
				t.Fatalf("Make = %v, want synthesis error", err)
			}
			if _, again := tpl.Make(); again != err {
				t.Error("second Make returned a different result")
			}
		})
	}
}

func TestFinalizedTemplate(t *testing.T) {
	e := newEnv(t)
	tpl := mustBegin(t, e.loader, "demo/Done", bridge.ObjectClass, 1)
	first, err := tpl.Make()
	if err != nil {
		t.Fatal(err)
	}
	second, err := tpl.Make()
	if err != nil || second != first {
		t.Errorf("Make is not idempotent: %v", err)
	}

	if err := tpl.AddConstructor(signature.Public); !stderrors.Is(err, errors.ErrSynthesis) {
		t.Errorf("AddConstructor after Make: got %v", err)
	}
	if err := tpl.AddStaticMethod("late", signature.Public, signature.Void); !stderrors.Is(err, errors.ErrSynthesis) {
		t.Errorf("AddStaticMethod after Make: got %v", err)
	}

	mustMaterialize(t, tpl, e.loader)
	if _, err := tpl.Materialize(e.loader); !stderrors.Is(err, errors.ErrSynthesis) {
		t.Errorf("second Materialize into the same loader: got %v", err)
	}
}

func TestMaterializeAll(t *testing.T) {
	e := newEnv(t)
	e.foreign.result = func(req bridge.Request) (any, error) { return int64(req.Handle), nil }

	var templates []*Template
	for i := 0; i < 16; i++ {
		name := "demo/Parallel" + string(rune('A'+i))
		tpl := mustBegin(t, e.loader, name, bridge.ObjectClass, signature.Handle(100+i))
		if err := tpl.AddStaticMethod("id", signature.Public, signature.Long); err != nil {
			t.Fatal(err)
		}
		templates = append(templates, tpl)
	}

	loaded, err := MaterializeAll(context.Background(), e.loader, templates...)
	if err != nil {
		t.Fatalf("MaterializeAll: %v", err)
	}
	for i, l := range loaded {
		got, err := e.machine.InvokeStatic(context.Background(), l.Loader, l.Name, "id", "()J")
		if err != nil {
			t.Fatalf("%s.id: %v", l.Name, err)
		}
		if got.Long != int64(100+i) {
			t.Errorf("%s.id() = %d, want %d", l.Name, got.Long, 100+i)
		}
	}

	dup := mustBegin(t, e.loader, "demo/Dup", bridge.ObjectClass, 1)
	if _, err := MaterializeAll(context.Background(), e.loader, dup, dup); !stderrors.Is(err, errors.ErrSynthesis) {
		t.Errorf("template listed twice: got %v", err)
	}
}

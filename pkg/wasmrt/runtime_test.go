package wasmrt_test

import (
	"context"
	stderrors "errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/synth"
	"github.com/daimatz/jbridge/pkg/vm"
	"github.com/daimatz/jbridge/pkg/wasmrt"
)

// answerWasm is a module exporting static.answer(i64) i64 returning 42.
var answerWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: (i64) -> i64
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7e, 0x01, 0x7e,
	// function section
	0x03, 0x02, 0x01, 0x00,
	// export section: "static.answer"
	0x07, 0x11, 0x01, 0x0d,
	's', 't', 'a', 't', 'i', 'c', '.', 'a', 'n', 's', 'w', 'e', 'r',
	0x00, 0x00,
	// code section: i64.const 42
	0x0a, 0x06, 0x01, 0x04, 0x00, 0x42, 0x2a, 0x0b,
}

var i32, i64, f64 = api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF64

// newHostRuntime returns a runtime able to call host module exports
// directly, which only the interpreter supports.
func newHostRuntime(ctx context.Context) wazero.Runtime {
	return wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
}

// widgetHost instantiates a host module standing in for a compiled foreign
// library of widgets.
func widgetHost(ctx context.Context, r wazero.Runtime) api.Module {
	b := r.NewHostModuleBuilder("widgets")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeI64(int64(stack[0]) * 2)
		}), []api.ValueType{i64}, []api.ValueType{i64}).
		Export("static.create")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			side := api.DecodeI32(stack[1])
			stack[0] = api.EncodeI32(side * side)
		}), []api.ValueType{i64, i32}, []api.ValueType{i32}).
		Export("area")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeF64(api.DecodeF64(stack[1]) * 1.5)
		}), []api.ValueType{i64, f64}, []api.ValueType{f64}).
		Export("scale")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeI64(1000 + int64(stack[0]))
		}), []api.ValueType{i64}, []api.ValueType{i64}).
		Export("new")
	b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {
			panic(stderrors.New("widget exploded"))
		}), []api.ValueType{i64}, nil).
		Export("explode")

	mod, err := b.Instantiate(ctx)
	Expect(err).NotTo(HaveOccurred())
	return mod
}

var _ = Describe("Runtime", func() {
	var (
		ctx context.Context
		r   wazero.Runtime
		rt  *wasmrt.Runtime
	)

	BeforeEach(func() {
		ctx = context.Background()
		r = newHostRuntime(ctx)
		rt = wasmrt.NewFromModule(widgetHost(ctx, r))
		DeferCleanup(func() {
			Expect(r.Close(ctx)).To(Succeed())
		})
	})

	Describe("dispatching by export name", func() {
		It("prefixes static calls", func() {
			res, err := rt.StaticCall(ctx, "create", 21, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(int64(42)))
		})

		It("passes the object handle and converted arguments", func() {
			res, err := rt.NormalCall(ctx, "area", 7, []any{int64(5)})
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(int32(25)))

			res, err = rt.NormalCall(ctx, "scale", 7, []any{"2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(3.0))
		})

		It("creates objects through the constructor export", func() {
			h, err := rt.NewObject(ctx, 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(Equal(signature.Handle(1005)))
		})

		It("honors custom naming", func() {
			other := newHostRuntime(ctx)
			DeferCleanup(func() { _ = other.Close(ctx) })
			custom := wasmrt.NewFromModule(widgetHost(ctx, other),
				wasmrt.WithStaticPrefix(""), wasmrt.WithConstructor("static.create"))
			res, err := custom.StaticCall(ctx, "new", 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(int64(1001)))

			h, err := custom.NewObject(ctx, 4, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(Equal(signature.Handle(8)))
		})
	})

	Describe("failures", func() {
		It("reports a missing export as a binding error", func() {
			_, err := rt.StaticCall(ctx, "area", 1, nil)
			Expect(err).To(MatchError(errors.ErrBinding))
		})

		It("rejects an argument count mismatch", func() {
			_, err := rt.NormalCall(ctx, "area", 1, nil)
			Expect(err).To(MatchError(errors.ErrBinding))
		})

		It("rejects arguments that are not numbers", func() {
			_, err := rt.NormalCall(ctx, "area", 1, []any{"wide"})
			Expect(err).To(MatchError(errors.ErrDispatch))
		})

		It("returns a trap as an error", func() {
			_, err := rt.NormalCall(ctx, "explode", 1, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("widget exploded"))
		})

		It("wraps failures in dispatch errors at the dispatcher", func() {
			d := bridge.NewDispatcher(rt)
			_, err := d.NormalCall(ctx, "explode", 1, nil)
			Expect(err).To(MatchError(errors.ErrDispatch))
		})

		It("keeps the argument context of a conversion failure", func() {
			d := bridge.NewDispatcher(rt)
			_, err := d.NormalCall(ctx, "area", 1, []any{"wide"})
			Expect(err).To(MatchError(errors.ErrDispatch))
			Expect(err.Error()).To(ContainSubstring("area argument 0"))
		})
	})

	It("runs a compiled module", func() {
		compiled, err := wasmrt.New(ctx, answerWasm)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(compiled.Close(ctx)).To(Succeed())
		})

		res, err := compiled.StaticCall(ctx, "answer", 9, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(int64(42)))
	})

	It("backs a synthesized class with a compiled module", func() {
		compiled, err := wasmrt.New(ctx, answerWasm)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(compiled.Close(ctx)).To(Succeed())
		})

		machine := vm.New()
		loader := vm.NewMemoryClassLoader(nil)
		Expect(bridge.Install(machine, loader, bridge.NewDispatcher(compiled))).To(Succeed())

		tpl, err := synth.Begin(loader, "demo.Oracle", vm.ObjectClass, false, 9)
		Expect(err).NotTo(HaveOccurred())
		Expect(tpl.AddStaticMethod("answer", signature.Public, signature.Int)).To(Succeed())
		loaded, err := tpl.Materialize(loader)
		Expect(err).NotTo(HaveOccurred())

		got, err := machine.InvokeStatic(ctx, loaded.Loader, loaded.Name, "answer", "()I")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vm.IntValue(42)))
	})

	It("rejects bytes that are not a module", func() {
		_, err := wasmrt.New(ctx, []byte("not wasm"))
		Expect(err).To(MatchError(errors.ErrConfiguration))
	})

	It("backs a synthesized class", func() {
		machine := vm.New()
		loader := vm.NewMemoryClassLoader(nil)
		Expect(bridge.Install(machine, loader, bridge.NewDispatcher(rt))).To(Succeed())

		tpl, err := synth.Begin(loader, "demo.Widget", bridge.ObjectClass, false, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(tpl.AddConstructor(signature.Public)).To(Succeed())
		Expect(tpl.AddNormalMethod("area", signature.Public, signature.Int, signature.Int)).To(Succeed())
		Expect(tpl.AddStaticMethod("create", signature.Public, signature.Long)).To(Succeed())
		loaded, err := tpl.Materialize(loader)
		Expect(err).NotTo(HaveOccurred())

		w, err := machine.NewObject(ctx, loaded.Loader, loaded.Name, "()V")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.GetField(bridge.ObjectField)).To(Equal(vm.LongValue(1003)))

		area, err := machine.InvokeVirtual(ctx, w, "area", "(I)I", vm.IntValue(5))
		Expect(err).NotTo(HaveOccurred())
		Expect(area).To(Equal(vm.IntValue(25)))

		created, err := machine.InvokeStatic(ctx, loaded.Loader, loaded.Name, "create", "()J")
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(Equal(vm.LongValue(6)))
	})
})

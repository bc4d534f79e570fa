// Package wasmrt runs the foreign side of the bridge as a WebAssembly
// module on wazero.
//
// Calls map to exported functions by name: a static call to "create" runs
// the export "static.create", an instance call to "area" runs "area", and
// object construction runs "new". Every export takes the class or object
// handle as its first i64 parameter followed by the call arguments, which
// must be numeric (or bool) and are converted to the parameter types the
// export declares. A single result is decoded by its declared type.
package wasmrt

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
)

// Default export naming.
const (
	DefaultStaticPrefix = "static."
	DefaultNormalPrefix = ""
	DefaultConstructor  = "new"
)

var (
	_ bridge.Foreign     = (*Runtime)(nil)
	_ bridge.Constructor = (*Runtime)(nil)
)

// Runtime dispatches bridge calls to the exports of one module instance.
// Calls are serialized; a module instance runs one call at a time.
type Runtime struct {
	mu     sync.Mutex
	module api.Module
	// owned is closed with the Runtime when New created it.
	owned wazero.Runtime

	staticPrefix string
	normalPrefix string
	constructor  string
	config       wazero.RuntimeConfig
	logger       *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithStaticPrefix sets the prefix of exports serving static calls.
func WithStaticPrefix(p string) Option {
	return func(r *Runtime) { r.staticPrefix = p }
}

// WithNormalPrefix sets the prefix of exports serving instance calls.
func WithNormalPrefix(p string) Option {
	return func(r *Runtime) { r.normalPrefix = p }
}

// WithConstructor sets the export creating foreign objects.
func WithConstructor(name string) Option {
	return func(r *Runtime) { r.constructor = name }
}

// WithRuntimeConfig sets the wazero configuration New compiles with.
func WithRuntimeConfig(c wazero.RuntimeConfig) Option {
	return func(r *Runtime) { r.config = c }
}

// WithLogger sets the logger for per-call debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

func newRuntime(opts []Option) *Runtime {
	r := &Runtime{
		staticPrefix: DefaultStaticPrefix,
		normalPrefix: DefaultNormalPrefix,
		constructor:  DefaultConstructor,
		logger:       Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New compiles and instantiates wasm in a runtime of its own.
func New(ctx context.Context, wasm []byte, opts ...Option) (*Runtime, error) {
	r := newRuntime(opts)
	cfg := r.config
	if cfg == nil {
		cfg = wazero.NewRuntimeConfig()
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.New(errors.KindConfiguration).Cause(err).
			Detail("compiling foreign module").Build()
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.New(errors.KindConfiguration).Cause(err).
			Detail("instantiating foreign module").Build()
	}

	r.module = mod
	r.owned = rt
	r.logger.Debug("foreign module loaded", zap.Int("exports", len(compiled.ExportedFunctions())))
	return r, nil
}

// NewFromModule dispatches to an already instantiated module. Close does not
// close mod.
//
// A host module built with wazero.HostModuleBuilder can only be called
// directly when its runtime uses the interpreter
// (wazero.NewRuntimeConfigInterpreter); the compiler engine only runs
// exports of guest modules.
func NewFromModule(mod api.Module, opts ...Option) *Runtime {
	r := newRuntime(opts)
	r.module = mod
	return r
}

// Close releases the wazero runtime created by New.
func (r *Runtime) Close(ctx context.Context) error {
	if r.owned == nil {
		return nil
	}
	return r.owned.Close(ctx)
}

// StaticCall runs the static export for name with the class handle.
func (r *Runtime) StaticCall(ctx context.Context, name string, classHandle signature.Handle, args []any) (any, error) {
	return r.call(ctx, r.staticPrefix+name, classHandle, args)
}

// NormalCall runs the instance export for name with the object handle.
func (r *Runtime) NormalCall(ctx context.Context, name string, objectHandle signature.Handle, args []any) (any, error) {
	return r.call(ctx, r.normalPrefix+name, objectHandle, args)
}

// NewObject runs the constructor export, which must return the new object
// handle as i64.
func (r *Runtime) NewObject(ctx context.Context, classHandle signature.Handle, args []any) (signature.Handle, error) {
	res, err := r.call(ctx, r.constructor, classHandle, args)
	if err != nil {
		return 0, err
	}
	h, ok := res.(int64)
	if !ok {
		return 0, errors.New(errors.KindBinding).Member(r.constructor).Value(res).
			Detail("constructor export must return i64").Build()
	}
	return signature.Handle(h), nil
}

func (r *Runtime) call(ctx context.Context, export string, handle signature.Handle, args []any) (any, error) {
	fn := r.module.ExportedFunction(export)
	if fn == nil {
		return nil, errors.New(errors.KindBinding).Member(export).
			Detail("module exports no function %q", export).Build()
	}
	def := fn.Definition()
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != len(args)+1 || params[0] != api.ValueTypeI64 {
		return nil, errors.New(errors.KindBinding).Member(export).
			Detail("export takes %d parameters, want an i64 handle and %d arguments", len(params), len(args)).
			Build()
	}
	if len(results) > 1 {
		return nil, errors.New(errors.KindBinding).Member(export).
			Detail("export returns %d results, want at most one", len(results)).Build()
	}

	stack := make([]uint64, len(params))
	stack[0] = api.EncodeI64(int64(handle))
	for i, a := range args {
		v, err := encode(a, params[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", export, i, err)
		}
		stack[i+1] = v
	}

	r.logger.Debug("foreign call",
		zap.String("export", export),
		zap.Int64("handle", int64(handle)),
		zap.Int("args", len(args)))

	r.mu.Lock()
	out, err := fn.Call(ctx, stack...)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", export, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return decode(out[0], results[0]), nil
}

// encode converts a call argument to the representation of t. Object
// references pass their handle.
func encode(a any, t api.ValueType) (uint64, error) {
	switch x := a.(type) {
	case bridge.ObjectRef:
		a = int64(x.Handle)
	case *bridge.ObjectRef:
		a = int64(x.Handle)
	}

	switch t {
	case api.ValueTypeI32:
		v, err := bridge.Coerce(a, signature.Int)
		if err != nil {
			return 0, err
		}
		return api.EncodeI32(v.(int32)), nil
	case api.ValueTypeI64:
		v, err := bridge.Coerce(a, signature.Long)
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(v.(int64)), nil
	case api.ValueTypeF32:
		v, err := bridge.Coerce(a, signature.Float)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(v.(float32)), nil
	case api.ValueTypeF64:
		v, err := bridge.Coerce(a, signature.Double)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(v.(float64)), nil
	}
	return 0, errors.New(errors.KindBinding).Value(a).
		Detail("unsupported parameter type %s", api.ValueTypeName(t)).Build()
}

func decode(v uint64, t api.ValueType) any {
	switch t {
	case api.ValueTypeI32:
		return api.DecodeI32(v)
	case api.ValueTypeF32:
		return api.DecodeF32(v)
	case api.ValueTypeF64:
		return api.DecodeF64(v)
	}
	return int64(v)
}

package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
)

// CallKind tags a dispatch request.
type CallKind int

const (
	// KindStatic is a class-level call made with the class handle.
	KindStatic CallKind = iota
	// KindNormal is an instance call made with the object handle.
	KindNormal
	// KindNew asks the foreign runtime for a new backing object.
	KindNew
)

func (k CallKind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindNormal:
		return "normal"
	case KindNew:
		return "new"
	}
	return "unknown"
}

// Request is one crossing of the boundary. Args is nil for the null marker
// (no parameters); otherwise it holds the arguments in declaration order.
type Request struct {
	Kind   CallKind
	Name   string
	Handle signature.Handle
	Args   []any
}

// Dispatcher forwards calls made by synthesized classes to the foreign
// runtime. It is safe for concurrent use.
type Dispatcher struct {
	foreign Foreign
	logger  *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher sending every call to foreign.
func NewDispatcher(foreign Foreign, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		foreign: foreign,
		logger:  Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StaticCall invokes a static method by name on the foreign class identified
// by classHandle.
func (d *Dispatcher) StaticCall(ctx context.Context, name string, classHandle signature.Handle, args []any) (any, error) {
	return d.Dispatch(ctx, Request{Kind: KindStatic, Name: name, Handle: classHandle, Args: args})
}

// NormalCall invokes an instance method by name on the foreign object
// identified by objectHandle.
func (d *Dispatcher) NormalCall(ctx context.Context, name string, objectHandle signature.Handle, args []any) (any, error) {
	return d.Dispatch(ctx, Request{Kind: KindNormal, Name: name, Handle: objectHandle, Args: args})
}

// NewObject asks the foreign runtime to create the object backing a new
// instance of the class identified by classHandle.
func (d *Dispatcher) NewObject(ctx context.Context, classHandle signature.Handle, args []any) (signature.Handle, error) {
	res, err := d.Dispatch(ctx, Request{Kind: KindNew, Name: "<init>", Handle: classHandle, Args: args})
	if err != nil {
		return 0, err
	}
	h, ok := res.(signature.Handle)
	if !ok {
		return 0, errors.New(errors.KindDispatch).Member("<init>").Value(res).
			Detail("foreign runtime returned %T instead of a handle", res).Build()
	}
	return h, nil
}

// Dispatch performs exactly one call into the foreign runtime. Failures come
// back as dispatch errors whose cause is the foreign error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	d.logger.Debug("dispatch",
		zap.Stringer("kind", req.Kind),
		zap.String("name", req.Name),
		zap.Int64("handle", int64(req.Handle)),
		zap.Int("args", len(req.Args)),
		zap.Bool("null_args", req.Args == nil))

	var (
		res any
		err error
	)
	switch req.Kind {
	case KindStatic:
		res, err = d.foreign.StaticCall(ctx, req.Name, req.Handle, req.Args)
	case KindNormal:
		res, err = d.foreign.NormalCall(ctx, req.Name, req.Handle, req.Args)
	case KindNew:
		c, ok := d.foreign.(Constructor)
		if !ok {
			return nil, unsupported("object construction")
		}
		var h signature.Handle
		h, err = c.NewObject(ctx, req.Handle, req.Args)
		res = h
	default:
		return nil, errors.New(errors.KindDispatch).Member(req.Name).
			Detail("unknown call kind %d", int(req.Kind)).Build()
	}
	if err != nil {
		d.logger.Debug("dispatch failed", zap.String("name", req.Name), zap.Error(err))
		return nil, errors.Wrap(errors.KindDispatch, err, req.Name)
	}
	return res, nil
}

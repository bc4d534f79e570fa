package bridge

import (
	"context"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
)

// Foreign is the runtime that owns the behavior of synthesized classes.
// A nil args slice means the method takes no parameters.
type Foreign interface {
	StaticCall(ctx context.Context, name string, classHandle signature.Handle, args []any) (any, error)
	NormalCall(ctx context.Context, name string, objectHandle signature.Handle, args []any) (any, error)
}

// Constructor is implemented by foreign runtimes able to create the object
// backing a new host instance. jbridge/ForeignObject uses it.
type Constructor interface {
	NewObject(ctx context.Context, classHandle signature.Handle, args []any) (signature.Handle, error)
}

// CallFunc handles one static or instance call.
type CallFunc func(ctx context.Context, name string, handle signature.Handle, args []any) (any, error)

// Funcs adapts plain functions to Foreign and Constructor.
type Funcs struct {
	Static CallFunc
	Normal CallFunc
	New    func(ctx context.Context, classHandle signature.Handle, args []any) (signature.Handle, error)
}

var (
	_ Foreign     = Funcs{}
	_ Constructor = Funcs{}
)

func (f Funcs) StaticCall(ctx context.Context, name string, classHandle signature.Handle, args []any) (any, error) {
	if f.Static == nil {
		return nil, unsupported("static calls")
	}
	return f.Static(ctx, name, classHandle, args)
}

func (f Funcs) NormalCall(ctx context.Context, name string, objectHandle signature.Handle, args []any) (any, error) {
	if f.Normal == nil {
		return nil, unsupported("instance calls")
	}
	return f.Normal(ctx, name, objectHandle, args)
}

func (f Funcs) NewObject(ctx context.Context, classHandle signature.Handle, args []any) (signature.Handle, error) {
	if f.New == nil {
		return 0, unsupported("object construction")
	}
	return f.New(ctx, classHandle, args)
}

func unsupported(what string) error {
	return errors.New(errors.KindConfiguration).
		Detail("foreign runtime does not support %s", what).
		Build()
}

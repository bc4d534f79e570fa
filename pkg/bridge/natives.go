package bridge

import (
	"context"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// bind registers the dispatcher class's native methods on machine.
func (b *Bindings) bind(machine *vm.VM, d *Dispatcher) {
	machine.RegisterNative(b.StaticCall.Class, b.StaticCall.Name, b.StaticCall.Descriptor,
		func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			name, handle, packed, err := callArgs(args)
			if err != nil {
				return vm.Value{}, err
			}
			res, err := d.StaticCall(ctx, name, handle, packed)
			if err != nil {
				return vm.Value{}, err
			}
			return ToHost(res, signature.Object)
		})

	machine.RegisterNative(b.NormalCall.Class, b.NormalCall.Name, b.NormalCall.Descriptor,
		func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			name, handle, packed, err := callArgs(args)
			if err != nil {
				return vm.Value{}, err
			}
			res, err := d.NormalCall(ctx, name, handle, packed)
			if err != nil {
				return vm.Value{}, err
			}
			return ToHost(res, signature.Object)
		})

	machine.RegisterNative(b.NewObject.Class, b.NewObject.Name, b.NewObject.Descriptor,
		func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			packed, err := unpackArgs(args[1])
			if err != nil {
				return vm.Value{}, err
			}
			h, err := d.NewObject(ctx, signature.Handle(args[0].Long), packed)
			if err != nil {
				return vm.Value{}, err
			}
			return vm.LongValue(int64(h)), nil
		})

	machine.RegisterNative(b.Coerce.Class, b.Coerce.Name, b.Coerce.Descriptor,
		func(_ context.Context, args []vm.Value) (vm.Value, error) {
			desc, ok := args[1].Ref.(string)
			if !ok {
				return vm.Value{}, errors.New(errors.KindDispatch).Value(args[1].Ref).
					Detail("coerce: descriptor is not a string").Build()
			}
			t, err := signature.ParseType(desc)
			if err != nil {
				return vm.Value{}, errors.New(errors.KindDispatch).Cause(err).Value(desc).
					Detail("coerce: bad target type").Build()
			}
			x, err := ToForeign(args[0])
			if err != nil {
				return vm.Value{}, err
			}
			c, err := Coerce(x, t)
			if err != nil {
				return vm.Value{}, err
			}
			return ToHost(c, t)
		})

	for t, ref := range b.Unbox {
		t := t
		machine.RegisterNative(ref.Class, ref.Name, ref.Descriptor,
			func(_ context.Context, args []vm.Value) (vm.Value, error) {
				x, err := ToForeign(args[0])
				if err != nil {
					return vm.Value{}, err
				}
				return primitiveValue(x, t)
			})
	}
}

// callArgs decodes the (String, long, Object[]) arguments of the call entry
// points.
func callArgs(args []vm.Value) (string, signature.Handle, []any, error) {
	name, ok := args[0].Ref.(string)
	if !ok {
		return "", 0, nil, errors.New(errors.KindDispatch).Value(args[0].Ref).
			Detail("method name is not a string").Build()
	}
	packed, err := unpackArgs(args[2])
	if err != nil {
		return "", 0, nil, errors.Wrap(errors.KindDispatch, err, name)
	}
	return name, signature.Handle(args[1].Long), packed, nil
}

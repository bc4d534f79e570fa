package bridge

import (
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/native"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// ObjectRef is how a host object reaches the foreign side. Handle is the
// value of the object's obj field, or 0 for objects without one.
type ObjectRef struct {
	Class  string
	Handle signature.Handle
	Object *vm.JObject
}

// ToForeign converts a host value into its Go form: boxed primitives become
// Go numbers or bool, strings stay strings, reference arrays become []any
// and objects become ObjectRef. Null is nil.
func ToForeign(v vm.Value) (any, error) {
	switch v.Type {
	case vm.TypeNull:
		return nil, nil
	case vm.TypeInt:
		return v.Int, nil
	case vm.TypeLong:
		return v.Long, nil
	case vm.TypeFloat:
		return v.Float, nil
	case vm.TypeDouble:
		return v.Double, nil
	}

	switch r := v.Ref.(type) {
	case nil:
		return nil, nil
	case *native.Boxed:
		return r.Value, nil
	case string:
		return r, nil
	case *vm.JArray:
		return unpackArgs(v)
	case *vm.JObject:
		ref := ObjectRef{Class: r.ClassName, Object: r}
		if h := r.GetField(ObjectField); h.Type == vm.TypeLong {
			ref.Handle = signature.Handle(h.Long)
		}
		return ref, nil
	}
	return nil, errors.New(errors.KindDispatch).Value(v.Ref).
		Detail("cannot pass %T to the foreign runtime", v.Ref).Build()
}

// unpackArgs converts a packed Object[] argument list. Null stays nil so the
// foreign side can tell "no parameters" from an empty list.
func unpackArgs(v vm.Value) ([]any, error) {
	if v.IsNull() {
		return nil, nil
	}
	arr, ok := v.Ref.(*vm.JArray)
	if !ok {
		return nil, errors.New(errors.KindDispatch).Value(v.Ref).
			Detail("argument list is %T, not an array", v.Ref).Build()
	}
	out := make([]any, len(arr.Elements))
	for i, e := range arr.Elements {
		x, err := ToForeign(e)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// ToHost converts a Go value into a host value of type t. Primitive types
// yield primitive Values; reference types yield references, boxing numbers
// and bool in their wrapper classes.
func ToHost(x any, t signature.Type) (vm.Value, error) {
	if t.IsPrimitive() {
		return primitiveValue(x, t)
	}
	switch r := x.(type) {
	case nil:
		return vm.NullValue(), nil
	case string:
		return vm.RefValue(r), nil
	case *native.Boxed:
		return vm.RefValue(r), nil
	case *vm.JObject:
		return vm.RefValue(r), nil
	case ObjectRef:
		return objectValue(&r)
	case *ObjectRef:
		return objectValue(r)
	case *vm.JArray:
		return vm.RefValue(r), nil
	case []any:
		return arrayValue(r, t)
	case signature.Handle:
		return vm.RefValue(native.LongValueOf(int64(r))), nil
	}
	if b, ok := native.Box(x); ok {
		return vm.RefValue(b), nil
	}
	return vm.Value{}, errors.New(errors.KindDispatch).Value(x).
		Detail("cannot pass %T to the host", x).Build()
}

func objectValue(ref *ObjectRef) (vm.Value, error) {
	if ref.Object == nil {
		return vm.Value{}, errors.New(errors.KindDispatch).Value(ref.Handle).
			Detail("object reference %s has no host object", ref.Class).Build()
	}
	return vm.RefValue(ref.Object), nil
}

func arrayValue(xs []any, t signature.Type) (vm.Value, error) {
	elem := signature.Object
	if t.IsArray() {
		elem = t.Elem()
	}
	arr := &vm.JArray{Component: string(elem), Elements: make([]vm.Value, len(xs))}
	for i, x := range xs {
		v, err := ToHost(x, elem)
		if err != nil {
			return vm.Value{}, err
		}
		arr.Elements[i] = v
	}
	return vm.RefValue(arr), nil
}

// primitiveValue converts the result of Coerce for a primitive type.
func primitiveValue(x any, t signature.Type) (vm.Value, error) {
	c, err := Coerce(x, t)
	if err != nil {
		return vm.Value{}, err
	}
	switch n := c.(type) {
	case bool:
		if n {
			return vm.IntValue(1), nil
		}
		return vm.IntValue(0), nil
	case int8:
		return vm.IntValue(int32(n)), nil
	case uint16:
		return vm.IntValue(int32(n)), nil
	case int16:
		return vm.IntValue(int32(n)), nil
	case int32:
		return vm.IntValue(n), nil
	case int64:
		return vm.LongValue(n), nil
	case float32:
		return vm.FloatValue(n), nil
	case float64:
		return vm.DoubleValue(n), nil
	}
	return vm.Value{}, coerceError(x, t)
}

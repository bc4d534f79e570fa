// Package synth turns a class description into a loadable class whose
// constructors and methods forward every call to the foreign runtime
// through the bridge dispatcher.
//
// A Template is built in three phases: Begin fixes the name, parent and
// handle, the Add methods declare members, and Make or Materialize finalize
// the class. Templates are not safe for concurrent use.
package synth

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Template is a class under construction.
type Template struct {
	name     string
	parent   string
	abstract bool
	handle   signature.Handle

	// hierarchy holds the parent first, then its supers up to the root.
	hierarchy []*classfile.ClassFile
	// objOwner declares the obj field, once an instance method needed it.
	objOwner string

	ctors   []signature.ConstructorSpec
	methods []signature.MethodSpec

	made     *Unloaded
	madeErr  error
	finished bool
	loaded   map[vm.Definer]bool
}

// Begin starts a template for class name extending parent. The class handle
// is fixed here and emitted as the constant classHandle.
func Begin(loader vm.ClassLoader, name, parent string, abstract bool, handle signature.Handle) (*Template, error) {
	if _, err := loader.LoadClass(bridge.DispatcherClass); err != nil {
		return nil, errors.New(errors.KindConfiguration).Class(bridge.DispatcherClass).Cause(err).
			Detail("bridge runtime is not visible to the class loader").
			Remedy("install the bridge runtime (bridge.Install) into the class loader").
			Build()
	}

	name = signature.InternalName(name)
	if !validClassName(name) {
		return nil, errors.Binding(name, "", "invalid class name")
	}
	if _, err := loader.LoadClass(name); err == nil {
		return nil, errors.Binding(name, "", "class already exists in the class loader")
	} else if !stderrors.Is(err, vm.ErrClassNotFound) {
		return nil, errors.New(errors.KindBinding).Class(name).Cause(err).
			Detail("cannot check for an existing class").Build()
	}

	parent = signature.InternalName(parent)
	if t := signature.Type(parent); parent == "" || t.IsArray() || t.IsPrimitive() || parent == "V" {
		return nil, errors.Binding(name, "", "parent %q is not a class", parent)
	}
	hierarchy, err := resolveHierarchy(loader, parent)
	if err != nil {
		return nil, errors.New(errors.KindBinding).Class(name).Cause(err).
			Detail("cannot resolve parent %s", parent).Build()
	}
	switch p := hierarchy[0]; {
	case p.IsInterface():
		return nil, errors.Binding(name, "", "parent %s is an interface", parent)
	case p.IsFinal():
		return nil, errors.Binding(name, "", "parent %s is final", parent)
	}

	Logger().Debug("template started",
		zap.String("class", name),
		zap.String("parent", parent),
		zap.Bool("abstract", abstract),
		zap.Int64("handle", int64(handle)))

	return &Template{
		name:      name,
		parent:    parent,
		abstract:  abstract,
		handle:    handle,
		hierarchy: hierarchy,
		loaded:    make(map[vm.Definer]bool),
	}, nil
}

// FromSpec begins a template and adds every member spec describes.
func FromSpec(loader vm.ClassLoader, spec signature.ClassSpec) (*Template, error) {
	t, err := Begin(loader, spec.Name, spec.Parent, spec.Abstract, spec.Handle)
	if err != nil {
		return nil, err
	}
	for _, c := range spec.Constructors {
		if err := t.AddConstructor(c.Visibility, c.Params...); err != nil {
			return nil, err
		}
	}
	for _, m := range spec.Methods {
		if err := t.AddMethod(m); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Name returns the internal name of the class.
func (t *Template) Name() string { return t.name }

// Parent returns the internal name of the parent class.
func (t *Template) Parent() string { return t.parent }

// Handle returns the class handle.
func (t *Template) Handle() signature.Handle { return t.handle }

// Spec describes the template's current shape.
func (t *Template) Spec() signature.ClassSpec {
	return signature.ClassSpec{
		Name:         t.name,
		Parent:       t.parent,
		Abstract:     t.abstract,
		Handle:       t.handle,
		Constructors: append([]signature.ConstructorSpec(nil), t.ctors...),
		Methods:      append([]signature.MethodSpec(nil), t.methods...),
	}
}

// resolveHierarchy loads name and each of its super classes.
func resolveHierarchy(loader vm.ClassLoader, name string) ([]*classfile.ClassFile, error) {
	start := name
	var out []*classfile.ClassFile
	for name != "" {
		if len(out) > 64 {
			return nil, fmt.Errorf("class hierarchy of %s too deep", start)
		}
		cf, err := loader.LoadClass(name)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
		name = cf.SuperClassName()
	}
	return out, nil
}

func validClassName(name string) bool {
	if name == "" || name[0] == '/' || name[len(name)-1] == '/' {
		return false
	}
	for _, r := range name {
		switch r {
		case '.', ';', '[', '<', '>':
			return false
		}
	}
	return true
}

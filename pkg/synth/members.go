package synth

import (
	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
)

// AddConstructor adds a constructor that hands the class handle and its
// packed arguments to the parent's (long, Object[]) constructor.
func (t *Template) AddConstructor(vis signature.Visibility, params ...signature.Type) error {
	c := signature.ConstructorSpec{Visibility: vis.Normalize(), Params: append([]signature.Type(nil), params...)}
	if t.finished {
		return errors.Synthesis(t.name, "<init>"+c.Descriptor(), "template already finalized")
	}

	m := t.hierarchy[0].FindMethod("<init>", bridge.BridgeConstructorDesc)
	if m == nil || m.AccessFlags&classfile.AccPrivate != 0 {
		return errors.New(errors.KindBinding).Class(t.name).Member("<init>"+c.Descriptor()).
			Detail("parent %s has no accessible constructor %s", t.parent, bridge.BridgeConstructorDesc).
			Build()
	}

	t.ctors = append(t.ctors, c)
	Logger().Debug("constructor added",
		zap.String("class", t.name),
		zap.String("descriptor", c.Descriptor()))
	return nil
}

// AddMethod adds a forwarding method. Instance methods read the object
// handle from the obj field the parent hierarchy declares.
func (t *Template) AddMethod(m signature.MethodSpec) error {
	m.Visibility = m.Visibility.Normalize()
	m.Params = append([]signature.Type(nil), m.Params...)
	if m.Return == "" {
		m.Return = signature.Void
	}
	if t.finished {
		return errors.Synthesis(t.name, m.Name+m.Descriptor(), "template already finalized")
	}

	if !m.Static && t.objOwner == "" {
		owner, ok := t.findObjField()
		if !ok {
			return errors.New(errors.KindBinding).Class(t.name).Member(m.Name+m.Descriptor()).
				Detail("parent %s declares no accessible instance field %s:J", t.parent, bridge.ObjectField).
				Build()
		}
		t.objOwner = owner
	}

	t.methods = append(t.methods, m)
	Logger().Debug("method added",
		zap.String("class", t.name),
		zap.Stringer("method", m))
	return nil
}

// AddNormalMethod adds an instance method.
func (t *Template) AddNormalMethod(name string, vis signature.Visibility, ret signature.Type, params ...signature.Type) error {
	return t.AddMethod(signature.MethodSpec{Name: name, Visibility: vis, Return: ret, Params: params})
}

// AddStaticMethod adds a static method.
func (t *Template) AddStaticMethod(name string, vis signature.Visibility, ret signature.Type, params ...signature.Type) error {
	return t.AddMethod(signature.MethodSpec{Name: name, Visibility: vis, Static: true, Return: ret, Params: params})
}

// findObjField looks for a non-private instance obj:J field, nearest class
// first.
func (t *Template) findObjField() (string, bool) {
	for _, cf := range t.hierarchy {
		f := cf.FindField(bridge.ObjectField)
		if f == nil {
			continue
		}
		if f.Descriptor != "J" || f.IsStatic() || f.AccessFlags&classfile.AccPrivate != 0 {
			return "", false
		}
		name, err := cf.ClassName()
		if err != nil {
			return "", false
		}
		return name, true
	}
	return "", false
}

package synth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/vm"
)

// maxArgSlots is the most local slots a method's arguments may take,
// including the receiver.
const maxArgSlots = 255

// Unloaded is a finalized class that has not been defined anywhere yet.
type Unloaded struct {
	Name   string
	Handle signature.Handle
	Bytes  []byte
	File   *classfile.ClassFile
}

// Loaded is a class defined into a class loader. Loader resolves it; it is
// either the loader passed to Materialize or a child wrapping it.
type Loaded struct {
	Name   string
	Handle signature.Handle
	Loader vm.Definer
	File   *classfile.ClassFile
}

// Make finalizes the template. It runs once; later calls return the first
// result. Shape problems are reported here as synthesis errors.
func (t *Template) Make() (*Unloaded, error) {
	if t.finished {
		return t.made, t.madeErr
	}
	t.finished = true
	t.made, t.madeErr = t.make()
	if t.madeErr != nil {
		Logger().Debug("synthesis failed", zap.String("class", t.name), zap.Error(t.madeErr))
	}
	return t.made, t.madeErr
}

func (t *Template) make() (*Unloaded, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	b, err := bridge.EntryPoints()
	if err != nil {
		return nil, errors.New(errors.KindConfiguration).Class(t.name).Cause(err).
			Detail("bridge runtime classes unavailable").Build()
	}
	cf, err := t.generate(b)
	if err != nil {
		return nil, errors.New(errors.KindSynthesis).Class(t.name).Cause(err).
			Detail("generating class file").Build()
	}
	data, err := cf.Bytes()
	if err != nil {
		return nil, errors.New(errors.KindSynthesis).Class(t.name).Cause(err).
			Detail("writing class file").Build()
	}

	Logger().Debug("class synthesized",
		zap.String("class", t.name),
		zap.Int("constructors", len(t.ctors)),
		zap.Int("methods", len(t.methods)),
		zap.Int("bytes", len(data)))
	return &Unloaded{Name: t.name, Handle: t.handle, Bytes: data, File: cf}, nil
}

// check validates the member set as a whole.
func (t *Template) check() error {
	seen := make(map[string]bool)
	for _, c := range t.ctors {
		key := "<init>" + c.Descriptor()
		if seen[key] {
			return errors.Synthesis(t.name, key, "duplicate constructor")
		}
		seen[key] = true
		if err := t.checkTypes(key, signature.Void, c.Params); err != nil {
			return err
		}
		if slots(c.Params)+1 > maxArgSlots {
			return errors.Synthesis(t.name, key, "arguments take more than %d slots", maxArgSlots)
		}
	}

	for _, m := range t.methods {
		key := m.Name + m.Descriptor()
		if !validMethodName(m.Name) {
			return errors.New(errors.KindSynthesis).Class(t.name).Member(key).Value(m.Name).
				Detail("invalid method name").Build()
		}
		if seen[key] {
			return errors.Synthesis(t.name, key, "duplicate method")
		}
		seen[key] = true
		if err := t.checkTypes(key, m.Return, m.Params); err != nil {
			return err
		}
		n := slots(m.Params)
		if !m.Static {
			n++
		}
		if n > maxArgSlots {
			return errors.Synthesis(t.name, key, "arguments take more than %d slots", maxArgSlots)
		}
		if owner, final := t.finalMethod(m.Name, m.Descriptor()); final {
			return errors.Synthesis(t.name, key, "overrides final method of %s", owner)
		}
	}
	return nil
}

func (t *Template) checkTypes(member string, ret signature.Type, params []signature.Type) error {
	if !ret.IsVoid() && !ret.Valid() {
		return errors.New(errors.KindSynthesis).Class(t.name).Member(member).Value(ret).
			Detail("invalid return type").Build()
	}
	for i, p := range params {
		if !p.Valid() {
			return errors.New(errors.KindSynthesis).Class(t.name).Member(member).Value(p).
				Detail("invalid type for parameter %d", i).Build()
		}
	}
	return nil
}

// finalMethod reports whether a non-private final method with this
// signature exists in the parent hierarchy.
func (t *Template) finalMethod(name, desc string) (string, bool) {
	for _, cf := range t.hierarchy {
		m := cf.FindMethod(name, desc)
		if m == nil || m.AccessFlags&classfile.AccPrivate != 0 {
			continue
		}
		if m.AccessFlags&classfile.AccFinal != 0 {
			owner, _ := cf.ClassName()
			return owner, true
		}
	}
	return "", false
}

func slots(params []signature.Type) int {
	n := 0
	for _, p := range params {
		n += p.Slots()
	}
	return n
}

func validMethodName(name string) bool {
	return name != "" && !strings.ContainsAny(name, ".;[/<>")
}

// Bytes returns the class file of the finalized template. It does not
// depend on any class loader.
func (t *Template) Bytes() ([]byte, error) {
	u, err := t.Make()
	if err != nil {
		return nil, err
	}
	return u.Bytes, nil
}

// Materialize finalizes the template and defines the class through loader.
// If the name is already visible there, the class is defined in a new child
// loader instead and the existing class is left alone.
func (t *Template) Materialize(loader vm.Definer) (*Loaded, error) {
	u, err := t.Make()
	if err != nil {
		return nil, err
	}
	if t.loaded[loader] {
		return nil, errors.Synthesis(t.name, "", "already materialized into this class loader")
	}

	l, cf, err := vm.DefineOrWrap(loader, t.name, u.Bytes)
	if err != nil {
		return nil, errors.New(errors.KindSynthesis).Class(t.name).Cause(err).
			Detail("defining class").Build()
	}
	t.loaded[loader] = true

	Logger().Debug("class materialized",
		zap.String("class", t.name),
		zap.Bool("wrapped", l != loader))
	return &Loaded{Name: t.name, Handle: t.handle, Loader: l, File: cf}, nil
}

// MaterializeAll materializes templates concurrently. Each template may
// appear once; templates sharing a class name must be materialized one at a
// time by the caller.
func MaterializeAll(ctx context.Context, loader vm.Definer, templates ...*Template) ([]*Loaded, error) {
	seen := make(map[*Template]bool, len(templates))
	for _, t := range templates {
		if seen[t] {
			return nil, errors.Synthesis(t.name, "", "template listed twice")
		}
		seen[t] = true
	}

	out := make([]*Loaded, len(templates))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range templates {
		i, t := i, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := t.Materialize(loader)
			if err != nil {
				return fmt.Errorf("materialize %s: %w", t.name, err)
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

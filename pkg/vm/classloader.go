package vm

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/classfile"
)

var (
	// ErrClassNotFound is wrapped by every loader when a name cannot be resolved.
	ErrClassNotFound = errors.New("class not found")
	// ErrDuplicateClass is returned when a loader already defines a name.
	ErrDuplicateClass = errors.New("duplicate class definition")
)

// ClassLoader loads .class files by class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// Definer is a ClassLoader that accepts class bytes at runtime.
type Definer interface {
	ClassLoader
	// DefineClass parses data and registers it under name.
	DefineClass(name string, data []byte) (*classfile.ClassFile, error)
	// NewChild returns an empty loader delegating to this one.
	NewChild() Definer
}

// MemoryClassLoader holds classes defined at runtime. Its own definitions
// take precedence over the parent so a child can shadow a name the parent
// already resolves.
type MemoryClassLoader struct {
	Parent ClassLoader

	mu      sync.RWMutex
	classes map[string]*classfile.ClassFile
}

// NewMemoryClassLoader creates a loader delegating to parent. A nil parent
// delegates to the bootstrap loader.
func NewMemoryClassLoader(parent ClassLoader) *MemoryClassLoader {
	if parent == nil {
		parent = Bootstrap()
	}
	return &MemoryClassLoader{
		Parent:  parent,
		classes: make(map[string]*classfile.ClassFile),
	}
}

func (cl *MemoryClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.RLock()
	cf, ok := cl.classes[name]
	cl.mu.RUnlock()
	if ok {
		return cf, nil
	}
	return cl.Parent.LoadClass(name)
}

func (cl *MemoryClassLoader) DefineClass(name string, data []byte) (*classfile.ClassFile, error) {
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}
	declared, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}
	if declared != name {
		return nil, fmt.Errorf("define %s: class file declares %s", name, declared)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if _, ok := cl.classes[name]; ok {
		return nil, fmt.Errorf("define %s: %w", name, ErrDuplicateClass)
	}
	cl.classes[name] = cf
	Logger().Debug("class defined", zap.String("class", name), zap.Int("bytes", len(data)))
	return cf, nil
}

// Defines reports whether the loader itself (not its parent) defines name.
func (cl *MemoryClassLoader) Defines(name string) bool {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	_, ok := cl.classes[name]
	return ok
}

func (cl *MemoryClassLoader) NewChild() Definer {
	return NewMemoryClassLoader(cl)
}

// DefineOrWrap defines data under name in loader when the name is not yet
// visible there. Otherwise the class goes into a fresh child of loader and
// the existing type is left untouched. It returns the loader that now
// resolves the new class.
func DefineOrWrap(loader Definer, name string, data []byte) (Definer, *classfile.ClassFile, error) {
	if _, err := loader.LoadClass(name); err != nil {
		if !errors.Is(err, ErrClassNotFound) {
			return nil, nil, err
		}
		cf, err := loader.DefineClass(name, data)
		if err == nil {
			return loader, cf, nil
		}
		if !errors.Is(err, ErrDuplicateClass) {
			return nil, nil, err
		}
		// lost a race with another definer; wrap instead
	}

	child := loader.NewChild()
	cf, err := child.DefineClass(name, data)
	if err != nil {
		return nil, nil, err
	}
	Logger().Debug("class wrapped in child loader", zap.String("class", name))
	return child, cf, nil
}

// JmodClassLoader loads classes from a JDK jmod file.
type JmodClassLoader struct {
	JmodPath  string
	Cache     map[string]*classfile.ClassFile
	mu        sync.Mutex
	zipData   []byte
	zipReader *zip.Reader
}

// NewJmodClassLoader creates a new JmodClassLoader.
func NewJmodClassLoader(jmodPath string) *JmodClassLoader {
	return &JmodClassLoader{
		JmodPath: jmodPath,
		Cache:    make(map[string]*classfile.ClassFile),
	}
}

func (cl *JmodClassLoader) ensureZipReader() error {
	if cl.zipReader != nil {
		return nil
	}

	f, err := os.Open(cl.JmodPath)
	if err != nil {
		return fmt.Errorf("jmod: opening %s: %w", cl.JmodPath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("jmod: reading %s: %w", cl.JmodPath, err)
	}
	if len(data) < 4 || !bytes.HasPrefix(data, []byte("JM")) {
		return fmt.Errorf("jmod: %s is not a jmod file", cl.JmodPath)
	}

	cl.zipData = data[4:] // Skip "JM\x01\x00" header
	cl.zipReader, err = zip.NewReader(bytes.NewReader(cl.zipData), int64(len(cl.zipData)))
	if err != nil {
		return fmt.Errorf("jmod: opening zip: %w", err)
	}
	return nil
}

func (cl *JmodClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}

	if err := cl.ensureZipReader(); err != nil {
		return nil, err
	}

	target := "classes/" + name + ".class"
	for _, file := range cl.zipReader.File {
		if file.Name != target {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("jmod: opening %s: %w", target, err)
		}
		defer rc.Close()

		cf, err := classfile.Parse(rc)
		if err != nil {
			return nil, fmt.Errorf("jmod: parsing %s: %w", name, err)
		}
		cl.Cache[name] = cf
		return cf, nil
	}

	return nil, fmt.Errorf("jmod: %w: %s in %s", ErrClassNotFound, name, cl.JmodPath)
}

// UserClassLoader loads user classes from the classpath, delegating to the parent first.
type UserClassLoader struct {
	ClassPath string
	Parent    ClassLoader
	Cache     map[string]*classfile.ClassFile
	mu        sync.Mutex
}

// NewUserClassLoader creates a new UserClassLoader. A nil parent delegates
// to the bootstrap loader.
func NewUserClassLoader(classPath string, parent ClassLoader) *UserClassLoader {
	if parent == nil {
		parent = Bootstrap()
	}
	return &UserClassLoader{
		ClassPath: classPath,
		Parent:    parent,
		Cache:     make(map[string]*classfile.ClassFile),
	}
}

func (cl *UserClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}
	if cf, err := cl.Parent.LoadClass(name); err == nil {
		return cf, nil
	}
	path := filepath.Join(cl.ClassPath, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("user: %w: %s", ErrClassNotFound, name)
		}
		return nil, fmt.Errorf("user: loading %s: %w", name, err)
	}
	cl.Cache[name] = cf
	return cf, nil
}

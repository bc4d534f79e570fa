package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/bridge"
	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/signature"
	"github.com/daimatz/jbridge/pkg/synth"
	"github.com/daimatz/jbridge/pkg/vm"
)

const usage = `Usage:
  jbridge gen [flags] <spec.json>   write proxy classes described by a JSON class spec
  jbridge inspect <file.class>...   print the members of class files
`

func findJmodPath() string {
	// 1. Explicit env var
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	// 2. JAVA_HOME
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// 3. Glob fallback
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "gen":
		err = runGen(os.Args[2:], os.Stdout)
	case "inspect":
		err = runInspect(os.Args[2:], os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setVerbose() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	vm.SetLogger(l)
	bridge.SetLogger(l)
	synth.SetLogger(l)
	return nil
}

func runGen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	classPath := fs.String("classpath", "", "directory holding parent classes")
	jmod := fs.String("jmod", "", `java.base.jmod to resolve JDK classes from ("auto" searches JAVA_HOME)`)
	outDir := fs.String("o", ".", "output directory")
	runtime := fs.Bool("runtime", false, "also write the bridge runtime classes")
	verbose := fs.Bool("v", false, "log synthesis steps")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("gen takes exactly one spec file")
	}
	if *verbose {
		if err := setVerbose(); err != nil {
			return err
		}
	}

	specs, err := readSpecs(fs.Arg(0))
	if err != nil {
		return err
	}

	var base vm.ClassLoader = vm.Bootstrap()
	switch *jmod {
	case "":
	case "auto":
		p := findJmodPath()
		if p == "" {
			return fmt.Errorf("could not find java.base.jmod. Set JAVA_HOME or JAVA_BASE_JMOD")
		}
		base = vm.NewJmodClassLoader(p)
	default:
		base = vm.NewJmodClassLoader(*jmod)
	}
	if *classPath != "" {
		base = vm.NewUserClassLoader(*classPath, base)
	}
	loader := vm.NewMemoryClassLoader(base)
	if err := bridge.Install(vm.New(), loader, bridge.NewDispatcher(bridge.Funcs{})); err != nil {
		return err
	}

	// one at a time so a spec may extend a class defined earlier in the file
	for _, spec := range specs {
		tpl, err := synth.FromSpec(loader, spec)
		if err != nil {
			return err
		}
		if _, err := tpl.Materialize(loader); err != nil {
			return err
		}
		data, err := tpl.Bytes()
		if err != nil {
			return err
		}
		if err := writeClass(out, *outDir, tpl.Name(), data); err != nil {
			return err
		}
	}

	if *runtime {
		b, err := bridge.EntryPoints()
		if err != nil {
			return err
		}
		for _, name := range []string{bridge.DispatcherClass, bridge.ObjectClass} {
			if err := writeClass(out, *outDir, name, b.Classes[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

// readSpecs decodes a single class spec or a list of them.
func readSpecs(path string) ([]signature.ClassSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		var specs []signature.ClassSpec
		if err := json.Unmarshal(data, &specs); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return specs, nil
	}
	var spec signature.ClassSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []signature.ClassSpec{spec}, nil
}

func writeClass(out io.Writer, dir, name string, data []byte) error {
	path := filepath.Join(dir, filepath.FromSlash(name)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func runInspect(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("inspect takes at least one class file")
	}
	for _, path := range args {
		cf, err := classfile.ParseFile(path)
		if err != nil {
			return err
		}
		if err := describe(out, cf); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func describe(out io.Writer, cf *classfile.ClassFile) error {
	name, err := cf.ClassName()
	if err != nil {
		return err
	}
	var mods []string
	if cf.AccessFlags&classfile.AccPublic != 0 {
		mods = append(mods, "public")
	}
	if cf.IsAbstract() {
		mods = append(mods, "abstract")
	}
	if cf.IsFinal() {
		mods = append(mods, "final")
	}
	kind := "class"
	if cf.IsInterface() {
		kind = "interface"
	}
	fmt.Fprintf(out, "%s %s %s", strings.Join(mods, " "), kind, signature.BinaryName(name))
	if super := cf.SuperClassName(); super != "" {
		fmt.Fprintf(out, " extends %s", signature.BinaryName(super))
	}
	fmt.Fprintln(out, " {")

	for i := range cf.Fields {
		f := &cf.Fields[i]
		fmt.Fprintf(out, "  %s%s %s", memberMods(f.AccessFlags), signature.Type(f.Descriptor), f.Name)
		if f.ConstantValue != 0 {
			if v, err := classfile.FormatConstant(cf.ConstantPool, f.ConstantValue); err == nil {
				fmt.Fprintf(out, " = %s", v)
			}
		}
		fmt.Fprintln(out, ";")
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		fmt.Fprintf(out, "  %s%s%s", memberMods(m.AccessFlags), m.Name, m.Descriptor)
		throws, err := m.Exceptions(cf.ConstantPool)
		if err != nil {
			return err
		}
		if len(throws) > 0 {
			for j, t := range throws {
				throws[j] = signature.BinaryName(t)
			}
			fmt.Fprintf(out, " throws %s", strings.Join(throws, ", "))
		}
		fmt.Fprintln(out, ";")
	}
	fmt.Fprintln(out, "}")
	return nil
}

func memberMods(flags uint16) string {
	var b strings.Builder
	for _, m := range []struct {
		flag uint16
		word string
	}{
		{classfile.AccPublic, "public"},
		{classfile.AccProtected, "protected"},
		{classfile.AccPrivate, "private"},
		{classfile.AccStatic, "static"},
		{classfile.AccFinal, "final"},
		{classfile.AccNative, "native"},
		{classfile.AccAbstract, "abstract"},
	} {
		if flags&m.flag != 0 {
			b.WriteString(m.word)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

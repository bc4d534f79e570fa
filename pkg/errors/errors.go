package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes the error
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindBinding       Kind = "binding"
	KindSynthesis     Kind = "synthesis"
	KindDispatch      Kind = "dispatch"
)

// Sentinels for errors.Is; they match any error of the same kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrBinding       = &Error{Kind: KindBinding}
	ErrSynthesis     = &Error{Kind: KindSynthesis}
	ErrDispatch      = &Error{Kind: KindDispatch}
)

// Error is the structured error type of the bridge
type Error struct {
	Value  any
	Cause  error
	Kind   Kind
	Class  string
	Member string
	Detail string
	// Remedy tells the operator how to fix a configuration problem.
	Remedy string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))
	b.WriteString(" error")

	if e.Class != "" || e.Member != "" {
		b.WriteString(" in ")
		b.WriteString(e.Class)
		if e.Member != "" {
			if e.Class != "" {
				b.WriteByte('.')
			}
			b.WriteString(e.Member)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Remedy != "" {
		b.WriteString(" (")
		b.WriteString(e.Remedy)
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// Class sets the class the error refers to
func (b *Builder) Class(name string) *Builder {
	b.err.Class = name
	return b
}

// Member sets the member (name plus descriptor) the error refers to
func (b *Builder) Member(m string) *Builder {
	b.err.Member = m
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Remedy sets the remediation hint
func (b *Builder) Remedy(msg string) *Builder {
	b.err.Remedy = msg
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Binding reports a missing collaborator contract.
func Binding(class, member, detail string, args ...any) *Error {
	return New(KindBinding).Class(class).Member(member).Detail(detail, args...).Build()
}

// Synthesis reports an inconsistent class shape.
func Synthesis(class, member, detail string, args ...any) *Error {
	return New(KindSynthesis).Class(class).Member(member).Detail(detail, args...).Build()
}

// Wrap wraps an existing error with a kind and context. A cause that already
// is an *Error of the same kind is returned as is. Only the cause itself is
// checked, so context added around a nested *Error is kept.
func Wrap(kind Kind, cause error, member string) *Error {
	if e, ok := cause.(*Error); ok && e.Kind == kind {
		return e
	}
	return &Error{
		Kind:   kind,
		Member: member,
		Cause:  cause,
	}
}

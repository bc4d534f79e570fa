package vm

import "fmt"

// JavaException represents a JVM exception being thrown.
type JavaException struct {
	Object  *JObject
	Message string
}

func (e *JavaException) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("JavaException: %s", e.Object.ClassName)
	}
	return fmt.Sprintf("JavaException: %s: %s", e.Object.ClassName, e.Message)
}

// ClassName returns the class of the thrown object.
func (e *JavaException) ClassName() string {
	return e.Object.ClassName
}

func NewJavaException(className string, format string, args ...any) *JavaException {
	return &JavaException{
		Object: &JObject{
			ClassName: className,
			Fields:    make(map[string]Value),
		},
		Message: fmt.Sprintf(format, args...),
	}
}

func nullPointer(op string) *JavaException {
	return NewJavaException("java/lang/NullPointerException", "%s on null reference", op)
}

func classCast(from, to string) *JavaException {
	return NewJavaException("java/lang/ClassCastException", "%s cannot be cast to %s", from, to)
}

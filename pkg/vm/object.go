package vm

import "sync"

// JObject represents a JVM object instance.
type JObject struct {
	ClassName string
	Class     *Class
	Fields    map[string]Value

	mu sync.RWMutex
}

// GetField returns the value of an instance field. Unknown fields read as null.
func (o *JObject) GetField(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.Fields[name]; ok {
		return v
	}
	return NullValue()
}

// SetField stores the value of an instance field.
func (o *JObject) SetField(name string, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fields == nil {
		o.Fields = make(map[string]Value)
	}
	o.Fields[name] = v
}

// InstanceOf reports whether the object's class is, extends or implements name.
func (o *JObject) InstanceOf(name string) bool {
	if o.Class != nil {
		return o.Class.IsSubclassOf(name)
	}
	return o.ClassName == name || name == ObjectClass
}

// JArray represents a JVM reference array.
type JArray struct {
	// Component is the element descriptor, e.g. Ljava/lang/Object;.
	Component string
	Elements  []Value
}

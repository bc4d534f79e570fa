package vm

import "testing"

func TestJObjectFields(t *testing.T) {
	t.Run("set and get field", func(t *testing.T) {
		obj := &JObject{ClassName: "TestClass", Fields: make(map[string]Value)}
		obj.SetField("x", IntValue(42))

		got := obj.GetField("x")
		if got.Type != TypeInt || got.Int != 42 {
			t.Errorf("field x: got %+v, want IntValue(42)", got)
		}
	})

	t.Run("overwrite field", func(t *testing.T) {
		obj := &JObject{ClassName: "TestClass"}
		obj.SetField("x", IntValue(1))
		obj.SetField("x", IntValue(99))

		if obj.GetField("x").Int != 99 {
			t.Errorf("overwritten field x: got %d, want 99", obj.GetField("x").Int)
		}
	})

	t.Run("reference field", func(t *testing.T) {
		obj := &JObject{ClassName: "Container", Fields: make(map[string]Value)}
		inner := &JObject{ClassName: "Inner", Fields: make(map[string]Value)}
		obj.SetField("child", RefValue(inner))

		got := obj.GetField("child")
		if got.Type != TypeRef {
			t.Errorf("field child: got type %v, want TypeRef", got.Type)
		}
		if got.Ref != inner {
			t.Errorf("field child: reference mismatch")
		}
	})

	t.Run("missing field reads null", func(t *testing.T) {
		obj := &JObject{ClassName: "TestClass", Fields: make(map[string]Value)}
		if got := obj.GetField("ref"); !got.IsNull() {
			t.Errorf("missing field: got %+v, want null", got)
		}
	})
}

func TestInstanceOf(t *testing.T) {
	loader := NewMemoryClassLoader(nil)
	defineTestClass(t, loader, "demo/Base", ObjectClass, nil)
	defineTestClass(t, loader, "demo/Derived", "demo/Base", nil)

	machine := New()
	derived, err := machine.Class(loader, "demo/Derived")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	obj := derived.NewInstance()

	for _, name := range []string{"demo/Derived", "demo/Base", ObjectClass} {
		if !obj.InstanceOf(name) {
			t.Errorf("InstanceOf(%s): got false, want true", name)
		}
	}
	if obj.InstanceOf("demo/Other") {
		t.Error("InstanceOf(demo/Other): got true, want false")
	}
}

package classfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc   string
		params []string
		ret    string
		slots  int
	}{
		{"()V", nil, "V", 0},
		{"(I)I", []string{"I"}, "I", 1},
		{"(JD)V", []string{"J", "D"}, "V", 4},
		{"(Ljava/lang/String;J[Ljava/lang/Object;)Ljava/lang/Object;",
			[]string{"Ljava/lang/String;", "J", "[Ljava/lang/Object;"}, "Ljava/lang/Object;", 4},
		{"([[IZ)[B", []string{"[[I", "Z"}, "[B", 2},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			md, err := ParseMethodDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("ParseMethodDescriptor(%q): %v", tt.desc, err)
			}
			if diff := cmp.Diff(tt.params, md.Params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
			if md.Return != tt.ret {
				t.Errorf("return: got %q, want %q", md.Return, tt.ret)
			}
			if got := md.ArgSlots(); got != tt.slots {
				t.Errorf("ArgSlots: got %d, want %d", got, tt.slots)
			}
			if got := md.String(); got != tt.desc {
				t.Errorf("String: got %q, want %q", got, tt.desc)
			}
		})
	}
}

func TestParseMethodDescriptorErrors(t *testing.T) {
	for _, desc := range []string{"", "I", "(I", "(Q)V", "(Ljava/lang/String)V", "()", "()II"} {
		t.Run(desc, func(t *testing.T) {
			if _, err := ParseMethodDescriptor(desc); err == nil {
				t.Errorf("ParseMethodDescriptor(%q): expected error, got nil", desc)
			}
		})
	}
}

func TestClassNames(t *testing.T) {
	if got := ClassNameOf("Ljava/lang/String;"); got != "java/lang/String" {
		t.Errorf("ClassNameOf: got %q", got)
	}
	if got := ClassNameOf("[I"); got != "[I" {
		t.Errorf("ClassNameOf array: got %q", got)
	}
	if got := ClassDescriptor("java/lang/String"); got != "Ljava/lang/String;" {
		t.Errorf("ClassDescriptor: got %q", got)
	}
	if !ValidFieldDescriptor("[Ljava/lang/Object;") || ValidFieldDescriptor("V") {
		t.Error("ValidFieldDescriptor: unexpected result")
	}
}

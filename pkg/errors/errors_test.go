package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind only",
			err:  New(KindSynthesis).Build(),
			want: "synthesis error",
		},
		{
			name: "class and member",
			err:  Binding("demo/Widget", "<init>(I)V", "parent %s has no bridging constructor", "demo/Base"),
			want: "binding error in demo/Widget.<init>(I)V: parent demo/Base has no bridging constructor",
		},
		{
			name: "remedy",
			err: New(KindConfiguration).Detail("bridge runtime unavailable").
				Remedy("install it first").Build(),
			want: "configuration error: bridge runtime unavailable (install it first)",
		},
		{
			name: "cause",
			err:  New(KindDispatch).Member("area").Cause(fmt.Errorf("boom")).Build(),
			want: "dispatch error in area: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error():\ngot  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	cause := stderrors.New("foreign failure")
	err := fmt.Errorf("invoking: %w", New(KindDispatch).Cause(cause).Build())

	if !stderrors.Is(err, ErrDispatch) {
		t.Error("errors.Is(err, ErrDispatch) = false, want true")
	}
	if stderrors.Is(err, ErrBinding) {
		t.Error("errors.Is(err, ErrBinding) = true, want false")
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause is not reachable through the chain")
	}

	var e *Error
	if !stderrors.As(err, &e) || e.Kind != KindDispatch {
		t.Errorf("errors.As: got %v", e)
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("unreachable")
	wrapped := Wrap(KindDispatch, cause, "area")
	if wrapped.Cause != cause || wrapped.Member != "area" {
		t.Errorf("Wrap: got %+v", wrapped)
	}

	if again := Wrap(KindDispatch, wrapped, "other"); again != wrapped {
		t.Errorf("Wrap of a dispatch error: got %v, want it unchanged", again)
	}

	outer := fmt.Errorf("area argument 0: %w", wrapped)
	kept := Wrap(KindDispatch, outer, "area")
	if kept.Cause != outer {
		t.Errorf("Wrap dropped the outer context: got %+v", kept)
	}
	if !strings.Contains(kept.Error(), "area argument 0") {
		t.Errorf("message lacks the outer context: %v", kept)
	}
	if !stderrors.Is(kept, cause) {
		t.Error("root cause no longer reachable")
	}
	if other := Wrap(KindSynthesis, wrapped, "x"); other.Cause != error(wrapped) {
		t.Errorf("Wrap with a different kind should nest, got %+v", other)
	}
}

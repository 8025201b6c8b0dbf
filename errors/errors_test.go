package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseCall,
				Kind:     KindTypeMismatch,
				Name:     "add",
				Position: 2,
				Detail:   "number expected, got string",
			},
			contains: []string{"[call]", "type_mismatch", "argument #2", "'add'", "number expected"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseInstall,
				Kind:  KindAddressRange,
			},
			contains: []string{"[install]", "address_range"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseTransfer,
				Kind:   KindOutOfMemory,
				Detail: "handle storage",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[transfer]", "out_of_memory", "handle storage", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseBind,
		Kind:  KindRuntime,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseCall,
		Kind:  KindStackBudget,
		Name:  "f",
	}

	if !err.Is(&Error{Phase: PhaseCall, Kind: KindStackBudget}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseRegister, Kind: KindStackBudget}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseCall, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseCall, Kind: KindStackBudget}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("x: %w", OutOfMemory(PhaseTransfer, 8))); got != KindOutOfMemory {
		t.Errorf("KindOf = %q, want %q", got, KindOutOfMemory)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCall, KindTypeMismatch).
		Name("concat").
		Position(3).
		Value("x").
		Cause(cause).
		Detail("expected %s, got %s", "number", "string").
		Build()

	if err.Phase != PhaseCall {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCall)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if err.Name != "concat" || err.Position != 3 {
		t.Errorf("Name=%q Position=%d", err.Name, err.Position)
	}
	if err.Value != "x" {
		t.Errorf("Value = %v, want x", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected number, got string" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch("f", 1, "number", "string")
		if err.Kind != KindTypeMismatch || err.Phase != PhaseCall {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Detail != "bad argument #1 to 'f' (number expected, got string)" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("StackBudgetExceeded", func(t *testing.T) {
		err := StackBudgetExceeded("f", 9000)
		if err.Kind != KindStackBudget {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "9000") {
			t.Errorf("Detail = %q should contain budget", err.Detail)
		}
	})

	t.Run("OutOfMemory", func(t *testing.T) {
		err := OutOfMemory(PhaseTransfer, 64)
		if err.Kind != KindOutOfMemory || err.Value != 64 {
			t.Errorf("got %v value %v", err.Kind, err.Value)
		}
	})

	t.Run("AddressRange", func(t *testing.T) {
		err := AddressRange(0xdeadbeef, 16)
		if err.Kind != KindAddressRange || err.Phase != PhaseInstall {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Detail, "0xdeadbeef") || !strings.Contains(err.Detail, "16 bits") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("User", func(t *testing.T) {
		err := User("f", "boom")
		if err.Kind != KindUser || err.Value != "boom" || err.Detail != "boom" {
			t.Errorf("got %+v", err)
		}
	})

	t.Run("ProtocolViolation", func(t *testing.T) {
		err := ProtocolViolation(PhaseTransfer, "payload delivered twice")
		if err.Kind != KindProtocolViolation {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseCall, "yield outside a coroutine")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput(PhaseConfig, "MaxStack too small")
		if err.Kind != KindInvalidInput {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("trap")
		err := Wrap(PhaseBind, KindRuntime, cause, "call failed")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause in chain")
		}
	})
}

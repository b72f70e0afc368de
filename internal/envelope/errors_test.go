package envelope

import (
	"errors"
	"testing"
)

func TestNormalize_PassesThroughHookChainError(t *testing.T) {
	t.Parallel()

	original := NewHookChainError(-32001, "blocked", nil)
	got := Normalize(original)
	if got != original {
		t.Fatalf("Normalize should return the same *HookChainError unchanged, got %+v", got)
	}
}

func TestNormalize_WireErrorPreservesCodeAndMessage(t *testing.T) {
	t.Parallel()

	wire := &Error{Code: -32050, Message: "upstream exploded", Data: "trace-1"}
	got := Normalize(wire)
	if got.Code != -32050 || got.Message != "upstream exploded" || got.Data != "trace-1" {
		t.Fatalf("Normalize(wire error) = %+v, want code/message/data preserved", got)
	}
}

func TestNormalize_GenericErrorDefaultsToInternal(t *testing.T) {
	t.Parallel()

	got := Normalize(errors.New("kaboom"))
	if got.Code != CodeInternalError {
		t.Fatalf("Normalize(generic) code = %d, want %d", got.Code, CodeInternalError)
	}
	if got.Message != "kaboom" {
		t.Fatalf("Normalize(generic) message = %q, want %q", got.Message, "kaboom")
	}
	if got.Unwrap() == nil {
		t.Fatalf("Normalize(generic) should preserve the cause via Unwrap")
	}
}

func TestNormalize_Nil(t *testing.T) {
	t.Parallel()

	if got := Normalize(nil); got != nil {
		t.Fatalf("Normalize(nil) = %+v, want nil", got)
	}
}

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("container removed")
	err := Wrap(ErrCodeHostDetached, cause, "measure container")

	if err.Code != ErrCodeHostDetached {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeHostDetached)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeHostDetached,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeHostDetached, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeHostDetached,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeDegenerateGeometry, "test"),
			expected: ErrCodeDegenerateGeometry,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMissingAnchors(t *testing.T) {
	t.Run("nil for no names", func(t *testing.T) {
		if err := MissingAnchors(nil); err != nil {
			t.Errorf("MissingAnchors(nil) = %v, want nil", err)
		}
	})

	t.Run("single name", func(t *testing.T) {
		err := MissingAnchors([]string{"hub"})
		expected := "MISSING_ANCHOR: missing anchor: hub"
		if err.Error() != expected {
			t.Errorf("Error() = %v, want %v", err.Error(), expected)
		}
	})

	t.Run("several names", func(t *testing.T) {
		err := MissingAnchors([]string{"b", "d"})
		expected := "MISSING_ANCHOR: missing anchors: b, d"
		if err.Error() != expected {
			t.Errorf("Error() = %v, want %v", err.Error(), expected)
		}
	})

	t.Run("code through wrapping", func(t *testing.T) {
		err := fmt.Errorf("compute: %w", MissingAnchors([]string{"b"}))
		if !Is(err, ErrCodeMissingAnchor) {
			t.Errorf("Is(err, ErrCodeMissingAnchor) = false, want true")
		}
		names := MissingNames(err)
		if len(names) != 1 || names[0] != "b" {
			t.Errorf("MissingNames() = %v, want [b]", names)
		}
	})

	t.Run("names are copied", func(t *testing.T) {
		in := []string{"a"}
		err := MissingAnchors(in)
		in[0] = "z"
		if got := MissingNames(err); got[0] != "a" {
			t.Errorf("MissingNames() = %v, want [a]", got)
		}
	})
}

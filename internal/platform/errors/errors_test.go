package errors

import (
	"errors"
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
			name: "error with cause",
			err: Wrap(KindResource, "camera acquire", "permission denied",
				errors.New("device busy")),
			contains: []string{"[resource:camera acquire]", "permission denied", "device busy"},
		},
		{
			name:     "error without cause",
			err:      New(KindData, "heart analysis", "empty buffer"),
			contains: []string{"[data:heart analysis]", "empty buffer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindSampleRate, "voice analysis", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindResource, "test", "message"),
			kind:     KindResource,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      Wrap(KindData, "test", "message", errors.New("cause")),
			kind:     KindData,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindCancelled, "test", "message"),
			kind:     KindResource,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindData,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

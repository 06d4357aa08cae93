package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "question",
			err:  invalidField("question", "cannot be empty"),
			want: "invalid question: cannot be empty",
		},
		{
			name: "pool index",
			err:  invalidField("pools.kb", "duplicate index %d", 3),
			want: "invalid pools.kb: duplicate index 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ValidationError.Error() = %v, want %v", got, tt.want)
			}
			wrapped := WrapError(tt.err, "process")
			if !errors.Is(wrapped, ErrInvalidInput) {
				t.Error("validation errors should match ErrInvalidInput")
			}
			var ve *ValidationError
			if !errors.As(wrapped, &ve) || ve.Field != tt.err.Field {
				t.Errorf("errors.As() field = %v", ve)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	original := errors.New("original error")

	if got := WrapError(nil, "context"); got != nil {
		t.Errorf("WrapError(nil) = %v, want nil", got)
	}

	got := WrapError(original, "failed to load turn")
	if got.Error() != "failed to load turn: original error" {
		t.Errorf("WrapError() = %v", got)
	}
	if !errors.Is(got, original) {
		t.Error("WrapError() should wrap original error")
	}
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"external service", WrapError(fmt.Errorf("%w: llm: %w", ErrExternalService, cause), "ask"), ErrExternalService},
		{"not found", fmt.Errorf("turn x: %w", ErrNotFound), ErrNotFound},
		{"invalid input", WrapError(ErrInvalidInput, "decode"), ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
		})
	}

	if !errors.Is(tests[0].err, cause) {
		t.Error("external service error should keep its cause")
	}
}

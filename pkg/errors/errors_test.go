package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeMissingField,
			message:    "owner id missing",
			cause:      nil,
			expectCode: 2,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 3,
		},
		{
			name:       "store error",
			category:   CategoryStore,
			code:       CodeWriteFailed,
			message:    "write failed",
			cause:      errors.New("disk full"),
			expectCode: 4,
		},
		{
			name:       "processing error",
			category:   CategoryProcessing,
			code:       CodeProcessingError,
			message:    "aggregation failed",
			cause:      nil,
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *EngineError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("Category = %v, want %v", err.Category, tt.category)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %v, want %v", err.Code, tt.code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("GetExitCode() = %d, want %d", err.GetExitCode(), tt.expectCode)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Error("wrapped error should match errors.Is on its cause")
			}
		})
	}
}

func TestEngineError_ErrorIncludesSuggestion(t *testing.T) {
	err := New(CategoryValidation, CodeMissingField, "owner id missing").
		WithSuggestion("pass --owner")

	want := "owner id missing (suggestion: pass --owner)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEngineError_WithContext(t *testing.T) {
	err := ValidationError(CodeMissingField, "owner_uid", nil, nil)

	if err.Context["field"] != "owner_uid" {
		t.Errorf("context field = %v, want owner_uid", err.Context["field"])
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	if Wrap(nil, CategoryStore, CodeQueryFailed, "query") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestAsEngineError(t *testing.T) {
	inner := StoreError(CodeQueryFailed, "fetch transactions", errors.New("db locked"))
	wrapped := fmt.Errorf("run failed: %w", inner)

	got, ok := AsEngineError(wrapped)
	if !ok {
		t.Fatal("expected to extract EngineError from chain")
	}
	if got.Code != CodeQueryFailed {
		t.Errorf("Code = %v, want %v", got.Code, CodeQueryFailed)
	}
}

func TestWrapIfNeeded(t *testing.T) {
	engineErr := ValidationError(CodeMissingField, "owner_uid", nil, nil)
	if got := WrapIfNeeded(engineErr, CategoryInternal, CodeUnexpectedError, "x"); got != engineErr {
		t.Error("existing EngineError should pass through unchanged")
	}

	plain := errors.New("boom")
	got := WrapIfNeeded(plain, CategoryProcessing, CodeProcessingError, "aggregate")
	if got.Category != CategoryProcessing {
		t.Errorf("Category = %v, want %v", got.Category, CategoryProcessing)
	}
	if !errors.Is(got, plain) {
		t.Error("wrapped error should retain its cause")
	}
}

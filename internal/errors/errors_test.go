package errors

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Constructors(t *testing.T) {
	cause := fmt.Errorf("boom")

	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"decode", NewDecodeError("bad image", cause), ErrorTypeDecode, http.StatusUnprocessableEntity},
		{"analysis", NewAnalysisError("ela failed", cause), ErrorTypeAnalysis, http.StatusInternalServerError},
		{"io", NewIOError("write failed", cause), ErrorTypeIO, http.StatusInternalServerError},
		{"validation", NewValidationError("bad upload", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"timeout", NewTimeoutError("too slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"internal", NewInternalError("oops", cause), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, tt.err.Type)
			}
			if tt.err.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, tt.err.StatusCode)
			}
			if !IsType(tt.err, tt.wantType) {
				t.Errorf("IsType(%s) returned false", tt.wantType)
			}
		})
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewAnalysisError("copy-move failed", cause)

	if !strings.Contains(err.Error(), "copy-move failed") || !strings.Contains(err.Error(), "underlying") {
		t.Errorf("Unexpected error string: %s", err.Error())
	}
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}

	noCause := NewValidationError("missing file", nil)
	if noCause.Error() != "validation: missing file" {
		t.Errorf("Unexpected error string: %s", noCause.Error())
	}
}

func TestIsType_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("request: %w", NewDecodeError("not an image", nil))

	if !IsType(wrapped, ErrorTypeDecode) {
		t.Error("Expected wrapped decode error to be detected")
	}
	if GetStatusCode(wrapped) != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", GetStatusCode(wrapped))
	}
	if GetStatusCode(fmt.Errorf("plain")) != http.StatusInternalServerError {
		t.Error("Expected 500 for non-application errors")
	}
}

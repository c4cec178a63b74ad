package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("socket closed")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(CodeNotFound, http.StatusNotFound, "file not found"),
			want: "NOT_FOUND: file not found",
		},
		{
			name: "with cause",
			err:  Wrap(CodeS3Error, http.StatusInternalServerError, "download failed", cause),
			want: "S3_ERROR: download failed: socket closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("throttled")
	err := Wrap(CodeDBError, http.StatusInternalServerError, "put failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestFromPassthrough(t *testing.T) {
	orig := Invalid("tags is required")
	wrapped := fmt.Errorf("handle request: %w", orig)

	got := From(wrapped)
	if got != orig {
		t.Errorf("From should return the original *Error from the chain, got %v", got)
	}
}

func TestFromConversion(t *testing.T) {
	got := From(errors.New("something broke"))

	if got.Code != CodeUnknown {
		t.Errorf("Code = %q, want %q", got.Code, CodeUnknown)
	}
	if got.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", got.Status)
	}
	if got.Message != "internal error" {
		t.Errorf("Message = %q should not leak the cause", got.Message)
	}
}

func TestRequireFields(t *testing.T) {
	fields := map[string]string{"email": "a@b.com", "species": ""}

	if err := RequireFields(fields, "email"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := RequireFields(fields, "email", "species")
	if err == nil {
		t.Fatal("expected error for missing species")
	}
	apiErr := From(err)
	if apiErr.Code != CodeInvalidInput {
		t.Errorf("Code = %q, want %q", apiErr.Code, CodeInvalidInput)
	}
	if apiErr.Message != "species is required" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

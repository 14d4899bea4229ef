package backend

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMatchesSentinels(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		target error
		want   bool
	}{
		{name: "409 is conflict", err: &Error{Status: http.StatusConflict}, target: ErrConflict, want: true},
		{name: "23505 code is conflict", err: &Error{Status: http.StatusBadRequest, Code: CodeUniqueViolation}, target: ErrConflict, want: true},
		{name: "401 is unauthorized", err: &Error{Status: http.StatusUnauthorized}, target: ErrUnauthorized, want: true},
		{name: "403 is unauthorized", err: &Error{Status: http.StatusForbidden}, target: ErrUnauthorized, want: true},
		{name: "404 is not found", err: &Error{Status: http.StatusNotFound}, target: ErrNotFound, want: true},
		{name: "foreign key 409 is not conflict", err: &Error{Status: http.StatusConflict, Code: CodeForeignKeyViolation}, target: ErrConflict, want: false},
		{name: "500 is not conflict", err: &Error{Status: http.StatusInternalServerError}, target: ErrConflict, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("insert couples: %w", tt.err)
			if got := errors.Is(wrapped, tt.target); got != tt.want {
				t.Fatalf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestErrorMessageIncludesCode(t *testing.T) {
	err := &Error{Status: http.StatusConflict, Code: CodeUniqueViolation, Message: "duplicate key"}
	if got := err.Error(); got != "backend 409 (23505): duplicate key" {
		t.Fatalf("unexpected message %q", got)
	}
}

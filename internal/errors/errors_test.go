package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      stderrors.New("something went wrong"),
			expected: "Error: something went wrong",
		},
		{
			name:     "coded error",
			err:      New("room_full", "room is full"),
			expected: "Error: room is full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	got := Formatf("connection to %s:%d failed", "localhost", 5432)
	want := "Error: connection to localhost:5432 failed"
	if got != want {
		t.Errorf("Formatf() = %q, want %q", got, want)
	}
}

func TestCodeOf(t *testing.T) {
	errMismatch := New("task_mismatch", "planner does not match the active session")

	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "coded sentinel",
			err:         errMismatch,
			wantCode:    "task_mismatch",
			wantMessage: "planner does not match the active session",
		},
		{
			name:        "wrapped sentinel",
			err:         fmt.Errorf("stop: %w", errMismatch),
			wantCode:    "task_mismatch",
			wantMessage: "planner does not match the active session",
		},
		{
			name:        "plain error",
			err:         stderrors.New("database is locked"),
			wantCode:    CodeInternal,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.wantCode {
				t.Errorf("CodeOf() = %q, want %q", got, tt.wantCode)
			}
			if got := PublicMessage(tt.err); got != tt.wantMessage {
				t.Errorf("PublicMessage() = %q, want %q", got, tt.wantMessage)
			}
		})
	}

	if !stderrors.Is(fmt.Errorf("wrap: %w", errMismatch), errMismatch) {
		t.Error("errors.Is should match a wrapped sentinel")
	}
}

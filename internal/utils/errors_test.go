package utils

import (
	"errors"
	"testing"
)

func TestAppErrorRendersOpAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError("store.InsertSummary", "persist summary", cause)

	want := "store.InsertSummary: persist summary: connection refused"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestAppErrorWithoutCause(t *testing.T) {
	err := NewAppError("store.ListActions", "query healing actions", nil)
	if err.Error() != "store.ListActions: query healing actions" {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestAppErrorUnwrapsToSentinel(t *testing.T) {
	sentinel := errors.New("not found")
	err := NewAppError("store.UpdateAction", "transition action", sentinel)

	if !errors.Is(err, sentinel) {
		t.Fatalf("sentinel lost through wrap: %v", err)
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Op != "store.UpdateAction" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

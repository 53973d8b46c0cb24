package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInsufficientFiles:    http.StatusBadRequest,
		CodeNonPDFFile:           http.StatusBadRequest,
		CodeFileTooLarge:         http.StatusBadRequest,
		CodeForbiddenTask:        http.StatusForbidden,
		CodeFileAccessDenied:     http.StatusForbidden,
		CodeTaskNotFound:         http.StatusNotFound,
		CodeFileNotFound:         http.StatusNotFound,
		CodeTaskAlreadyCompleted: http.StatusConflict,
		CodeTaskBusy:             http.StatusConflict,
		CodeInvalidCredentials:   http.StatusUnauthorized,
		CodeTooManyAttempts:      http.StatusTooManyRequests,
		CodeInternalError:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("run: %w", New(CodeNonPDFFile, "broken.pdf を読み込めません", cause))

	if !HasCode(err, CodeNonPDFFile) {
		t.Fatal("expected wrapped error to match NonPDFFile")
	}
	if HasCode(err, CodeInvalidPDFPassword) {
		t.Fatal("unexpected match for InvalidPDFPassword")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to stay reachable")
	}
	if CodeOf(err) != CodeNonPDFFile {
		t.Fatalf("CodeOf = %s", CodeOf(err))
	}
	if CodeOf(cause) != CodeInternalError {
		t.Fatalf("CodeOf(plain) = %s", CodeOf(cause))
	}
}

// Package apperr はクライアントへ返すシンボリックなエラーコードと、その HTTP ステータスへの対応を提供します。
package apperr

import (
	"errors"
	"net/http"
)

// Code はクライアントが分岐に使う短い識別子です。
type Code string

const (
	CodeInsufficientFiles    Code = "InsufficientFiles"
	CodeNonPDFFile           Code = "NonPDFFile"
	CodeInvalidPDFPassword   Code = "InvalidPDFPassword"
	CodePasswordRequired     Code = "PasswordRequired"
	CodeNoInputFile          Code = "NoInputFile"
	CodeFileTooLarge         Code = "FileTooLarge"
	CodeInvalidFile          Code = "InvalidFile"
	CodeRangesRequired       Code = "RangesRequired"
	CodeInvalidRange         Code = "InvalidRange"
	CodeExtractPagesRequired Code = "ExtractPagesRequired"
	CodeProcessingFailed     Code = "ProcessingFailed"
	CodeInvalidInput         Code = "InvalidInput"

	CodeUnauthorized       Code = "Unauthorized"
	CodeInvalidCredentials Code = "InvalidCredentials"
	CodeInactiveUser       Code = "InactiveUser"

	CodeForbiddenTask    Code = "ForbiddenTask"
	CodeFileAccessDenied Code = "FileAccessDenied"

	CodeTaskNotFound Code = "TaskNotFound"
	CodeFileNotFound Code = "FileNotFound"
	CodeUserNotFound Code = "UserNotFound"

	CodeTaskAlreadyCompleted   Code = "TaskAlreadyCompleted"
	CodeTaskClosed             Code = "TaskClosed"
	CodeTaskBusy               Code = "TaskBusy"
	CodeEmailAlreadyRegistered Code = "EmailAlreadyRegistered"

	CodeTooManyAttempts Code = "TooManyAttempts"
	CodeRequestCanceled Code = "RequestCanceled"
	CodeInternalError   Code = "InternalError"
)

// HTTPStatus はコードに対応する HTTP ステータスを返します。
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized, CodeInvalidCredentials, CodeInactiveUser:
		return http.StatusUnauthorized
	case CodeForbiddenTask, CodeFileAccessDenied:
		return http.StatusForbidden
	case CodeTaskNotFound, CodeFileNotFound, CodeUserNotFound:
		return http.StatusNotFound
	case CodeTaskAlreadyCompleted, CodeTaskClosed, CodeTaskBusy, CodeEmailAlreadyRegistered:
		return http.StatusConflict
	case CodeTooManyAttempts:
		return http.StatusTooManyRequests
	case CodeRequestCanceled:
		return http.StatusRequestTimeout
	case CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error はコード付きのアプリケーションエラーです。
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New は Error を生成します。
func New(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is はコードが一致する *Error を同一とみなします。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel は errors.Is の比較対象に使う、メッセージを持たない Error を返します。
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// CodeOf は err に含まれる最初の *Error のコードを返します。見つからない場合は CodeInternalError です。
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// HasCode は err が指定コードの *Error を含むかを返します。
func HasCode(err error, code Code) bool {
	return errors.Is(err, Sentinel(code))
}

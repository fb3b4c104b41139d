// Package domainerrors provides coded errors for the wallet domain. Services
// return these so transport layers can translate them into HTTP statuses or
// protocol envelopes without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure. Codes are part of the wire contract: the
// dispatcher echoes them in failure envelopes as the error kind.
type Code string

const (
	CodeBadRequest      Code = "bad_request"
	CodeUnauthenticated Code = "authentication_required"
	CodeInvalidToken    Code = "invalid_token"
	CodeSessionExpired  Code = "session_expired"
	CodeUnknownOwner    Code = "unknown_owner"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeUnknownCommand  Code = "unknown_command"
	CodeFrameOverflow   Code = "frame_overflow"
	CodeDecryptFailure  Code = "decrypt_failure"
	CodePersistence     Code = "persistence_error"
	CodeInternal        Code = "internal"
)

// Error carries a code plus a caller-safe message. Wrapped causes stay
// internal and never reach a response body.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded domain error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Unknown errors map to
// a generic message so internals never leak.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status for the request/response
// transport. The raw-stream transport ignores statuses and uses codes only.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeUnknownCommand, CodeFrameOverflow:
		return http.StatusBadRequest
	case CodeUnauthenticated, CodeInvalidToken, CodeSessionExpired:
		return http.StatusUnauthorized
	case CodeUnknownOwner, CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

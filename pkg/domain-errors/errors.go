// Package domainerrors defines the coded error type the services speak.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those facts into coded domain errors so transports can
// map them to status codes without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. The set is closed: every error surfaced by
// this service carries exactly one of these.
type Code string

const (
	// Registration and identity codes.
	CodeCredentialRejected  Code = "credential_rejected"
	CodeInvalidCredentials  Code = "invalid_credentials"
	CodeDuplicateUser       Code = "duplicate_user"
	CodePartialRegistration Code = "partial_registration_failure"

	// Authorization codes.
	CodeUnknownPrincipal    Code = "unknown_principal"
	CodeInvalidToken        Code = "invalid_token"
	CodeNotAuthorized       Code = "not_authorized"
	CodeWouldOrphanAdmin    Code = "would_orphan_administration"
	CodeAccessDenied        Code = "access_denied"

	// Storage and upstream codes.
	CodeConcurrentModification Code = "concurrent_modification"
	CodeUpstreamTimeout        Code = "upstream_timeout"
	CodeCorruptRecord          Code = "corrupt_record"

	// Ambient codes.
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal"
)

// Error is a domain error with a stable code and an operator-facing message.
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

// New builds a domain error with the given code.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the status the transport layer should emit.
// Denial codes deliberately collapse onto 403: callers outside the trust
// boundary must not be able to distinguish pending from revoked from unknown.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeCredentialRejected:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeNotAuthorized, CodeAccessDenied, CodeUnknownPrincipal:
		return http.StatusForbidden
	case CodeDuplicateUser, CodeConcurrentModification, CodeWouldOrphanAdmin:
		return http.StatusConflict
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case CodeCorruptRecord, CodePartialRegistration, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

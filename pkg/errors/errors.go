// Package errors carries the typed error codes shared by services and the
// HTTP layer. Services return *Error values; handlers render them through
// MetadataFor.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeStateConflict      Code = "STATE_CONFLICT"
	CodeIdempotency        Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeMissingSignature   Code = "MISSING_SIGNATURE"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeSequenceAllocation Code = "SEQUENCE_ALLOCATION_FAILED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata drives how a code is rendered over HTTP. ExposeMessage lets the
// error's own message replace PublicMessage; DetailsAllowed lets its details
// reach the response body.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

// clientFault builds metadata for 4xx codes, which always expose their
// message.
func clientFault(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, ExposeMessage: true, DetailsAllowed: details}
}

func serverFault(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, Retryable: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         clientFault(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:       clientFault(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:          clientFault(http.StatusForbidden, "access denied", false),
	CodeNotFound:           clientFault(http.StatusNotFound, "resource not found", true),
	CodeConflict:           clientFault(http.StatusConflict, "conflict detected", true),
	CodeStateConflict:      clientFault(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:        clientFault(http.StatusConflict, "idempotency key reused", true),
	CodeInsufficientStock:  clientFault(http.StatusConflict, "insufficient stock", true),
	CodeMissingSignature:   clientFault(http.StatusBadRequest, "signature header missing", true),
	CodeInvalidSignature:   clientFault(http.StatusUnauthorized, "invalid signature", false),
	CodeSequenceAllocation: serverFault(http.StatusServiceUnavailable, "could not allocate order number"),
	CodeInternal:           serverFault(http.StatusInternalServerError, "internal server error"),
	CodeDependency:         serverFault(http.StatusServiceUnavailable, "dependency unavailable"),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// works across wrapping.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && e != nil && other != nil && e.code == other.code
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether the caller may retry the operation unchanged.
// Untyped errors count as internal failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}

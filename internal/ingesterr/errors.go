// Package ingesterr defines the error taxonomy shared by the ingest
// workflow. Every failure surfaced to a caller of ingest.Orchestrator is an
// *Error carrying a Kind, so callers can branch with errors.As or KindOf
// instead of matching on message text.
//
// Kinds:
//   - Configuration: missing account id / client id / client secret. Fatal.
//   - Validation: malformed ingest request, caught before network calls.
//   - Authentication: token acquisition failed. Fatal.
//   - Transient: remote code 103 (upstream timeout). Retried by the client.
//   - API: any other structured remote error, or an exhausted transient retry.
//   - Transport: network failure talking to the platform. Not retried.
//   - Upload: object-storage push failed. Not retried.
package ingesterr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an ingest failure.
type Kind int

const (
	// KindUnknown is the zero value; never produced by this module.
	KindUnknown Kind = iota
	// KindConfiguration indicates missing or malformed account credentials.
	KindConfiguration
	// KindValidation indicates a malformed ingest request.
	KindValidation
	// KindAuthentication indicates the OAuth token could not be obtained.
	KindAuthentication
	// KindTransient indicates a remote condition that may clear on retry.
	KindTransient
	// KindAPI indicates a structured error returned by the remote API.
	KindAPI
	// KindTransport indicates a network-level failure.
	KindTransport
	// KindUpload indicates an object-storage upload failure.
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindTransient:
		return "transient"
	case KindAPI:
		return "api"
	case KindTransport:
		return "transport"
	case KindUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// TransientTimeoutCode is the remote error code the platform returns when an
// upstream call timed out. It is the only code treated as retryable.
const TransientTimeoutCode = "103"

// Error is the structured error returned by every ingest component.
type Error struct {
	Kind Kind
	// Code is the local error number (see Code* constants).
	Code int
	// Op names the step that failed, e.g. "create video" or "upload poster".
	Op string
	// Message is the human readable description.
	Message string
	// RemoteCode and RemoteMessage carry the platform's error payload, if any.
	RemoteCode    string
	RemoteMessage string
	// RemoteDetail is the first entry of the payload's errors[] list, if any.
	RemoteDetail string
	// HTTPStatus is the response status of the failing call, 0 when no
	// response was received.
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.RemoteMessage != "" || e.RemoteCode != "" {
		fmt.Fprintf(&b, " (%s: %s)", e.RemoteCode, e.RemoteMessage)
	}
	if e.RemoteDetail != "" {
		fmt.Fprintf(&b, " [%s]", e.RemoteDetail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error is the platform's transient timeout.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or 0.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Configuration builds a KindConfiguration error.
func Configuration(code int, msg string) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: msg}
}

// Validation builds a KindValidation error.
func Validation(code int, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Authentication wraps a token acquisition failure.
func Authentication(msg string, err error) *Error {
	return &Error{Kind: KindAuthentication, Code: CodeAuthenticationFailed, Op: "get token", Message: msg, Err: err}
}

// Transport wraps a network failure for the named operation.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Code: CodeTransportFailed, Op: op, Message: "request failed", Err: err}
}

// Upload wraps an object-storage failure for the named operation.
func Upload(op string, err error) *Error {
	return &Error{Kind: KindUpload, Code: CodeUploadFailed, Op: op, Message: "upload failed", Err: err}
}

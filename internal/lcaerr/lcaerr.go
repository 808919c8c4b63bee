// Package lcaerr defines the caller-facing error taxonomy.
//
// Every error that crosses the service boundary is either an *Error or
// wraps one. Transports map the Kind to a status code with HTTPStatus.
package lcaerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind int

const (
	// KindInternal is an unexpected failure (500).
	KindInternal Kind = iota
	// KindNotFound is an unknown project, material or source (404).
	KindNotFound
	// KindValidation is malformed input (400).
	KindValidation
	// KindUpstream means an external LCA API is unreachable or failing (503).
	KindUpstream
	// KindDataIntegrity is inconsistent stored or submitted data (409).
	KindDataIntegrity
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	case KindUpstream:
		return "upstream_unavailable"
	case KindDataIntegrity:
		return "data_integrity"
	default:
		return "internal"
	}
}

// Error carries a Kind, a machine-readable code and the underlying cause.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so callers can write
// errors.Is(err, lcaerr.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Err == nil && t.Code == "" && t.Kind == e.Kind
}

// Kind markers usable with errors.Is.
//
//nolint:gochecknoglobals // sentinel values
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUpstream      = &Error{Kind: KindUpstream}
	ErrDataIntegrity = &Error{Kind: KindDataIntegrity}
)

// New wraps err with kind and code.
func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// NotFound builds a KindNotFound error naming what is missing.
func NotFound(what, id string) *Error {
	return New(KindNotFound, what+"_not_found", fmt.Errorf("%s %q not found", what, id))
}

// Validation builds a KindValidation error naming the violated constraint.
func Validation(code, format string, args ...any) *Error {
	return New(KindValidation, code, fmt.Errorf(format, args...))
}

// Upstream wraps a transport failure of the named source.
func Upstream(source string, err error) *Error {
	return New(KindUpstream, "upstream_unavailable", fmt.Errorf("source %s: %w", source, err))
}

// DataIntegrity builds a KindDataIntegrity error.
func DataIntegrity(code, format string, args ...any) *Error {
	return New(KindDataIntegrity, code, fmt.Errorf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return KindOf(err).String()
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusServiceUnavailable
	case KindDataIntegrity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

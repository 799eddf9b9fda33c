package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the caller. The message is what gets shown to the user; the kind only
// decides how the transport reports it.
type Kind string

const (
	KindUnknown           Kind = ""
	KindInvalidInput      Kind = "InvalidInput"
	KindGenerationFailed  Kind = "GenerationFailed"
	KindPersistenceFailed Kind = "PersistenceFailed"
	KindAuthRequired      Kind = "AuthRequired"
	KindNotFound          Kind = "NotFound"
)

// StatusCode maps a kind to the HTTP status the API responds with.
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Cause may be nil when the message says everything.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// GenerationFailed wraps a failed or unparseable model call.
func GenerationFailed(cause error) *Error {
	return &Error{Kind: KindGenerationFailed, Cause: cause}
}

// PersistenceFailed wraps a document store failure.
func PersistenceFailed(cause error) *Error {
	return &Error{Kind: KindPersistenceFailed, Cause: cause}
}

func AuthRequired(message string) *Error {
	return &Error{Kind: KindAuthRequired, Message: message}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("could not find a %s with id: %s", resource, id)}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

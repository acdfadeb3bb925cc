package apperror

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Kind classifies an error by how it is surfaced to clients.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
)

// Error carries a client-safe message plus an optional cause that is only logged.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation errors.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

// Field is shorthand for a validation error on a single field.
func Field(name, msg string) *Error {
	return Validation(map[string][]string{name: {msg}})
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Authentication credentials were not provided or are invalid."}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "You do not have permission to perform this action."}
}

func NotFound(msg string) *Error {
	if msg == "" {
		msg = "Not found."
	}
	return &Error{Kind: KindNotFound, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// As returns err as *Error, treating anything unknown as internal.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Write renders err. Validation errors become a field map, everything else a
// {"detail": ...} body. Internal causes are logged, never sent.
func Write(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	ae := As(err)
	status := ae.StatusCode()
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "err", err)
	} else {
		logger.Debugw("request rejected", "status", status, "err", err)
	}
	if ae.Kind == KindValidation {
		WriteJSON(w, status, ae.Fields)
		return
	}
	WriteJSON(w, status, map[string]string{"detail": ae.Message})
}

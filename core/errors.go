package core

import "github.com/pkg/errors"

// ErrorKind classifies domain errors; the API layer maps each kind to one HTTP status.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a domain error carrying its kind and a stable code (e.g. "CourseFull").
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func NewError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NewNotFoundError(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: "NotFound", Message: resource + " not found"}
}

func (e *Error) Error() string { return e.Message }

// KindOf returns the ErrorKind of the first *Error / *ValidationError in err's chain.
func KindOf(err error) ErrorKind {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Kind
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}
	return KindInternal
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// Package errs defines the error taxonomy shared by the repository, service
// and handler layers.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error independently of the layer that produced it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyExists
	KindValidation
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindValidation:
		return "validation"
	case KindDatabase:
		return "database"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is checks. Any *Error of the same kind matches.
var (
	ErrNotFound      = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists, Msg: "already exists"}
	ErrValidation    = &Error{Kind: KindValidation, Msg: "validation error"}
	ErrDatabase      = &Error{Kind: KindDatabase, Msg: "database error"}
	ErrInternal      = &Error{Kind: KindInternal, Msg: "internal error"}
)

// Error is the concrete error type carried across layers.
type Error struct {
	Kind Kind
	// ID is the identifier involved, if any.
	ID string
	// Msg is safe to show to callers.
	Msg string
	// Details lists field-level problems for validation errors.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.ID != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound reports a missing identifier.
func NotFound(id any) *Error {
	return &Error{Kind: KindNotFound, ID: fmt.Sprint(id), Msg: "entity not found"}
}

// AlreadyExists reports an identifier collision.
func AlreadyExists(id any) *Error {
	return &Error{Kind: KindAlreadyExists, ID: fmt.Sprint(id), Msg: "entity already exists"}
}

// Conflict reports a collision on a natural-unique field.
func Conflict(field, value string) *Error {
	return &Error{Kind: KindAlreadyExists, Msg: fmt.Sprintf("%s '%s' is already taken", field, value)}
}

// Validation builds a validation error from one or more field problems.
func Validation(details ...string) *Error {
	msg := "validation failed"
	if len(details) == 1 {
		msg = details[0]
	}
	return &Error{Kind: KindValidation, Msg: msg, Details: details}
}

// Database wraps a backend failure.
func Database(op string, err error) *Error {
	return &Error{Kind: KindDatabase, Msg: op, Err: err}
}

// Internal wraps an unclassified failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

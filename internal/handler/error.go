package handler

import (
	"errors"
	"fmt"

	"userrepo/internal/errs"
)

// Code is the caller-facing error classification.
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeDatabase      Code = "DATABASE_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

const (
	internalMessage = "internal error"
	databaseMessage = "database unavailable"
)

// Error is returned by every UserHandler method that fails.
type Error struct {
	Code    Code     `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// translate maps a service error onto exactly one Code. Messages of database
// and internal failures are replaced so driver details never reach callers;
// the original error stays reachable through Unwrap.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var he *Error
	if errors.As(err, &he) {
		return he
	}

	out := &Error{Message: err.Error(), cause: err}
	var e *errs.Error
	if errors.As(err, &e) {
		out.Details = e.Details
	}

	switch errs.KindOf(err) {
	case errs.KindNotFound:
		out.Code = CodeNotFound
	case errs.KindAlreadyExists:
		out.Code = CodeAlreadyExists
	case errs.KindValidation:
		out.Code = CodeValidation
	case errs.KindDatabase:
		out.Code = CodeDatabase
		out.Message = databaseMessage
	default:
		out.Code = CodeInternal
		out.Message = internalMessage
	}
	return out
}

// CodeOf returns the Code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return CodeInternal
}

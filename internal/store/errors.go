package store

import (
	"fmt"
	"net/http"
)

// Error is a store error that carries the HTTP status it should map to.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

var (
	// ErrNotFound is returned by Entity reads when no record exists.
	ErrNotFound = &Error{Code: http.StatusNotFound, Message: "resource not found"}

	// ErrAlreadyExists is returned by Entity writes on key or unique
	// index collisions.
	ErrAlreadyExists = &Error{Code: http.StatusConflict, Message: "resource already exists"}
)

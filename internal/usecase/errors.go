package usecase

import "fmt"

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

type ErrConflict string

func (e ErrConflict) Error() string { return string(e) }

// ErrBadRequest is a validation failure detected before any I/O.
type ErrBadRequest string

func (e ErrBadRequest) Error() string { return string(e) }

type ErrSignature string

func (e ErrSignature) Error() string { return "invalid signature: " + string(e) }

type ErrUnauthorized string

func (e ErrUnauthorized) Error() string { return string(e) }

// UpstreamError means the payment gateway was unreachable or answered badly.
// Nothing was mutated; the caller may retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("gateway %s: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError means the database write or read failed and the change is not applied.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

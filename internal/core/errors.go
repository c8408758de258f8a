package core

// errors.go defines the error taxonomy for the ingestion and query pipeline.
//
// Every failure carries a stable machine-readable Kind plus a human-readable
// message. Validation and capacity failures are detected before any side
// effect; storage failures always follow a full rollback. The web layer maps
// kinds to HTTP status codes.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a stable machine-readable error category.
type ErrorKind string

const (
	KindParse      ErrorKind = "parse_error"
	KindValidation ErrorKind = "validation_error"
	KindCapacity   ErrorKind = "capacity_error"
	KindStorage    ErrorKind = "storage_error"
	KindNotFound   ErrorKind = "not_found"
	KindQuery      ErrorKind = "query_error"
	KindBusy       ErrorKind = "too_busy"
)

// ParseError is an unrecoverable input decode failure.
// It aborts ingestion before validation runs.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse CSV: %v", e.Cause) }
func (e *ParseError) Unwrap() error { return e.Cause }

// StructuralValidationError carries the full accumulated violation list.
type StructuralValidationError struct {
	Violations []string
}

func (e *StructuralValidationError) Error() string {
	return fmt.Sprintf("CSV structure invalid: %s", strings.Join(e.Violations, "; "))
}

// CapacityError means the input exceeds the safe-processing ceiling.
// It is raised before any transaction opens.
type CapacityError struct {
	Reason string
}

func (e *CapacityError) Error() string { return e.Reason }

// StorageError wraps any failure during the transactional write.
// The transaction has already been rolled back when it is returned.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Cause) }
func (e *StorageError) Unwrap() error { return e.Cause }

// ErrNotFound covers both a missing upload and an upload owned by another
// user. The two cases are intentionally indistinguishable to the caller.
var ErrNotFound = errors.New("upload not found or access denied")

// QueryError means malformed filter or sort input was rejected before any
// query was constructed.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string { return e.Reason }

// KindOf classifies an error into its stable kind.
// Unknown errors classify as storage failures for reporting purposes.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	var ve *StructuralValidationError
	var ce *CapacityError
	var qe *QueryError
	switch {
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ce):
		return KindCapacity
	case errors.As(err, &qe):
		return KindQuery
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTooBusy):
		return KindBusy
	default:
		return KindStorage
	}
}

package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrBothUpperBounds is returned when a score filter sets lt and lte.
	ErrBothUpperBounds = errors.New("either lt or lte allowed")
	// ErrBothLowerBounds is returned when a score filter sets gt and gte.
	ErrBothLowerBounds = errors.New("either gt or gte allowed")
	// ErrNoLegacyForm is returned when an operation cannot be expressed in
	// the legacy predicate-tuple dialect.
	ErrNoLegacyForm = errors.New("operation not supported by legacy dialect")
)

// EncodeError reports a request that could not be built. No bytes were sent.
type EncodeError struct {
	Op  Opcode
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Op, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a reply that matched neither the expected typed shape
// nor the error string sentinel.
type DecodeError struct {
	Op Opcode
	// Typed is the failure of the typed decode attempt.
	Typed error
	// Sentinel is the failure of the string decode attempt.
	Sentinel error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s reply: %v (as error string: %v)", e.Op, e.Typed, e.Sentinel)
}

func (e *DecodeError) Unwrap() error { return e.Typed }

// ServiceError is an error the remote engine reported as a plain string.
type ServiceError struct {
	Op      Opcode
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}

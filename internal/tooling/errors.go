// Package tooling holds the error type every stepindex invocation fails
// with.
package tooling

import (
	"errors"
	"fmt"
)

// Kind classifies an invocation failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindLoaderAcquisition: the project scoped loader could not be built.
	KindLoaderAcquisition
	// KindRuntimeExecution: godog failed while building or dry running the
	// glue.
	KindRuntimeExecution
	// KindIndexUnavailable: the symbol index could not be consulted at all.
	KindIndexUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindLoaderAcquisition:
		return "loader acquisition"
	case KindRuntimeExecution:
		return "runtime execution"
	case KindIndexUnavailable:
		return "index unavailable"
	default:
		return "unknown"
	}
}

// Sentinels matching any Error of the same kind through errors.Is.
var (
	ErrLoaderAcquisition = &Error{Kind: KindLoaderAcquisition}
	ErrRuntimeExecution  = &Error{Kind: KindRuntimeExecution}
	ErrIndexUnavailable  = &Error{Kind: KindIndexUnavailable}
)

// Error is a failed invocation.
type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "dry run".
	Op  string
	Err error
}

// New returns an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

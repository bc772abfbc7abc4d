package clone

import (
	"errors"
	"fmt"
)

// Kind classifies a clone failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput is a request the pipeline cannot act on (empty text, no voice).
	KindInput
	// KindModel is a failure reported by the model backend.
	KindModel
	// KindIO is a filesystem failure around the pipeline.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindModel:
		return "model"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is returned by Service.Clone for every failure.
type Error struct {
	Kind Kind
	// Op names the pipeline step that failed.
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("clone %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

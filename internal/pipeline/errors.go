package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every failed run returns an *Error whose Kind is one of these.
var (
	ErrAcquisition   = errors.New("acquisition failed")
	ErrDecompression = errors.New("decompression failed")
	ErrParse         = errors.New("parse failed")
	ErrProjection    = errors.New("projection failed")
	ErrLoad          = errors.New("load failed")
	ErrSinkOpen      = errors.New("sink open failed")
)

// Error is a fatal run failure. errors.Is matches both the Kind and anything
// in the underlying chain.
type Error struct {
	Kind  error
	State State // state the run was in when it failed
	Chunk int   // chunk index, -1 when no chunk was involved
	Err   error
}

func (e *Error) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%v while %s (chunk %d): %v", e.Kind, e.State, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%v while %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

func newError(kind error, state State, chunk int, err error) *Error {
	return &Error{Kind: kind, State: state, Chunk: chunk, Err: err}
}

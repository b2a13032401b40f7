package microstate

import (
	"errors"
	"fmt"
)

// Error kinds. Callers test with errors.Is; every error returned by this
// package wraps exactly one of them.
var (
	// ErrShape reports a mismatch between samples, electrodes and maps.
	ErrShape = errors.New("shape mismatch")
	// ErrFormat reports a malformed persisted table.
	ErrFormat = errors.New("malformed table")
	// ErrDegenerateInput reports input that cannot be processed at all:
	// zero recordings, zero peaks, or too few samples.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrDimension reports a topography whose length differs from the
	// centroid dimensionality.
	ErrDimension = errors.New("dimension mismatch")
	// ErrIndex reports a sample index outside the matrix.
	ErrIndex = errors.New("index out of range")
	// ErrDegenerateCluster reports that no input point carries any spatial
	// variance, so correlation is zero against every centroid for every point.
	ErrDegenerateCluster = errors.New("degenerate cluster input")
)

// Error carries the operation and a detail message for one of the error kinds.
type Error struct {
	Kind error  // one of the Err* sentinels
	Op   string // operation that failed, e.g. "gfp"
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

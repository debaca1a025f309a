// Package pipelineerr defines the error kinds the tiling pipeline
// distinguishes at its boundaries, per the propagation policy: geometry and
// per-tile encode errors are recovered inside the engine, I/O and source
// errors propagate to task status, and malformed requests never reach the
// engine at all.
package pipelineerr

import "errors"

// Kind classifies an error for status-mapping purposes at the orchestrator
// boundary. Use errors.As to recover a *Error and inspect its Kind.
type Kind int

const (
	// KindInvalidRequest marks malformed config, bad paths, or out-of-range
	// levels. Recovered at the API boundary; never reaches the engine.
	KindInvalidRequest Kind = iota
	// KindSourceUnavailable marks a ModelLoader that cannot open or parse
	// its source. The owning task moves to Failed with a diagnostic.
	KindSourceUnavailable
	// KindInvalidGeometry marks a single bad triangle. The triangle is
	// dropped; the run continues.
	KindInvalidGeometry
	// KindEncodeError marks a generator that could not produce tile bytes.
	// The tile is skipped; repeated failures beyond budget fail the task.
	KindEncodeError
	// KindTransientIOError marks a retryable I/O failure (blob store,
	// timeout). The engine retries up to 3 times before failing the task.
	KindTransientIOError
	// KindStoreConflict marks a concurrent mutation detected by the task
	// store. The orchestrator aborts the current run without changing the
	// status observed at the start of the run.
	KindStoreConflict
	// KindCancelled marks a user-initiated stop. Not a failure.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindInvalidGeometry:
		return "invalid_geometry"
	case KindEncodeError:
		return "encode_error"
	case KindTransientIOError:
		return "transient_io_error"
	case KindStoreConflict:
		return "store_conflict"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// category without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

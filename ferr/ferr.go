// Package ferr defines the typed error kinds spec.md §7 requires: callers
// need to distinguish a recoverable not-enough-data condition from a
// fatal format error, a size violation, a charset/percent-decoding
// failure, an operation invoked in the wrong state, or a filesystem
// failure. It is a small sentinel + wrapped-error type rather than six
// separate exported error variables, so callers can errors.Is against a
// Kind while still seeing the underlying cause via errors.Unwrap.
//
// The teacher (badu-http) never needed this: its errors are returned as
// plain fmt.Errorf values because net/http's callers don't fan out on
// error kind. This module's callers do (a decoder must keep offering
// chunks on not-enough-data but destroy itself on format-error), so the
// kind needs to be inspectable — the one place this module reaches past
// the teacher's own error-handling idiom.
package ferr

import (
	"errors"
	"fmt"
)

// Kind classifies a Error.
type Kind int

const (
	// NotEnoughData is recoverable: the decoder awaits the next chunk;
	// the accumulator cursor has already been restored to its snapshot.
	NotEnoughData Kind = iota
	// FormatError is unrecoverable within the current decode session.
	FormatError
	// SizeExceeded means a write would cross max_size or defined_size;
	// the part was not mutated.
	SizeExceeded
	// EncodingError means percent-decoding or charset conversion failed.
	EncodingError
	// StateError means an operation was invoked after Destroy, or before
	// is_last_chunk where that is required.
	StateError
	// IOError is a filesystem failure for a disk-backed part.
	IOError
)

func (k Kind) String() string {
	switch k {
	case NotEnoughData:
		return "not-enough-data"
	case FormatError:
		return "format-error"
	case SizeExceeded:
		return "size-exceeded"
	case EncodingError:
		return "encoding-error"
	case StateError:
		return "state-error"
	case IOError:
		return "io-error"
	default:
		return "unknown-error"
	}
}

// Error is the concrete error type carrying a Kind plus context.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "AddContent", "LoadDataMultipart"
	Err  error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("formbody: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("formbody: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports kind checks such as
// errors.Is(err, &ferr.Error{Kind: ferr.NotEnoughData}): it matches any
// target *Error with the same Kind, whatever its Op and Err.
func (e *Error) Is(target error) bool {
	if other, ok := target.(*Error); ok {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Of reports the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

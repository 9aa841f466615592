// Package errkind tags errors with a coarse kind so callers can mechanically
// decide between retry, skip, and abort instead of inspecting messages.
package errkind

import (
	"errors"
	"fmt"
)

// Kind partitions failures by how the caller should react.
type Kind int

const (
	// Unknown is the zero kind for untagged errors.
	Unknown Kind = iota
	// Transient failures (timeouts, 5xx, rate limits) are retryable.
	Transient
	// Fatal failures (auth rejection, malformed recipient) must not be retried.
	Fatal
	// DataIntegrity marks invalid domain state (non-positive target price,
	// unknown symbol); the offending item is excluded from the cycle.
	DataIntegrity
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	case DataIntegrity:
		return "data_integrity"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Wrap tags err with a kind. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Errorf formats a new tagged error.
func Errorf(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Of reports the kind attached to err, or Unknown.
func Of(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// IsTransient reports whether err is tagged retryable.
func IsTransient(err error) bool { return Of(err) == Transient }

// IsDataIntegrity reports whether err marks invalid domain state.
func IsDataIntegrity(err error) bool { return Of(err) == DataIntegrity }

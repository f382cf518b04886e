// Package riverrors defines the error-kind taxonomy of spec.md §7 so
// that the coordinator and CLI can tell a configuration mistake apart
// from a transient upstream hiccup without parsing error strings.
package riverrors

import (
	"errors"
	"fmt"
)

// Kind is one of the six error kinds spec.md §7 names.
type Kind int

const (
	// KindConfig: fail fast at construction, never start (e.g. missing urlBase).
	KindConfig Kind = iota
	// KindUpstreamTransient: timeout, 5xx, connection reset — retried next tick.
	KindUpstreamTransient
	// KindUpstreamFatal: 401/403, malformed JSON, missing key/updated — same retry cadence, needs an operator.
	KindUpstreamFatal
	// KindBackendFailure: bulk item failures, scroll failure — watermark not advanced past last successful bulk.
	KindBackendFailure
	// KindDataShape: filter applied to scalar/non-object — warn, pass through.
	KindDataShape
	// KindCancellation: shutdown during a run — clean exit, no report.
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindUpstreamTransient:
		return "UpstreamTransient"
	case KindUpstreamFatal:
		return "UpstreamFatal"
	case KindBackendFailure:
		return "BackendFailure"
	case KindDataShape:
		return "DataShape"
	case KindCancellation:
		return "Cancellation"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a classification kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

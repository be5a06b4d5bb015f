package compress

import (
	"errors"
	"fmt"
)

// Outcome is the terminal result of a compression session. Cancellation
// is a distinct outcome, not a failure.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind is the stable classification of a fatal pipeline error.
type Kind int

const (
	KindNoVideoTrack Kind = iota
	KindSourceUnreadable
	KindCodecConfigurationFailed
	KindRelayStall
	KindMuxerWriteFailed
)

func (k Kind) String() string {
	switch k {
	case KindNoVideoTrack:
		return "NoVideoTrack"
	case KindSourceUnreadable:
		return "SourceUnreadable"
	case KindCodecConfigurationFailed:
		return "CodecConfigurationFailed"
	case KindRelayStall:
		return "RelayStall"
	case KindMuxerWriteFailed:
		return "MuxerWriteFailed"
	default:
		return "Unknown"
	}
}

// Error is a fatal pipeline error with a stable kind and detail.
// None of these are retried automatically.
type Error struct {
	Kind   Kind
	Detail string
	Err    error // Underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries the given error kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// asPipelineError coerces any error into an *Error, defaulting the
// kind for errors raised outside the pipeline's own checks.
func asPipelineError(err error, fallback Kind) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: fallback, Detail: err.Error(), Err: err}
}

// errCancelled propagates cooperative cancellation between the pumps.
// Never surfaced to callers; it maps to OutcomeCancelled.
var errCancelled = errors.New("session cancelled")
